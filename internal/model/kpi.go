package model

import "time"

type ZoneWindowAggregate struct {
	ZoneID           string `json:"zone_id"`
	OrderCount       int64  `json:"orders"`
	UniqueRiderCount int64  `json:"riders"`
}

type SupplyGap struct {
	ZoneID   string  `json:"zone_id"`
	Orders   int64   `json:"orders"`
	Riders   int64   `json:"riders"`
	Gap      int64   `json:"gap"`
	Pressure float64 `json:"pressure"`
}

type ZonePressure struct {
	ZoneID   string  `json:"zone_id"`
	Orders   int64   `json:"orders"`
	Riders   int64   `json:"riders"`
	Pressure float64 `json:"pressure"`
}

type FulfillmentRisk struct {
	ZoneID string  `json:"zone_id"`
	Orders int64   `json:"orders"`
	Riders int64   `json:"riders"`
	Risk   float64 `json:"risk"`
}

type Reposition struct {
	ZoneID       string `json:"zone_id"`
	Orders       int64  `json:"orders"`
	Riders       int64  `json:"riders"`
	NeededRiders int64  `json:"needed_riders"`
}

type IdleRider struct {
	RiderID        string    `json:"rider_id"`
	ZoneID         string    `json:"zone_id"`
	FirstSeen      time.Time `json:"first_seen"`
	LastSeen       time.Time `json:"last_seen"`
	DwellSeconds   int64     `json:"dwell_seconds"`
	MovementMeters float64   `json:"movement_meters"`
	Pings          int64     `json:"pings"`
}

type RiderUtilization struct {
	RiderID         string  `json:"rider_id"`
	ActivePings     int64   `json:"active_pings"`
	ConsideredPings int64   `json:"considered_pings"`
	UtilizationPct  float64 `json:"utilization_pct"`
}

type OrdersTrendPoint struct {
	Bucket time.Time `json:"bucket"`
	ZoneID string    `json:"zone_id"`
	Orders int64     `json:"orders"`
}

type PeakGap struct {
	ZoneID     string    `json:"zone_id"`
	PeakGap    int64     `json:"peak_gap"`
	PeakBucket time.Time `json:"peak_bucket"`
}

type SurgePrediction struct {
	ZoneID                string  `json:"zone_id"`
	OrdersNow             int64   `json:"orders_now"`
	OrdersPrev            int64   `json:"orders_prev"`
	Riders                int64   `json:"riders"`
	DemandAccelerationPct float64 `json:"demand_acceleration_pct"`
	Pressure              float64 `json:"pressure"`
	SurgeScore            float64 `json:"surge_score"`
	RidersNeeded          int64   `json:"riders_needed"`
}

type RiderPosition struct {
	RiderID   string    `json:"rider_id"`
	PingID    int64     `json:"ping_id"`
	ZoneID    string    `json:"zone_id"`
	StationID string    `json:"station_id"`
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
	Timestamp time.Time `json:"timestamp"`
}

type RoutePoint struct {
	PingID           int64     `json:"ping_id"`
	ZoneID           string    `json:"zone_id"`
	Lat              float64   `json:"lat"`
	Lon              float64   `json:"lon"`
	Timestamp        time.Time `json:"timestamp"`
	DistanceFromPrev float64   `json:"distance_from_prev"`
	SpeedMps         float64   `json:"speed_mps"`
}

type RouteQuery struct {
	RiderID string
	From    *time.Time
	To      *time.Time
}
