package kpi

// Params carries the thresholds the calculators compare against.
type Params struct {
	TopZonesLimit          int
	RepositionGapThreshold int64
	IdleDwellSeconds       int64
	IdleMovementMeters     float64
	ActiveSpeedMps         float64
}

func DefaultParams() Params {
	return Params{
		TopZonesLimit:          10,
		RepositionGapThreshold: 2,
		IdleDwellSeconds:       300,
		IdleMovementMeters:     50,
		ActiveSpeedMps:         3.0,
	}
}
