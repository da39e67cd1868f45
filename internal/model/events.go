package model

import (
	"time"

	"github.com/google/uuid"
)

type OrderEvent struct {
	OrderID   uuid.UUID `gorm:"column:order_id;type:uuid;primaryKey" json:"order_id"`
	ZoneID    string    `gorm:"column:zone_id;not null" json:"zone_id"`
	CreatedAt time.Time `gorm:"column:created_at;not null" json:"created_at"`
}

func (OrderEvent) TableName() string {
	return "order_events"
}

type RiderPing struct {
	ID         int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	EventID    uuid.UUID `gorm:"column:event_id;type:uuid;not null" json:"event_id"`
	RiderID    string    `gorm:"column:rider_id;not null" json:"rider_id"`
	Lat        float64   `gorm:"column:lat;not null" json:"lat"`
	Lon        float64   `gorm:"column:lon;not null" json:"lon"`
	RiderPhone string    `gorm:"column:rider_phone" json:"rider_phone"`
	StationID  string    `gorm:"column:station_id" json:"station_id"`
	ZoneID     string    `gorm:"column:zone_id;not null" json:"zone_id"`
	Timestamp  time.Time `gorm:"column:timestamp;not null" json:"timestamp"`
}

func (RiderPing) TableName() string {
	return "rider_pings"
}

// ZoneBucketCount is one (zone, minute) cell of a bucketed group-by.
type ZoneBucketCount struct {
	ZoneID string
	Bucket time.Time
	Count  int64
}
