package db

import (
	"fmt"

	"gorm.io/gorm"
)

var migrationStatements = []string{
	`CREATE TABLE IF NOT EXISTS order_events (
		order_id   UUID PRIMARY KEY,
		zone_id    TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_order_events_created_at ON order_events (created_at);`,
	`CREATE INDEX IF NOT EXISTS idx_order_events_zone_created_at ON order_events (zone_id, created_at);`,
	`CREATE TABLE IF NOT EXISTS rider_pings (
		id          BIGSERIAL PRIMARY KEY,
		event_id    UUID NOT NULL,
		rider_id    TEXT NOT NULL,
		lat         DOUBLE PRECISION NOT NULL,
		lon         DOUBLE PRECISION NOT NULL,
		rider_phone TEXT,
		station_id  TEXT,
		zone_id     TEXT NOT NULL,
		"timestamp" TIMESTAMPTZ NOT NULL
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_rider_pings_event_id ON rider_pings (event_id);`,
	`CREATE INDEX IF NOT EXISTS idx_rider_pings_timestamp ON rider_pings ("timestamp");`,
	`CREATE INDEX IF NOT EXISTS idx_rider_pings_rider_timestamp ON rider_pings (rider_id, "timestamp");`,
	`CREATE INDEX IF NOT EXISTS idx_rider_pings_zone_timestamp ON rider_pings (zone_id, "timestamp");`,
}

func runMigrations(db *gorm.DB) error {
	for i, stmt := range migrationStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
