package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"kpi-service/internal/model"
)

const (
	pingTime  = `p."timestamp"`
	orderTime = "o.created_at"

	insertBatchSize = 500
)

type EventRepository struct {
	db *gorm.DB
}

func NewEventRepository(db *gorm.DB) *EventRepository {
	return &EventRepository{db: db}
}

type zoneCountRow struct {
	ZoneID string
	Count  int64
}

func toZoneMap(rows []zoneCountRow) map[string]int64 {
	result := make(map[string]int64, len(rows))
	for _, row := range rows {
		result[row.ZoneID] = row.Count
	}
	return result
}

func (r *EventRepository) OrderCountsByZone(ctx context.Context, w model.Window) (map[string]int64, error) {
	var rows []zoneCountRow

	query := r.db.WithContext(ctx).
		Table("order_events o").
		Select("o.zone_id AS zone_id, COUNT(*) AS count").
		Where(orderTime+" >= ? AND "+orderTime+" < ?", w.From, w.To).
		Group("o.zone_id")

	if err := query.Scan(&rows).Error; err != nil {
		return nil, err
	}
	return toZoneMap(rows), nil
}

func (r *EventRepository) DistinctRidersByZone(ctx context.Context, w model.Window) (map[string]int64, error) {
	var rows []zoneCountRow

	query := r.db.WithContext(ctx).
		Table("rider_pings p").
		Select("p.zone_id AS zone_id, COUNT(DISTINCT p.rider_id) AS count").
		Where(pingTime+" >= ? AND "+pingTime+" < ?", w.From, w.To).
		Group("p.zone_id")

	if err := query.Scan(&rows).Error; err != nil {
		return nil, err
	}
	return toZoneMap(rows), nil
}

func (r *EventRepository) OrderCountsByZoneMinute(ctx context.Context, w model.Window) ([]model.ZoneBucketCount, error) {
	var rows []model.ZoneBucketCount

	query := r.db.WithContext(ctx).
		Table("order_events o").
		Select("o.zone_id AS zone_id, DATE_TRUNC('minute', "+orderTime+") AS bucket, COUNT(*) AS count").
		Where(orderTime+" >= ? AND "+orderTime+" < ?", w.From, w.To).
		Group("o.zone_id, bucket").
		Order("bucket ASC, o.zone_id ASC")

	if err := query.Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *EventRepository) DistinctRidersByZoneMinute(ctx context.Context, w model.Window) ([]model.ZoneBucketCount, error) {
	var rows []model.ZoneBucketCount

	query := r.db.WithContext(ctx).
		Table("rider_pings p").
		Select("p.zone_id AS zone_id, DATE_TRUNC('minute', "+pingTime+") AS bucket, COUNT(DISTINCT p.rider_id) AS count").
		Where(pingTime+" >= ? AND "+pingTime+" < ?", w.From, w.To).
		Group("p.zone_id, bucket").
		Order("bucket ASC, p.zone_id ASC")

	if err := query.Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Pings returns every ping in the window ordered by rider, time and id.
func (r *EventRepository) Pings(ctx context.Context, w model.Window) ([]model.RiderPing, error) {
	var pings []model.RiderPing

	query := r.db.WithContext(ctx).
		Table("rider_pings p").
		Where(pingTime+" >= ? AND "+pingTime+" < ?", w.From, w.To).
		Order("p.rider_id ASC, " + pingTime + " ASC, p.id ASC")

	if err := query.Find(&pings).Error; err != nil {
		return nil, err
	}
	return pings, nil
}

func (r *EventRepository) RiderPings(ctx context.Context, riderID string, w model.Window) ([]model.RiderPing, error) {
	var pings []model.RiderPing

	query := r.db.WithContext(ctx).
		Table("rider_pings p").
		Where("p.rider_id = ?", riderID).
		Where(pingTime+" >= ? AND "+pingTime+" < ?", w.From, w.To).
		Order(pingTime + " ASC, p.id ASC")

	if err := query.Find(&pings).Error; err != nil {
		return nil, err
	}
	return pings, nil
}

func (r *EventRepository) DistinctRiderIDs(ctx context.Context, w model.Window) ([]string, error) {
	var ids []string

	query := r.db.WithContext(ctx).
		Table("rider_pings p").
		Where(pingTime+" >= ? AND "+pingTime+" < ?", w.From, w.To).
		Distinct("p.rider_id").
		Order("p.rider_id ASC")

	if err := query.Pluck("p.rider_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// AppendOrders inserts a batch; an order id seen before is skipped so a
// retried flush does not fail on rows a previous attempt already wrote.
func (r *EventRepository) AppendOrders(ctx context.Context, orders []model.OrderEvent) error {
	if len(orders) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "order_id"}}, DoNothing: true}).
		CreateInBatches(orders, insertBatchSize).Error
}

func (r *EventRepository) AppendPings(ctx context.Context, pings []model.RiderPing) error {
	if len(pings) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "event_id"}}, DoNothing: true}).
		CreateInBatches(pings, insertBatchSize).Error
}

// Ready pings the pool and checks that both event tables exist.
func (r *EventRepository) Ready(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return err
	}
	return r.tablesAvailable(ctx, "order_events", "rider_pings")
}

func (r *EventRepository) relationExists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := r.db.WithContext(ctx).
		Raw(`SELECT EXISTS (
			SELECT 1
			FROM pg_catalog.pg_class c
			JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
			WHERE c.relname = ? AND c.relkind IN ('r','p') AND n.nspname = current_schema()
		)`, name).
		Scan(&exists).Error
	return exists, err
}

func (r *EventRepository) tablesAvailable(ctx context.Context, names ...string) error {
	for _, name := range names {
		ok, err := r.relationExists(ctx, name)
		if err != nil {
			return err
		}
		if !ok {
			return &MissingRelationError{Name: name}
		}
	}
	return nil
}

type MissingRelationError struct {
	Name string
}

func (e *MissingRelationError) Error() string {
	return "relation " + e.Name + " does not exist"
}
