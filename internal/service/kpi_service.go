package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"kpi-service/internal/kpi"
	"kpi-service/internal/metrics"
	"kpi-service/internal/model"
)

const maxRiderIDLength = 128

// EventStore is the read side of the order and ping streams. Every window is
// half-open.
type EventStore interface {
	OrderCountsByZone(ctx context.Context, w model.Window) (map[string]int64, error)
	DistinctRidersByZone(ctx context.Context, w model.Window) (map[string]int64, error)
	OrderCountsByZoneMinute(ctx context.Context, w model.Window) ([]model.ZoneBucketCount, error)
	DistinctRidersByZoneMinute(ctx context.Context, w model.Window) ([]model.ZoneBucketCount, error)
	Pings(ctx context.Context, w model.Window) ([]model.RiderPing, error)
	RiderPings(ctx context.Context, riderID string, w model.Window) ([]model.RiderPing, error)
	DistinctRiderIDs(ctx context.Context, w model.Window) ([]string, error)
}

type Windows struct {
	Realtime    time.Duration
	Utilization time.Duration
	Trend       time.Duration
	History     time.Duration
	Surge       time.Duration
}

// KPIService is the query facade. It holds no per-query state, so one
// instance serves concurrent callers.
type KPIService struct {
	store   EventStore
	windows Windows
	params  kpi.Params
	now     func() time.Time
}

func NewKPIService(store EventStore, windows Windows, params kpi.Params, now func() time.Time) *KPIService {
	if now == nil {
		now = time.Now
	}
	return &KPIService{
		store:   store,
		windows: windows,
		params:  params,
		now:     now,
	}
}

func (s *KPIService) window(d time.Duration) model.Window {
	return model.NewWindow(s.now(), d)
}

func (s *KPIService) SupplyGap(ctx context.Context) (result []model.SupplyGap, err error) {
	defer observe("supply_gap", time.Now(), &err, func() int { return len(result) })

	table, err := s.zoneTable(ctx, s.window(s.windows.Realtime))
	if err != nil {
		return nil, err
	}
	return kpi.SupplyGap(table), nil
}

func (s *KPIService) TopZones(ctx context.Context) (result []model.ZonePressure, err error) {
	defer observe("top_zones", time.Now(), &err, func() int { return len(result) })

	table, err := s.zoneTable(ctx, s.window(s.windows.Realtime))
	if err != nil {
		return nil, err
	}
	return kpi.TopZones(table, s.params.TopZonesLimit), nil
}

func (s *KPIService) FulfillmentRisk(ctx context.Context) (result []model.FulfillmentRisk, err error) {
	defer observe("fulfillment_risk", time.Now(), &err, func() int { return len(result) })

	table, err := s.zoneTable(ctx, s.window(s.windows.Realtime))
	if err != nil {
		return nil, err
	}
	return kpi.FulfillmentRisk(table), nil
}

func (s *KPIService) Reposition(ctx context.Context) (result []model.Reposition, err error) {
	defer observe("reposition", time.Now(), &err, func() int { return len(result) })

	table, err := s.zoneTable(ctx, s.window(s.windows.Realtime))
	if err != nil {
		return nil, err
	}
	return kpi.Reposition(table, s.params.RepositionGapThreshold), nil
}

// IdleRiders looks back twice the realtime window.
func (s *KPIService) IdleRiders(ctx context.Context) (result []model.IdleRider, err error) {
	defer observe("idle_riders", time.Now(), &err, func() int { return len(result) })

	pings, err := s.store.Pings(ctx, s.window(2*s.windows.Realtime))
	if err != nil {
		return nil, storeFailure(ctx, "pings", err)
	}
	return kpi.IdleRiders(ctx, pings, s.params)
}

func (s *KPIService) RiderUtilization(ctx context.Context) (result []model.RiderUtilization, err error) {
	defer observe("rider_utilization", time.Now(), &err, func() int { return len(result) })

	pings, err := s.store.Pings(ctx, s.window(s.windows.Utilization))
	if err != nil {
		return nil, storeFailure(ctx, "pings", err)
	}
	return kpi.Utilization(ctx, pings, s.params)
}

func (s *KPIService) OrdersTrend(ctx context.Context) (result []model.OrdersTrendPoint, err error) {
	defer observe("orders_trend", time.Now(), &err, func() int { return len(result) })

	counts, err := s.store.OrderCountsByZoneMinute(ctx, s.window(s.windows.Trend))
	if err != nil {
		return nil, storeFailure(ctx, "order_counts_by_zone_minute", err)
	}
	return kpi.OrdersTrend(counts), nil
}

func (s *KPIService) PeakGap(ctx context.Context) (result []model.PeakGap, err error) {
	defer observe("peak_gap", time.Now(), &err, func() int { return len(result) })

	w := s.window(s.windows.History)

	var orders, riders []model.ZoneBucketCount
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if orders, err = s.store.OrderCountsByZoneMinute(gctx, w); err != nil {
			return storeFailure(ctx, "order_counts_by_zone_minute", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if riders, err = s.store.DistinctRidersByZoneMinute(gctx, w); err != nil {
			return storeFailure(ctx, "distinct_riders_by_zone_minute", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return kpi.PeakGap(orders, riders), nil
}

// SurgePrediction compares order counts of the surge window with the window
// right before it, against rider supply in the current window.
func (s *KPIService) SurgePrediction(ctx context.Context) (result []model.SurgePrediction, err error) {
	defer observe("surge_prediction", time.Now(), &err, func() int { return len(result) })

	current := s.window(s.windows.Surge)
	previous := current.Shift(s.windows.Surge)

	var now, prev, riders map[string]int64
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if now, err = s.store.OrderCountsByZone(gctx, current); err != nil {
			return storeFailure(ctx, "order_counts_by_zone", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if prev, err = s.store.OrderCountsByZone(gctx, previous); err != nil {
			return storeFailure(ctx, "order_counts_by_zone", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if riders, err = s.store.DistinctRidersByZone(gctx, current); err != nil {
			return storeFailure(ctx, "distinct_riders_by_zone", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return kpi.Surge(now, prev, riders), nil
}

func (s *KPIService) RiderPositions(ctx context.Context) (result []model.RiderPosition, err error) {
	defer observe("rider_positions", time.Now(), &err, func() int { return len(result) })

	pings, err := s.store.Pings(ctx, s.window(s.windows.Realtime))
	if err != nil {
		return nil, storeFailure(ctx, "pings", err)
	}
	return kpi.LatestPositions(ctx, pings)
}

func (s *KPIService) RiderList(ctx context.Context) (result []string, err error) {
	defer observe("rider_list", time.Now(), &err, func() int { return len(result) })

	ids, err := s.store.DistinctRiderIDs(ctx, s.window(s.windows.History))
	if err != nil {
		return nil, storeFailure(ctx, "distinct_rider_ids", err)
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

// RiderRoute returns one rider's pings in [from, to). A missing bound
// defaults to the history window ending now.
func (s *KPIService) RiderRoute(ctx context.Context, q model.RouteQuery) (result []model.RoutePoint, err error) {
	defer observe("rider_route", time.Now(), &err, func() int { return len(result) })

	riderID, w, err := s.routeWindow(q)
	if err != nil {
		return nil, err
	}

	pings, err := s.store.RiderPings(ctx, riderID, w)
	if err != nil {
		return nil, storeFailure(ctx, "rider_pings", err)
	}
	return kpi.Route(ctx, pings)
}

func (s *KPIService) routeWindow(q model.RouteQuery) (string, model.Window, error) {
	riderID := strings.TrimSpace(q.RiderID)
	if riderID == "" {
		return "", model.Window{}, invalidParameter("rider id is required")
	}
	if len(riderID) > maxRiderIDLength || !utf8.ValidString(riderID) {
		return "", model.Window{}, invalidParameter("rider id is malformed")
	}

	w := s.window(s.windows.History)
	if q.To != nil {
		w.To = q.To.UTC()
		if q.From == nil {
			w.From = w.To.Add(-s.windows.History)
		}
	}
	if q.From != nil {
		w.From = q.From.UTC()
	}
	if !w.Valid() {
		return "", model.Window{}, invalidParameter("from must be before to")
	}
	return riderID, w, nil
}

// zoneTable fetches order and rider counts for w on separate connections and
// joins them.
func (s *KPIService) zoneTable(ctx context.Context, w model.Window) ([]model.ZoneWindowAggregate, error) {
	var orders, riders map[string]int64

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if orders, err = s.store.OrderCountsByZone(gctx, w); err != nil {
			return storeFailure(ctx, "order_counts_by_zone", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if riders, err = s.store.DistinctRidersByZone(gctx, w); err != nil {
			return storeFailure(ctx, "distinct_riders_by_zone", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return kpi.UnionJoin(orders, riders), nil
}

func observe(metric string, started time.Time, errp *error, rows func() int) {
	outcome := metrics.OutcomeOK
	if err := *errp; err != nil {
		switch {
		case errors.Is(err, ErrInvalidParameter):
			outcome = metrics.OutcomeInvalid
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			outcome = metrics.OutcomeCancelled
		default:
			outcome = metrics.OutcomeStore
		}
	}
	metrics.ObserveQuery(metric, outcome, started, rows())
}
