package kpi

import (
	"context"
	"math"
	"sort"

	"kpi-service/internal/model"
)

// cancelCheckEvery bounds how many pings a fold processes between context checks.
const cancelCheckEvery = 1024

func checkCancel(ctx context.Context, i int) error {
	if i%cancelCheckEvery == 0 {
		return ctx.Err()
	}
	return nil
}

// sortPings orders a copy of pings by rider, timestamp and id.
func sortPings(pings []model.RiderPing) []model.RiderPing {
	sorted := make([]model.RiderPing, len(pings))
	copy(sorted, pings)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.RiderID != b.RiderID {
			return a.RiderID < b.RiderID
		}
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		return a.ID < b.ID
	})
	return sorted
}

// Segment is a consecutive ping pair of one rider.
type Segment struct {
	Prev           model.RiderPing
	Cur            model.RiderPing
	DistanceMeters float64
	ElapsedSeconds float64
}

func NewSegment(prev, cur model.RiderPing) Segment {
	return Segment{
		Prev:           prev,
		Cur:            cur,
		DistanceMeters: PlanarDistance(prev.Lat, prev.Lon, cur.Lat, cur.Lon),
		ElapsedSeconds: cur.Timestamp.Sub(prev.Timestamp).Seconds(),
	}
}

func (s Segment) Speed() float64 {
	return Speed(s.DistanceMeters, s.ElapsedSeconds)
}

type idleGroup struct {
	riderID string
	zoneID  string
	first   model.RiderPing
	last    model.RiderPing
	minLat  float64
	maxLat  float64
	minLon  float64
	maxLon  float64
	sumLat  float64
	count   int64
}

func (g *idleGroup) add(p model.RiderPing) {
	if g.count == 0 {
		g.first, g.last = p, p
		g.minLat, g.maxLat = p.Lat, p.Lat
		g.minLon, g.maxLon = p.Lon, p.Lon
	}
	if p.Timestamp.Before(g.first.Timestamp) {
		g.first = p
	}
	if p.Timestamp.After(g.last.Timestamp) {
		g.last = p
	}
	g.minLat = math.Min(g.minLat, p.Lat)
	g.maxLat = math.Max(g.maxLat, p.Lat)
	g.minLon = math.Min(g.minLon, p.Lon)
	g.maxLon = math.Max(g.maxLon, p.Lon)
	g.sumLat += p.Lat
	g.count++
}

func (g *idleGroup) dwellSeconds() int64 {
	return int64(g.last.Timestamp.Sub(g.first.Timestamp).Seconds())
}

func (g *idleGroup) movementMeters() float64 {
	avgLat := g.sumLat / float64(g.count)
	return Round(planarSpan(g.maxLat-g.minLat, g.maxLon-g.minLon, avgLat), 2)
}

// IsIdle reports whether a dwell/movement pair crosses the idle thresholds.
// Dwell is inclusive, movement is strict.
func IsIdle(dwellSeconds int64, movementMeters float64, p Params) bool {
	return dwellSeconds >= p.IdleDwellSeconds && movementMeters < p.IdleMovementMeters
}

// IdleRiders groups pings by rider and zone and keeps the groups that stayed
// long enough without moving far.
func IdleRiders(ctx context.Context, pings []model.RiderPing, p Params) ([]model.IdleRider, error) {
	type key struct{ rider, zone string }
	groups := make(map[key]*idleGroup)
	for i, ping := range pings {
		if err := checkCancel(ctx, i); err != nil {
			return nil, err
		}
		k := key{ping.RiderID, ping.ZoneID}
		g, ok := groups[k]
		if !ok {
			g = &idleGroup{riderID: ping.RiderID, zoneID: ping.ZoneID}
			groups[k] = g
		}
		g.add(ping)
	}

	result := make([]model.IdleRider, 0)
	for _, g := range groups {
		dwell := g.dwellSeconds()
		movement := g.movementMeters()
		if !IsIdle(dwell, movement, p) {
			continue
		}
		result = append(result, model.IdleRider{
			RiderID:        g.riderID,
			ZoneID:         g.zoneID,
			FirstSeen:      g.first.Timestamp,
			LastSeen:       g.last.Timestamp,
			DwellSeconds:   dwell,
			MovementMeters: movement,
			Pings:          g.count,
		})
	}
	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if a.DwellSeconds != b.DwellSeconds {
			return a.DwellSeconds > b.DwellSeconds
		}
		if a.RiderID != b.RiderID {
			return a.RiderID < b.RiderID
		}
		return a.ZoneID < b.ZoneID
	})
	return result, nil
}

// Utilization folds each rider's pings in time order and counts the pings
// whose speed against the previous ping is above the active threshold. The
// first ping of a rider has no predecessor and is not considered.
func Utilization(ctx context.Context, pings []model.RiderPing, p Params) ([]model.RiderUtilization, error) {
	sorted := sortPings(pings)

	result := make([]model.RiderUtilization, 0)
	var (
		cur  *model.RiderUtilization
		prev model.RiderPing
	)
	for i, ping := range sorted {
		if err := checkCancel(ctx, i); err != nil {
			return nil, err
		}
		if cur == nil || cur.RiderID != ping.RiderID {
			result = append(result, model.RiderUtilization{RiderID: ping.RiderID})
			cur = &result[len(result)-1]
			prev = ping
			continue
		}
		cur.ConsideredPings++
		if NewSegment(prev, ping).Speed() > p.ActiveSpeedMps {
			cur.ActivePings++
		}
		prev = ping
	}

	for i := range result {
		r := &result[i]
		r.UtilizationPct = Round(float64(r.ActivePings*100)/float64(max(r.ConsideredPings, 1)), 1)
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].UtilizationPct > result[j].UtilizationPct
	})
	return result, nil
}

// LatestPositions keeps the newest ping of every rider. Pings sharing the
// newest timestamp resolve to the highest ping id.
func LatestPositions(ctx context.Context, pings []model.RiderPing) ([]model.RiderPosition, error) {
	latest := make(map[string]model.RiderPing)
	for i, ping := range pings {
		if err := checkCancel(ctx, i); err != nil {
			return nil, err
		}
		best, ok := latest[ping.RiderID]
		if !ok || ping.Timestamp.After(best.Timestamp) ||
			(ping.Timestamp.Equal(best.Timestamp) && ping.ID > best.ID) {
			latest[ping.RiderID] = ping
		}
	}

	result := make([]model.RiderPosition, 0, len(latest))
	for _, ping := range latest {
		result = append(result, model.RiderPosition{
			RiderID:   ping.RiderID,
			PingID:    ping.ID,
			ZoneID:    ping.ZoneID,
			StationID: ping.StationID,
			Lat:       ping.Lat,
			Lon:       ping.Lon,
			Timestamp: ping.Timestamp,
		})
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].RiderID < result[j].RiderID
	})
	return result, nil
}

// Route annotates one rider's pings with distance and speed against the
// previous point of the result. The first point is compared with itself.
func Route(ctx context.Context, pings []model.RiderPing) ([]model.RoutePoint, error) {
	sorted := sortPings(pings)

	result := make([]model.RoutePoint, 0, len(sorted))
	for i, ping := range sorted {
		if err := checkCancel(ctx, i); err != nil {
			return nil, err
		}
		prev := ping
		if i > 0 {
			prev = sorted[i-1]
		}
		seg := NewSegment(prev, ping)
		result = append(result, model.RoutePoint{
			PingID:           ping.ID,
			ZoneID:           ping.ZoneID,
			Lat:              ping.Lat,
			Lon:              ping.Lon,
			Timestamp:        ping.Timestamp,
			DistanceFromPrev: Round(seg.DistanceMeters, 2),
			SpeedMps:         Round(seg.Speed(), 2),
		})
	}
	return result, nil
}
