package producer

import (
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"kpi-service/internal/model"
)

const (
	baseLat      = 43.2380
	baseLon      = 76.8890
	zoneSpacing  = 0.02
	zoneRadius   = 0.008
	movingStep   = 0.0006
	idleJitter   = 0.00002
	toggleChance = 0.1
	zoneHopRatio = 0.02
)

func newRand(seed, stream uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, stream))
}

type zoneCenter struct {
	lat, lon float64
}

func zoneCenters(zones []string) []zoneCenter {
	centers := make([]zoneCenter, len(zones))
	for i := range zones {
		centers[i] = zoneCenter{
			lat: baseLat + float64(i%3)*zoneSpacing,
			lon: baseLon + float64(i/3)*zoneSpacing,
		}
	}
	return centers
}

// orderGenerator draws order events from its own random source. Zones are
// weighted so that the first zones stay busier than the last ones.
type orderGenerator struct {
	rng   *rand.Rand
	zones []string
}

func newOrderGenerator(seed uint64, zones []string) *orderGenerator {
	return &orderGenerator{rng: newRand(seed, 1), zones: zones}
}

func (g *orderGenerator) next(now time.Time) []model.OrderEvent {
	n := 1 + g.rng.IntN(3)
	out := make([]model.OrderEvent, 0, n)
	for range n {
		out = append(out, model.OrderEvent{
			OrderID:   uuid.New(),
			ZoneID:    g.zones[g.weightedZone()],
			CreatedAt: now.UTC(),
		})
	}
	return out
}

func (g *orderGenerator) weightedZone() int {
	// Squaring a uniform draw skews the index towards zero.
	u := g.rng.Float64()
	return min(int(u*u*float64(len(g.zones))), len(g.zones)-1)
}

type riderState struct {
	id      string
	phone   string
	station string
	zone    int
	lat     float64
	lon     float64
	moving  bool
	last    time.Time
}

// pingGenerator owns the state of every simulated rider. Each rider is either
// parked with GPS jitter or moving in a random walk around its zone.
type pingGenerator struct {
	rng     *rand.Rand
	zones   []string
	centers []zoneCenter
	riders  []*riderState
}

func newPingGenerator(seed uint64, zones []string, riders int) *pingGenerator {
	g := &pingGenerator{
		rng:     newRand(seed, 2),
		zones:   zones,
		centers: zoneCenters(zones),
		riders:  make([]*riderState, riders),
	}
	for i := range g.riders {
		zone := g.rng.IntN(len(zones))
		c := g.centers[zone]
		g.riders[i] = &riderState{
			id:      fmt.Sprintf("rider-%03d", i+1),
			phone:   fmt.Sprintf("+7700%07d", g.rng.IntN(10_000_000)),
			station: fmt.Sprintf("station-%d", zone+1),
			zone:    zone,
			lat:     c.lat + (g.rng.Float64()*2-1)*zoneRadius,
			lon:     c.lon + (g.rng.Float64()*2-1)*zoneRadius,
			moving:  g.rng.Float64() < 0.5,
		}
	}
	return g
}

func (g *pingGenerator) next(now time.Time) []model.RiderPing {
	now = now.UTC()
	out := make([]model.RiderPing, 0, len(g.riders))
	for _, r := range g.riders {
		g.step(r)
		ts := now
		if !ts.After(r.last) {
			ts = r.last.Add(time.Millisecond)
		}
		r.last = ts
		out = append(out, model.RiderPing{
			EventID:    uuid.New(),
			RiderID:    r.id,
			Lat:        r.lat,
			Lon:        r.lon,
			RiderPhone: r.phone,
			StationID:  r.station,
			ZoneID:     g.zones[r.zone],
			Timestamp:  ts,
		})
	}
	return out
}

func (g *pingGenerator) step(r *riderState) {
	if g.rng.Float64() < toggleChance {
		r.moving = !r.moving
	}
	if r.moving && g.rng.Float64() < zoneHopRatio {
		r.zone = g.rng.IntN(len(g.zones))
	}

	if !r.moving {
		r.lat += (g.rng.Float64()*2 - 1) * idleJitter
		r.lon += (g.rng.Float64()*2 - 1) * idleJitter
		return
	}

	heading := g.rng.Float64() * 2 * math.Pi
	r.lat += math.Sin(heading) * movingStep
	r.lon += math.Cos(heading) * movingStep

	// Pull riders that drift out of their zone back towards its center.
	c := g.centers[r.zone]
	if math.Abs(r.lat-c.lat) > zoneRadius || math.Abs(r.lon-c.lon) > zoneRadius {
		r.lat += (c.lat - r.lat) / 2
		r.lon += (c.lon - r.lon) / 2
	}
}
