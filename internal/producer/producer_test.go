package producer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kpi-service/internal/config"
	"kpi-service/internal/model"
)

type fakeSink struct {
	mu        sync.Mutex
	orders    [][]model.OrderEvent
	pings     [][]model.RiderPing
	failUntil int
	calls     int
}

func (s *fakeSink) AppendOrders(_ context.Context, orders []model.OrderEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.calls <= s.failUntil {
		return errors.New("store down")
	}
	s.orders = append(s.orders, orders)
	return nil
}

func (s *fakeSink) AppendPings(_ context.Context, pings []model.RiderPing) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pings = append(s.pings, pings)
	return nil
}

func (s *fakeSink) orderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, b := range s.orders {
		n += len(b)
	}
	return n
}

func (s *fakeSink) pingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, b := range s.pings {
		n += len(b)
	}
	return n
}

func TestBatcherFlushesOnSize(t *testing.T) {
	sink := &fakeSink{}
	b := newBatcher(streamOrders, 3, sink.AppendOrders, zerolog.Nop())
	gen := newOrderGenerator(7, []string{"Z1"})
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	for b.pending() < 2 {
		b.add(context.Background(), gen.next(now)[0])
	}
	assert.Empty(t, sink.orders)

	b.add(context.Background(), gen.next(now)[0])
	require.Len(t, sink.orders, 1)
	assert.Len(t, sink.orders[0], 3)
	assert.Zero(t, b.pending())
}

func TestBatcherKeepsBufferOnFailure(t *testing.T) {
	sink := &fakeSink{failUntil: 1}
	b := newBatcher(streamOrders, 10, sink.AppendOrders, zerolog.Nop())
	gen := newOrderGenerator(7, []string{"Z1", "Z2"})
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	b.add(context.Background(), gen.next(now)...)
	buffered := b.pending()
	require.Positive(t, buffered)

	require.Error(t, b.flushAll(context.Background()))
	assert.Equal(t, buffered, b.pending())

	require.NoError(t, b.flushAll(context.Background()))
	assert.Zero(t, b.pending())
	assert.Equal(t, buffered, sink.orderCount())
}

func TestBatcherSplitsLargeBuffers(t *testing.T) {
	sink := &fakeSink{}
	b := newBatcher(streamPings, 4, sink.AppendPings, zerolog.Nop())
	gen := newPingGenerator(3, []string{"Z1"}, 10)

	b.buf = append(b.buf, gen.next(time.Now())...)
	require.NoError(t, b.flushAll(context.Background()))

	require.Len(t, sink.pings, 3)
	assert.Len(t, sink.pings[0], 4)
	assert.Len(t, sink.pings[2], 2)
}

func TestGeneratorsAreDeterministicPerSeed(t *testing.T) {
	zones := []string{"Z1", "Z2", "Z3", "Z4"}
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	a, b := newOrderGenerator(42, zones), newOrderGenerator(42, zones)
	for i := 0; i < 20; i++ {
		left, right := a.next(now), b.next(now)
		require.Len(t, right, len(left))
		for j := range left {
			assert.Equal(t, left[j].ZoneID, right[j].ZoneID)
			assert.NotEqual(t, left[j].OrderID, right[j].OrderID)
		}
	}

	pa, pb := newPingGenerator(42, zones, 5), newPingGenerator(42, zones, 5)
	for i := 0; i < 20; i++ {
		left, right := pa.next(now), pb.next(now)
		for j := range left {
			assert.Equal(t, left[j].RiderID, right[j].RiderID)
			assert.Equal(t, left[j].Lat, right[j].Lat)
			assert.Equal(t, left[j].Lon, right[j].Lon)
			assert.Equal(t, left[j].ZoneID, right[j].ZoneID)
		}
	}
}

func TestPingTimestampsStrictlyIncreasePerRider(t *testing.T) {
	gen := newPingGenerator(9, []string{"Z1", "Z2"}, 3)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	last := map[string]time.Time{}
	for i := 0; i < 5; i++ {
		// Same clock reading every tick.
		for _, p := range gen.next(now) {
			if prev, ok := last[p.RiderID]; ok {
				assert.True(t, p.Timestamp.After(prev), "rider %s", p.RiderID)
			}
			last[p.RiderID] = p.Timestamp
			assert.Contains(t, []string{"Z1", "Z2"}, p.ZoneID)
		}
	}
	assert.Len(t, last, 3)
}

func TestRunFlushesOnShutdown(t *testing.T) {
	sink := &fakeSink{}
	p := New(sink, config.ProducerConfig{
		Seed:          1,
		Zones:         []string{"Z1", "Z2"},
		Riders:        4,
		OrderInterval: 5 * time.Millisecond,
		PingInterval:  5 * time.Millisecond,
		BatchSize:     1000,
		FlushInterval: time.Hour,
	}, zerolog.Nop(), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	require.NoError(t, p.Run(ctx))

	assert.Positive(t, sink.orderCount())
	assert.Positive(t, sink.pingCount())
	assert.Zero(t, sink.pingCount()%4)
}
