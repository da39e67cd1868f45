// Package producer feeds synthetic order events and rider pings into the
// event store for local runs and demos.
package producer

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"kpi-service/internal/config"
	"kpi-service/internal/model"
)

const (
	streamOrders = "orders"
	streamPings  = "pings"

	shutdownFlushTimeout = 5 * time.Second
)

// Sink is the write side of the event store.
type Sink interface {
	AppendOrders(ctx context.Context, orders []model.OrderEvent) error
	AppendPings(ctx context.Context, pings []model.RiderPing) error
}

type Producer struct {
	sink Sink
	cfg  config.ProducerConfig
	log  zerolog.Logger
	now  func() time.Time
}

func New(sink Sink, cfg config.ProducerConfig, log zerolog.Logger, now func() time.Time) *Producer {
	if now == nil {
		now = time.Now
	}
	return &Producer{
		sink: sink,
		cfg:  cfg,
		log:  log.With().Str("component", "producer").Logger(),
		now:  now,
	}
}

// Run drives the order and ping tasks until ctx is done. Each task owns its
// random source and buffer, and flushes what is left on shutdown.
func (p *Producer) Run(ctx context.Context) error {
	p.log.Info().
		Uint64("seed", p.cfg.Seed).
		Strs("zones", p.cfg.Zones).
		Int("riders", p.cfg.Riders).
		Msg("starting producers")

	orders := newOrderGenerator(p.cfg.Seed, p.cfg.Zones)
	pings := newPingGenerator(p.cfg.Seed, p.cfg.Zones, p.cfg.Riders)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		b := newBatcher(streamOrders, p.cfg.BatchSize, p.sink.AppendOrders, p.log)
		p.loop(gctx, p.cfg.OrderInterval, func(now time.Time) { b.add(gctx, orders.next(now)...) }, b.flushAll, b.pending)
		return nil
	})
	g.Go(func() error {
		b := newBatcher(streamPings, p.cfg.BatchSize, p.sink.AppendPings, p.log)
		p.loop(gctx, p.cfg.PingInterval, func(now time.Time) { b.add(gctx, pings.next(now)...) }, b.flushAll, b.pending)
		return nil
	})
	return g.Wait()
}

func (p *Producer) loop(ctx context.Context, interval time.Duration, tick func(time.Time), flush func(context.Context) error, pending func() int) {
	emit := time.NewTicker(interval)
	defer emit.Stop()
	flushTicker := time.NewTicker(p.cfg.FlushInterval)
	defer flushTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			if pending() == 0 {
				return
			}
			fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownFlushTimeout)
			if err := flush(fctx); err != nil {
				p.log.Error().Err(err).Int("pending", pending()).Msg("final producer flush failed")
			}
			cancel()
			return
		case <-emit.C:
			tick(p.now())
		case <-flushTicker.C:
			_ = flush(ctx)
		}
	}
}
