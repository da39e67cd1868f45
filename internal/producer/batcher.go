package producer

import (
	"context"
	"slices"

	"github.com/rs/zerolog"

	"kpi-service/internal/metrics"
)

// maxBufferFactor bounds how many batches a stalled sink may leave buffered.
const maxBufferFactor = 50

// batcher buffers records of one stream and hands them to flush either when a
// full batch is ready or when the caller's flush ticker fires. A failed flush
// keeps the buffer so the next cycle retries it.
type batcher[T any] struct {
	stream string
	size   int
	flush  func(ctx context.Context, items []T) error
	log    zerolog.Logger
	buf    []T
}

func newBatcher[T any](stream string, size int, flush func(context.Context, []T) error, log zerolog.Logger) *batcher[T] {
	return &batcher[T]{
		stream: stream,
		size:   size,
		flush:  flush,
		log:    log.With().Str("stream", stream).Logger(),
		buf:    make([]T, 0, size),
	}
}

func (b *batcher[T]) add(ctx context.Context, items ...T) {
	b.buf = append(b.buf, items...)
	if limit := b.size * maxBufferFactor; len(b.buf) > limit {
		dropped := len(b.buf) - limit
		b.buf = append(b.buf[:0], b.buf[dropped:]...)
		b.log.Warn().Int("dropped", dropped).Msg("producer buffer full, dropping oldest records")
	}
	metrics.ProducerBufferedRecords.WithLabelValues(b.stream).Set(float64(len(b.buf)))

	if len(b.buf) >= b.size {
		_ = b.flushAll(ctx)
	}
}

// flushAll writes the buffer in batches of at most size records and stops at
// the first failure.
func (b *batcher[T]) flushAll(ctx context.Context) error {
	defer func() {
		metrics.ProducerBufferedRecords.WithLabelValues(b.stream).Set(float64(len(b.buf)))
	}()

	for len(b.buf) > 0 {
		n := min(len(b.buf), b.size)
		if err := b.flush(ctx, slices.Clone(b.buf[:n])); err != nil {
			metrics.ProducerFlushesTotal.WithLabelValues(b.stream, "error").Inc()
			b.log.Warn().Err(err).Int("pending", len(b.buf)).Msg("producer flush failed, will retry")
			return err
		}
		metrics.ProducerFlushesTotal.WithLabelValues(b.stream, "ok").Inc()
		b.buf = append(b.buf[:0], b.buf[n:]...)
	}
	return nil
}

func (b *batcher[T]) pending() int {
	return len(b.buf)
}
