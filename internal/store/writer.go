package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/utafrali/gomarketplace/internal/domain"
	"github.com/utafrali/gomarketplace/internal/storage"
)

// maxRetryDelay caps the backoff between retries of a failed write.
const maxRetryDelay = 10 * time.Second

// writer is the only goroutine that writes the cart to storage. It keeps just
// the newest snapshot, so bursts of mutations collapse into one write and the
// stored value always converges to the last in-memory state.
type writer struct {
	kv       storage.KV
	key      string
	debounce   time.Duration
	timeout    time.Duration
	retryDelay time.Duration
	logger     *slog.Logger

	mu         sync.Mutex
	pending    domain.Collection
	hasPending bool
	started    bool

	// writeMu serializes storage writes between run, Flush and Close.
	writeMu sync.Mutex

	notify   chan struct{}
	done     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once
}

func newWriter(kv storage.KV, opts Options, logger *slog.Logger) *writer {
	return &writer{
		kv:         kv,
		key:        opts.Key,
		debounce:   opts.Debounce,
		timeout:    opts.WriteTimeout,
		retryDelay: opts.RetryDelay,
		logger:     logger,
		notify:     make(chan struct{}, 1),
		done:       make(chan struct{}),
		stopped:    make(chan struct{}),
	}
}

// schedule replaces the pending snapshot. It never blocks.
func (w *writer) schedule(items domain.Collection) {
	w.mu.Lock()
	w.pending = items
	w.hasPending = true
	w.mu.Unlock()

	select {
	case w.notify <- struct{}{}:
	default:
	}
}

// start launches the write loop. No write happens before ready is closed.
func (w *writer) start(ctx context.Context, ready <-chan struct{}) {
	w.mu.Lock()
	w.started = true
	w.mu.Unlock()

	go w.run(ctx, ready)
}

func (w *writer) run(ctx context.Context, ready <-chan struct{}) {
	defer close(w.stopped)

	select {
	case <-ready:
	case <-w.done:
		return
	case <-ctx.Done():
		return
	}

	var (
		retry   *time.Timer
		retryC  <-chan time.Time
		backoff time.Duration
	)
	defer func() {
		if retry != nil {
			retry.Stop()
		}
	}()

	for {
		select {
		case <-w.notify:
		case <-retryC:
		case <-w.done:
			return
		case <-ctx.Done():
			return
		}

		if w.debounce > 0 {
			timer := time.NewTimer(w.debounce)
			select {
			case <-timer.C:
			case <-w.done:
				timer.Stop()
				return
			case <-ctx.Done():
				timer.Stop()
				return
			}
		}

		if retry != nil {
			retry.Stop()
			retry, retryC = nil, nil
		}

		// Failures are logged and re-queued inside flush.
		if err := w.flush(ctx); err != nil {
			backoff = w.nextBackoff(backoff)
			retry = time.NewTimer(backoff)
			retryC = retry.C
			w.logger.WarnContext(ctx, "retrying cart write",
				slog.String("key", w.key),
				slog.Duration("backoff", backoff),
			)
			continue
		}
		backoff = 0
	}
}

func (w *writer) nextBackoff(prev time.Duration) time.Duration {
	if prev == 0 {
		return max(w.debounce, w.retryDelay)
	}
	return min(2*prev, maxRetryDelay)
}

// stop ends the write loop and waits for it to exit.
func (w *writer) stop() {
	w.stopOnce.Do(func() { close(w.done) })

	w.mu.Lock()
	started := w.started
	w.mu.Unlock()

	if started {
		<-w.stopped
	}
}

// flush writes the pending snapshot, if any. A failed snapshot stays pending
// unless a newer one arrived meanwhile.
func (w *writer) flush(ctx context.Context) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	w.mu.Lock()
	if !w.hasPending {
		w.mu.Unlock()
		return nil
	}
	items := w.pending
	w.hasPending = false
	w.mu.Unlock()

	if err := w.write(ctx, items); err != nil {
		w.mu.Lock()
		if !w.hasPending {
			w.pending = items
			w.hasPending = true
		}
		w.mu.Unlock()
		return err
	}
	return nil
}

func (w *writer) write(ctx context.Context, items domain.Collection) (err error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "cart.Persist")
	span.SetAttributes(
		attribute.String("cart.key", w.key),
		attribute.Int("cart.items", len(items)),
	)
	start := time.Now()
	defer func() {
		persistDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			persistWritesTotal.WithLabelValues("error").Inc()
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			w.logger.ErrorContext(ctx, "failed to persist cart",
				slog.String("key", w.key),
				slog.Int("items", len(items)),
				slog.String("error", err.Error()),
			)
		} else {
			persistWritesTotal.WithLabelValues("ok").Inc()
		}
		span.End()
	}()

	raw, err := domain.Encode(items)
	if err != nil {
		return err
	}

	writeCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	if err := w.kv.Set(writeCtx, w.key, raw); err != nil {
		return fmt.Errorf("persist cart: %w", err)
	}

	w.logger.DebugContext(ctx, "cart persisted",
		slog.String("key", w.key),
		slog.Int("items", len(items)),
	)
	return nil
}
