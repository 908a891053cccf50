// Package store holds the cart state for one application session and mirrors
// it to a storage.KV.
package store

import (
	"context"
	"errors"
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

const tracerName = "github.com/utafrali/gomarketplace/internal/store"

// Cart is the contract exposed to UI consumers inside a provider scope.
type Cart interface {
	// Products returns a snapshot of the cart items in insertion order.
	Products() domain.Collection

	// AddToCart adds one unit of p, merging with an existing item of the same ID.
	AddToCart(ctx context.Context, p domain.Product) domain.Collection

	// Increment adds one unit to the item with the given ID.
	Increment(ctx context.Context, id string) domain.Collection

	// Decrement removes one unit from the item with the given ID, stopping at zero.
	Decrement(ctx context.Context, id string) domain.Collection
}

// Options configure a Store.
type Options struct {
	// Key is the storage key the collection is persisted under.
	Key string

	// Debounce is how long the writer waits after a change before persisting
	// the newest snapshot. Zero writes as soon as the writer is free.
	Debounce time.Duration

	// WriteTimeout bounds a single storage read or write.
	WriteTimeout time.Duration

	// RetryDelay is the first wait before retrying a failed write. It doubles
	// on every further failure, up to maxRetryDelay.
	RetryDelay time.Duration
}

// DefaultOptions returns the options used by the application.
func DefaultOptions() Options {
	return Options{
		Key:          storage.DefaultKey,
		Debounce:     50 * time.Millisecond,
		WriteTimeout: 5 * time.Second,
		RetryDelay:   250 * time.Millisecond,
	}
}

// Store owns the cart collection. All mutations apply to memory synchronously
// and always succeed; persistence happens on a single background writer.
type Store struct {
	kv     storage.KV
	opts   Options
	logger *slog.Logger
	writer *writer

	mu      sync.RWMutex
	items   domain.Collection
	subs    map[int]chan domain.Collection
	nextSub int
	closed  bool

	// Mutations made before the first Load finished, replayed onto the
	// loaded collection.
	loaded     bool
	pendingOps []func(domain.Collection) domain.Collection

	ready     chan struct{}
	readyOnce sync.Once
	startOnce sync.Once
	closeOnce sync.Once
	closeErr  error
	warnOnce  sync.Once
}

// New creates an empty store persisting to kv.
func New(kv storage.KV, logger *slog.Logger, opts Options) *Store {
	if opts.Key == "" {
		opts.Key = storage.DefaultKey
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = DefaultOptions().WriteTimeout
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = DefaultOptions().RetryDelay
	}

	return &Store{
		kv:     kv,
		opts:   opts,
		logger: logger,
		writer: newWriter(kv, opts, logger),
		items:  domain.Collection{},
		subs:   make(map[int]chan domain.Collection),
		ready:  make(chan struct{}),
	}
}

// Start loads the persisted collection in the background and starts the
// persistence writer. Until Ready is closed consumers see an empty cart.
// The writer holds back its first write until the load finished.
func (s *Store) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		go func() {
			if err := s.Load(ctx); err != nil {
				s.logger.ErrorContext(ctx, "failed to load stored cart, starting empty",
					slog.String("key", s.opts.Key),
					slog.String("error", err.Error()),
				)
			}
		}()
		s.writer.start(ctx, s.ready)
	})
}

// Ready is closed once the initial load has completed, successfully or not.
func (s *Store) Ready() <-chan struct{} {
	return s.ready
}

// Load reads the persisted collection and replaces the in-memory one with it.
//
// A missing value leaves the cart empty. A malformed value is logged and
// ignored. Mutations made before the first load completes are replayed onto
// the loaded collection. Only a failing storage read is returned as an error.
func (s *Store) Load(ctx context.Context) (err error) {
	defer s.readyOnce.Do(func() { close(s.ready) })
	defer s.markLoaded()

	ctx, span := otel.Tracer(tracerName).Start(ctx, "cart.Load")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	readCtx, cancel := context.WithTimeout(ctx, s.opts.WriteTimeout)
	defer cancel()

	raw, err := s.kv.Get(readCtx, s.opts.Key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			loadsTotal.WithLabelValues("empty").Inc()
			s.logger.InfoContext(ctx, "no stored cart found", slog.String("key", s.opts.Key))
			return nil
		}
		loadsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("load cart: %w", err)
	}

	items, err := domain.Decode(raw)
	if err != nil {
		loadsTotal.WithLabelValues("corrupt").Inc()
		s.logger.WarnContext(ctx, "stored cart is malformed, starting empty",
			slog.String("key", s.opts.Key),
			slog.String("error", err.Error()),
		)
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var replayed int
	if !s.loaded {
		for _, op := range s.pendingOps {
			items = op(items)
		}
		replayed = len(s.pendingOps)
		s.pendingOps = nil
		s.loaded = true
	}

	s.items = items
	if replayed > 0 && !s.closed {
		s.writer.schedule(s.items)
	}
	s.publishLocked()
	cartUnits.Set(float64(items.ItemCount()))
	loadsTotal.WithLabelValues("loaded").Inc()
	span.SetAttributes(attribute.Int("cart.items", len(items)))
	s.logger.InfoContext(ctx, "stored cart loaded",
		slog.Int("items", len(items)),
		slog.Int("units", items.ItemCount()),
		slog.Int("replayed", replayed),
	)
	return nil
}

// markLoaded ends the pre-load phase. When nothing was loaded the in-memory
// collection already holds the result of the pending mutations.
func (s *Store) markLoaded() {
	s.mu.Lock()
	s.loaded = true
	s.pendingOps = nil
	s.mu.Unlock()
}

// Products returns a snapshot of the current collection.
func (s *Store) Products() domain.Collection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.items.Clone()
}

// AddToCart adds one unit of p. An item with the same ID keeps its position
// and gains one unit; otherwise p is appended with quantity 1.
func (s *Store) AddToCart(ctx context.Context, p domain.Product) domain.Collection {
	s.mu.Lock()
	s.recordLocked(func(c domain.Collection) domain.Collection { return c.Add(p) })
	s.items = s.items.Add(p)
	snapshot := s.commitLocked("add")
	s.mu.Unlock()

	s.logger.DebugContext(ctx, "item added to cart",
		slog.String("product_id", p.ID),
		slog.Int("items", len(snapshot)),
	)
	return snapshot
}

// Increment adds one unit to the item with the given ID. Unknown IDs leave
// the cart unchanged.
func (s *Store) Increment(ctx context.Context, id string) domain.Collection {
	s.mu.Lock()
	s.recordLocked(func(c domain.Collection) domain.Collection {
		next, _ := c.Increment(id)
		return next
	})
	next, changed := s.items.Increment(id)
	if !changed {
		snapshot := s.items.Clone()
		s.mu.Unlock()
		mutationsTotal.WithLabelValues("increment", "noop").Inc()
		return snapshot
	}
	s.items = next
	snapshot := s.commitLocked("increment")
	s.mu.Unlock()

	s.logger.DebugContext(ctx, "cart item incremented", slog.String("product_id", id))
	return snapshot
}

// Decrement removes one unit from the item with the given ID. Quantities
// never go below zero and items are never removed.
func (s *Store) Decrement(ctx context.Context, id string) domain.Collection {
	s.mu.Lock()
	s.recordLocked(func(c domain.Collection) domain.Collection {
		next, _ := c.Decrement(id)
		return next
	})
	next, changed := s.items.Decrement(id)
	if !changed {
		snapshot := s.items.Clone()
		s.mu.Unlock()
		mutationsTotal.WithLabelValues("decrement", "noop").Inc()
		return snapshot
	}
	s.items = next
	snapshot := s.commitLocked("decrement")
	s.mu.Unlock()

	s.logger.DebugContext(ctx, "cart item decremented", slog.String("product_id", id))
	return snapshot
}

// Subscribe returns a channel receiving the newest snapshot after every
// change. A slow reader only ever sees the latest snapshot. The returned
// function unsubscribes and closes the channel. After Close the channel is
// returned already closed.
func (s *Store) Subscribe() (<-chan domain.Collection, func()) {
	ch := make(chan domain.Collection, 1)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.mu.Unlock()

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(ch)
		}
	}
}

// Flush synchronously persists the newest snapshot if one is pending.
func (s *Store) Flush(ctx context.Context) error {
	return s.writer.flush(ctx)
}

// Close stops the background writer and persists the final snapshot.
// Mutations after Close still apply in memory but are no longer persisted.
func (s *Store) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		for id, ch := range s.subs {
			delete(s.subs, id)
			close(ch)
		}
		s.mu.Unlock()

		s.writer.stop()
		s.closeErr = s.writer.flush(ctx)
	})
	return s.closeErr
}

// recordLocked queues op for replay while the first load is outstanding.
// s.mu must be held.
func (s *Store) recordLocked(op func(domain.Collection) domain.Collection) {
	if !s.loaded {
		s.pendingOps = append(s.pendingOps, op)
	}
}

// commitLocked records a change to s.items and hands the new state to the
// writer and subscribers. s.mu must be held.
func (s *Store) commitLocked(operation string) domain.Collection {
	if s.closed {
		s.warnOnce.Do(func() {
			s.logger.Warn("cart changed after close, change will not be persisted",
				slog.String("operation", operation),
			)
		})
	} else {
		s.writer.schedule(s.items)
	}
	s.publishLocked()

	mutationsTotal.WithLabelValues(operation, "applied").Inc()
	cartUnits.Set(float64(s.items.ItemCount()))

	return s.items.Clone()
}

// publishLocked delivers the current snapshot to every subscriber, replacing
// any snapshot they have not read yet. s.mu must be held.
func (s *Store) publishLocked() {
	for _, ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- s.items.Clone():
		default:
		}
	}
}
