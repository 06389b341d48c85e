// Package feed is the change feed: services publish document changes and the
// feed delivers them to subscribed handlers on a pool of workers.
//
// Delivery is at least once from the handler's point of view and handlers
// run concurrently with each other and with request handling. No ordering is
// guaranteed across events.
package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Handler reacts to a change event.
type Handler func(ctx context.Context, e Event) error

// Publisher is the write side of the feed.
type Publisher interface {
	Publish(e Event)
}

type Config struct {
	Workers int
	Buffer  int
}

type subscription struct {
	name       string
	collection Collection // empty matches every collection
	handle     Handler
}

type Feed struct {
	mu     sync.RWMutex
	subs   []subscription
	queue  chan Event
	closed bool

	workers int
	wg      sync.WaitGroup
	logger  *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Feed {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = 256
	}
	return &Feed{
		queue:   make(chan Event, cfg.Buffer),
		workers: cfg.Workers,
		logger:  logger,
	}
}

// Subscribe registers h for events of one collection.
func (f *Feed) Subscribe(name string, c Collection, h Handler) {
	f.mu.Lock()
	f.subs = append(f.subs, subscription{name: name, collection: c, handle: h})
	f.mu.Unlock()
}

// SubscribeAll registers h for every event.
func (f *Feed) SubscribeAll(name string, h Handler) {
	f.Subscribe(name, "", h)
}

// Publish enqueues an event without blocking. When the buffer is full or the
// feed is stopped the event is dropped and logged.
func (f *Feed) Publish(e Event) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.closed {
		f.logger.Warn("publish after stop", "collection", e.Collection, "id", e.ID)
		return
	}
	select {
	case f.queue <- e:
	default:
		f.logger.Warn("feed buffer full, dropping event", "collection", e.Collection, "id", e.ID)
	}
}

// Start launches the worker pool.
func (f *Feed) Start(ctx context.Context) {
	for i := 0; i < f.workers; i++ {
		f.wg.Add(1)
		go func() {
			defer f.wg.Done()
			for e := range f.queue {
				if err := f.Dispatch(ctx, e); err != nil {
					f.logger.Error("dispatch event", "collection", e.Collection, "id", e.ID, "error", err)
				}
			}
		}()
	}
}

// Stop closes the queue and waits for workers to drain it, or for ctx.
func (f *Feed) Stop(ctx context.Context) error {
	f.mu.Lock()
	if !f.closed {
		f.closed = true
		close(f.queue)
	}
	f.mu.Unlock()

	done := make(chan struct{})
	go func() {
		f.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("drain feed: %w", ctx.Err())
	}
}

// Dispatch delivers e to every matching handler concurrently and waits for
// them. Errors from all handlers are joined.
func (f *Feed) Dispatch(ctx context.Context, e Event) error {
	f.mu.RLock()
	var matched []subscription
	for _, s := range f.subs {
		if s.collection == "" || s.collection == e.Collection {
			matched = append(matched, s)
		}
	}
	f.mu.RUnlock()

	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	for _, s := range matched {
		g.Go(func() error {
			if err := s.handle(ctx, e); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
				mu.Unlock()
			}
			return nil
		})
	}
	g.Wait()
	return errors.Join(errs...)
}
