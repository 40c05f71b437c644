package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"

	"github.com/pennywise/finance-client/internal/core/domain"
	"github.com/pennywise/finance-client/internal/core/ports"
	"github.com/pennywise/finance-client/internal/pkg/metrics"
)

const (
	defaultRefreshDelay   = 100 * time.Millisecond
	defaultRefreshWorkers = 8

	triggerProfileSwitched = "profile_switched"
	triggerManual          = "manual"
)

// RefreshFunc reloads one data store. Only its error is meaningful.
type RefreshFunc func(ctx context.Context) error

// SubscriptionID identifies a registered refresh callback.
type SubscriptionID string

// CoordinatorOptions tunes the refresh coordinator.
type CoordinatorOptions struct {
	// Delay defers a sweep after a profile-switched notification. Zero uses
	// the default; a negative value disables the deferral.
	Delay time.Duration
	// MaxWorkers bounds how many callbacks of a sweep run at once. Zero uses
	// the default; a negative value removes the bound.
	MaxWorkers int
}

type subscription struct {
	id   SubscriptionID
	name string
	fn   RefreshFunc
}

// RefreshCoordinator fans profile-switched notifications out to the refresh
// callbacks of the dependent data stores. At most one sweep runs at a time;
// triggers that arrive while a sweep is pending or running are dropped.
type RefreshCoordinator struct {
	events  ports.ProfileEvents
	log     zerolog.Logger
	delay   time.Duration
	workers int

	mu         sync.Mutex
	subs       []subscription
	refreshing bool
	pending    *time.Timer
	pendingGen uint64
	baseCtx    context.Context
	stopListen context.CancelFunc
	started    bool
	closed     bool

	listeners sync.WaitGroup
}

// NewRefreshCoordinator returns a coordinator that listens on events once
// started and at least one callback is registered.
func NewRefreshCoordinator(events ports.ProfileEvents, log zerolog.Logger, opts CoordinatorOptions) *RefreshCoordinator {
	delay := opts.Delay
	switch {
	case delay == 0:
		delay = defaultRefreshDelay
	case delay < 0:
		delay = 0
	}
	workers := opts.MaxWorkers
	if workers == 0 {
		workers = defaultRefreshWorkers
	}
	return &RefreshCoordinator{
		events:  events,
		log:     log.With().Str("component", "refresh_coordinator").Logger(),
		delay:   delay,
		workers: workers,
		baseCtx: context.Background(),
	}
}

var _ ports.RefreshService = (*RefreshCoordinator)(nil)

// Start begins listening for profile-switched notifications. Sweeps triggered
// by notifications run with ctx.
func (c *RefreshCoordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return domain.ErrCoordinatorClosed
	}
	if c.started {
		return nil
	}
	c.started = true
	c.baseCtx = ctx
	if len(c.subs) == 0 {
		return nil
	}
	return c.listenLocked()
}

// Register adds a refresh callback. name labels logs and metrics.
func (c *RefreshCoordinator) Register(name string, fn RefreshFunc) (SubscriptionID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return "", domain.ErrCoordinatorClosed
	}
	id := SubscriptionID(uuid.NewString())
	c.subs = append(c.subs, subscription{id: id, name: name, fn: fn})
	metrics.RefreshSubscribers.Set(float64(len(c.subs)))

	if c.started && c.stopListen == nil {
		if err := c.listenLocked(); err != nil {
			c.log.Error().Err(err).Msg("failed to subscribe to profile switches")
		}
	}
	return id, nil
}

// Unregister removes a callback. Removing the last one stops listening.
func (c *RefreshCoordinator) Unregister(id SubscriptionID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, s := range c.subs {
		if s.id == id {
			c.subs = append(c.subs[:i:i], c.subs[i+1:]...)
			break
		}
	}
	metrics.RefreshSubscribers.Set(float64(len(c.subs)))
	if len(c.subs) > 0 {
		return
	}
	c.cancelPendingLocked()
	if c.stopListen != nil {
		c.stopListen()
		c.stopListen = nil
	}
}

// Refresh runs a sweep right away. It returns domain.ErrRefreshInProgress when
// another sweep holds the guard and a *domain.PartialRefreshError when some
// callbacks failed.
func (c *RefreshCoordinator) Refresh(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return domain.ErrCoordinatorClosed
	}
	subs, ok := c.acquireLocked()
	c.mu.Unlock()
	if !ok {
		metrics.RefreshTriggersDroppedTotal.WithLabelValues(triggerManual).Inc()
		return domain.ErrRefreshInProgress
	}
	return c.sweep(ctx, triggerManual, subs)
}

// IsRefreshing reports whether a sweep is in flight.
func (c *RefreshCoordinator) IsRefreshing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refreshing
}

// Close cancels a pending sweep, stops listening and drops every callback.
// A sweep already in flight runs to completion.
func (c *RefreshCoordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.cancelPendingLocked()
	if c.stopListen != nil {
		c.stopListen()
		c.stopListen = nil
	}
	c.subs = nil
	metrics.RefreshSubscribers.Set(0)
	c.mu.Unlock()

	c.listeners.Wait()
}

func (c *RefreshCoordinator) listenLocked() error {
	ctx, cancel := context.WithCancel(c.baseCtx)
	ch, err := c.events.SubscribeProfileSwitched(ctx)
	if err != nil {
		cancel()
		return fmt.Errorf("subscribe profile switches: %w", err)
	}
	c.stopListen = cancel
	c.listeners.Add(1)
	go c.listen(ctx, ch)
	return nil
}

func (c *RefreshCoordinator) listen(ctx context.Context, ch <-chan domain.ProfileSwitched) {
	defer c.listeners.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			from := ""
			if evt.OldProfile != nil {
				from = evt.OldProfile.Name
			}
			c.log.Debug().Str("from", from).Str("to", evt.NewProfile.Name).Msg("profile switched")
			c.schedule()
		}
	}
}

// schedule defers one sweep unless a sweep is already pending or running.
func (c *RefreshCoordinator) schedule() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || len(c.subs) == 0 {
		return
	}
	if c.pending != nil || c.refreshing {
		metrics.RefreshTriggersDroppedTotal.WithLabelValues(triggerProfileSwitched).Inc()
		c.log.Debug().Msg("refresh already pending, trigger dropped")
		return
	}
	c.pendingGen++
	gen := c.pendingGen
	c.pending = time.AfterFunc(c.delay, func() { c.firePending(gen) })
}

func (c *RefreshCoordinator) firePending(gen uint64) {
	c.mu.Lock()
	if c.closed || c.pending == nil || c.pendingGen != gen {
		c.mu.Unlock()
		return
	}
	c.pending = nil
	subs, ok := c.acquireLocked()
	ctx := c.baseCtx
	c.mu.Unlock()

	if !ok {
		metrics.RefreshTriggersDroppedTotal.WithLabelValues(triggerProfileSwitched).Inc()
		return
	}
	if err := c.sweep(ctx, triggerProfileSwitched, subs); err != nil {
		c.log.Warn().Err(err).Msg("profile refresh finished with failures")
	}
}

func (c *RefreshCoordinator) cancelPendingLocked() {
	if c.pending != nil {
		c.pending.Stop()
		c.pending = nil
	}
}

// acquireLocked takes the sweep guard and snapshots the callbacks.
func (c *RefreshCoordinator) acquireLocked() ([]subscription, bool) {
	if c.refreshing {
		return nil, false
	}
	c.refreshing = true
	subs := make([]subscription, len(c.subs))
	copy(subs, c.subs)
	return subs, true
}

// sweep invokes every callback concurrently and waits for all of them.
// The guard taken by acquireLocked is released on return.
func (c *RefreshCoordinator) sweep(ctx context.Context, trigger string, subs []subscription) error {
	start := time.Now()
	defer func() {
		c.mu.Lock()
		c.refreshing = false
		c.mu.Unlock()
	}()

	errs := make([]error, len(subs))
	p := pool.New()
	if c.workers > 0 {
		p = p.WithMaxGoroutines(c.workers)
	}
	for i, s := range subs {
		i, s := i, s
		p.Go(func() {
			errs[i] = invokeRefresh(ctx, s.fn)
		})
	}
	p.Wait()
	metrics.RefreshSweepDuration.Observe(time.Since(start).Seconds())

	var failures []domain.RefreshFailure
	for i, err := range errs {
		if err == nil {
			continue
		}
		name := subs[i].name
		metrics.RefreshCallbackFailuresTotal.WithLabelValues(name).Inc()
		c.log.Error().Err(err).Str("subscriber", name).Str("trigger", trigger).Msg("refresh callback failed")
		failures = append(failures, domain.RefreshFailure{Subscriber: name, Err: err})
	}

	if len(failures) > 0 {
		metrics.RefreshSweepsTotal.WithLabelValues(trigger, "partial_failure").Inc()
		return &domain.PartialRefreshError{Failures: failures}
	}
	metrics.RefreshSweepsTotal.WithLabelValues(trigger, "ok").Inc()
	c.log.Debug().
		Int("subscribers", len(subs)).
		Dur("elapsed", time.Since(start)).
		Str("trigger", trigger).
		Msg("refresh sweep complete")
	return nil
}

func invokeRefresh(ctx context.Context, fn RefreshFunc) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("refresh callback panicked: %v", rec)
		}
	}()
	return fn(ctx)
}
