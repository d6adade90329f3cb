package event

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// Bus provides publish/subscribe distribution of events.
type Bus interface {
	// Publish delivers evt to every matching, unpaused subscription.
	Publish(ctx context.Context, evt Event) error

	// Subscribe registers handler for the given event types.
	Subscribe(types []string, handler Handler) Subscription

	// SubscribeAll registers handler for every event type.
	SubscribeAll(handler Handler) Subscription

	// Close shuts down the bus and all subscriptions.
	Close() error
}

// Subscription is an active registration on a bus.
type Subscription interface {
	Unsubscribe()
	Pause()
	Resume()
	IsPaused() bool
}

// BusConfig configures a LocalBus.
type BusConfig struct {
	// BufferSize is the per-subscription queue length. Default: 256.
	BufferSize int

	// Synchronous runs handlers inline in Publish, in subscription order.
	Synchronous bool

	// NonBlocking drops events for subscriptions whose queue is full
	// instead of blocking the publisher.
	NonBlocking bool

	// DeduplicateTTL suppresses events whose id was already published
	// within the window. Zero disables de-duplication.
	DeduplicateTTL time.Duration

	// OnDrop is called when an event is dropped in non-blocking mode.
	OnDrop func(evt Event, subscriberID int64)

	// OnError is called when a handler returns an error or panics.
	OnError func(evt Event, subscriberID int64, err error)
}

// DefaultBusConfig provides reasonable defaults.
var DefaultBusConfig = BusConfig{
	BufferSize: 256,
}

// LocalBus is an in-process Bus.
type LocalBus struct {
	config BusConfig

	mu   sync.RWMutex
	subs map[int64]*subscription

	dedupeMu sync.Mutex
	seen     map[string]time.Time

	nextID  atomic.Int64
	closed  atomic.Bool
	closeCh chan struct{}
}

// NewBus creates a LocalBus.
func NewBus(config BusConfig) *LocalBus {
	if config.BufferSize <= 0 {
		config.BufferSize = DefaultBusConfig.BufferSize
	}
	bus := &LocalBus{
		config:  config,
		subs:    make(map[int64]*subscription),
		closeCh: make(chan struct{}),
	}
	if config.DeduplicateTTL > 0 {
		bus.seen = make(map[string]time.Time)
		go bus.expireSeen()
	}
	return bus
}

type subscription struct {
	id      int64
	types   []string
	handler Handler
	events  chan Event
	paused  atomic.Bool
	done    chan struct{}
	once    sync.Once
	bus     *LocalBus
}

func (s *subscription) matches(eventType string) bool {
	return len(s.types) == 0 || slices.Contains(s.types, eventType)
}

// Publish sends evt to all matching subscriptions.
func (b *LocalBus) Publish(ctx context.Context, evt Event) error {
	if b.closed.Load() {
		return &EventError{Event: evt, Message: "publish", Err: ErrBusClosed}
	}
	if b.duplicate(evt) {
		return nil
	}

	for _, sub := range b.matching(evt.Type()) {
		if sub.paused.Load() {
			continue
		}
		if b.config.Synchronous {
			sub.deliver(ctx, evt)
			continue
		}
		if b.config.NonBlocking {
			select {
			case sub.events <- evt:
			default:
				if b.config.OnDrop != nil {
					b.config.OnDrop(evt, sub.id)
				}
			}
			continue
		}
		select {
		case sub.events <- evt:
		case <-sub.done:
		case <-ctx.Done():
			return ctx.Err()
		case <-b.closeCh:
			return &EventError{Event: evt, Message: "publish", Err: ErrBusClosed}
		}
	}
	return nil
}

// matching returns the subscriptions for eventType in subscription order.
func (b *LocalBus) matching(eventType string) []*subscription {
	b.mu.RLock()
	out := make([]*subscription, 0, len(b.subs))
	for _, sub := range b.subs {
		if sub.matches(eventType) {
			out = append(out, sub)
		}
	}
	b.mu.RUnlock()
	slices.SortFunc(out, func(a, c *subscription) int { return cmp.Compare(a.id, c.id) })
	return out
}

// Subscribe registers handler for the given event types. It returns nil
// once the bus is closed.
func (b *LocalBus) Subscribe(types []string, handler Handler) Subscription {
	sub := b.subscribe(types, handler)
	if sub == nil {
		return nil
	}
	return sub
}

// SubscribeAll registers handler for every event type.
func (b *LocalBus) SubscribeAll(handler Handler) Subscription {
	return b.Subscribe(nil, handler)
}

func (b *LocalBus) subscribe(types []string, handler Handler) *subscription {
	if b.closed.Load() {
		return nil
	}
	sub := &subscription{
		id:      b.nextID.Add(1),
		types:   slices.Clone(types),
		handler: handler,
		done:    make(chan struct{}),
		bus:     b,
	}
	if !b.config.Synchronous {
		sub.events = make(chan Event, b.config.BufferSize)
		go sub.process()
	}

	b.mu.Lock()
	b.subs[sub.id] = sub
	b.mu.Unlock()
	return sub
}

// Close shuts down the bus. Calling Close more than once is a no-op.
func (b *LocalBus) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(b.closeCh)

	b.mu.Lock()
	subs := b.subs
	b.subs = make(map[int64]*subscription)
	b.mu.Unlock()

	for _, sub := range subs {
		sub.stop()
	}
	return nil
}

func (s *subscription) process() {
	for {
		select {
		case evt := <-s.events:
			if s.paused.Load() {
				continue
			}
			s.deliver(context.Background(), evt)
		case <-s.done:
			return
		}
	}
}

// deliver runs the handler, converting panics into errors for OnError.
func (s *subscription) deliver(ctx context.Context, evt Event) {
	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = &HandlerPanicError{Value: r}
			}
		}()
		err = s.handler.Handle(ctx, evt)
	}()
	if err != nil && s.bus.config.OnError != nil {
		s.bus.config.OnError(evt, s.id, err)
	}
}

func (s *subscription) stop() {
	s.once.Do(func() { close(s.done) })
}

// Unsubscribe removes the subscription. It is safe to call more than once.
func (s *subscription) Unsubscribe() {
	s.bus.mu.Lock()
	delete(s.bus.subs, s.id)
	s.bus.mu.Unlock()
	s.stop()
}

// Pause stops delivery until Resume. Events published while paused are
// skipped, not queued.
func (s *subscription) Pause() { s.paused.Store(true) }

// Resume continues delivery after Pause.
func (s *subscription) Resume() { s.paused.Store(false) }

// IsPaused reports whether delivery is paused.
func (s *subscription) IsPaused() bool { return s.paused.Load() }

// duplicate reports whether evt was already seen and records it otherwise.
func (b *LocalBus) duplicate(evt Event) bool {
	if b.seen == nil {
		return false
	}
	b.dedupeMu.Lock()
	defer b.dedupeMu.Unlock()
	if _, ok := b.seen[evt.ID()]; ok {
		return true
	}
	b.seen[evt.ID()] = time.Now()
	return false
}

func (b *LocalBus) expireSeen() {
	ticker := time.NewTicker(b.config.DeduplicateTTL / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			cutoff := time.Now().Add(-b.config.DeduplicateTTL)
			b.dedupeMu.Lock()
			for id, ts := range b.seen {
				if ts.Before(cutoff) {
					delete(b.seen, id)
				}
			}
			b.dedupeMu.Unlock()
		case <-b.closeCh:
			return
		}
	}
}
