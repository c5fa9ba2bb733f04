// Package msgbus implements the kernel's single in-process message bus:
// exact-match endpoint send, glob-pattern topic publish/subscribe, and
// deadline-bound request/response correlation. Delivery is
// synchronous and in-order within the caller's goroutine; a panicking
// handler is recovered, logged, and never poisons the bus for other
// subscribers.
package msgbus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// ErrNoEndpointHandler is returned by Send when no handler is registered
// for the endpoint.
var ErrNoEndpointHandler = errors.New("no handler registered for endpoint")

// ErrRequestTimeout is returned by Request when no response arrives before
// the caller's context deadline.
var ErrRequestTimeout = errors.New("request timed out waiting for response")

// Handler receives data published to a topic a subscriber matched.
type Handler func(topic string, data any)

// EndpointHandler receives a message sent to an exact endpoint name.
type EndpointHandler func(msg any)

type subscription struct {
	subscriberID string
	pattern      string
	matcher      *topicMatcher
	handler      Handler
	seq          int
}

// Bus is the kernel's message bus. The zero value is not usable; construct
// with New. A Bus is not safe for concurrent use from multiple goroutines —
// like the cache, it is mutated only from the kernel's single event loop;
// adapter goroutines must hand data back via channels first.
type Bus struct {
	mu            sync.Mutex
	endpoints     map[string]EndpointHandler
	subscriptions map[string][]*subscription // keyed by pattern for dedup lookup
	pending       map[string]chan any         // correlation id -> waiting Request call
	seq           int
	logger        *slog.Logger
}

// New constructs an empty Bus.
func New(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		endpoints:     make(map[string]EndpointHandler),
		subscriptions: make(map[string][]*subscription),
		logger:        logger.With("component", "msgbus"),
	}
}

// RegisterEndpoint installs the single handler for an exact-match endpoint
// name, replacing any prior registration.
func (b *Bus) RegisterEndpoint(endpoint string, handler EndpointHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.endpoints[endpoint] = handler
}

// Send dispatches msg to the one handler registered for endpoint. Returns
// ErrNoEndpointHandler if none is registered. A panicking handler is
// recovered and returned as an error rather than propagated.
func (b *Bus) Send(endpoint string, msg any) (err error) {
	b.mu.Lock()
	handler, ok := b.endpoints[endpoint]
	b.mu.Unlock()
	if !ok {
		return fmt.Errorf("endpoint %q: %w", endpoint, ErrNoEndpointHandler)
	}

	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("endpoint handler panicked", "endpoint", endpoint, "panic", r)
			err = fmt.Errorf("endpoint %q handler panicked: %v", endpoint, r)
		}
	}()
	handler(msg)
	return nil
}

// Subscribe registers handler to receive every Publish whose topic matches
// pattern. Subscribing the same subscriberID to the same pattern twice is a
// no-op (round-trip property).
func (b *Bus) Subscribe(pattern, subscriberID string, handler Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subscriptions[pattern] {
		if sub.subscriberID == subscriberID {
			return nil
		}
	}

	matcher, err := compileTopicPattern(pattern)
	if err != nil {
		return fmt.Errorf("subscribe %q: %w", pattern, err)
	}

	b.subscriptions[pattern] = append(b.subscriptions[pattern], &subscription{
		subscriberID: subscriberID,
		pattern:      pattern,
		matcher:      matcher,
		handler:      handler,
		seq:          b.seq,
	})
	b.seq++
	return nil
}

// Unsubscribe removes subscriberID's registration for pattern. Idempotent.
func (b *Bus) Unsubscribe(pattern, subscriberID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subscriptions[pattern]
	for i, sub := range subs {
		if sub.subscriberID == subscriberID {
			b.subscriptions[pattern] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}

// Publish fans data out to every subscription whose pattern matches topic,
// in subscription-registration order, synchronously. A panicking handler is
// recovered and logged; delivery to remaining subscribers continues.
func (b *Bus) Publish(topic string, data any) {
	b.mu.Lock()
	matches := make([]*subscription, 0, 4)
	for _, subs := range b.subscriptions {
		for _, sub := range subs {
			if sub.matcher.match(topic) {
				matches = append(matches, sub)
			}
		}
	}
	b.mu.Unlock()

	sortBySeq(matches)

	for _, sub := range matches {
		b.dispatchOne(sub, topic, data)
	}
}

func (b *Bus) dispatchOne(sub *subscription, topic string, data any) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("topic handler panicked", "topic", topic, "pattern", sub.pattern, "subscriber", sub.subscriberID, "panic", r)
		}
	}()
	sub.handler(topic, data)
}

func sortBySeq(subs []*subscription) {
	for i := 1; i < len(subs); i++ {
		for j := i; j > 0 && subs[j-1].seq > subs[j].seq; j-- {
			subs[j-1], subs[j] = subs[j], subs[j-1]
		}
	}
}

// Request sends req to endpoint and blocks for a response delivered via
// Respond(correlationID, ...), or until ctx is done. The correlator slot is
// always released, so there are never any stuck pending requests.
func (b *Bus) Request(ctx context.Context, endpoint, correlationID string, req any) (any, error) {
	respCh := make(chan any, 1)

	b.mu.Lock()
	if b.pending == nil {
		b.pending = make(map[string]chan any)
	}
	b.pending[correlationID] = respCh
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		delete(b.pending, correlationID)
		b.mu.Unlock()
	}()

	if err := b.Send(endpoint, req); err != nil {
		return nil, err
	}

	select {
	case resp := <-respCh:
		return resp, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", correlationID, ErrRequestTimeout)
	}
}

// Respond delivers resp to the pending Request waiting on correlationID. A
// response with no matching pending request (already timed out, or an
// unrecognized id) is silently dropped — the bus guarantees at most one
// delivery per correlation id, never retried.
func (b *Bus) Respond(correlationID string, resp any) {
	b.mu.Lock()
	ch, ok := b.pending[correlationID]
	b.mu.Unlock()
	if !ok {
		return
	}
	select {
	case ch <- resp:
	default:
	}
}
