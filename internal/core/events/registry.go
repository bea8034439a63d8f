// Package events routes runtime messages of running agents (display updates,
// errors and input notifications) to the editors subscribed to them.
package events

import (
	"sync"
	"time"

	imetrics "github.com/stn/agent-stream-app/internal/infrastructure/metrics"
)

// Kind is the message family of an event.
type Kind string

const (
	KindDisplay Kind = "display"
	KindError   Kind = "error"
	KindInput   Kind = "input"
)

// Event is one runtime message. Display events carry Key and Data, error
// events carry Message, input events carry Ch and the time they were seen.
type Event struct {
	Kind    Kind      `json:"kind"`
	AgentID string    `json:"agent_id"`
	Key     string    `json:"key,omitempty"`
	Data    any       `json:"data,omitempty"`
	Message string    `json:"message,omitempty"`
	Ch      string    `json:"ch,omitempty"`
	Time    time.Time `json:"time,omitempty"`
}

// Validate ensures event integrity
func (e *Event) Validate() error {
	switch e.Kind {
	case KindDisplay:
		if e.Key == "" {
			return ErrInvalidKey
		}
	case KindError, KindInput:
	default:
		return ErrInvalidKind
	}
	if e.AgentID == "" {
		return ErrInvalidAgentID
	}
	return nil
}

type slotKey struct {
	kind    Kind
	agentID string
	key     string
}

func (e *Event) slot() slotKey {
	k := slotKey{kind: e.Kind, agentID: e.AgentID}
	if e.Kind == KindDisplay {
		k.key = e.Key
	}
	return k
}

// slot holds the latest value of one (kind, agent, key) and its subscribers.
type slot struct {
	latest Event
	subs   map[*Subscription]struct{}
}

// Registry is a subscription registry for runtime messages. A slot exists
// from its first subscription on; messages for slots nobody ever subscribed
// to are dropped. Each slot keeps its latest value, which new subscribers
// receive first. Slots outlive their subscribers and keep their latest value
// until Forget drops them with the agent they belong to.
type Registry struct {
	mu         sync.RWMutex
	slots      map[slotKey]*slot
	bufferSize int
	now        func() time.Time
	closed     bool
}

// Config holds configuration for Registry
type Config struct {
	BufferSize int              // Per subscriber buffer; the oldest message is dropped when full
	Clock      func() time.Time // Stamps input events
}

// NewRegistry creates an empty registry
func NewRegistry(config Config) *Registry {
	if config.BufferSize <= 0 {
		config.BufferSize = 16
	}
	if config.Clock == nil {
		config.Clock = time.Now
	}
	return &Registry{
		slots:      make(map[slotKey]*slot),
		bufferSize: config.BufferSize,
		now:        config.Clock,
	}
}

// SubscribeDisplay subscribes to one display slot of an agent.
func (r *Registry) SubscribeDisplay(agentID, key string) (*Subscription, error) {
	return r.Subscribe(Event{Kind: KindDisplay, AgentID: agentID, Key: key})
}

// SubscribeError subscribes to the error messages of an agent.
func (r *Registry) SubscribeError(agentID string) (*Subscription, error) {
	return r.Subscribe(Event{Kind: KindError, AgentID: agentID})
}

// SubscribeInput subscribes to the input notifications of an agent.
func (r *Registry) SubscribeInput(agentID string) (*Subscription, error) {
	return r.Subscribe(Event{Kind: KindInput, AgentID: agentID})
}

// Subscribe subscribes to the slot named by the kind, agent id and key of
// the given event. The slot's latest value is delivered immediately.
func (r *Registry) Subscribe(target Event) (*Subscription, error) {
	if err := target.Validate(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrRegistryClosed
	}

	k := target.slot()
	s, ok := r.slots[k]
	if !ok {
		s = &slot{
			latest: Event{Kind: k.kind, AgentID: k.agentID, Key: k.key},
			subs:   make(map[*Subscription]struct{}),
		}
		r.slots[k] = s
	}

	sub := &Subscription{ch: make(chan Event, r.bufferSize), registry: r, key: k}
	s.subs[sub] = struct{}{}
	sub.ch <- s.latest
	imetrics.SetSubscribers(r.countLocked())
	return sub, nil
}

// PublishDisplay delivers a display update. It reports whether the slot exists.
func (r *Registry) PublishDisplay(agentID, key string, data any) (bool, error) {
	return r.Publish(Event{Kind: KindDisplay, AgentID: agentID, Key: key, Data: data})
}

// PublishError delivers an error message.
func (r *Registry) PublishError(agentID, message string) (bool, error) {
	return r.Publish(Event{Kind: KindError, AgentID: agentID, Message: message})
}

// PublishInput delivers an input notification stamped with the current time.
func (r *Registry) PublishInput(agentID, ch string) (bool, error) {
	return r.Publish(Event{Kind: KindInput, AgentID: agentID, Ch: ch})
}

// Publish stores ev as the latest value of its slot and delivers it to every
// subscriber without blocking. It reports whether the slot exists.
func (r *Registry) Publish(ev Event) (bool, error) {
	if err := ev.Validate(); err != nil {
		return false, err
	}
	if ev.Kind == KindInput && ev.Time.IsZero() {
		ev.Time = r.now()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false, ErrRegistryClosed
	}

	s, ok := r.slots[ev.slot()]
	if !ok {
		imetrics.EventDropped(string(ev.Kind))
		return false, nil
	}
	s.latest = ev
	for sub := range s.subs {
		sub.deliver(ev)
	}
	imetrics.EventPublished(string(ev.Kind))
	return true, nil
}

// Latest returns the latest value of a slot.
func (r *Registry) Latest(target Event) (Event, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.slots[target.slot()]
	if !ok {
		return Event{}, false
	}
	return s.latest, true
}

// Forget cancels the subscriptions of an agent and drops its slots. It
// reports how many slots were dropped.
func (r *Registry) Forget(agentID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for k, s := range r.slots {
		if k.agentID != agentID {
			continue
		}
		for sub := range s.subs {
			sub.closeLocked()
		}
		delete(r.slots, k)
		n++
	}
	imetrics.SetSubscribers(r.countLocked())
	return n
}

// Close cancels every subscription. Later calls fail with ErrRegistryClosed.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	for _, s := range r.slots {
		for sub := range s.subs {
			sub.closeLocked()
		}
		s.subs = nil
	}
	imetrics.SetSubscribers(0)
}

func (r *Registry) unsubscribe(sub *Subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.slots[sub.key]; ok {
		if _, ok := s.subs[sub]; ok {
			delete(s.subs, sub)
			sub.closeLocked()
		}
	}
	imetrics.SetSubscribers(r.countLocked())
}

func (r *Registry) countLocked() int {
	n := 0
	for _, s := range r.slots {
		n += len(s.subs)
	}
	return n
}

// Subscription receives the events of one slot until cancelled.
type Subscription struct {
	ch       chan Event
	registry *Registry
	key      slotKey
	once     sync.Once
	closed   bool
}

// Events returns the delivery channel. It is closed on Cancel.
func (s *Subscription) Events() <-chan Event { return s.ch }

// Cancel stops delivery and closes the events channel. Safe to call twice.
func (s *Subscription) Cancel() {
	s.once.Do(func() { s.registry.unsubscribe(s) })
}

// deliver enqueues ev, evicting the oldest pending event when the buffer is
// full. Called with the registry lock held.
func (s *Subscription) deliver(ev Event) {
	if s.closed {
		return
	}
	for {
		select {
		case s.ch <- ev:
			return
		default:
		}
		select {
		case <-s.ch:
			imetrics.EventEvicted(string(ev.Kind))
		default:
		}
	}
}

func (s *Subscription) closeLocked() {
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}
