package realtime

import (
	"sync"

	"balance_aggregator/internal/app/port"
	"balance_aggregator/internal/domain/entity"
)

// AllTypes subscribes to every message type.
const AllTypes = "*"

// Handler receives inbound envelopes.
type Handler func(entity.Envelope)

// Subscription identifies one registered handler; it is the handle for Unsubscribe.
type Subscription struct {
	msgType string
	handler Handler
}

// Type returns the message type the subscription listens to.
func (s *Subscription) Type() string { return s.msgType }

// Broker fans envelopes out to subscribers keyed by message type.
type Broker struct {
	logger port.Logger
	mu     sync.RWMutex
	subs   map[string][]*Subscription
}

// NewBroker creates an empty broker.
func NewBroker(l port.Logger) *Broker {
	return &Broker{logger: l, subs: make(map[string][]*Subscription)}
}

// Subscribe registers h for msgType (AllTypes for every type).
func (b *Broker) Subscribe(msgType string, h Handler) *Subscription {
	sub := &Subscription{msgType: msgType, handler: h}
	b.mu.Lock()
	b.subs[msgType] = append(b.subs[msgType], sub)
	b.mu.Unlock()
	return sub
}

// Unsubscribe removes sub, reporting whether it was registered.
func (b *Broker) Unsubscribe(sub *Subscription) bool {
	if sub == nil {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	list := b.subs[sub.msgType]
	for i, s := range list {
		if s == sub {
			b.subs[sub.msgType] = append(list[:i:i], list[i+1:]...)
			if len(b.subs[sub.msgType]) == 0 {
				delete(b.subs, sub.msgType)
			}
			return true
		}
	}
	return false
}

// Publish delivers env to subscribers of its type, then to AllTypes subscribers.
// Handlers run outside the lock, so they may subscribe or unsubscribe.
func (b *Broker) Publish(env entity.Envelope) int {
	b.mu.RLock()
	targets := make([]*Subscription, 0, len(b.subs[env.Type])+len(b.subs[AllTypes]))
	if env.Type != AllTypes {
		targets = append(targets, b.subs[env.Type]...)
	}
	targets = append(targets, b.subs[AllTypes]...)
	b.mu.RUnlock()

	for _, s := range targets {
		b.deliver(s, env)
	}
	return len(targets)
}

func (b *Broker) deliver(s *Subscription, env entity.Envelope) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Realtime subscriber panicked", "type", env.Type, "panic", r)
		}
	}()
	s.handler(env)
}
