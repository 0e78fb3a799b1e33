// Package bus is a small in-process pub/sub used for telemetry:
// sensor readings, indicator state, and driver faults. Topics are
// plain string paths. Delivery is non-blocking; a full subscriber
// queue drops its oldest message. It never leaves the process.
package bus

import (
	"strings"
	"sync"
)

// Topic is a sequence of path segments.
type Topic []string

func (t Topic) key() string { return strings.Join(t, "/") }

// String renders the topic as a slash path.
func (t Topic) String() string { return t.key() }

// Message is one published value.
type Message struct {
	Topic    Topic
	Payload  any
	Retained bool
}

// Subscription receives messages for one topic.
type Subscription struct {
	topic Topic
	ch    chan *Message
	bus   *Bus
}

func (s *Subscription) Topic() Topic             { return s.topic }
func (s *Subscription) Channel() <-chan *Message { return s.ch }
func (s *Subscription) Unsubscribe()             { s.bus.unsubscribe(s) }

// Bus routes messages to exact-topic subscribers and stores retained
// messages for late subscribers.
type Bus struct {
	mu       sync.Mutex
	subs     map[string][]*Subscription
	retained map[string]*Message
	qLen     int
}

// NewBus creates a bus with the given subscription queue length.
func NewBus(queueLen int) *Bus {
	if queueLen <= 0 {
		queueLen = 8 // safe default
	}
	return &Bus{
		subs:     map[string][]*Subscription{},
		retained: map[string]*Message{},
		qLen:     queueLen,
	}
}

// Subscribe registers for topic. A retained message on the topic is
// delivered immediately.
func (b *Bus) Subscribe(topic Topic) *Subscription {
	sub := &Subscription{
		topic: topic,
		ch:    make(chan *Message, b.qLen),
		bus:   b,
	}
	k := topic.key()

	b.mu.Lock()
	b.subs[k] = append(b.subs[k], sub)
	if m := b.retained[k]; m != nil {
		sub.ch <- m
	}
	b.mu.Unlock()
	return sub
}

// Publish delivers payload to all subscribers of topic. A retained
// publish with a nil payload clears the retained slot.
func (b *Bus) Publish(topic Topic, payload any, retained bool) {
	msg := &Message{Topic: topic, Payload: payload, Retained: retained}
	k := topic.key()

	b.mu.Lock()
	for _, sub := range b.subs[k] {
		select {
		case sub.ch <- msg:
		default:
			// Queue full: drop the oldest. A concurrent receiver may
			// drain between the checks, so neither step may block.
			select {
			case <-sub.ch:
			default:
			}
			select {
			case sub.ch <- msg:
			default:
			}
		}
	}
	if retained {
		if payload == nil {
			delete(b.retained, k)
		} else {
			b.retained[k] = msg
		}
	}
	b.mu.Unlock()
}

func (b *Bus) unsubscribe(sub *Subscription) {
	k := sub.topic.key()
	b.mu.Lock()
	list := b.subs[k]
	for i, s := range list {
		if s == sub {
			b.subs[k] = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(b.subs[k]) == 0 {
		delete(b.subs, k)
	}
	b.mu.Unlock()
	close(sub.ch)
}
