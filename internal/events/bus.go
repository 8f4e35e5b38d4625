// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package events provides observers for the streaming search mode: an
// in-process topic bus and a writer that prints events as they arrive.
package events

import (
	"errors"
	"sync"
	"time"
)

// ErrBusClosed is returned by Emit after Close.
var ErrBusClosed = errors.New("event bus closed")

// Message is one event delivered to subscribers.
type Message struct {
	Topic   string
	Payload any
	Time    time.Time
}

// =============================================================================
// BUS
// =============================================================================

// Bus fans events out to subscribers. It implements stream.Observer.
// Delivery never blocks the emitter: a subscriber whose buffer is full
// misses the message and its drop counter is incremented.
type Bus struct {
	mu     sync.RWMutex
	subs   map[*Subscription]struct{}
	buffer int
	closed bool
}

// NewBus creates a bus whose subscriptions buffer up to buffer messages.
func NewBus(buffer int) *Bus {
	if buffer <= 0 {
		buffer = 64
	}
	return &Bus{
		subs:   make(map[*Subscription]struct{}),
		buffer: buffer,
	}
}

// Emit publishes payload on topic to every matching subscriber.
func (b *Bus) Emit(topic string, payload any) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrBusClosed
	}

	msg := Message{Topic: topic, Payload: payload, Time: time.Now()}
	for sub := range b.subs {
		sub.deliver(msg)
	}
	return nil
}

// Subscribe registers a subscriber for topics, or for every topic when none
// are given. The subscription must be closed when done.
func (b *Bus) Subscribe(topics ...string) *Subscription {
	sub := &Subscription{
		bus: b,
		ch:  make(chan Message, b.buffer),
	}
	if len(topics) > 0 {
		sub.topics = make(map[string]bool, len(topics))
		for _, t := range topics {
			sub.topics[t] = true
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		sub.closed = true
		close(sub.ch)
		return sub
	}
	b.subs[sub] = struct{}{}
	return sub
}

// Close shuts down the bus and closes every subscription.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	for sub := range b.subs {
		sub.shut()
	}
	b.subs = nil
	return nil
}

// =============================================================================
// SUBSCRIPTION
// =============================================================================

// Subscription receives messages from a Bus.
type Subscription struct {
	bus    *Bus
	topics map[string]bool
	ch     chan Message

	// mu guards closed and dropped; deliver and close never race on ch
	mu      sync.Mutex
	closed  bool
	dropped int
}

// Events returns the message channel. It is closed when the subscription or
// the bus is closed.
func (s *Subscription) Events() <-chan Message {
	return s.ch
}

// Dropped returns how many messages were lost to a full buffer.
func (s *Subscription) Dropped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Close unsubscribes and closes the channel.
func (s *Subscription) Close() error {
	s.bus.mu.Lock()
	delete(s.bus.subs, s)
	s.bus.mu.Unlock()

	s.shut()
	return nil
}

func (s *Subscription) deliver(msg Message) {
	if s.topics != nil && !s.topics[msg.Topic] {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- msg:
	default:
		s.dropped++
	}
}

func (s *Subscription) shut() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}
