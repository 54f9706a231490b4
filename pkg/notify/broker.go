// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package notify fans device and action notifications out to subscribers.
package notify

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Topics
const (
	TopicDeviceConnected    = "device.connected"
	TopicDeviceDisconnected = "device.disconnected"
	TopicInputButton        = "input.button"
	TopicInputEncoder       = "input.encoder"
	TopicActionResult       = "action.result"

	// TopicAll subscribes to every topic
	TopicAll = "*"
)

// Message is one notification
type Message struct {
	ID        string      `json:"id"`
	Topic     string      `json:"topic"`
	Timestamp int64       `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

// NewMessage creates a message stamped with a fresh id and the current time
func NewMessage(topic string, payload interface{}) Message {
	return Message{
		ID:        uuid.NewString(),
		Topic:     topic,
		Timestamp: time.Now().UnixMilli(),
		Payload:   payload,
	}
}

// Broker delivers messages to channels subscribed by topic. Publishing
// never blocks: a subscriber with a full buffer misses the message.
type Broker struct {
	mu   sync.RWMutex
	subs map[string]map[chan Message]struct{}
}

// NewBroker creates an empty broker
func NewBroker() *Broker {
	return &Broker{
		subs: make(map[string]map[chan Message]struct{}),
	}
}

// Subscribe delivers messages on topic to ch
func (b *Broker) Subscribe(topic string, ch chan Message) {
	slog.Debug("subscribing", "topic", topic)
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subs[topic] == nil {
		b.subs[topic] = make(map[chan Message]struct{})
	}
	b.subs[topic][ch] = struct{}{}
}

// Unsubscribe stops delivery of topic to ch
func (b *Broker) Unsubscribe(topic string, ch chan Message) {
	slog.Debug("unsubscribing", "topic", topic)
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.subs[topic]
	if !ok {
		return
	}
	delete(subs, ch)
	if len(subs) == 0 {
		delete(b.subs, topic)
	}
}

// Publish sends msg to subscribers of its topic and of TopicAll
func (b *Broker) Publish(msg Message) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	seen := make(map[chan Message]struct{})
	for _, topic := range []string{msg.Topic, TopicAll} {
		for ch := range b.subs[topic] {
			if _, dup := seen[ch]; dup {
				continue
			}
			seen[ch] = struct{}{}
			select {
			case ch <- msg:
			default:
				slog.Warn("dropped notification, subscriber buffer full", "topic", msg.Topic)
			}
		}
	}
}

// Subscribers returns the number of subscriptions on topic
func (b *Broker) Subscribers(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}
