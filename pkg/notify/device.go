// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package notify

import (
	"sync"

	"github.com/Thermoquad/soomctl/pkg/actions"
	"github.com/Thermoquad/soomctl/pkg/binder"
	"github.com/Thermoquad/soomctl/pkg/device"
	"github.com/Thermoquad/soomctl/pkg/soomfon"
)

// ButtonPayload is the payload of input.button messages
type ButtonPayload struct {
	Index   int                `json:"index"`
	Kind    soomfon.ButtonKind `json:"kind"`
	Trigger soomfon.Trigger    `json:"trigger"`
	Control int                `json:"control"`
}

// EncoderPayload is the payload of input.encoder messages
type EncoderPayload struct {
	Encoder soomfon.EncoderID `json:"encoder"`
	Trigger soomfon.Trigger   `json:"trigger"`
}

// ActionPayload is the payload of action.result messages
type ActionPayload struct {
	Type   actions.Kind   `json:"type"`
	Result actions.Result `json:"result"`
}

// EventMessage converts an input event to a message
func EventMessage(ev soomfon.Event) (Message, bool) {
	switch e := ev.(type) {
	case soomfon.ButtonEvent:
		return NewMessage(TopicInputButton, ButtonPayload{
			Index:   e.Index,
			Kind:    e.Kind,
			Trigger: e.Trigger,
			Control: binder.ButtonIndex(e),
		}), true
	case soomfon.EncoderEvent:
		return NewMessage(TopicInputEncoder, EncoderPayload{Encoder: e.Encoder, Trigger: e.Trigger}), true
	}
	return Message{}, false
}

// connected reports whether s counts as device.connected
func connected(s device.State) bool {
	return s == device.StateConnected || s == device.StateInitialized
}

// StatusTracker turns status snapshots into connect and disconnect messages,
// publishing only on transitions
type StatusTracker struct {
	mu        sync.Mutex
	broker    *Broker
	connected bool
}

// NewStatusTracker creates a tracker publishing to b
func NewStatusTracker(b *Broker) *StatusTracker {
	return &StatusTracker{broker: b}
}

// Update publishes a message if st changes the connected state
func (t *StatusTracker) Update(st device.Status) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := connected(st.State)
	if now == t.connected {
		return
	}
	t.connected = now
	if now {
		t.broker.Publish(NewMessage(TopicDeviceConnected, st))
	} else {
		t.broker.Publish(NewMessage(TopicDeviceDisconnected, st))
	}
}

// Attach publishes the manager's input and connection changes, and the
// router's action results when r is not nil
func Attach(b *Broker, m *device.Manager, r *binder.Router) {
	tracker := NewStatusTracker(b)
	m.OnStateChange(tracker.Update)
	m.OnEvent(func(ev soomfon.Event) {
		if msg, ok := EventMessage(ev); ok {
			b.Publish(msg)
		}
	})
	if r != nil {
		r.OnResult(func(d binder.Dispatch) {
			b.Publish(NewMessage(TopicActionResult, ActionPayload{Type: d.Action.Kind(), Result: d.Result}))
		})
	}
}
