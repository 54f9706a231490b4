// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package binder maps pad events to the actions configured in a profile.
package binder

import (
	"log/slog"
	"sync"

	"github.com/Thermoquad/soomctl/pkg/actions"
	"github.com/Thermoquad/soomctl/pkg/profile"
	"github.com/Thermoquad/soomctl/pkg/soomfon"
)

// ButtonIndex returns the control index a profile uses for a button: LCD
// buttons keep their index, physical buttons follow them.
func ButtonIndex(ev soomfon.ButtonEvent) int {
	if ev.Kind == soomfon.ButtonPhysical {
		return soomfon.LCDButtonCount + ev.Index
	}
	return ev.Index
}

// EncoderIndex returns the control index a profile uses for an encoder
func EncoderIndex(id soomfon.EncoderID) int {
	return int(id)
}

// Binder holds at most one profile and resolves events against it
type Binder struct {
	mu      sync.RWMutex
	profile *profile.Profile
}

// New creates a binder with no profile bound
func New() *Binder {
	return &Binder{}
}

// Bind replaces the bound profile with a copy of p
func (b *Binder) Bind(p *profile.Profile) {
	if p == nil {
		b.Unbind()
		return
	}
	slog.Info("binding profile", "name", p.Name, "id", p.ID)

	c := p.Clone()
	b.mu.Lock()
	b.profile = c
	b.mu.Unlock()
}

// Unbind clears the bound profile
func (b *Binder) Unbind() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.profile != nil {
		slog.Info("unbinding profile", "name", b.profile.Name)
	}
	b.profile = nil
}

// HasProfile reports whether a profile is bound
func (b *Binder) HasProfile() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.profile != nil
}

// ProfileName returns the bound profile's name
func (b *Binder) ProfileName() (string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.profile == nil {
		return "", false
	}
	return b.profile.Name, true
}

// Profile returns a copy of the bound profile, or nil
func (b *Binder) Profile() *profile.Profile {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.profile.Clone()
}

// Resolve returns a copy of the action configured for ev. It reports false
// when no profile is bound, the control is not configured, or the control
// has no action for the event's trigger.
func (b *Binder) Resolve(ev soomfon.Event) (actions.Action, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.profile == nil {
		return nil, false
	}

	var env *actions.Envelope
	switch e := ev.(type) {
	case soomfon.ButtonEvent:
		cfg, ok := b.profile.Button(ButtonIndex(e))
		if !ok {
			return nil, false
		}
		switch e.Trigger {
		case soomfon.TriggerPress:
			env = cfg.Action
		case soomfon.TriggerRelease:
			env = cfg.ReleaseAction
		case soomfon.TriggerLongPress:
			env = cfg.LongPressAction
		}

	case soomfon.EncoderEvent:
		cfg, ok := b.profile.Encoder(EncoderIndex(e.Encoder))
		if !ok {
			return nil, false
		}
		switch e.Trigger {
		case soomfon.TriggerPress:
			env = cfg.PressAction
		case soomfon.TriggerRelease:
			env = cfg.ReleaseAction
		case soomfon.TriggerLongPress:
			env = cfg.LongPressAction
		case soomfon.TriggerRotateCW:
			env = cfg.ClockwiseAction
		case soomfon.TriggerRotateCCW:
			env = cfg.CounterClockwiseAction
		}
	}

	if env == nil || env.Action == nil {
		return nil, false
	}
	return env.Action.Clone(), true
}
