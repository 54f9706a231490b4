// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package profile defines pad profiles and application settings and stores
// them as JSON or CBOR files in a config directory.
package profile

import (
	"time"

	"github.com/google/uuid"

	"github.com/Thermoquad/soomctl/pkg/actions"
)

// Profile maps pad controls to actions. Buttons and Encoders are sparse:
// only configured controls are listed.
type Profile struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Buttons     []ButtonConfig  `json:"buttons"`
	Encoders    []EncoderConfig `json:"encoders"`
	CreatedAt   int64           `json:"createdAt"`
	UpdatedAt   int64           `json:"updatedAt"`
}

// ButtonConfig configures one button. Index is the control index: LCD
// buttons 0-5, physical buttons 6-8.
type ButtonConfig struct {
	Index           int               `json:"index"`
	Label           string            `json:"label,omitempty"`
	Image           string            `json:"image,omitempty"`
	Action          *actions.Envelope `json:"action,omitempty"`
	ReleaseAction   *actions.Envelope `json:"releaseAction,omitempty"`
	LongPressAction *actions.Envelope `json:"longPressAction,omitempty"`
}

// EncoderConfig configures one encoder. Index is 0 for main, 1 and 2 for
// the side encoders.
type EncoderConfig struct {
	Index                  int               `json:"index"`
	Label                  string            `json:"label,omitempty"`
	PressAction            *actions.Envelope `json:"pressAction,omitempty"`
	ReleaseAction          *actions.Envelope `json:"releaseAction,omitempty"`
	LongPressAction        *actions.Envelope `json:"longPressAction,omitempty"`
	ClockwiseAction        *actions.Envelope `json:"clockwiseAction,omitempty"`
	CounterClockwiseAction *actions.Envelope `json:"counterClockwiseAction,omitempty"`
}

// New creates an empty profile with a fresh id
func New(name string) *Profile {
	now := time.Now().UnixMilli()
	return &Profile{
		ID:        uuid.NewString(),
		Name:      name,
		Buttons:   []ButtonConfig{},
		Encoders:  []EncoderConfig{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Button returns the configuration for control index, if any
func (p *Profile) Button(index int) (*ButtonConfig, bool) {
	for i := range p.Buttons {
		if p.Buttons[i].Index == index {
			return &p.Buttons[i], true
		}
	}
	return nil, false
}

// Encoder returns the configuration for encoder index, if any
func (p *Profile) Encoder(index int) (*EncoderConfig, bool) {
	for i := range p.Encoders {
		if p.Encoders[i].Index == index {
			return &p.Encoders[i], true
		}
	}
	return nil, false
}

// SetButton adds or replaces a button configuration
func (p *Profile) SetButton(cfg ButtonConfig) {
	if b, ok := p.Button(cfg.Index); ok {
		*b = cfg
		return
	}
	p.Buttons = append(p.Buttons, cfg)
}

// SetEncoder adds or replaces an encoder configuration
func (p *Profile) SetEncoder(cfg EncoderConfig) {
	if e, ok := p.Encoder(cfg.Index); ok {
		*e = cfg
		return
	}
	p.Encoders = append(p.Encoders, cfg)
}

// Clone returns a deep copy of the profile
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	out := *p
	out.Buttons = make([]ButtonConfig, len(p.Buttons))
	for i, b := range p.Buttons {
		b.Action = b.Action.Clone()
		b.ReleaseAction = b.ReleaseAction.Clone()
		b.LongPressAction = b.LongPressAction.Clone()
		out.Buttons[i] = b
	}
	out.Encoders = make([]EncoderConfig, len(p.Encoders))
	for i, e := range p.Encoders {
		e.PressAction = e.PressAction.Clone()
		e.ReleaseAction = e.ReleaseAction.Clone()
		e.LongPressAction = e.LongPressAction.Clone()
		e.ClockwiseAction = e.ClockwiseAction.Clone()
		e.CounterClockwiseAction = e.CounterClockwiseAction.Clone()
		out.Encoders[i] = e
	}
	return &out
}
