// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package soomfon

import "fmt"

// Trigger is what happened to a control
type Trigger int

const (
	TriggerPress Trigger = iota
	TriggerRelease
	TriggerLongPress
	TriggerRotateCW
	TriggerRotateCCW
)

var triggerNames = map[Trigger]string{
	TriggerPress:     "press",
	TriggerRelease:   "release",
	TriggerLongPress: "long_press",
	TriggerRotateCW:  "rotate_cw",
	TriggerRotateCCW: "rotate_ccw",
}

// String returns the trigger name used in profiles and notifications
func (t Trigger) String() string {
	if name, ok := triggerNames[t]; ok {
		return name
	}
	return fmt.Sprintf("trigger(%d)", int(t))
}

// MarshalText implements encoding.TextMarshaler
func (t Trigger) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (t *Trigger) UnmarshalText(text []byte) error {
	for k, v := range triggerNames {
		if v == string(text) {
			*t = k
			return nil
		}
	}
	return fmt.Errorf("unknown trigger %q", string(text))
}

// ButtonKind distinguishes LCD keys from bare physical keys
type ButtonKind int

const (
	ButtonLCD ButtonKind = iota
	ButtonPhysical
)

// String returns the button kind name
func (k ButtonKind) String() string {
	switch k {
	case ButtonLCD:
		return "lcd"
	case ButtonPhysical:
		return "physical"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// MarshalText implements encoding.TextMarshaler
func (k ButtonKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (k *ButtonKind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "lcd":
		*k = ButtonLCD
	case "physical":
		*k = ButtonPhysical
	default:
		return fmt.Errorf("unknown button kind %q", string(text))
	}
	return nil
}

// EncoderID identifies one of the three rotary encoders
type EncoderID int

const (
	EncoderMain EncoderID = iota
	EncoderSide1
	EncoderSide2
)

// String returns the encoder name
func (e EncoderID) String() string {
	switch e {
	case EncoderMain:
		return "main"
	case EncoderSide1:
		return "side1"
	case EncoderSide2:
		return "side2"
	default:
		return fmt.Sprintf("encoder(%d)", int(e))
	}
}

// MarshalText implements encoding.TextMarshaler
func (e EncoderID) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (e *EncoderID) UnmarshalText(text []byte) error {
	for _, id := range []EncoderID{EncoderMain, EncoderSide1, EncoderSide2} {
		if id.String() == string(text) {
			*e = id
			return nil
		}
	}
	return fmt.Errorf("unknown encoder %q", string(text))
}

// Event is a classified device event: ButtonEvent or EncoderEvent
type Event interface {
	// Trig returns the event's trigger
	Trig() Trigger
	// WithTrigger returns a copy of the event carrying a different trigger
	WithTrigger(Trigger) Event
	isEvent()
}

// ButtonEvent reports activity on an LCD or physical button
type ButtonEvent struct {
	Index   int        `json:"index"`
	Kind    ButtonKind `json:"kind"`
	Trigger Trigger    `json:"trigger"`
}

func (ButtonEvent) isEvent() {}

// Trig returns the event's trigger
func (b ButtonEvent) Trig() Trigger { return b.Trigger }

// WithTrigger returns a copy of the event carrying t
func (b ButtonEvent) WithTrigger(t Trigger) Event {
	b.Trigger = t
	return b
}

// EncoderEvent reports rotation or a press on an encoder
type EncoderEvent struct {
	Encoder EncoderID `json:"encoder"`
	Trigger Trigger   `json:"trigger"`
}

func (EncoderEvent) isEvent() {}

// Trig returns the event's trigger
func (e EncoderEvent) Trig() Trigger { return e.Trigger }

// WithTrigger returns a copy of the event carrying t
func (e EncoderEvent) WithTrigger(t Trigger) Event {
	e.Trigger = t
	return e
}

type classification struct {
	event  Event
	rotate bool
}

// eventTable maps wire event ids to their control
var eventTable = map[uint8]classification{
	EventPhysical0: {event: ButtonEvent{Index: 0, Kind: ButtonPhysical}},
	EventPhysical1: {event: ButtonEvent{Index: 1, Kind: ButtonPhysical}},
	EventPhysical2: {event: ButtonEvent{Index: 2, Kind: ButtonPhysical}},

	EventMainCCW:   {event: EncoderEvent{Encoder: EncoderMain, Trigger: TriggerRotateCCW}, rotate: true},
	EventMainCW:    {event: EncoderEvent{Encoder: EncoderMain, Trigger: TriggerRotateCW}, rotate: true},
	EventMainPress: {event: EncoderEvent{Encoder: EncoderMain}},

	EventSide1CCW:   {event: EncoderEvent{Encoder: EncoderSide1, Trigger: TriggerRotateCCW}, rotate: true},
	EventSide1CW:    {event: EncoderEvent{Encoder: EncoderSide1, Trigger: TriggerRotateCW}, rotate: true},
	EventSide1Press: {event: EncoderEvent{Encoder: EncoderSide1}},

	EventSide2CCW:   {event: EncoderEvent{Encoder: EncoderSide2, Trigger: TriggerRotateCCW}, rotate: true},
	EventSide2CW:    {event: EncoderEvent{Encoder: EncoderSide2, Trigger: TriggerRotateCW}, rotate: true},
	EventSide2Press: {event: EncoderEvent{Encoder: EncoderSide2}},
}

// Classify maps a raw event to a typed Event.
// Returns false for event ids that are not recognized, and for press/release
// controls whose state byte is neither press nor release.
func Classify(raw RawEvent) (Event, bool) {
	var trigger Trigger
	validState := true
	switch raw.State {
	case StatePress:
		trigger = TriggerPress
	case StateRelease:
		trigger = TriggerRelease
	default:
		validState = false
	}

	if raw.ID >= EventLCDFirst && raw.ID <= EventLCDLast {
		if !validState {
			return nil, false
		}
		return ButtonEvent{Index: int(raw.ID - EventLCDFirst), Kind: ButtonLCD, Trigger: trigger}, true
	}

	c, ok := eventTable[raw.ID]
	if !ok {
		return nil, false
	}
	if c.rotate {
		// Rotation direction comes from the id; the state byte is constant
		return c.event, true
	}
	if !validState {
		return nil, false
	}
	return c.event.WithTrigger(trigger), true
}

// Decode parses an ACK packet and classifies its event in one step
func Decode(data []byte) (Event, bool) {
	raw, ok := ParseAck(StripReportID(data))
	if !ok {
		return nil, false
	}
	return Classify(raw)
}

// IsKnownEventID returns true if Classify recognizes id
func IsKnownEventID(id uint8) bool {
	if id >= EventLCDFirst && id <= EventLCDLast {
		return true
	}
	_, ok := eventTable[id]
	return ok
}
