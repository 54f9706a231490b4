// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package actions

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// Envelope carries an Action in serialized form: the config fields plus a
// "type" tag naming the kind.
type Envelope struct {
	Action Action
}

// Wrap returns an envelope holding a
func Wrap(a Action) *Envelope {
	return &Envelope{Action: a}
}

// Clone returns a deep copy of the envelope
func (e *Envelope) Clone() *Envelope {
	if e == nil || e.Action == nil {
		return nil
	}
	return &Envelope{Action: e.Action.Clone()}
}

var typeOfStringMap = reflect.TypeOf(map[string]interface{}(nil))

var (
	cborEnc cbor.EncMode
	cborDec cbor.DecMode
)

func init() {
	var err error
	cborEnc, err = cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR encoder: %v", err))
	}
	cborDec, err = cbor.DecOptions{
		DefaultMapType: typeOfStringMap,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR decoder: %v", err))
	}
}

// decoders unmarshal a config of each kind using the supplied codec
var decoders = map[Kind]func([]byte, func([]byte, interface{}) error) (Action, error){
	KindKeyboard:      decodeAs[Keyboard],
	KindMedia:         decodeAs[Media],
	KindLaunch:        decodeAs[Launch],
	KindScript:        decodeAs[Script],
	KindHTTP:          decodeAs[HTTP],
	KindSystem:        decodeAs[System],
	KindText:          decodeAs[Text],
	KindProfile:       decodeAs[Profile],
	KindHomeAssistant: decodeAs[HomeAssistant],
	KindWorkflow:      decodeAs[Workflow],
}

func decodeAs[T Action](data []byte, unmarshal func([]byte, interface{}) error) (Action, error) {
	var cfg T
	if err := unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

type typeTag struct {
	Type string `json:"type"`
}

func resolveKind(tag string) (Kind, error) {
	if tag == "" {
		return "", fmt.Errorf("action missing type")
	}
	kind, ok := ParseKind(tag)
	if !ok {
		return "", fmt.Errorf("unknown action type %q", tag)
	}
	return kind, nil
}

// MarshalJSON implements json.Marshaler
func (e Envelope) MarshalJSON() ([]byte, error) {
	if e.Action == nil {
		return []byte("null"), nil
	}
	body, err := json.Marshal(e.Action)
	if err != nil {
		return nil, err
	}
	tag, err := json.Marshal(string(e.Action.Kind()))
	if err != nil {
		return nil, err
	}

	out := append([]byte(`{"type":`), tag...)
	if len(body) > 2 {
		out = append(out, ',')
		out = append(out, body[1:]...)
	} else {
		out = append(out, '}')
	}
	return out, nil
}

// UnmarshalJSON implements json.Unmarshaler
func (e *Envelope) UnmarshalJSON(data []byte) error {
	var tag typeTag
	if err := json.Unmarshal(data, &tag); err != nil {
		return fmt.Errorf("failed to decode action: %v", err)
	}
	kind, err := resolveKind(tag.Type)
	if err != nil {
		return err
	}
	a, err := decoders[kind](data, json.Unmarshal)
	if err != nil {
		return fmt.Errorf("failed to decode %s action: %v", kind, err)
	}
	e.Action = a
	return nil
}

// MarshalCBOR implements cbor.Marshaler
func (e Envelope) MarshalCBOR() ([]byte, error) {
	if e.Action == nil {
		return cborEnc.Marshal(nil)
	}
	body, err := cborEnc.Marshal(e.Action)
	if err != nil {
		return nil, err
	}
	var fields map[string]interface{}
	if err := cborDec.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	if fields == nil {
		fields = make(map[string]interface{})
	}
	fields["type"] = string(e.Action.Kind())
	return cborEnc.Marshal(fields)
}

// UnmarshalCBOR implements cbor.Unmarshaler
func (e *Envelope) UnmarshalCBOR(data []byte) error {
	var tag typeTag
	if err := cborDec.Unmarshal(data, &tag); err != nil {
		return fmt.Errorf("failed to decode action: %v", err)
	}
	kind, err := resolveKind(tag.Type)
	if err != nil {
		return err
	}
	a, err := decoders[kind](data, cborDec.Unmarshal)
	if err != nil {
		return fmt.Errorf("failed to decode %s action: %v", kind, err)
	}
	e.Action = a
	return nil
}

// MarshalAction encodes an action as a JSON envelope
func MarshalAction(a Action) ([]byte, error) {
	return json.Marshal(Envelope{Action: a})
}

// UnmarshalAction decodes a JSON envelope
func UnmarshalAction(data []byte) (Action, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return e.Action, nil
}

// MarshalActionCBOR encodes an action as a CBOR envelope
func MarshalActionCBOR(a Action) ([]byte, error) {
	return cborEnc.Marshal(Envelope{Action: a})
}

// UnmarshalActionCBOR decodes a CBOR envelope
func UnmarshalActionCBOR(data []byte) (Action, error) {
	var e Envelope
	if err := cborDec.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return e.Action, nil
}

// CBORModes returns the CBOR modes used for envelopes, so containers of
// envelopes encode the same way
func CBORModes() (cbor.EncMode, cbor.DecMode) {
	return cborEnc, cborDec
}
