// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package soomfon

import "fmt"

// AnomalyType represents different types of report anomalies
type AnomalyType int

const (
	AnomalyShortPacket AnomalyType = iota
	AnomalyBadHeader
	AnomalyBadSignature
	AnomalyUnknownEvent
	AnomalyInvalidState
)

// ValidationError represents a report validation failure
type ValidationError struct {
	Type    AnomalyType
	Message string
	Details map[string]interface{}
}

// Error implements the error interface
func (v *ValidationError) Error() string {
	return v.Message
}

// ValidateAck checks an inbound report for anomalies.
// Returns a slice of validation errors (empty if the report is valid).
// Heartbeats (event id zero) are valid.
func ValidateAck(data []byte) []ValidationError {
	data = StripReportID(data)

	if len(data) < MinAckSize {
		return []ValidationError{{
			Type:    AnomalyShortPacket,
			Message: fmt.Sprintf("ACK too short (%d bytes, need %d)", len(data), MinAckSize),
			Details: map[string]interface{}{"length": len(data), "expected": MinAckSize},
		}}
	}

	if string(data[0:3]) != headerAck {
		// Command echoes are legal traffic, not anomalies
		if IsCommandEcho(data) {
			return nil
		}
		return []ValidationError{{
			Type:    AnomalyBadHeader,
			Message: fmt.Sprintf("Bad header % X", data[0:3]),
			Details: map[string]interface{}{"header": data[0:3]},
		}}
	}

	errors := []ValidationError{}

	if string(data[offsetAckOK:offsetAckOK+2]) != signatureOK {
		errors = append(errors, ValidationError{
			Type:    AnomalyBadSignature,
			Message: fmt.Sprintf("Bad signature % X", data[offsetAckOK:offsetAckOK+2]),
			Details: map[string]interface{}{"signature": data[offsetAckOK : offsetAckOK+2]},
		})
	}

	id := data[offsetEventID]
	if id != EventNone && !IsKnownEventID(id) {
		errors = append(errors, ValidationError{
			Type:    AnomalyUnknownEvent,
			Message: fmt.Sprintf("Unknown event id=0x%02X", id),
			Details: map[string]interface{}{"event_id": id},
		})
	}

	state := data[offsetEventState]
	if id != EventNone && isPressable(id) && state != StatePress && state != StateRelease {
		errors = append(errors, ValidationError{
			Type:    AnomalyInvalidState,
			Message: fmt.Sprintf("Invalid state=%d for %s", state, FormatEventID(id)),
			Details: map[string]interface{}{"event_id": id, "state": state},
		})
	}

	return errors
}

// isPressable returns true for ids whose state byte means press/release
func isPressable(id uint8) bool {
	if !IsKnownEventID(id) {
		return false
	}
	c, ok := eventTable[id]
	return !ok || !c.rotate
}
