// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package soomfon

import "bytes"

// RawEvent is the event id and state byte carried by an ACK packet
type RawEvent struct {
	ID    uint8
	State uint8
}

// IsPress returns true if the state byte reports a press
func (r RawEvent) IsPress() bool {
	return r.State == StatePress
}

// ParseAck extracts the raw event from an ACK packet.
// Returns false for short buffers, a bad header or signature, and for
// heartbeat packets whose event id is zero.
func ParseAck(data []byte) (RawEvent, bool) {
	if len(data) < MinAckSize {
		return RawEvent{}, false
	}
	if !IsAck(data) {
		return RawEvent{}, false
	}

	ev := RawEvent{ID: data[offsetEventID], State: data[offsetEventState]}
	if ev.ID == EventNone {
		return RawEvent{}, false
	}
	return ev, true
}

// IsAck returns true if data carries the ACK header and OK signature,
// whether or not it reports an event
func IsAck(data []byte) bool {
	return len(data) >= offsetAckOK+len(signatureOK) &&
		bytes.Equal(data[0:3], []byte(headerAck)) &&
		bytes.Equal(data[offsetAckOK:offsetAckOK+len(signatureOK)], []byte(signatureOK))
}

// IsCommandEcho returns true if data starts with the CRT header
func IsCommandEcho(data []byte) bool {
	return len(data) >= len(headerCommand) && bytes.Equal(data[0:3], []byte(headerCommand))
}

// StripReportID removes the leading report id that some transports prepend
// to a 512-byte report. Buffers that already start with a known header are
// returned unchanged.
func StripReportID(data []byte) []byte {
	if len(data) == AckPacketSize+1 && !IsAck(data) && !IsCommandEcho(data) {
		return data[1:]
	}
	return data
}
