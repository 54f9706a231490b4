// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package soomfon

import (
	"fmt"
	"strings"
	"time"
)

// FormatEvent formats an event into a single human-readable line
func FormatEvent(e Event) string {
	switch ev := e.(type) {
	case ButtonEvent:
		return fmt.Sprintf("BUTTON %s[%d] %s", strings.ToUpper(ev.Kind.String()), ev.Index, ev.Trigger)
	case EncoderEvent:
		return fmt.Sprintf("ENCODER %s %s", strings.ToUpper(ev.Encoder.String()), ev.Trigger)
	default:
		return "UNKNOWN"
	}
}

// FormatTimestampedEvent prefixes FormatEvent with a wall clock time
func FormatTimestampedEvent(ts time.Time, e Event) string {
	return fmt.Sprintf("[%s] %s", ts.Format("15:04:05.000"), FormatEvent(e))
}

// FormatEventID returns the human-readable name for a wire event id
func FormatEventID(id uint8) string {
	switch {
	case id == EventNone:
		return "NONE"
	case id >= EventLCDFirst && id <= EventLCDLast:
		return fmt.Sprintf("LCD_%d", id-EventLCDFirst)
	}

	switch id {
	case EventPhysical0:
		return "KEY_0"
	case EventPhysical1:
		return "KEY_1"
	case EventPhysical2:
		return "KEY_2"
	case EventMainCCW:
		return "MAIN_CCW"
	case EventMainCW:
		return "MAIN_CW"
	case EventMainPress:
		return "MAIN_PRESS"
	case EventSide1CCW:
		return "SIDE1_CCW"
	case EventSide1CW:
		return "SIDE1_CW"
	case EventSide1Press:
		return "SIDE1_PRESS"
	case EventSide2CCW:
		return "SIDE2_CCW"
	case EventSide2CW:
		return "SIDE2_CW"
	case EventSide2Press:
		return "SIDE2_PRESS"
	default:
		return fmt.Sprintf("UNKNOWN_0x%02X", id)
	}
}

// FormatRaw formats the interesting prefix of a raw report as hex, followed
// by its decoded meaning when it is an ACK
func FormatRaw(data []byte) string {
	var b strings.Builder

	n := len(data)
	if n > 16 {
		n = 16
	}
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%02X", data[i])
	}
	if len(data) > n {
		fmt.Fprintf(&b, " ... (%d bytes)", len(data))
	}

	data = StripReportID(data)
	switch {
	case IsAck(data) && len(data) >= MinAckSize:
		fmt.Fprintf(&b, "  ACK %s state=%d", FormatEventID(data[offsetEventID]), data[offsetEventState])
	case IsAck(data):
		b.WriteString("  ACK (short)")
	case IsCommandEcho(data):
		b.WriteString("  CRT echo")
	}
	return b.String()
}
