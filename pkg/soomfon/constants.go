// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package soomfon implements the vendor protocol spoken by SOOMFON-style
// USB macro pads.
//
// Outbound traffic is a stream of fixed 1024-byte CRT command packets.
// Inbound traffic is a stream of ACK packets carrying a one-byte event id and
// a one-byte state. This package provides packet builders, ACK parsing,
// event classification, validation and formatting.
package soomfon

// USB identity
const (
	VendorID  = 0x1500
	ProductID = 0x3001

	InterfaceNumber = 0
	EndpointIn      = 0x82
	EndpointOut     = 0x03
)

// Packet sizes
const (
	PacketSize    = 1024
	AckPacketSize = 512
	MinAckSize    = 11

	// MaxUploadSize is the largest image the 16-bit BAT length can announce
	MaxUploadSize = 0xFFFF
)

// Packet layout offsets
const (
	offsetMnemonic   = 5
	offsetParams     = 10
	offsetAckOK      = 5
	offsetEventID    = 9
	offsetEventState = 10
)

// Packet signatures
const (
	headerCommand = "CRT"
	headerAck     = "ACK"
	signatureOK   = "OK"
)

// Command mnemonics
const (
	CmdDisplayInit       = "DIS"
	CmdBrightness        = "LIG"
	CmdCommit            = "STP"
	CmdClear             = "CLE"
	CmdClearDisplays     = "CLE\x00DC"
	CmdClearButtonStates = "CLB\x00DC"
	CmdHalt              = "HAH"
	CmdConnect           = "CONNECT"
	CmdQuickCommand      = "QUCMD"
	CmdUpload            = "BAT"
)

// Brightness limits
const (
	MinBrightness     = 0
	MaxBrightness     = 100
	DefaultBrightness = 50
)

// Button counts
const (
	LCDButtonCount      = 6
	PhysicalButtonCount = 3
	EncoderCount        = 3
)

// ClearAllButtons targets every LCD button in a CLE command
const ClearAllButtons = 0xFF

// Event ids - LCD buttons 0x01-0x06
const (
	EventLCDFirst = 0x01
	EventLCDLast  = 0x06
)

// Event ids - physical buttons
const (
	EventPhysical0 = 0x25
	EventPhysical1 = 0x30
	EventPhysical2 = 0x31
)

// Event ids - encoders
const (
	EventMainCCW   = 0x50
	EventMainCW    = 0x51
	EventMainPress = 0x35

	EventSide1CCW   = 0x90
	EventSide1CW    = 0x91
	EventSide1Press = 0x33

	EventSide2CCW   = 0x60
	EventSide2CW    = 0x61
	EventSide2Press = 0x34
)

// EventNone marks an idle/heartbeat ACK
const EventNone = 0x00

// State byte values
const (
	StateRelease = 0x00
	StatePress   = 0x01
)
