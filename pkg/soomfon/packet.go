// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package soomfon

import "encoding/binary"

// Packet is a CRT command packet. Its length is always PacketSize and every
// byte not written by a builder is zero.
type Packet [PacketSize]byte

// newCommand creates a packet with the CRT header and the given mnemonic
func newCommand(mnemonic string) *Packet {
	p := &Packet{}
	copy(p[0:], headerCommand)
	copy(p[offsetMnemonic:], mnemonic)
	return p
}

// Bytes returns the packet as a slice backed by the packet array
func (p *Packet) Bytes() []byte {
	return p[:]
}

// Mnemonic returns the command mnemonic up to the first zero byte
func (p *Packet) Mnemonic() string {
	end := offsetMnemonic
	for end < PacketSize && p[end] != 0 {
		end++
	}
	return string(p[offsetMnemonic:end])
}

// IsCommand returns true if the packet carries the CRT header
func (p *Packet) IsCommand() bool {
	return IsCommandEcho(p[:])
}

// NewDisplayInit creates a DIS (wake display) command
func NewDisplayInit() *Packet {
	return newCommand(CmdDisplayInit)
}

// NewBrightness creates a LIG command. The level is clamped to 0-100.
func NewBrightness(level int) *Packet {
	p := newCommand(CmdBrightness)
	p[offsetParams] = byte(ClampBrightness(level))
	return p
}

// ClampBrightness limits a brightness level to the supported range
func ClampBrightness(level int) int {
	if level < MinBrightness {
		return MinBrightness
	}
	if level > MaxBrightness {
		return MaxBrightness
	}
	return level
}

// NewCommit creates a STP command, which applies pending display changes
func NewCommit() *Packet {
	return newCommand(CmdCommit)
}

// NewClearScreens creates a bare CLE command
func NewClearScreens() *Packet {
	return newCommand(CmdClear)
}

// NewClearButton creates a CLE command targeting one LCD button (0-5), or all
// buttons when index is ClearAllButtons. The wire index is 1-based.
func NewClearButton(index int) *Packet {
	p := newCommand(CmdClear)
	if index == ClearAllButtons {
		p[11] = ClearAllButtons
	} else {
		p[11] = byte(index + 1)
	}
	return p
}

// NewClearDisplays creates a CLE\0DC command (shutdown: blank all screens)
func NewClearDisplays() *Packet {
	return newCommand(CmdClearDisplays)
}

// NewClearButtonStates creates a CLB\0DC command (shutdown: reset key state)
func NewClearButtonStates() *Packet {
	return newCommand(CmdClearButtonStates)
}

// NewHalt creates a HAH command
func NewHalt() *Packet {
	return newCommand(CmdHalt)
}

// NewConnect creates a CONNECT keepalive command
func NewConnect() *Packet {
	return newCommand(CmdConnect)
}

// NewQuickCommand creates a QUCMD command with the fixed parameter block
func NewQuickCommand() *Packet {
	p := newCommand(CmdQuickCommand)
	copy(p[offsetParams:], []byte{0x11, 0x11, 0x00, 0x11, 0x00, 0x11})
	return p
}

// NewUploadHeader creates a BAT command announcing an image upload of
// length bytes for the LCD button at index (0-5). The length field is 16
// bits wide; lengths are clamped to 0-MaxUploadSize.
func NewUploadHeader(index int, length int) *Packet {
	if length < 0 {
		length = 0
	}
	if length > MaxUploadSize {
		length = MaxUploadSize
	}
	p := newCommand(CmdUpload)
	binary.BigEndian.PutUint16(p[offsetParams:], uint16(length))
	p[offsetParams+2] = byte(index + 1)
	return p
}

// NewDataPacket creates a raw data packet holding up to PacketSize bytes of
// chunk, zero padded. Anything past PacketSize is ignored.
func NewDataPacket(chunk []byte) *Packet {
	p := &Packet{}
	copy(p[:], chunk)
	return p
}

// DataPacketCount returns the number of data packets needed for length bytes
func DataPacketCount(length int) int {
	if length <= 0 {
		return 0
	}
	return (length + PacketSize - 1) / PacketSize
}

// UploadPackets returns the full upload sequence for payload on the button
// at index: BAT header, data chunks, then a STP commit. Payload past
// MaxUploadSize is dropped so the chunks always match the announced length.
func UploadPackets(index int, payload []byte) []*Packet {
	if len(payload) > MaxUploadSize {
		payload = payload[:MaxUploadSize]
	}
	n := DataPacketCount(len(payload))
	packets := make([]*Packet, 0, n+2)
	packets = append(packets, NewUploadHeader(index, len(payload)))
	for off := 0; off < len(payload); off += PacketSize {
		end := off + PacketSize
		if end > len(payload) {
			end = len(payload)
		}
		packets = append(packets, NewDataPacket(payload[off:end]))
	}
	packets = append(packets, NewCommit())
	return packets
}

// InitSequence returns the commands that wake the device and enable input
// reporting, in the order they must be sent.
func InitSequence(brightness int) []*Packet {
	return []*Packet{
		NewDisplayInit(),
		NewBrightness(brightness),
		NewCommit(),
		NewClearScreens(),
	}
}

// ShutdownSequence returns the commands sent before releasing the device
func ShutdownSequence() []*Packet {
	return []*Packet{
		NewClearDisplays(),
		NewClearButtonStates(),
		NewHalt(),
	}
}
