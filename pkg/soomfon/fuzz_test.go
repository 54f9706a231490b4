// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package soomfon

import (
	"math/rand"
	"os"
	"strconv"
	"testing"
	"time"
)

// getFuzzRounds returns the number of fuzz rounds from FUZZ_ROUNDS env var, default 1000
func getFuzzRounds() int {
	if envRounds := os.Getenv("FUZZ_ROUNDS"); envRounds != "" {
		if rounds, err := strconv.Atoi(envRounds); err == nil && rounds > 0 {
			return rounds
		}
	}
	return 1000
}

// getFuzzSeed returns the seed from FUZZ_SEED env var, or generates one from current time
func getFuzzSeed() int64 {
	if envSeed := os.Getenv("FUZZ_SEED"); envSeed != "" {
		if seed, err := strconv.ParseInt(envSeed, 10, 64); err == nil {
			return seed
		}
	}
	return time.Now().UnixNano()
}

// newFuzzRng creates a new random number generator and logs the seed for reproducibility
func newFuzzRng(t *testing.T) *rand.Rand {
	seed := getFuzzSeed()
	t.Logf("Seed: %d (reproduce with FUZZ_SEED=%d)", seed, seed)
	return rand.New(rand.NewSource(seed))
}

// ============================================================
// Parser Fuzz Tests
// ============================================================

func TestFuzzRandomReports(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds()

	for i := 0; i < rounds; i++ {
		data := make([]byte, rng.Intn(AckPacketSize+2))
		rng.Read(data)
		// Occasionally plant a valid header so the deeper paths run
		if len(data) >= MinAckSize && rng.Intn(2) == 0 {
			copy(data, "ACK")
			copy(data[5:], "OK")
		}

		raw, ok := ParseAck(data)
		if ok && raw.ID == EventNone {
			t.Fatalf("round %d: ParseAck surfaced a heartbeat", i)
		}
		if ok && len(data) < MinAckSize {
			t.Fatalf("round %d: ParseAck accepted %d bytes", i, len(data))
		}
		if ev, ok := Decode(data); ok && ev == nil {
			t.Fatalf("round %d: Decode returned ok with nil event", i)
		}
		_ = ValidateAck(data)
		_ = FormatRaw(data)
	}
}

func TestFuzzClassifyAllIDs(t *testing.T) {
	for id := 0; id < 256; id++ {
		for _, state := range []uint8{StateRelease, StatePress} {
			ev, ok := Classify(RawEvent{ID: uint8(id), State: state})
			if ok != IsKnownEventID(uint8(id)) {
				t.Fatalf("Classify(0x%02X) ok = %v, IsKnownEventID = %v", id, ok, !ok)
			}
			if !ok {
				continue
			}
			switch e := ev.(type) {
			case ButtonEvent:
				if e.Trigger != TriggerPress && e.Trigger != TriggerRelease {
					t.Errorf("button 0x%02X trigger = %v", id, e.Trigger)
				}
			case EncoderEvent:
				if e.Trigger == TriggerLongPress {
					t.Errorf("encoder 0x%02X produced long press", id)
				}
			}
		}
	}
}

func TestFuzzBrightnessAlwaysInRange(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds()

	for i := 0; i < rounds; i++ {
		level := rng.Intn(1000) - 500
		p := NewBrightness(level)
		if p[10] > MaxBrightness {
			t.Fatalf("NewBrightness(%d) encoded %d", level, p[10])
		}
	}
}

func TestFuzzUploadRoundTrip(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds() / 10
	if rounds == 0 {
		rounds = 1
	}

	for i := 0; i < rounds; i++ {
		payload := make([]byte, rng.Intn(4*PacketSize))
		rng.Read(payload)
		index := rng.Intn(LCDButtonCount)

		packets := UploadPackets(index, payload)
		header := packets[0]
		size := int(header[10])<<8 | int(header[11])
		if size != len(payload) {
			t.Fatalf("round %d: header size = %d, want %d", i, size, len(payload))
		}
		if int(header[12]) != index+1 {
			t.Fatalf("round %d: header button = %d, want %d", i, header[12], index+1)
		}

		var joined []byte
		for _, p := range packets[1 : len(packets)-1] {
			joined = append(joined, p.Bytes()...)
		}
		for j := range payload {
			if joined[j] != payload[j] {
				t.Fatalf("round %d: byte %d mismatch", i, j)
			}
		}
	}
}
