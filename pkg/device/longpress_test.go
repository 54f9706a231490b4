// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package device

import (
	"testing"
	"time"

	"github.com/Thermoquad/soomctl/pkg/soomfon"
)

// manualTimer is a timer fired by the test
type manualTimer struct {
	fn      func()
	stopped bool
}

func (m *manualTimer) Stop() bool {
	was := !m.stopped
	m.stopped = true
	return was
}

// newManualDetector returns a detector whose timers never fire on their own
func newManualDetector(cfg LongPressConfig) (*LongPressDetector, *[]soomfon.Event, *[]*manualTimer) {
	var events []soomfon.Event
	var timers []*manualTimer
	d := NewLongPressDetector(cfg, func(ev soomfon.Event) { events = append(events, ev) })
	d.afterFunc = func(_ time.Duration, f func()) stopper {
		mt := &manualTimer{fn: f}
		timers = append(timers, mt)
		return mt
	}
	return d, &events, &timers
}

var (
	lcdPress   = soomfon.ButtonEvent{Index: 2, Kind: soomfon.ButtonLCD, Trigger: soomfon.TriggerPress}
	lcdRelease = soomfon.ButtonEvent{Index: 2, Kind: soomfon.ButtonLCD, Trigger: soomfon.TriggerRelease}
	lcdLong    = soomfon.ButtonEvent{Index: 2, Kind: soomfon.ButtonLCD, Trigger: soomfon.TriggerLongPress}
)

func TestLongPressDetector(t *testing.T) {
	tests := []struct {
		name         string
		releaseAfter bool
		hold         bool
		want         []soomfon.Event
	}{
		{"short press", true, false, []soomfon.Event{lcdPress, lcdRelease}},
		{"long press keeps release", true, true, []soomfon.Event{lcdPress, lcdLong, lcdRelease}},
		{"long press swallows release", false, true, []soomfon.Event{lcdPress, lcdLong}},
		{"short press with swallow config", false, false, []soomfon.Event{lcdPress, lcdRelease}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, events, timers := newManualDetector(LongPressConfig{
				Threshold:             DefaultLongPressThreshold,
				ReleaseAfterLongPress: tt.releaseAfter,
			})

			d.Feed(lcdPress)
			if len(*timers) != 1 {
				t.Fatalf("timers = %d, want 1", len(*timers))
			}
			if tt.hold {
				(*timers)[0].fn()
			}
			d.Feed(lcdRelease)

			if len(*events) != len(tt.want) {
				t.Fatalf("events = %v, want %v", *events, tt.want)
			}
			for i := range tt.want {
				if (*events)[i] != tt.want[i] {
					t.Errorf("event %d = %#v, want %#v", i, (*events)[i], tt.want[i])
				}
			}
			if d.Held() != 0 {
				t.Errorf("Held() = %d, want 0", d.Held())
			}
		})
	}
}

func TestLongPressStaleTimer(t *testing.T) {
	d, events, timers := newManualDetector(LongPressConfig{Threshold: time.Second, ReleaseAfterLongPress: true})

	d.Feed(lcdPress)
	d.Feed(lcdRelease)
	if !(*timers)[0].stopped {
		t.Error("release did not stop the hold timer")
	}

	// A timer that lost the race with the release must not report
	(*timers)[0].fn()
	for _, ev := range *events {
		if ev.Trig() == soomfon.TriggerLongPress {
			t.Fatal("stale timer emitted a long press")
		}
	}
}

func TestLongPressFiresOnce(t *testing.T) {
	d, events, timers := newManualDetector(LongPressConfig{Threshold: time.Second})

	d.Feed(lcdPress)
	(*timers)[0].fn()
	(*timers)[0].fn()

	count := 0
	for _, ev := range *events {
		if ev.Trig() == soomfon.TriggerLongPress {
			count++
		}
	}
	if count != 1 {
		t.Errorf("long presses = %d, want 1", count)
	}
}

func TestLongPressPassThrough(t *testing.T) {
	rotate := soomfon.EncoderEvent{Encoder: soomfon.EncoderMain, Trigger: soomfon.TriggerRotateCW}

	t.Run("rotation", func(t *testing.T) {
		d, events, timers := newManualDetector(LongPressConfig{Threshold: time.Second})
		d.Feed(rotate)
		if len(*timers) != 0 || len(*events) != 1 || (*events)[0] != rotate {
			t.Errorf("events = %v timers = %d, want rotation passed through", *events, len(*timers))
		}
	})

	t.Run("disabled", func(t *testing.T) {
		d, events, timers := newManualDetector(LongPressConfig{Threshold: 0})
		d.Feed(lcdPress)
		d.Feed(lcdRelease)
		if len(*timers) != 0 || len(*events) != 2 {
			t.Errorf("events = %v timers = %d, want plain press/release", *events, len(*timers))
		}
	})
}

func TestLongPressEncoderPress(t *testing.T) {
	press := soomfon.EncoderEvent{Encoder: soomfon.EncoderSide2, Trigger: soomfon.TriggerPress}
	d, events, timers := newManualDetector(LongPressConfig{Threshold: time.Second, ReleaseAfterLongPress: true})

	d.Feed(press)
	(*timers)[0].fn()

	want := soomfon.EncoderEvent{Encoder: soomfon.EncoderSide2, Trigger: soomfon.TriggerLongPress}
	if len(*events) != 2 || (*events)[1] != want {
		t.Errorf("events = %v, want press then %v", *events, want)
	}
}

func TestLongPressReset(t *testing.T) {
	d, events, timers := newManualDetector(LongPressConfig{Threshold: time.Second})
	d.Feed(lcdPress)
	d.Reset()

	if !(*timers)[0].stopped {
		t.Error("Reset did not stop timers")
	}
	(*timers)[0].fn()
	if len(*events) != 1 {
		t.Errorf("events = %v, want only the press", *events)
	}
}

func TestLongPressRealTimer(t *testing.T) {
	got := make(chan soomfon.Event, 4)
	d := NewLongPressDetector(LongPressConfig{Threshold: 10 * time.Millisecond}, func(ev soomfon.Event) { got <- ev })

	d.Feed(lcdPress)
	<-got
	select {
	case ev := <-got:
		if ev != lcdLong {
			t.Errorf("event = %#v, want %#v", ev, lcdLong)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("long press never fired")
	}
}
