// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package device

import (
	"sync"
	"time"

	"github.com/Thermoquad/soomctl/pkg/soomfon"
)

// DefaultLongPressThreshold is how long a control must be held before a
// long press is reported
const DefaultLongPressThreshold = 500 * time.Millisecond

// LongPressConfig configures long press synthesis
type LongPressConfig struct {
	// Threshold is the hold time for a long press. Zero disables synthesis.
	Threshold time.Duration
	// ReleaseAfterLongPress forwards the release that ends a long press.
	// When false that release is swallowed.
	ReleaseAfterLongPress bool
}

// stopper is the part of *time.Timer the detector needs
type stopper interface {
	Stop() bool
}

type heldControl struct {
	timer stopper
	fired bool
}

// LongPressDetector derives LongPress events from press/release pairs.
// Press and rotation events pass through immediately. A press held past the
// threshold emits an extra LongPress for the same control.
type LongPressDetector struct {
	cfg  LongPressConfig
	emit func(soomfon.Event)

	afterFunc func(time.Duration, func()) stopper

	mu   sync.Mutex
	held map[soomfon.Event]*heldControl
}

// NewLongPressDetector creates a detector that forwards events to emit.
// emit is called with the detector's lock held and must not call back into it.
func NewLongPressDetector(cfg LongPressConfig, emit func(soomfon.Event)) *LongPressDetector {
	return &LongPressDetector{
		cfg:  cfg,
		emit: emit,
		afterFunc: func(d time.Duration, f func()) stopper {
			return time.AfterFunc(d, f)
		},
		held: make(map[soomfon.Event]*heldControl),
	}
}

// Feed processes one classified event
func (d *LongPressDetector) Feed(ev soomfon.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()

	trig := ev.Trig()
	if d.cfg.Threshold <= 0 || (trig != soomfon.TriggerPress && trig != soomfon.TriggerRelease) {
		d.emit(ev)
		return
	}

	key := ev.WithTrigger(soomfon.TriggerPress)

	switch trig {
	case soomfon.TriggerPress:
		// A second press without a release restarts the hold
		if prev, ok := d.held[key]; ok {
			prev.timer.Stop()
		}
		h := &heldControl{}
		d.held[key] = h
		h.timer = d.afterFunc(d.cfg.Threshold, func() { d.fire(key, h) })
		d.emit(ev)

	case soomfon.TriggerRelease:
		h, ok := d.held[key]
		if ok {
			delete(d.held, key)
			h.timer.Stop()
			if h.fired && !d.cfg.ReleaseAfterLongPress {
				return
			}
		}
		d.emit(ev)
	}
}

// fire runs when a hold timer expires
func (d *LongPressDetector) fire(key soomfon.Event, h *heldControl) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.held[key] != h || h.fired {
		return
	}
	h.fired = true
	d.emit(key.WithTrigger(soomfon.TriggerLongPress))
}

// Reset forgets all held controls and cancels pending timers
func (d *LongPressDetector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for key, h := range d.held {
		h.timer.Stop()
		delete(d.held, key)
	}
}

// Held returns the number of controls currently held down
func (d *LongPressDetector) Held() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.held)
}
