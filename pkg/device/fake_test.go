// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package device

import (
	"sync"
	"time"

	"github.com/Thermoquad/soomctl/pkg/soomfon"
)

// fakeTransport records writes and serves queued reads
type fakeTransport struct {
	mu       sync.Mutex
	writes   [][]byte
	writeErr error
	closed   bool

	reads chan []byte
	errs  chan error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		reads: make(chan []byte, 16),
		errs:  make(chan error, 4),
	}
}

func (f *fakeTransport) Write(p []byte, timeout time.Duration) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return 0, f.writeErr
	}
	buf := make([]byte, len(p))
	copy(buf, p)
	f.writes = append(f.writes, buf)
	return len(p), nil
}

func (f *fakeTransport) Read(p []byte, timeout time.Duration) (int, error) {
	select {
	case data := <-f.reads:
		return copy(p, data), nil
	case err := <-f.errs:
		return 0, err
	case <-time.After(timeout):
		return 0, ErrTimeout
	}
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeTransport) setWriteErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writeErr = err
}

// mnemonics returns the mnemonic of every CRT packet written so far
func (f *fakeTransport) mnemonics() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, w := range f.writes {
		if !soomfon.IsCommandEcho(w) {
			out = append(out, "DATA")
			continue
		}
		var p soomfon.Packet
		copy(p[:], w)
		out = append(out, p.Mnemonic())
	}
	return out
}

func (f *fakeTransport) lastWrite() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.writes) == 0 {
		return nil
	}
	return f.writes[len(f.writes)-1]
}

func (f *fakeTransport) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// fakeOpener hands out a single fake transport
type fakeOpener struct {
	mu        sync.Mutex
	transport *fakeTransport
	openErr   error
	opens     int
}

func (o *fakeOpener) Enumerate(vid, pid uint16) ([]Info, error) {
	return []Info{testInfo}, nil
}

func (o *fakeOpener) Open(vid, pid uint16) (Transport, Info, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.opens++
	if o.openErr != nil {
		return nil, Info{}, o.openErr
	}
	return o.transport, testInfo, nil
}

var testInfo = Info{
	Path:      "usb:001:004",
	VendorID:  soomfon.VendorID,
	ProductID: soomfon.ProductID,
	Product:   "SOOMFON Stream Controller",
}

// testConfig returns a config with short timings for tests
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.ReadTimeout = 5 * time.Millisecond
	cfg.CommandDelay = time.Millisecond
	cfg.DrainTimeout = time.Millisecond
	cfg.ErrorDelay = 5 * time.Millisecond
	cfg.KeepAlive = 0
	cfg.LongPress.Threshold = 0
	return cfg
}

// ackReport builds a 512-byte ACK carrying id and state
func ackReport(id, state byte) []byte {
	data := make([]byte, soomfon.AckPacketSize)
	copy(data, "ACK")
	copy(data[5:], "OK")
	data[9] = id
	data[10] = state
	return data
}

// waitFor polls cond until it holds or the deadline passes
func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(2 * time.Millisecond)
	}
	return cond()
}
