// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package device

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Thermoquad/soomctl/pkg/soomfon"
)

// State is the connection state of a Manager
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateInitialized
	StateError
)

// String returns the state name
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateInitialized:
		return "initialized"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// MarshalText implements encoding.TextMarshaler
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (s *State) UnmarshalText(text []byte) error {
	for st := StateDisconnected; st <= StateError; st++ {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown state %q", string(text))
}

// Status is a snapshot of the manager
type Status struct {
	State      State  `json:"state"`
	Device     *Info  `json:"device,omitempty"`
	Polling    bool   `json:"polling"`
	Brightness int    `json:"brightness"`
	LastError  string `json:"lastError,omitempty"`
}

// Config configures a Manager
type Config struct {
	VendorID  uint16
	ProductID uint16

	// Brightness used by Initialize
	Brightness int

	WriteTimeout time.Duration
	ReadTimeout  time.Duration
	// CommandDelay is the pause after each init command before draining
	CommandDelay time.Duration
	DrainTimeout time.Duration
	// ErrorDelay is the pause after a failed read while polling
	ErrorDelay time.Duration
	// KeepAlive is the CONNECT interval while initialized. Zero disables it.
	KeepAlive time.Duration

	LongPress LongPressConfig
}

// DefaultConfig returns the settings used with real hardware
func DefaultConfig() Config {
	return Config{
		VendorID:     soomfon.VendorID,
		ProductID:    soomfon.ProductID,
		Brightness:   soomfon.DefaultBrightness,
		WriteTimeout: 500 * time.Millisecond,
		ReadTimeout:  100 * time.Millisecond,
		CommandDelay: 50 * time.Millisecond,
		DrainTimeout: 10 * time.Millisecond,
		ErrorDelay:   100 * time.Millisecond,
		KeepAlive:    10 * time.Second,
		LongPress: LongPressConfig{
			Threshold:             DefaultLongPressThreshold,
			ReleaseAfterLongPress: true,
		},
	}
}

// maxDrainReads bounds how many pending reports are discarded after an
// init command
const maxDrainReads = 8

type request struct {
	fn    func() error
	reply chan error
}

// Manager owns the device. A single goroutine holds the transport and serves
// both command requests and event polling, so commands interleave with reads
// without handing the handle around.
type Manager struct {
	cfg    Config
	opener Opener

	requests  chan request
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	state  atomic.Int32
	status atomic.Pointer[Status]

	hooksMu sync.RWMutex
	onEvent []func(soomfon.Event)
	onState []func(Status)
	onRaw   []func([]byte)

	detector *LongPressDetector

	// Owned by the run goroutine
	transport  Transport
	info       *Info
	polling    bool
	pauseUntil time.Time
	brightness int
	lastErr    error
	readBuf    []byte
}

// NewManager creates a manager and starts its goroutine. Call Close to stop it.
func NewManager(cfg Config, opener Opener) *Manager {
	m := &Manager{
		cfg:        cfg,
		opener:     opener,
		requests:   make(chan request),
		done:       make(chan struct{}),
		brightness: soomfon.ClampBrightness(cfg.Brightness),
		readBuf:    make([]byte, soomfon.AckPacketSize+1),
	}
	m.detector = NewLongPressDetector(cfg.LongPress, m.emitEvent)
	m.publish()

	m.wg.Add(1)
	go m.run()
	return m
}

// OnEvent registers a handler for classified input events.
// Handlers run on manager goroutines and must not block.
func (m *Manager) OnEvent(fn func(soomfon.Event)) {
	m.hooksMu.Lock()
	defer m.hooksMu.Unlock()
	m.onEvent = append(m.onEvent, fn)
}

// OnStateChange registers a handler called with every new status
func (m *Manager) OnStateChange(fn func(Status)) {
	m.hooksMu.Lock()
	defer m.hooksMu.Unlock()
	m.onState = append(m.onState, fn)
}

// OnRaw registers a handler for every report read from the device
func (m *Manager) OnRaw(fn func([]byte)) {
	m.hooksMu.Lock()
	defer m.hooksMu.Unlock()
	m.onRaw = append(m.onRaw, fn)
}

// State returns the current connection state without blocking
func (m *Manager) State() State {
	return State(m.state.Load())
}

// Status returns the latest status snapshot without blocking
func (m *Manager) Status() Status {
	return *m.status.Load()
}

// Connect opens and claims the device. It is a no-op returning the cached
// device info when already connected.
func (m *Manager) Connect(ctx context.Context) (Info, error) {
	var info Info
	err := m.do(ctx, func() error {
		var err error
		info, err = m.connect()
		return err
	})
	return info, err
}

// Initialize runs the init sequence that enables input reporting
func (m *Manager) Initialize(ctx context.Context) error {
	return m.do(ctx, m.initialize)
}

// Disconnect sends the shutdown sequence (best effort) and releases the
// device. It only fails if the manager itself is closed or ctx expires.
func (m *Manager) Disconnect(ctx context.Context) error {
	return m.do(ctx, func() error {
		m.disconnect()
		return nil
	})
}

// SetBrightness sets the display brightness, clamped to 0-100
func (m *Manager) SetBrightness(ctx context.Context, level int) error {
	return m.do(ctx, func() error {
		if err := m.requireInitialized(); err != nil {
			return err
		}
		level = soomfon.ClampBrightness(level)
		if err := m.command(soomfon.NewBrightness(level)); err != nil {
			return err
		}
		m.brightness = level
		m.publish()
		return nil
	})
}

// SetButtonImage uploads an encoded image to an LCD button
func (m *Manager) SetButtonImage(ctx context.Context, index int, image []byte) error {
	if index < 0 || index >= soomfon.LCDButtonCount {
		return fmt.Errorf("%w: button index %d out of range", ErrInvalidData, index)
	}
	if len(image) == 0 || len(image) > soomfon.MaxUploadSize {
		return fmt.Errorf("%w: image size %d", ErrInvalidData, len(image))
	}

	return m.do(ctx, func() error {
		if err := m.requireInitialized(); err != nil {
			return err
		}
		return m.command(soomfon.UploadPackets(index, image)...)
	})
}

// ClearButton blanks one LCD button, or all of them when index is nil
func (m *Manager) ClearButton(ctx context.Context, index *int) error {
	target := soomfon.ClearAllButtons
	if index != nil {
		if *index < 0 || *index >= soomfon.LCDButtonCount {
			return fmt.Errorf("%w: button index %d out of range", ErrInvalidData, *index)
		}
		target = *index
	}

	return m.do(ctx, func() error {
		if err := m.requireInitialized(); err != nil {
			return err
		}
		return m.command(soomfon.NewClearButton(target), soomfon.NewCommit())
	})
}

// Enumerate lists attached devices. It does not touch the open device.
func (m *Manager) Enumerate() ([]Info, error) {
	return m.opener.Enumerate(m.cfg.VendorID, m.cfg.ProductID)
}

// StartPolling starts reading input events. The device must be initialized.
func (m *Manager) StartPolling(ctx context.Context) error {
	return m.do(ctx, func() error {
		if err := m.requireInitialized(); err != nil {
			return err
		}
		if !m.polling {
			m.polling = true
			m.pauseUntil = time.Time{}
			m.publish()
			slog.Debug("polling started")
		}
		return nil
	})
}

// StopPolling stops reading input events
func (m *Manager) StopPolling(ctx context.Context) error {
	return m.do(ctx, func() error {
		m.stopPolling()
		return nil
	})
}

// Close disconnects the device and stops the manager goroutine
func (m *Manager) Close() error {
	m.closeOnce.Do(func() {
		close(m.done)
	})
	m.wg.Wait()
	return nil
}

// do runs fn on the manager goroutine and waits for its result
func (m *Manager) do(ctx context.Context, fn func() error) error {
	req := request{fn: fn, reply: make(chan error, 1)}

	select {
	case m.requests <- req:
	case <-m.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-req.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run is the manager goroutine
func (m *Manager) run() {
	defer m.wg.Done()

	var keepAlive <-chan time.Time
	if m.cfg.KeepAlive > 0 {
		ticker := time.NewTicker(m.cfg.KeepAlive)
		defer ticker.Stop()
		keepAlive = ticker.C
	}

	for {
		if m.pollReady() {
			select {
			case req := <-m.requests:
				req.reply <- req.fn()
			case <-keepAlive:
				m.keepAlive()
			case <-m.done:
				m.teardown()
				return
			default:
				m.pollOnce()
			}
			continue
		}

		// Idle, or paused after a read error
		var resume <-chan time.Time
		if m.polling && m.transport != nil {
			resume = time.After(time.Until(m.pauseUntil))
		}

		select {
		case req := <-m.requests:
			req.reply <- req.fn()
		case <-keepAlive:
			m.keepAlive()
		case <-resume:
		case <-m.done:
			m.teardown()
			return
		}
	}
}

func (m *Manager) pollReady() bool {
	return m.polling && m.transport != nil && !time.Now().Before(m.pauseUntil)
}

// pollOnce performs one bounded read and dispatches the result
func (m *Manager) pollOnce() {
	n, err := m.transport.Read(m.readBuf, m.cfg.ReadTimeout)
	switch {
	case err == nil:
		if n > 0 {
			m.handleReport(m.readBuf[:n])
		}
	case errors.Is(err, ErrTimeout):
		// Nothing pending
	case errors.Is(err, ErrConnectionLost):
		slog.Warn("device connection lost", "error", err)
		m.stopPolling()
		m.fail(err)
	default:
		slog.Warn("read failed", "error", err)
		m.pauseUntil = time.Now().Add(m.cfg.ErrorDelay)
	}
}

// handleReport forwards a raw report and any event it carries
func (m *Manager) handleReport(data []byte) {
	raw := make([]byte, len(data))
	copy(raw, data)

	m.hooksMu.RLock()
	hooks := m.onRaw
	m.hooksMu.RUnlock()
	for _, fn := range hooks {
		fn(raw)
	}

	if ev, ok := soomfon.Decode(raw); ok {
		m.detector.Feed(ev)
	}
}

func (m *Manager) emitEvent(ev soomfon.Event) {
	m.hooksMu.RLock()
	hooks := m.onEvent
	m.hooksMu.RUnlock()
	for _, fn := range hooks {
		fn(ev)
	}
}

func (m *Manager) connect() (Info, error) {
	switch m.State() {
	case StateConnected, StateInitialized:
		return *m.info, nil
	case StateError:
		return Info{}, ErrInvalidState
	}

	m.setState(StateConnecting)

	t, info, err := m.opener.Open(m.cfg.VendorID, m.cfg.ProductID)
	if err != nil {
		m.fail(err)
		return Info{}, err
	}

	m.transport = t
	m.info = &info
	m.lastErr = nil
	m.setState(StateConnected)
	slog.Info("device connected", "path", info.Path, "product", info.Product)
	return info, nil
}

func (m *Manager) initialize() error {
	switch m.State() {
	case StateInitialized:
		return nil
	case StateConnected:
	case StateError:
		return ErrInvalidState
	default:
		return ErrNotConnected
	}

	for _, p := range soomfon.InitSequence(m.brightness) {
		if err := m.write(p); err != nil {
			m.fail(err)
			return fmt.Errorf("init %s: %w", p.Mnemonic(), err)
		}
		time.Sleep(m.cfg.CommandDelay)
		m.drain()
	}

	m.setState(StateInitialized)
	slog.Info("device initialized", "brightness", m.brightness)
	return nil
}

// drain discards responses queued by the previous command
func (m *Manager) drain() {
	for i := 0; i < maxDrainReads; i++ {
		n, err := m.transport.Read(m.readBuf, m.cfg.DrainTimeout)
		if err != nil || n == 0 {
			return
		}
		slog.Debug("drained report", "bytes", n, "report", soomfon.FormatRaw(m.readBuf[:n]))
	}
}

func (m *Manager) disconnect() {
	m.stopPolling()

	if m.transport != nil {
		state := m.State()
		if state == StateConnected || state == StateInitialized {
			for _, p := range soomfon.ShutdownSequence() {
				if err := m.write(p); err != nil {
					slog.Warn("shutdown command failed", "command", p.Mnemonic(), "error", err)
				}
			}
		}
		if err := m.transport.Close(); err != nil {
			slog.Warn("failed to release device", "error", err)
		}
		slog.Info("device disconnected")
	}

	m.transport = nil
	m.info = nil
	m.lastErr = nil
	m.setState(StateDisconnected)
}

func (m *Manager) stopPolling() {
	if !m.polling {
		return
	}
	m.polling = false
	m.pauseUntil = time.Time{}
	m.detector.Reset()
	m.publish()
	slog.Debug("polling stopped")
}

func (m *Manager) keepAlive() {
	if m.State() != StateInitialized {
		return
	}
	if err := m.write(soomfon.NewConnect()); err != nil {
		slog.Warn("keepalive failed", "error", err)
	}
}

// write sends one packet. Losing the device moves the manager to the
// error state.
func (m *Manager) write(p *soomfon.Packet) error {
	if m.transport == nil {
		return ErrNotConnected
	}
	if _, err := m.transport.Write(p.Bytes(), m.cfg.WriteTimeout); err != nil {
		if errors.Is(err, ErrConnectionLost) {
			m.stopPolling()
			m.fail(err)
		}
		return err
	}
	return nil
}

// command writes packets for an initialized device. Any failure leaves the
// device in an unknown state (possibly inside an upload), so the manager
// moves to the error state and only Disconnect is accepted.
func (m *Manager) command(packets ...*soomfon.Packet) error {
	for _, p := range packets {
		if err := m.write(p); err != nil {
			if m.State() != StateError {
				m.stopPolling()
				m.fail(err)
			}
			return err
		}
	}
	return nil
}

func (m *Manager) requireInitialized() error {
	switch m.State() {
	case StateInitialized:
		return nil
	case StateConnected:
		return ErrNotInitialized
	case StateError:
		return ErrInvalidState
	default:
		return ErrNotConnected
	}
}

func (m *Manager) fail(err error) {
	m.lastErr = err
	m.setState(StateError)
}

// teardown runs when the manager is closed
func (m *Manager) teardown() {
	if m.State() != StateDisconnected {
		m.disconnect()
	}
	m.detector.Reset()
}

func (m *Manager) setState(s State) {
	m.state.Store(int32(s))
	m.publish()
}

// publish stores a fresh status snapshot and notifies state hooks
func (m *Manager) publish() {
	st := Status{
		State:      m.State(),
		Polling:    m.polling,
		Brightness: m.brightness,
	}
	if m.info != nil {
		info := *m.info
		st.Device = &info
	}
	if m.lastErr != nil {
		st.LastError = m.lastErr.Error()
	}
	m.status.Store(&st)

	m.hooksMu.RLock()
	hooks := m.onState
	m.hooksMu.RUnlock()
	for _, fn := range hooks {
		fn(st)
	}
}
