// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/Thermoquad/soomctl/pkg/device"
	"github.com/Thermoquad/soomctl/pkg/profile"
	"golang.org/x/term"
)

// TokenEnv names the environment variable holding the Home Assistant token
const TokenEnv = "SOOMCTL_HA_TOKEN"

// errNoToken is returned by GetToken when a token is needed but stdin
// cannot prompt for one
var errNoToken = fmt.Errorf("home assistant token not set (use %s)", TokenEnv)

const (
	minReconnectDelay = time.Second
	maxReconnectDelay = 30 * time.Second
)

// resolveConfigDir returns --config-dir or the per-user default
func resolveConfigDir() (string, error) {
	if configDir != "" {
		return configDir, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("no config directory: %v (use --config-dir)", err)
	}
	return filepath.Join(base, "soomctl"), nil
}

// OpenStore opens the profile store and loads settings. An unreadable
// settings file is logged and replaced by defaults.
func OpenStore() (*profile.Store, profile.Settings, error) {
	dir, err := resolveConfigDir()
	if err != nil {
		return nil, profile.Settings{}, err
	}
	store := profile.NewStore(dir)
	settings, err := store.LoadSettings()
	if err != nil {
		slog.Warn("using default settings", "error", err)
	}
	return store, settings, nil
}

// managerConfig builds the device configuration from flags and settings
func managerConfig(settings profile.Settings) device.Config {
	cfg := device.DefaultConfig()
	cfg.VendorID = vendorID
	cfg.ProductID = productID
	cfg.Brightness = settings.Brightness
	cfg.KeepAlive = settings.KeepAlive()
	cfg.LongPress.Threshold = settings.LongPress()
	return cfg
}

// OpenManager starts a device manager on libusb. The returned function
// disconnects the pad and releases everything.
func OpenManager(cfg device.Config) (*device.Manager, func()) {
	opener := device.NewUSBOpener()
	m := device.NewManager(cfg, opener)
	return m, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := m.Disconnect(ctx); err != nil && !errors.Is(err, device.ErrClosed) {
			slog.Debug("disconnect on shutdown failed", "error", err)
		}
		m.Close()
		opener.Close()
	}
}

// BringUp connects, initializes and starts polling. A manager left in the
// error state is disconnected first.
func BringUp(ctx context.Context, m *device.Manager) (device.Info, error) {
	if m.State() == device.StateError {
		if err := m.Disconnect(ctx); err != nil {
			return device.Info{}, err
		}
	}
	info, err := m.Connect(ctx)
	if err != nil {
		return device.Info{}, err
	}
	if m.State() != device.StateInitialized {
		if err := m.Initialize(ctx); err != nil {
			return info, err
		}
	}
	if err := m.StartPolling(ctx); err != nil {
		return info, err
	}
	return info, nil
}

// nextDelay doubles d up to maxReconnectDelay
func nextDelay(d time.Duration) time.Duration {
	d *= 2
	if d > maxReconnectDelay {
		d = maxReconnectDelay
	}
	return d
}

// connectionManager keeps the pad connected, reconnecting with exponential
// backoff whenever the manager reports the link lost. Link loss always
// surfaces as StateError; a requested Disconnect is left alone.
type connectionManager struct {
	manager *device.Manager
	lost    chan struct{}

	// onStatus is called for each attempt outcome when not nil
	onStatus func(info device.Info, err error, retry time.Duration)
}

func newConnectionManager(m *device.Manager) *connectionManager {
	cm := &connectionManager{
		manager: m,
		lost:    make(chan struct{}, 1),
	}
	m.OnStateChange(func(st device.Status) {
		if st.State != device.StateError {
			return
		}
		select {
		case cm.lost <- struct{}{}:
		default:
		}
	})
	return cm
}

// run blocks until ctx is done
func (cm *connectionManager) run(ctx context.Context) {
	delay := minReconnectDelay
	for {
		info, err := BringUp(ctx, cm.manager)
		if ctx.Err() != nil {
			return
		}

		if err == nil {
			delay = minReconnectDelay
			slog.Info("pad ready", "product", info.Product, "path", info.Path)
			if cm.onStatus != nil {
				cm.onStatus(info, nil, 0)
			}
			if !cm.waitLost(ctx) {
				return
			}
			slog.Warn("pad connection lost, reconnecting")
			continue
		}

		slog.Warn("pad unavailable", "error", err, "retry_in", delay)
		if cm.onStatus != nil {
			cm.onStatus(info, err, delay)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		delay = nextDelay(delay)
	}
}

// waitLost blocks until the link drops, returning false when ctx is done.
// Stale signals from earlier failed attempts are ignored.
func (cm *connectionManager) waitLost(ctx context.Context) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case <-cm.lost:
			if cm.manager.State() == device.StateError {
				return true
			}
		}
	}
}

// GetToken returns the Home Assistant token from settings, the environment,
// or an interactive prompt
func GetToken(settings profile.Settings) (string, error) {
	if settings.HomeAssistant != nil && settings.HomeAssistant.Token != "" {
		return settings.HomeAssistant.Token, nil
	}
	if tok := os.Getenv(TokenEnv); tok != "" {
		return tok, nil
	}
	if settings.HomeAssistant == nil || settings.HomeAssistant.URL == "" {
		return "", nil
	}
	if !term.IsTerminal(int(syscall.Stdin)) {
		return "", errNoToken
	}

	fmt.Fprint(os.Stderr, "Home Assistant token: ")

	tokenBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// Fallback to regular input if terminal functions fail
		reader := bufio.NewReader(os.Stdin)
		tok, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read token: %v", err)
		}
		fmt.Fprintln(os.Stderr)
		return strings.TrimSpace(tok), nil
	}

	fmt.Fprintln(os.Stderr)
	return strings.TrimSpace(string(tokenBytes)), nil
}

// withDevice connects and initializes the pad, runs fn and disconnects
func withDevice(fn func(ctx context.Context, m *device.Manager) error) error {
	_, settings, err := OpenStore()
	if err != nil {
		return err
	}

	cfg := managerConfig(settings)
	cfg.KeepAlive = 0
	m, closeManager := OpenManager(cfg)
	defer closeManager()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := m.Connect(ctx); err != nil {
		return err
	}
	if err := m.Initialize(ctx); err != nil {
		return err
	}
	return fn(ctx, m)
}
