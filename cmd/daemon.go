// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/Thermoquad/soomctl/pkg/actions"
	"github.com/Thermoquad/soomctl/pkg/actions/handlers"
	"github.com/Thermoquad/soomctl/pkg/api"
	"github.com/Thermoquad/soomctl/pkg/binder"
	"github.com/Thermoquad/soomctl/pkg/device"
	"github.com/Thermoquad/soomctl/pkg/notify"
	"github.com/Thermoquad/soomctl/pkg/profile"
	"github.com/Thermoquad/soomctl/pkg/soomfon"
)

// newHandlers builds the default handler set from settings
func newHandlers(settings profile.Settings, switcher handlers.ProfileSwitcher) (*handlers.Set, error) {
	cfg := handlers.Config{Profiles: switcher}
	if settings.HomeAssistant != nil {
		cfg.HomeAssistantURL = settings.HomeAssistant.URL
		tok, err := GetToken(settings)
		if errors.Is(err, errNoToken) {
			slog.Warn("home assistant actions will be sent without a token", "hint", err)
		} else if err != nil {
			return nil, err
		}
		cfg.HomeAssistantToken = tok
	} else if tok := os.Getenv(TokenEnv); tok != "" {
		cfg.HomeAssistantToken = tok
	}
	if settings.Workflow != nil {
		cfg.WorkflowURL = settings.Workflow.URL
	}
	return handlers.New(cfg), nil
}

// daemon wires the pad, the engine and the active profile together
type daemon struct {
	store   *profile.Store
	manager *device.Manager
	engine  *actions.Engine
	binder  *binder.Binder
	router  *binder.Router
	broker  *notify.Broker
	conn    *connectionManager

	closeManager func()

	mu       sync.Mutex
	settings profile.Settings
}

// newDaemon opens the store and the pad and routes input through the
// binder. Nothing is connected until the connection manager runs.
func newDaemon(ctx context.Context, cfg func(profile.Settings) device.Config) (*daemon, error) {
	store, settings, err := OpenStore()
	if err != nil {
		return nil, err
	}

	d := &daemon{
		store:    store,
		settings: settings,
		binder:   binder.New(),
		broker:   notify.NewBroker(),
	}

	set, err := newHandlers(settings, d)
	if err != nil {
		return nil, err
	}
	d.engine = actions.NewEngine(set)
	d.router = binder.NewRouter(ctx, d.binder, d.engine)

	d.manager, d.closeManager = OpenManager(cfg(settings))
	d.conn = newConnectionManager(d.manager)
	d.manager.OnEvent(func(ev soomfon.Event) {
		d.router.HandleEvent(ev)
	})
	notify.Attach(d.broker, d.manager, d.router)

	// Images are uploaded on every (re)connect
	d.conn.onStatus = func(info device.Info, err error, retry time.Duration) {
		if err == nil {
			go d.applyImages(ctx)
		}
	}
	return d, nil
}

// Close cancels any running action and releases the pad
func (d *daemon) Close() {
	d.engine.Cancel()
	d.router.Wait()
	d.closeManager()
}

// Settings returns a copy of the current settings
func (d *daemon) Settings() profile.Settings {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.settings
}

// SwitchProfile binds the named profile and makes it the active one
func (d *daemon) SwitchProfile(idOrName string) error {
	p, err := d.store.Find(idOrName)
	if err != nil {
		return err
	}
	d.binder.Bind(p)

	d.mu.Lock()
	d.settings.ActiveProfileID = p.ID
	settings := d.settings
	d.mu.Unlock()

	if err := d.store.SaveSettings(settings); err != nil {
		slog.Warn("failed to persist active profile", "error", err)
	}

	if d.manager.State() == device.StateInitialized {
		go d.applyImages(context.Background())
	}
	return nil
}

// Unbind drops the bound profile so input no longer triggers actions
func (d *daemon) Unbind() {
	d.binder.Unbind()

	d.mu.Lock()
	d.settings.ActiveProfileID = ""
	settings := d.settings
	d.mu.Unlock()

	if err := d.store.SaveSettings(settings); err != nil {
		slog.Warn("failed to persist active profile", "error", err)
	}
}

// bindStartup binds name, or the active profile from settings when name is
// empty. No profile at all is not an error.
func (d *daemon) bindStartup(name string) error {
	if name == "" {
		name = d.Settings().ActiveProfileID
	}
	if name == "" {
		slog.Warn("no profile selected; input will not trigger actions")
		return nil
	}
	if err := d.SwitchProfile(name); err != nil {
		return fmt.Errorf("profile %q: %w", name, err)
	}
	return nil
}

// applyImages uploads the bound profile's button images
func (d *daemon) applyImages(ctx context.Context) {
	p := d.binder.Profile()
	if p == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	for _, b := range p.Buttons {
		if b.Image == "" || b.Index >= soomfon.LCDButtonCount {
			continue
		}
		data, err := decodeImage(b.Image)
		if err != nil {
			slog.Warn("skipping button image", "button", b.Index, "error", err)
			continue
		}
		if err := d.manager.SetButtonImage(ctx, b.Index, data); err != nil {
			slog.Warn("button image upload failed", "button", b.Index, "error", err)
			return
		}
	}
}

// decodeImage accepts a data URL, raw base64 or a file path
func decodeImage(s string) ([]byte, error) {
	if strings.HasPrefix(s, "data:") {
		_, payload, ok := strings.Cut(s, ",")
		if !ok {
			return nil, errors.New("malformed data URL")
		}
		return base64.StdEncoding.DecodeString(payload)
	}
	if _, err := os.Stat(s); err == nil {
		return os.ReadFile(s)
	}
	return base64.StdEncoding.DecodeString(s)
}

// serveAPI runs the HTTP API until ctx is done
func (d *daemon) serveAPI(ctx context.Context, addr string) error {
	srv := &api.Server{
		Device: d.manager,
		Engine: d.engine,
		Binder: d.binder,
		Broker: d.broker,
	}
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	slog.Info("API listening", "addr", addr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
