// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package handlers provides the default action handlers: desktop input
// through xdotool or osascript, process launch, scripts, HTTP, Home
// Assistant and workflow webhooks.
package handlers

import (
	"bytes"
	"context"
	"net/http"
	"os/exec"
	"runtime"
	"time"

	"github.com/Thermoquad/soomctl/pkg/actions"
)

// DefaultTimeout bounds scripts and outbound requests without their own timeout
const DefaultTimeout = 30 * time.Second

// Output is the captured output of a finished command
type Output struct {
	Stdout []byte
	Stderr []byte
}

// Runner runs external programs
type Runner interface {
	// Run executes a program and waits for it
	Run(ctx context.Context, name string, args ...string) (Output, error)
	// Start launches a program without waiting for it
	Start(name string, args []string, dir string) error
}

// ExecRunner runs programs with os/exec
type ExecRunner struct{}

// Run executes name and captures stdout and stderr separately
func (ExecRunner) Run(ctx context.Context, name string, args ...string) (Output, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return Output{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}, err
}

// Start launches name detached from the caller
func (ExecRunner) Start(name string, args []string, dir string) error {
	cmd := exec.Command(name, args...)
	cmd.Dir = dir
	if err := cmd.Start(); err != nil {
		return err
	}
	// Reap the child when it exits
	go cmd.Wait()
	return nil
}

// ProfileSwitcher activates a profile by id or name
type ProfileSwitcher interface {
	SwitchProfile(idOrName string) error
}

// Config configures a handler Set
type Config struct {
	HomeAssistantURL   string
	HomeAssistantToken string
	WorkflowURL        string

	HTTPClient *http.Client
	Runner     Runner
	Profiles   ProfileSwitcher

	// GOOS selects the desktop tooling; defaults to runtime.GOOS
	GOOS string
}

// Set implements actions.Handlers
type Set struct {
	cfg    Config
	client *http.Client
	runner Runner
	lua    *LuaRunner
}

var _ actions.Handlers = (*Set)(nil)

// New creates a handler set
func New(cfg Config) *Set {
	s := &Set{
		cfg:    cfg,
		client: cfg.HTTPClient,
		runner: cfg.Runner,
		lua:    NewLuaRunner(DefaultLuaCacheSize),
	}
	if s.client == nil {
		s.client = &http.Client{}
	}
	if s.runner == nil {
		s.runner = ExecRunner{}
	}
	if s.cfg.GOOS == "" {
		s.cfg.GOOS = runtime.GOOS
	}
	return s
}

// SetProfileSwitcher sets the switcher used by profile actions
func (s *Set) SetProfileSwitcher(p ProfileSwitcher) {
	s.cfg.Profiles = p
}

// Profile switches the active profile
func (s *Set) Profile(ctx context.Context, cfg actions.Profile, token actions.CancelToken) actions.Result {
	target := cfg.ProfileID
	if target == "" {
		target = cfg.ProfileName
	}
	if target == "" {
		return actions.Failed("No profile specified")
	}
	if s.cfg.Profiles == nil {
		return actions.Failed("Profile switching unavailable")
	}
	if err := s.cfg.Profiles.SwitchProfile(target); err != nil {
		return actions.Failed("Failed to switch profile: %v", err)
	}
	return actions.OkMessage("Switched to profile %s", target)
}

// sleep waits for d unless ctx ends or the token is cancelled first.
// Returns false if the wait was interrupted.
func sleep(ctx context.Context, d time.Duration, token actions.CancelToken) bool {
	if token.IsCancelled() {
		return false
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return !token.IsCancelled()
	case <-ctx.Done():
		return false
	}
}
