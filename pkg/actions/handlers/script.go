// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package handlers

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Thermoquad/soomctl/pkg/actions"
)

// scriptCommand returns the interpreter invocation for a script action
func (s *Set) scriptCommand(cfg actions.Script) (string, []string, error) {
	switch cfg.ScriptType {
	case actions.ScriptBash:
		return "bash", []string{"-c", cfg.Source()}, nil
	case actions.ScriptPowerShell:
		name := "pwsh"
		if s.cfg.GOOS == "windows" {
			name = "powershell"
		}
		return name, []string{"-NoProfile", "-NonInteractive", "-Command", cfg.Source()}, nil
	case actions.ScriptCmd:
		return "cmd", []string{"/C", cfg.Source()}, nil
	case actions.ScriptFile:
		path := cfg.ScriptPath
		if path == "" {
			path = cfg.Source()
		}
		if path == "" {
			return "", nil, errors.New("no script path specified")
		}
		if _, err := os.Stat(path); err != nil {
			return "", nil, err
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".ps1":
			return "pwsh", []string{"-NoProfile", "-File", path}, nil
		case ".bat", ".cmd":
			return "cmd", []string{"/C", path}, nil
		case ".sh":
			return "bash", []string{path}, nil
		default:
			return path, nil, nil
		}
	default:
		return "", nil, errors.New("unknown script type " + cfg.ScriptType)
	}
}

// Script runs a script and reports its output. The run is killed when the
// timeout expires or the token is cancelled.
func (s *Set) Script(ctx context.Context, cfg actions.Script, token actions.CancelToken) actions.Result {
	timeout := DefaultTimeout
	if cfg.TimeoutMS > 0 {
		timeout = time.Duration(cfg.TimeoutMS) * time.Millisecond
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	stop := watchToken(ctx, token, cancel)
	defer stop()

	if cfg.ScriptType == actions.ScriptLua {
		out, err := s.lua.Run(ctx, "script", cfg.Source(), token)
		return scriptResult(ctx, token, out, err)
	}

	if cfg.ScriptType != actions.ScriptFile && cfg.Source() == "" {
		return actions.Failed("No script specified")
	}
	name, args, err := s.scriptCommand(cfg)
	if err != nil {
		return actions.Failed("Invalid script: %v", err)
	}

	out, err := s.runner.Run(ctx, name, args...)
	if err != nil && len(out.Stderr) > 0 {
		err = errors.New(strings.TrimSpace(string(out.Stderr)))
	}
	return scriptResult(ctx, token, strings.TrimSpace(string(out.Stdout)), err)
}

func scriptResult(ctx context.Context, token actions.CancelToken, out string, err error) actions.Result {
	switch {
	case token.IsCancelled():
		return actions.Cancelled()
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return actions.Failed("Script execution timed out")
	case err != nil:
		return actions.Failed("Script failed: %v", err)
	case out == "":
		return actions.OkMessage("Script completed")
	default:
		return actions.OkMessage("%s", out)
	}
}

// tokenPollInterval is how often a running script checks for cancellation
const tokenPollInterval = 50 * time.Millisecond

// watchToken calls cancel once the token is cancelled. The returned
// function stops the watcher.
func watchToken(ctx context.Context, token actions.CancelToken, cancel context.CancelFunc) func() {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(tokenPollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				if token.IsCancelled() {
					cancel()
					return
				}
			}
		}
	}()
	return func() { close(done) }
}
