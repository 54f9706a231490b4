// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package handlers

import (
	"context"
	"strings"

	"github.com/Thermoquad/soomctl/pkg/actions"
)

// isURL reports whether path should be handed to the desktop opener
func isURL(path string) bool {
	for _, scheme := range []string{"http://", "https://", "mailto:", "file://", "steam://"} {
		if strings.HasPrefix(strings.ToLower(path), scheme) {
			return true
		}
	}
	return false
}

// opener returns the program that opens URLs and documents
func (s *Set) opener() string {
	switch s.cfg.GOOS {
	case "darwin":
		return "open"
	case "windows":
		return "explorer"
	default:
		return "xdg-open"
	}
}

// shell returns the shell and flag used to run a command line
func (s *Set) shell() (string, string) {
	if s.cfg.GOOS == "windows" {
		return "cmd", "/C"
	}
	return "sh", "-c"
}

// Launch starts a program or opens a URL without waiting for it
func (s *Set) Launch(ctx context.Context, cfg actions.Launch, token actions.CancelToken) actions.Result {
	if cfg.Path == "" {
		return actions.Failed("No path specified")
	}

	var (
		name string
		args []string
	)
	switch {
	case isURL(cfg.Path):
		name, args = s.opener(), []string{cfg.Path}
	case cfg.UseShell:
		sh, flag := s.shell()
		line := strings.Join(append([]string{cfg.Path}, cfg.Args...), " ")
		name, args = sh, []string{flag, line}
	default:
		name, args = cfg.Path, cfg.Args
	}

	if err := s.runner.Start(name, args, cfg.WorkingDirectory); err != nil {
		return actions.Failed("Failed to launch %s: %v", cfg.Path, err)
	}
	return actions.OkMessage("Launched %s", cfg.Path)
}
