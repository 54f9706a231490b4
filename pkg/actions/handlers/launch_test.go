// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package handlers

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/Thermoquad/soomctl/pkg/actions"
)

func TestLaunch(t *testing.T) {
	tests := []struct {
		name string
		goos string
		cfg  actions.Launch
		want call
	}{
		{
			name: "program",
			goos: "linux",
			cfg:  actions.Launch{Path: "/usr/bin/firefox", Args: []string{"--new-window"}, WorkingDirectory: "/tmp"},
			want: call{name: "/usr/bin/firefox", args: []string{"--new-window"}, dir: "/tmp"},
		},
		{
			name: "url on linux",
			goos: "linux",
			cfg:  actions.Launch{Path: "https://example.com"},
			want: call{name: "xdg-open", args: []string{"https://example.com"}},
		},
		{
			name: "url on darwin",
			goos: "darwin",
			cfg:  actions.Launch{Path: "https://example.com"},
			want: call{name: "open", args: []string{"https://example.com"}},
		},
		{
			name: "shell",
			goos: "linux",
			cfg:  actions.Launch{Path: "echo", Args: []string{"hi"}, UseShell: true},
			want: call{name: "sh", args: []string{"-c", "echo hi"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &fakeRunner{}
			s := New(Config{Runner: r, GOOS: tt.goos})
			res := s.Launch(context.Background(), tt.cfg, actions.NewCancelToken())
			if !res.Success {
				t.Fatalf("Launch() failed: %s", res.Error)
			}
			if len(r.starts) != 1 || !reflect.DeepEqual(r.starts[0], tt.want) {
				t.Errorf("starts = %+v, want %+v", r.starts, tt.want)
			}
		})
	}
}

func TestLaunchErrors(t *testing.T) {
	s := newLinuxSet(&fakeRunner{})
	if res := s.Launch(context.Background(), actions.Launch{}, actions.NewCancelToken()); res.Success {
		t.Error("Launch() with empty path succeeded")
	}

	s = newLinuxSet(&fakeRunner{err: errors.New("not found")})
	res := s.Launch(context.Background(), actions.Launch{Path: "nope"}, actions.NewCancelToken())
	if res.Success || res.Error != "Failed to launch nope: not found" {
		t.Errorf("Launch() = %+v", res)
	}
}
