// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package handlers

import (
	"context"
	"strings"
	"sync"
)

// call is one recorded Runner invocation
type call struct {
	name string
	args []string
	dir  string
}

func (c call) String() string {
	return strings.Join(append([]string{c.name}, c.args...), " ")
}

// fakeRunner records invocations and returns canned output
type fakeRunner struct {
	mu     sync.Mutex
	calls  []call
	starts []call
	out    Output
	err    error
	// block waits for ctx to end before returning
	block bool
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) (Output, error) {
	f.mu.Lock()
	f.calls = append(f.calls, call{name: name, args: args})
	out, err, block := f.out, f.err, f.block
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return Output{}, ctx.Err()
	}
	return out, err
}

func (f *fakeRunner) Start(name string, args []string, dir string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts = append(f.starts, call{name: name, args: args, dir: dir})
	return f.err
}

func (f *fakeRunner) commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.calls {
		out = append(out, c.String())
	}
	return out
}

// fakeSwitcher records profile switches
type fakeSwitcher struct {
	switched []string
	err      error
}

func (f *fakeSwitcher) SwitchProfile(idOrName string) error {
	f.switched = append(f.switched, idOrName)
	return f.err
}

func newLinuxSet(r *fakeRunner) *Set {
	return New(Config{Runner: r, GOOS: "linux"})
}
