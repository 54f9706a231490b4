// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package binder

import (
	"context"
	"log/slog"
	"sync"

	"github.com/Thermoquad/soomctl/pkg/actions"
	"github.com/Thermoquad/soomctl/pkg/soomfon"
)

// Executor runs an action
type Executor interface {
	Execute(ctx context.Context, a actions.Action) actions.Result
}

// Dispatch describes one routed event
type Dispatch struct {
	Event  soomfon.Event
	Action actions.Action
	Result actions.Result
}

// Router resolves device events through a Binder and runs the matching
// actions off the caller's goroutine
type Router struct {
	ctx      context.Context
	binder   *Binder
	exec     Executor
	wg       sync.WaitGroup
	mu       sync.RWMutex
	onResult []func(Dispatch)
}

// NewRouter creates a router; actions run with ctx
func NewRouter(ctx context.Context, b *Binder, exec Executor) *Router {
	return &Router{ctx: ctx, binder: b, exec: exec}
}

// OnResult registers a handler called after each routed action finishes
func (r *Router) OnResult(fn func(Dispatch)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onResult = append(r.onResult, fn)
}

// HandleEvent starts the action bound to ev, if any, and reports whether
// one was started. It does not block.
func (r *Router) HandleEvent(ev soomfon.Event) bool {
	a, ok := r.binder.Resolve(ev)
	if !ok {
		return false
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		res := r.exec.Execute(r.ctx, a)
		if res.Success {
			slog.Debug("action finished", "type", a.Kind(), "duration_ms", res.DurationMS)
		} else {
			slog.Warn("action failed", "type", a.Kind(), "error", res.Error)
		}

		r.mu.RLock()
		hooks := r.onResult
		r.mu.RUnlock()
		for _, fn := range hooks {
			fn(Dispatch{Event: ev, Action: a, Result: res})
		}
	}()
	return true
}

// Wait blocks until started actions have finished
func (r *Router) Wait() {
	r.wg.Wait()
}
