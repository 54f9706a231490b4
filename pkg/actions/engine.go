// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package actions

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Handlers runs each kind of action. Implementations should return promptly
// once ctx is done or the token is cancelled.
type Handlers interface {
	Keyboard(ctx context.Context, cfg Keyboard, token CancelToken) Result
	Media(ctx context.Context, cfg Media, token CancelToken) Result
	Launch(ctx context.Context, cfg Launch, token CancelToken) Result
	Script(ctx context.Context, cfg Script, token CancelToken) Result
	HTTP(ctx context.Context, cfg HTTP, token CancelToken) Result
	System(ctx context.Context, cfg System, token CancelToken) Result
	Text(ctx context.Context, cfg Text, token CancelToken) Result
	Profile(ctx context.Context, cfg Profile, token CancelToken) Result
	HomeAssistant(ctx context.Context, cfg HomeAssistant, token CancelToken) Result
	Workflow(ctx context.Context, cfg Workflow, token CancelToken) Result
}

// Engine runs at most one action at a time and keeps a bounded history
type Engine struct {
	handlers Handlers
	token    CancelToken
	history  *History

	executing atomic.Bool

	// mu guards the check-and-set of executing plus the fields below.
	// Handlers never run while it is held.
	mu         sync.Mutex
	generation uint64
	stopRun    context.CancelFunc
}

// NewEngine creates an engine dispatching to h
func NewEngine(h Handlers) *Engine {
	return &Engine{
		handlers: h,
		token:    NewCancelToken(),
		history:  NewHistory(MaxHistoryEntries),
	}
}

// Execute runs a and records it in the history. If another action is
// running it fails immediately without touching the history.
func (e *Engine) Execute(ctx context.Context, a Action) Result {
	if a == nil {
		return Failed("no action")
	}

	runCtx, gen, ok := e.begin(ctx)
	if !ok {
		return Failed(BusyMessage)
	}

	start := time.Now()
	result := e.dispatch(runCtx, a)
	result.DurationMS = time.Since(start).Milliseconds()

	e.history.Record(a, result)
	e.finish(gen)

	slog.Debug("action executed", "type", a.Kind(), "success", result.Success, "duration_ms", result.DurationMS)
	return result
}

// begin claims the single-flight guard
func (e *Engine) begin(parent context.Context) (context.Context, uint64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.executing.Load() {
		return nil, 0, false
	}
	e.executing.Store(true)
	e.generation++
	e.token.Reset()

	ctx, cancel := context.WithCancel(parent)
	e.stopRun = cancel
	return ctx, e.generation, true
}

// finish releases the guard unless a newer execution has claimed it since
// a Cancel
func (e *Engine) finish(gen uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.generation != gen {
		return
	}
	if e.stopRun != nil {
		e.stopRun()
		e.stopRun = nil
	}
	e.executing.Store(false)
}

// dispatch calls the handler for a's kind
func (e *Engine) dispatch(ctx context.Context, a Action) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("action handler panicked", "type", a.Kind(), "panic", r)
			result = Failed("handler panic: %v", r)
		}
	}()

	tok := e.token.Clone()
	switch cfg := a.(type) {
	case Keyboard:
		return e.handlers.Keyboard(ctx, cfg, tok)
	case Media:
		return e.handlers.Media(ctx, cfg, tok)
	case Launch:
		return e.handlers.Launch(ctx, cfg, tok)
	case Script:
		return e.handlers.Script(ctx, cfg, tok)
	case HTTP:
		return e.handlers.HTTP(ctx, cfg, tok)
	case System:
		return e.handlers.System(ctx, cfg, tok)
	case Text:
		return e.handlers.Text(ctx, cfg, tok)
	case Profile:
		return e.handlers.Profile(ctx, cfg, tok)
	case HomeAssistant:
		return e.handlers.HomeAssistant(ctx, cfg, tok)
	case Workflow:
		return e.handlers.Workflow(ctx, cfg, tok)
	default:
		return Failed("unsupported action %T", a)
	}
}

// Cancel signals the running action and releases the single-flight guard.
// Handlers that ignore the token and context run to completion.
func (e *Engine) Cancel() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.token.Cancel()
	if e.stopRun != nil {
		e.stopRun()
		e.stopRun = nil
	}
	e.executing.Store(false)
}

// IsExecuting reports whether an action holds the guard
func (e *Engine) IsExecuting() bool {
	return e.executing.Load()
}

// Token returns a clone of the engine's cancellation token
func (e *Engine) Token() CancelToken {
	return e.token.Clone()
}

// RecordExecution adds an externally computed result to the history. It
// does not check or take the guard.
func (e *Engine) RecordExecution(a Action, r Result) {
	e.history.Record(a, r)
}

// History returns past executions, oldest first
func (e *Engine) History() []HistoryEntry {
	return e.history.Entries()
}

// ClearHistory removes all history entries
func (e *Engine) ClearHistory() {
	e.history.Clear()
}
