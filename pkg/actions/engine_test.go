// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package actions

import (
	"context"
	"sync"
	"testing"
	"time"
)

// recordingHandlers returns success for every kind and records the call
type recordingHandlers struct {
	mu     sync.Mutex
	called []Kind
	// block, when set, is waited on by the keyboard handler
	block   chan struct{}
	started chan struct{}
	token   CancelToken
}

func (h *recordingHandlers) note(k Kind, token CancelToken) Result {
	h.mu.Lock()
	h.called = append(h.called, k)
	h.token = token
	h.mu.Unlock()
	return OkMessage("%s done", k)
}

func (h *recordingHandlers) Keyboard(ctx context.Context, cfg Keyboard, token CancelToken) Result {
	r := h.note(KindKeyboard, token)
	if h.block != nil {
		if h.started != nil {
			close(h.started)
		}
		select {
		case <-h.block:
		case <-ctx.Done():
			return Cancelled()
		}
	}
	if cfg.Combo() == "fail" {
		return Failed("keystroke rejected")
	}
	return r
}

func (h *recordingHandlers) Media(ctx context.Context, cfg Media, token CancelToken) Result {
	return h.note(KindMedia, token)
}

func (h *recordingHandlers) Launch(ctx context.Context, cfg Launch, token CancelToken) Result {
	return h.note(KindLaunch, token)
}

func (h *recordingHandlers) Script(ctx context.Context, cfg Script, token CancelToken) Result {
	return h.note(KindScript, token)
}

func (h *recordingHandlers) HTTP(ctx context.Context, cfg HTTP, token CancelToken) Result {
	return h.note(KindHTTP, token)
}

func (h *recordingHandlers) System(ctx context.Context, cfg System, token CancelToken) Result {
	return h.note(KindSystem, token)
}

func (h *recordingHandlers) Text(ctx context.Context, cfg Text, token CancelToken) Result {
	return h.note(KindText, token)
}

func (h *recordingHandlers) Profile(ctx context.Context, cfg Profile, token CancelToken) Result {
	return h.note(KindProfile, token)
}

func (h *recordingHandlers) HomeAssistant(ctx context.Context, cfg HomeAssistant, token CancelToken) Result {
	panic("boom")
}

func (h *recordingHandlers) Workflow(ctx context.Context, cfg Workflow, token CancelToken) Result {
	r := h.note(KindWorkflow, token)
	r.DurationMS = 99999
	return r
}

func TestEngineDispatch(t *testing.T) {
	tests := []struct {
		name   string
		action Action
		want   Kind
	}{
		{"keyboard", Keyboard{Keys: "A"}, KindKeyboard},
		{"media", Media{Action: MediaPlayPause}, KindMedia},
		{"launch", Launch{Path: "/usr/bin/true"}, KindLaunch},
		{"script", Script{ScriptType: ScriptBash, Script: "true"}, KindScript},
		{"http", HTTP{Method: "GET", URL: "http://localhost"}, KindHTTP},
		{"system", System{Action: SystemLockScreen}, KindSystem},
		{"text", Text{Text: "hi"}, KindText},
		{"profile", Profile{ProfileName: "Default"}, KindProfile},
		{"workflow", Workflow{Operation: WorkflowTriggerFlow, Endpoint: "/hook"}, KindWorkflow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &recordingHandlers{}
			e := NewEngine(h)

			r := e.Execute(context.Background(), tt.action)
			if !r.Success {
				t.Fatalf("Execute() = %+v, want success", r)
			}
			if len(h.called) != 1 || h.called[0] != tt.want {
				t.Errorf("handlers called = %v, want [%s]", h.called, tt.want)
			}
			hist := e.History()
			if len(hist) != 1 || hist[0].ActionType != string(tt.want) {
				t.Errorf("History() = %+v, want one %s entry", hist, tt.want)
			}
			if e.IsExecuting() {
				t.Error("IsExecuting() = true after Execute returned")
			}
		})
	}
}

func TestEngineOverridesDuration(t *testing.T) {
	e := NewEngine(&recordingHandlers{})
	r := e.Execute(context.Background(), Workflow{Endpoint: "/x"})
	if r.DurationMS == 99999 {
		t.Error("handler-reported duration was not replaced")
	}
	if r.DurationMS < 0 || r.DurationMS > 5000 {
		t.Errorf("DurationMS = %d, want measured wall time", r.DurationMS)
	}
}

func TestEngineFailureRecorded(t *testing.T) {
	e := NewEngine(&recordingHandlers{})
	r := e.Execute(context.Background(), Keyboard{Keys: "fail"})
	if r.Success || r.Error != "keystroke rejected" {
		t.Fatalf("Execute() = %+v, want failure", r)
	}
	hist := e.History()
	if len(hist) != 1 || hist[0].Success || hist[0].Error != "keystroke rejected" {
		t.Errorf("History() = %+v, want failed entry", hist)
	}
}

func TestEngineRecoversPanic(t *testing.T) {
	e := NewEngine(&recordingHandlers{})
	r := e.Execute(context.Background(), HomeAssistant{Operation: HAToggle})
	if r.Success {
		t.Fatal("Execute() succeeded despite handler panic")
	}
	if e.IsExecuting() {
		t.Error("guard still held after panic")
	}
}

func TestEngineNilAction(t *testing.T) {
	e := NewEngine(&recordingHandlers{})
	if r := e.Execute(context.Background(), nil); r.Success {
		t.Error("Execute(nil) succeeded")
	}
	if len(e.History()) != 0 {
		t.Error("Execute(nil) recorded history")
	}
}

// startBlocked runs a keyboard action that blocks until release is closed
func startBlocked(t *testing.T, e *Engine, h *recordingHandlers) <-chan Result {
	t.Helper()
	done := make(chan Result, 1)
	go func() {
		done <- e.Execute(context.Background(), Keyboard{Keys: "A"})
	}()
	select {
	case <-h.started:
	case <-time.After(2 * time.Second):
		t.Fatal("handler never started")
	}
	return done
}

func TestEngineSingleFlight(t *testing.T) {
	h := &recordingHandlers{block: make(chan struct{}), started: make(chan struct{})}
	e := NewEngine(h)
	done := startBlocked(t, e, h)

	if !e.IsExecuting() {
		t.Error("IsExecuting() = false while handler runs")
	}

	r := e.Execute(context.Background(), Media{Action: MediaMute})
	if r.Success || r.Error != BusyMessage {
		t.Errorf("second Execute() = %+v, want busy failure", r)
	}
	if len(e.History()) != 0 {
		t.Errorf("busy rejection touched history: %+v", e.History())
	}

	close(h.block)
	if first := <-done; !first.Success {
		t.Errorf("first Execute() = %+v, want success", first)
	}
	if len(e.History()) != 1 {
		t.Errorf("History() len = %d, want 1", len(e.History()))
	}
}

func TestEngineCancel(t *testing.T) {
	h := &recordingHandlers{block: make(chan struct{}), started: make(chan struct{})}
	e := NewEngine(h)
	done := startBlocked(t, e, h)

	before := e.Token()
	h.mu.Lock()
	handlerToken := h.token
	h.mu.Unlock()

	e.Cancel()

	if !before.IsCancelled() || !handlerToken.IsCancelled() {
		t.Error("token clones do not observe cancellation")
	}
	if e.IsExecuting() {
		t.Error("IsExecuting() = true after Cancel")
	}

	r := <-done
	if r.Success {
		t.Errorf("cancelled Execute() = %+v, want failure", r)
	}
	if len(e.History()) != 1 {
		t.Errorf("History() len = %d, want cancelled run recorded", len(e.History()))
	}
}

func TestEngineStaleFinishKeepsNewGuard(t *testing.T) {
	h := &recordingHandlers{block: make(chan struct{}), started: make(chan struct{})}
	e := NewEngine(h)

	// Claim the guard, cancel, then claim it again for a second run
	_, first, ok := e.begin(context.Background())
	if !ok {
		t.Fatal("begin() failed")
	}
	e.Cancel()
	_, second, ok := e.begin(context.Background())
	if !ok {
		t.Fatal("begin() after Cancel failed")
	}

	e.finish(first)
	if !e.IsExecuting() {
		t.Error("stale finish released the newer run's guard")
	}
	e.finish(second)
	if e.IsExecuting() {
		t.Error("guard still held after current run finished")
	}
}

func TestEngineCancelResetOnNextRun(t *testing.T) {
	e := NewEngine(&recordingHandlers{})
	tok := e.Token()
	e.Cancel()
	if !tok.IsCancelled() {
		t.Fatal("token not cancelled")
	}
	e.Execute(context.Background(), Text{Text: "x"})
	if tok.IsCancelled() {
		t.Error("token not reset at the start of the next execution")
	}
}

func TestEngineHistoryCap(t *testing.T) {
	e := NewEngine(&recordingHandlers{})
	for i := 0; i < 105; i++ {
		e.RecordExecution(Text{Text: "x"}, Result{Success: true, DurationMS: int64(i)})
	}

	hist := e.History()
	if len(hist) != MaxHistoryEntries {
		t.Fatalf("History() len = %d, want %d", len(hist), MaxHistoryEntries)
	}
	if hist[0].DurationMS != 5 {
		t.Errorf("oldest entry = call %d, want call 5 (the 6th)", hist[0].DurationMS)
	}
	if hist[len(hist)-1].DurationMS != 104 {
		t.Errorf("newest entry = call %d, want call 104", hist[len(hist)-1].DurationMS)
	}

	e.ClearHistory()
	if len(e.History()) != 0 {
		t.Error("ClearHistory() left entries")
	}
}

func TestRecordExecutionIgnoresGuard(t *testing.T) {
	h := &recordingHandlers{block: make(chan struct{}), started: make(chan struct{})}
	e := NewEngine(h)
	done := startBlocked(t, e, h)

	e.RecordExecution(Media{Action: MediaNext}, Result{Success: true, DurationMS: 3})
	if len(e.History()) != 1 || e.History()[0].ActionType != string(KindMedia) {
		t.Errorf("History() = %+v, want recorded media entry", e.History())
	}

	close(h.block)
	<-done
}

func TestCancelToken(t *testing.T) {
	a := NewCancelToken()
	b := a.Clone()
	c := b

	if a.IsCancelled() {
		t.Fatal("new token is cancelled")
	}
	b.Cancel()
	if !a.IsCancelled() || !c.IsCancelled() {
		t.Error("clones do not share state")
	}
	c.Reset()
	if a.IsCancelled() || b.IsCancelled() {
		t.Error("Reset not visible to clones")
	}

	var zero CancelToken
	zero.Cancel()
	if zero.IsCancelled() {
		t.Error("zero token reports cancelled")
	}
}
