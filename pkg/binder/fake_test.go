// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package binder

import (
	"context"
	"strings"
	"sync"

	"github.com/Thermoquad/soomctl/pkg/actions"
)

// keyRecorder implements actions.Handlers, recording keyboard combos
type keyRecorder struct {
	mu     sync.Mutex
	combos []string
}

func (k *keyRecorder) keys() string {
	k.mu.Lock()
	defer k.mu.Unlock()
	return strings.Join(k.combos, ",")
}

func (k *keyRecorder) Keyboard(ctx context.Context, cfg actions.Keyboard, token actions.CancelToken) actions.Result {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.combos = append(k.combos, cfg.Combo())
	return actions.Ok()
}

func (k *keyRecorder) Media(context.Context, actions.Media, actions.CancelToken) actions.Result {
	return actions.Ok()
}

func (k *keyRecorder) Launch(context.Context, actions.Launch, actions.CancelToken) actions.Result {
	return actions.Ok()
}

func (k *keyRecorder) Script(context.Context, actions.Script, actions.CancelToken) actions.Result {
	return actions.Ok()
}

func (k *keyRecorder) HTTP(context.Context, actions.HTTP, actions.CancelToken) actions.Result {
	return actions.Ok()
}

func (k *keyRecorder) System(context.Context, actions.System, actions.CancelToken) actions.Result {
	return actions.Ok()
}

func (k *keyRecorder) Text(context.Context, actions.Text, actions.CancelToken) actions.Result {
	return actions.Ok()
}

func (k *keyRecorder) Profile(context.Context, actions.Profile, actions.CancelToken) actions.Result {
	return actions.Ok()
}

func (k *keyRecorder) HomeAssistant(context.Context, actions.HomeAssistant, actions.CancelToken) actions.Result {
	return actions.Ok()
}

func (k *keyRecorder) Workflow(context.Context, actions.Workflow, actions.CancelToken) actions.Result {
	return actions.Ok()
}
