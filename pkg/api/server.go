// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package api serves the pad over HTTP: device control, action execution
// and a WebSocket notification stream.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Thermoquad/soomctl/pkg/actions"
	"github.com/Thermoquad/soomctl/pkg/binder"
	"github.com/Thermoquad/soomctl/pkg/device"
	"github.com/Thermoquad/soomctl/pkg/notify"
)

// maxImageSize is the largest image a single upload packet header can describe
const maxImageSize = 0xFFFF

// Device is the device surface the API drives
type Device interface {
	Status() device.Status
	Enumerate() ([]device.Info, error)
	Connect(ctx context.Context) (device.Info, error)
	Initialize(ctx context.Context) error
	Disconnect(ctx context.Context) error
	SetBrightness(ctx context.Context, level int) error
	SetButtonImage(ctx context.Context, index int, image []byte) error
	ClearButton(ctx context.Context, index *int) error
	StartPolling(ctx context.Context) error
}

// Engine is the action engine surface the API drives
type Engine interface {
	Execute(ctx context.Context, a actions.Action) actions.Result
	Cancel()
	IsExecuting() bool
	History() []actions.HistoryEntry
	ClearHistory()
}

// Server holds the API dependencies. Binder and Broker may be nil.
type Server struct {
	Device Device
	Engine Engine
	Binder *binder.Binder
	Broker *notify.Broker
}

// Routes returns the API handler
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/status", s.handleStatus)
	r.Get("/devices", s.handleDevices)
	r.Post("/device/connect", s.handleConnect)
	r.Post("/device/disconnect", s.handleDisconnect)
	r.Put("/device/brightness", s.handleBrightness)
	r.Put("/buttons/{index}/image", s.handleButtonImage)
	r.Delete("/buttons/{index}", s.handleClearButton)
	r.Delete("/buttons", s.handleClearButtons)
	r.Post("/actions/execute", s.handleExecute)
	r.Post("/actions/cancel", s.handleCancel)
	r.Get("/actions/history", s.handleHistory)
	r.Delete("/actions/history", s.handleClearHistory)
	r.Get("/events", s.handleEvents)
	return r
}

// errorResponse is the body of every error reply
type errorResponse struct {
	Error string `json:"error"`
}

// StatusCode maps a device error to an HTTP status
func StatusCode(err error) int {
	switch {
	case errors.Is(err, device.ErrDeviceNotFound):
		return http.StatusNotFound
	case errors.Is(err, device.ErrNotConnected),
		errors.Is(err, device.ErrNotInitialized),
		errors.Is(err, device.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, device.ErrInvalidData):
		return http.StatusBadRequest
	case errors.Is(err, device.ErrTimeout),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeDeviceError(w http.ResponseWriter, err error) {
	writeError(w, StatusCode(err), err.Error())
}
