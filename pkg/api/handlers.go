// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Thermoquad/soomctl/pkg/actions"
	"github.com/Thermoquad/soomctl/pkg/device"
)

// StatusResponse is returned by GET /status
type StatusResponse struct {
	Device    device.Status `json:"device"`
	Executing bool          `json:"executing"`
	Profile   string        `json:"profile,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		Device:    s.Device.Status(),
		Executing: s.Engine.IsExecuting(),
	}
	if s.Binder != nil {
		resp.Profile, _ = s.Binder.ProfileName()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := s.Device.Enumerate()
	if err != nil {
		writeDeviceError(w, err)
		return
	}
	if devices == nil {
		devices = []device.Info{}
	}
	writeJSON(w, http.StatusOK, devices)
}

// handleConnect connects, initializes and starts polling
func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, err := s.Device.Connect(ctx); err != nil {
		writeDeviceError(w, err)
		return
	}
	if err := s.Device.Initialize(ctx); err != nil {
		writeDeviceError(w, err)
		return
	}
	if err := s.Device.StartPolling(ctx); err != nil {
		writeDeviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.Device.Status())
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	if err := s.Device.Disconnect(r.Context()); err != nil {
		writeDeviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.Device.Status())
}

// BrightnessRequest is the body of PUT /device/brightness
type BrightnessRequest struct {
	Level *int `json:"level"`
}

func (s *Server) handleBrightness(w http.ResponseWriter, r *http.Request) {
	var req BrightnessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Level == nil {
		writeError(w, http.StatusBadRequest, "body must be {\"level\": 0-100}")
		return
	}
	if err := s.Device.SetBrightness(r.Context(), *req.Level); err != nil {
		writeDeviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.Device.Status())
}

func buttonIndex(r *http.Request) (int, error) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		return 0, errors.New("button index must be a number")
	}
	return index, nil
}

func (s *Server) handleButtonImage(w http.ResponseWriter, r *http.Request) {
	index, err := buttonIndex(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	image, err := io.ReadAll(io.LimitReader(r.Body, maxImageSize+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(image) > maxImageSize {
		writeError(w, http.StatusRequestEntityTooLarge, "image exceeds 65535 bytes")
		return
	}

	if err := s.Device.SetButtonImage(r.Context(), index, image); err != nil {
		writeDeviceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleClearButton(w http.ResponseWriter, r *http.Request) {
	index, err := buttonIndex(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.Device.ClearButton(r.Context(), &index); err != nil {
		writeDeviceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleClearButtons(w http.ResponseWriter, r *http.Request) {
	if err := s.Device.ClearButton(r.Context(), nil); err != nil {
		writeDeviceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleExecute runs the action in the body and returns its result. A busy
// engine is reported as 409.
func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var env actions.Envelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		writeError(w, http.StatusBadRequest, "invalid action: "+err.Error())
		return
	}
	if env.Action == nil {
		writeError(w, http.StatusBadRequest, "invalid action: missing type")
		return
	}

	res := s.Engine.Execute(r.Context(), env.Action)
	status := http.StatusOK
	if !res.Success && res.Error == actions.BusyMessage {
		status = http.StatusConflict
	}
	writeJSON(w, status, res)
}

// CancelResponse is returned by POST /actions/cancel
type CancelResponse struct {
	Cancelled bool `json:"cancelled"`
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	running := s.Engine.IsExecuting()
	s.Engine.Cancel()
	writeJSON(w, http.StatusAccepted, CancelResponse{Cancelled: running})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	entries := s.Engine.History()
	if entries == nil {
		entries = []actions.HistoryEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	s.Engine.ClearHistory()
	w.WriteHeader(http.StatusNoContent)
}
