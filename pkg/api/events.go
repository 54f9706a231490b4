// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package api

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Thermoquad/soomctl/pkg/notify"
)

const (
	eventBuffer  = 64
	writeTimeout = 5 * time.Second
	pingInterval = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// handleEvents streams notifications as JSON text frames. The optional
// topics query parameter is a comma separated topic list.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.Broker == nil {
		writeError(w, http.StatusServiceUnavailable, "event stream unavailable")
		return
	}

	topics := []string{notify.TopicAll}
	if q := r.URL.Query().Get("topics"); q != "" {
		topics = strings.Split(q, ",")
	}

	ch := make(chan notify.Message, eventBuffer)
	for _, t := range topics {
		s.Broker.Subscribe(strings.TrimSpace(t), ch)
	}
	defer func() {
		for _, t := range topics {
			s.Broker.Unsubscribe(strings.TrimSpace(t), ch)
		}
	}()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("failed to upgrade connection", "error", err)
		return
	}
	defer conn.Close()

	slog.Info("event stream connected", "addr", r.RemoteAddr, "topics", topics)
	defer slog.Info("event stream disconnected", "addr", r.RemoteAddr)

	// Reads only detect the peer closing
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					slog.Warn("event stream read error", "error", err)
				}
				return
			}
		}
	}()

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case msg := <-ch:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(msg); err != nil {
				slog.Warn("event stream write failed", "error", err)
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
