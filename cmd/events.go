// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Thermoquad/soomctl/pkg/notify"
	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

const defaultEventsURL = "ws://127.0.0.1:8765/events"

var (
	eventsDuration int
	eventsTopics   []string
)

var eventsCmd = &cobra.Command{
	Use:   "events [url]",
	Short: "Follow the event stream of a running serve or run",
	Long: `Connect to the /events WebSocket of a running daemon and print each
notification as it arrives. The URL defaults to ` + defaultEventsURL + `;
http and https URLs are accepted and rewritten to ws and wss.

Exit codes:
  0 - Stream followed for the whole duration, or interrupted
  1 - Stream closed by the daemon
  2 - Connection error`,
	Args: cobra.MaximumNArgs(1),
	RunE: runEvents,
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.Flags().IntVar(&eventsDuration, "duration", 0, "Stop after this many seconds (0 follows until interrupted)")
	eventsCmd.Flags().StringSliceVar(&eventsTopics, "topics", nil, "Only these topics, e.g. input.button,action.result")
}

// eventsURL normalizes a daemon address into an /events WebSocket URL
func eventsURL(raw string, topics []string) (string, error) {
	if raw == "" {
		raw = defaultEventsURL
	}
	if !strings.Contains(raw, "://") {
		raw = "ws://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid URL: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/events"
	}
	if len(topics) > 0 {
		q := u.Query()
		q.Set("topics", strings.Join(topics, ","))
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// formatNotification renders one message as a log line
func formatNotification(msg notify.Message) string {
	ts := time.UnixMilli(msg.Timestamp).Format("15:04:05.000")
	if msg.Payload == nil {
		return fmt.Sprintf("[%s] %s", ts, msg.Topic)
	}
	payload, err := json.Marshal(msg.Payload)
	if err != nil {
		return fmt.Sprintf("[%s] %s (unprintable payload)", ts, msg.Topic)
	}
	return fmt.Sprintf("[%s] %-16s %s", ts, msg.Topic, payload)
}

func runEvents(cmd *cobra.Command, args []string) error {
	var raw string
	if len(args) == 1 {
		raw = args[0]
	}
	target, err := eventsURL(raw, eventsTopics)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if eventsDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(eventsDuration)*time.Second)
		defer cancel()
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, target, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("Following %s\n\n", target)

	received := 0
	readErr := make(chan error, 1)
	messages := make(chan notify.Message, 16)
	go func() {
		for {
			var msg notify.Message
			if err := conn.ReadJSON(&msg); err != nil {
				readErr <- err
				return
			}
			messages <- msg
		}
	}()

	for {
		select {
		case msg := <-messages:
			received++
			fmt.Println(formatNotification(msg))

		case err := <-readErr:
			fmt.Printf("\n--- %d notifications received ---\n", received)
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				fmt.Println("Stream closed by daemon")
			} else {
				fmt.Printf("Stream error: %v\n", err)
			}
			os.Exit(1)

		case <-ctx.Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			fmt.Printf("\n--- %d notifications received ---\n", received)
			return nil
		}
	}
}
