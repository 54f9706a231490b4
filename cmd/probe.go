// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/Thermoquad/soomctl/pkg/device"
	"github.com/Thermoquad/soomctl/pkg/soomfon"
	"github.com/spf13/cobra"
)

var probeTimeout int

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Wait for one input event from the pad",
	Long: `Connect to the pad and wait until a button or knob produces a valid
input event. Press any control after starting the probe.

Exit codes:
  0 - An input event was received
  1 - Timeout reached without receiving an event
  2 - Connection error`,
	RunE: runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)
	probeCmd.Flags().IntVar(&probeTimeout, "timeout", 10, "Timeout in seconds to wait for an event")
}

func runProbe(cmd *cobra.Command, args []string) error {
	_, settings, err := OpenStore()
	if err != nil {
		return err
	}
	cfg := managerConfig(settings)
	cfg.KeepAlive = 0
	m, closeManager := OpenManager(cfg)

	events := make(chan soomfon.Event, 1)
	var rejected atomic.Int32
	m.OnEvent(func(ev soomfon.Event) {
		select {
		case events <- ev:
		default:
		}
	})
	m.OnRaw(func(data []byte) {
		if len(soomfon.ValidateAck(data)) > 0 {
			rejected.Add(1)
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(probeTimeout)*time.Second)
	defer cancel()

	info, err := BringUp(ctx, m)
	if err != nil {
		closeManager()
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}

	fmt.Printf("soomctl - Probe\n")
	fmt.Printf("Device: %s\n", formatInfo(info))
	fmt.Printf("Timeout: %d seconds\n", probeTimeout)
	fmt.Printf("Waiting for input...\n\n")

	code := 0
	select {
	case ev := <-events:
		if n := rejected.Load(); n > 0 {
			fmt.Printf("(skipped %d invalid reports first)\n", n)
		}
		fmt.Printf("SUCCESS: %s\n", soomfon.FormatEvent(ev))
	case <-ctx.Done():
		if m.State() == device.StateError {
			fmt.Fprintf(os.Stderr, "Read error: %v\n", m.Status().LastError)
			code = 2
		} else {
			fmt.Fprintf(os.Stderr, "TIMEOUT: No input received within %d seconds\n", probeTimeout)
			code = 1
		}
	}

	closeManager()
	if code != 0 {
		os.Exit(code)
	}
	return nil
}
