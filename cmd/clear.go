// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/Thermoquad/soomctl/pkg/device"
	"github.com/spf13/cobra"
)

var clearCmd = &cobra.Command{
	Use:   "clear [button]",
	Short: "Blank one LCD button, or all of them",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runClear,
}

func init() {
	rootCmd.AddCommand(clearCmd)
}

func runClear(cmd *cobra.Command, args []string) error {
	var index *int
	if len(args) == 1 {
		i, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid button index %q", args[0])
		}
		index = &i
	}

	err := withDevice(func(ctx context.Context, m *device.Manager) error {
		return m.ClearButton(ctx, index)
	})
	if err != nil {
		return err
	}
	if index == nil {
		fmt.Println("Cleared all buttons")
	} else {
		fmt.Printf("Cleared button %d\n", *index)
	}
	return nil
}
