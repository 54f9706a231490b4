// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/Thermoquad/soomctl/pkg/device"
	"github.com/spf13/cobra"
)

var imageCmd = &cobra.Command{
	Use:   "image <button> <file>",
	Short: "Upload an image to an LCD button",
	Long: `Upload an encoded image (JPEG as expected by the pad firmware) to one of
the six LCD buttons, numbered 0-5.

The file is sent as-is; no resizing or conversion is done.`,
	Args: cobra.ExactArgs(2),
	RunE: runImage,
}

func init() {
	rootCmd.AddCommand(imageCmd)
}

func runImage(cmd *cobra.Command, args []string) error {
	index, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid button index %q", args[0])
	}
	data, err := os.ReadFile(args[1])
	if err != nil {
		return err
	}

	err = withDevice(func(ctx context.Context, m *device.Manager) error {
		return m.SetButtonImage(ctx, index, data)
	})
	if err != nil {
		return err
	}
	fmt.Printf("Uploaded %d bytes to button %d\n", len(data), index)
	return nil
}
