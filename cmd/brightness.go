// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/Thermoquad/soomctl/pkg/device"
	"github.com/Thermoquad/soomctl/pkg/soomfon"
	"github.com/spf13/cobra"
)

var saveBrightness bool

var brightnessCmd = &cobra.Command{
	Use:   "brightness <0-100>",
	Short: "Set the display brightness",
	Long: `Set the LCD brightness. Values outside 0-100 are clamped.

With --save the level is also stored in settings and used on every
future connect.`,
	Args: cobra.ExactArgs(1),
	RunE: runBrightness,
}

func init() {
	rootCmd.AddCommand(brightnessCmd)
	brightnessCmd.Flags().BoolVar(&saveBrightness, "save", false, "Store the level in settings")
}

func runBrightness(cmd *cobra.Command, args []string) error {
	level, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid brightness %q", args[0])
	}
	level = soomfon.ClampBrightness(level)

	err = withDevice(func(ctx context.Context, m *device.Manager) error {
		return m.SetBrightness(ctx, level)
	})
	if err != nil {
		return err
	}
	fmt.Printf("Brightness set to %d\n", level)

	if !saveBrightness {
		return nil
	}
	store, settings, err := OpenStore()
	if err != nil {
		return err
	}
	settings.Brightness = level
	return store.SaveSettings(settings)
}
