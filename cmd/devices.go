// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/Thermoquad/soomctl/pkg/device"
	"github.com/spf13/cobra"
)

var devicesJSON bool

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List attached macro pads",
	Long: `Enumerate USB devices matching --vid and --pid without opening them
for input. Useful for checking permissions and cabling.`,
	RunE: runDevices,
}

func init() {
	rootCmd.AddCommand(devicesCmd)
	devicesCmd.Flags().BoolVar(&devicesJSON, "json", false, "Print as JSON")
}

func runDevices(cmd *cobra.Command, args []string) error {
	opener := device.NewUSBOpener()
	defer opener.Close()

	infos, err := opener.Enumerate(vendorID, productID)
	if err != nil {
		return fmt.Errorf("enumeration failed: %w", err)
	}

	if devicesJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(infos)
	}

	if len(infos) == 0 {
		fmt.Printf("No devices found (%04x:%04x)\n", vendorID, productID)
		return nil
	}
	for _, info := range infos {
		fmt.Println(formatInfo(info))
	}
	return nil
}

// formatInfo renders one device on a line
func formatInfo(info device.Info) string {
	name := info.Product
	if name == "" {
		name = "(unnamed)"
	}
	line := fmt.Sprintf("%04x:%04x  %-10s %s", info.VendorID, info.ProductID, info.Path, name)
	if info.Manufacturer != "" {
		line += " by " + info.Manufacturer
	}
	if info.SerialNumber != "" {
		line += fmt.Sprintf(" [%s]", info.SerialNumber)
	}
	return line
}
