// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Thermoquad/soomctl/pkg/profile"
	"github.com/hashicorp/mdns"
	"github.com/spf13/cobra"
)

// haServiceType is the mDNS service Home Assistant announces
const haServiceType = "_home-assistant._tcp"

var (
	discoverTimeout time.Duration
	discoverSave    bool
)

var haDiscoverCmd = &cobra.Command{
	Use:   "ha-discover",
	Short: "Find Home Assistant on the local network",
	Long: `Browse mDNS for Home Assistant instances and print their URLs.

With --save the first instance found becomes the Home Assistant URL in
settings. The token is not touched; set it in settings or SOOMCTL_HA_TOKEN.`,
	RunE: runHADiscover,
}

func init() {
	rootCmd.AddCommand(haDiscoverCmd)
	haDiscoverCmd.Flags().DurationVar(&discoverTimeout, "timeout", 3*time.Second, "How long to listen for announcements")
	haDiscoverCmd.Flags().BoolVar(&discoverSave, "save", false, "Store the first URL found in settings")
}

// discoveredInstance is one Home Assistant announcement
type discoveredInstance struct {
	Name    string
	URL     string
	Version string
}

// instanceFromEntry builds an instance from an mDNS entry. Home Assistant
// publishes its own base_url in the TXT records; the address is the fallback.
func instanceFromEntry(entry *mdns.ServiceEntry) (discoveredInstance, bool) {
	inst := discoveredInstance{Name: strings.TrimSuffix(entry.Name, "."+haServiceType+".local.")}

	for _, field := range entry.InfoFields {
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			continue
		}
		switch key {
		case "base_url", "internal_url":
			if inst.URL == "" && value != "" {
				inst.URL = strings.TrimRight(value, "/")
			}
		case "version":
			inst.Version = value
		}
	}
	if inst.URL != "" {
		return inst, true
	}

	var address string
	if entry.AddrV4 != nil {
		address = entry.AddrV4.String()
	} else if entry.AddrV6 != nil {
		address = fmt.Sprintf("[%s]", entry.AddrV6.String())
	} else {
		return inst, false
	}
	inst.URL = fmt.Sprintf("http://%s:%d", address, entry.Port)
	return inst, true
}

// discoverHomeAssistant collects announcements until timeout
func discoverHomeAssistant(timeout time.Duration) ([]discoveredInstance, error) {
	entriesCh := make(chan *mdns.ServiceEntry, 4)
	done := make(chan error, 1)

	params := mdns.DefaultParams(haServiceType)
	params.Entries = entriesCh
	params.Timeout = timeout

	// Start discovery in background
	go func() {
		defer close(entriesCh)
		done <- mdns.Query(params)
	}()

	seen := make(map[string]bool)
	var found []discoveredInstance
	for entry := range entriesCh {
		inst, ok := instanceFromEntry(entry)
		if !ok || seen[inst.URL] {
			continue
		}
		seen[inst.URL] = true
		slog.Debug("discovered Home Assistant", "name", inst.Name, "url", inst.URL)
		found = append(found, inst)
	}
	if err := <-done; err != nil {
		return found, fmt.Errorf("mDNS query failed: %w", err)
	}
	return found, nil
}

func runHADiscover(cmd *cobra.Command, args []string) error {
	fmt.Printf("Browsing %s for %s...\n", haServiceType, discoverTimeout)

	found, err := discoverHomeAssistant(discoverTimeout)
	if err != nil && len(found) == 0 {
		return err
	}
	if len(found) == 0 {
		fmt.Println("No Home Assistant instances found")
		return nil
	}

	for _, inst := range found {
		line := fmt.Sprintf("%-24s %s", inst.Name, inst.URL)
		if inst.Version != "" {
			line += "  (v" + inst.Version + ")"
		}
		fmt.Println(line)
	}

	if !discoverSave {
		return nil
	}
	store, settings, err := OpenStore()
	if err != nil {
		return err
	}
	if settings.HomeAssistant == nil {
		settings.HomeAssistant = &profile.HomeAssistantSettings{}
	}
	settings.HomeAssistant.URL = found[0].URL
	if err := store.SaveSettings(settings); err != nil {
		return err
	}
	fmt.Printf("Saved %s to settings\n", found[0].URL)
	return nil
}
