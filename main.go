// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// soomctl - SOOMFON macro pad driver and action engine
//
// A CLI tool for driving SOOMFON stream controllers over USB and running
// the actions bound to their buttons and knobs.

package main

import (
	"os"

	"github.com/Thermoquad/soomctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
