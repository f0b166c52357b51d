// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// deckmon - DCC Bus Monitor
//
// A CLI tool for passively monitoring and decoding the front panel and deck
// controller buses of a DCC recorder in human-readable format.

package main

import (
	"os"

	"github.com/Thermoquad/deckmon/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
