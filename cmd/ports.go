// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
	"go.uber.org/zap"
)

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List serial ports available for capture",
	RunE:  runPorts,
}

func init() {
	rootCmd.AddCommand(portsCmd)
}

func runPorts(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		logger.Debug("detailed port list unavailable", zap.Error(err))
		names, err := serial.GetPortsList()
		if err != nil {
			return fmt.Errorf("failed to list serial ports: %w", err)
		}
		for _, name := range names {
			fmt.Fprintln(out, name)
		}
		if len(names) == 0 {
			fmt.Fprintln(out, "No serial ports found")
		}
		return nil
	}

	if len(details) == 0 {
		fmt.Fprintln(out, "No serial ports found")
		return nil
	}
	for _, p := range details {
		if p.IsUSB {
			fmt.Fprintf(out, "%-20s USB %s:%s %s %s\n", p.Name, p.VID, p.PID, p.Product, p.SerialNumber)
		} else {
			fmt.Fprintln(out, p.Name)
		}
	}
	return nil
}
