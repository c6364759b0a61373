// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string
	logJSON    bool

	rootCmd = &cobra.Command{
		Use:   "langgate",
		Short: "A language server gateway exposing code intelligence as tools",
		Long: `Langgate spawns a language server for the configured workspace and
exposes its capabilities (symbol search, outline, inspect, references,
completion, rename, diagnostics) as MCP tools over stdio.

All logging goes to stderr; stdout carries the tool protocol.`,
		SilenceUsage: true,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start the gateway and serve tools on stdin/stdout",
		RunE:  runServe,
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the langgate version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "langgate.yaml",
		"Path to the gateway configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Override the configured log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false,
		"Force JSON log output on stderr")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}
