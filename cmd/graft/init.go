// Copyright (c) 2025-2026, the Graft contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"github.com/graftnet/graft/internal/domain"
)

func newInitCommand(configDir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Scaffold a default config.toml in --config-dir, if one doesn't already exist",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := os.MkdirAll(*configDir, 0o755); err != nil {
				return fmt.Errorf("create config dir: %w", err)
			}

			configPath := *configDir + "/config.toml"
			if _, err := os.Stat(configPath); err == nil {
				cmd.Printf("%s already exists, leaving it untouched\n", configPath)
				return nil
			}

			cfg := domain.DefaultConfig()
			cfg.DataDir = *configDir
			body, err := toml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("marshal default config: %w", err)
			}
			if err := os.WriteFile(configPath, body, 0o644); err != nil {
				return fmt.Errorf("write config: %w", err)
			}

			cmd.Printf("wrote %s\n", configPath)
			return nil
		},
	}
}
