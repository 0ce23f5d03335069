// Copyright (c) 2025-2026, the Graft contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewRootCommandRegistersSubcommands(t *testing.T) {
	cmd := newRootCommand()

	names := make([]string, 0)
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}

	assert.ElementsMatch(t, []string{"init", "import", "reseed", "sites"}, names)
}

func TestNewRootCommandDefaultsConfigDirFlag(t *testing.T) {
	cmd := newRootCommand()

	flag := cmd.PersistentFlags().Lookup("config-dir")
	assert.NotNil(t, flag)
	assert.NotEmpty(t, flag.DefValue)
}
