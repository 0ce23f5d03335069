// Copyright (c) 2025-2026, the Graft contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package config

import (
	"fmt"
	"os"
	"strings"
)

// PersistLogSettings rewrites the log-related keys in the on-disk config
// file in place, so a runtime log-level change (e.g. from a CLI flag)
// survives process restarts without clobbering the rest of the file.
func (c *Config) PersistLogSettings(logLevel, logPath string, maxSize, maxBackups int) error {
	data, err := os.ReadFile(c.configPath)
	if err != nil {
		return fmt.Errorf("read config for persist: %w", err)
	}

	updated := updateLogSettingsInTOML(string(data), logLevel, logPath, maxSize, maxBackups)
	if err := os.WriteFile(c.configPath, []byte(updated), 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// updateLogSettingsInTOML rewrites logLevel/logPath/logMaxSize/logMaxBackups
// keys in content, uncommenting them in place when found (even as a
// commented-out "#key = ..." line) and preserving everything else,
// including comments and section ordering. Keys not found before the
// first "[section]" header are inserted just above it; if there is no
// section header, they're appended at the end.
func updateLogSettingsInTOML(content, logLevel, logPath string, maxSize, maxBackups int) string {
	targets := map[string]string{
		"logPath":       fmt.Sprintf("logPath = %q", logPath),
		"logMaxSize":    fmt.Sprintf("logMaxSize = %d", maxSize),
		"logMaxBackups": fmt.Sprintf("logMaxBackups = %d", maxBackups),
		"logLevel":      fmt.Sprintf("logLevel = %q", logLevel),
	}

	lines := strings.Split(content, "\n")
	found := make(map[string]bool, len(targets))
	sectionIdx := -1

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "[") {
			sectionIdx = i
			break
		}

		key, isTarget := matchTOMLKey(trimmed, targets)
		if !isTarget || found[key] {
			continue
		}
		lines[i] = targets[key]
		found[key] = true
	}

	var missing []string
	for key := range targets {
		if !found[key] {
			missing = append(missing, key)
		}
	}
	if len(missing) == 0 {
		return strings.Join(lines, "\n")
	}

	// Insert missing keys in a stable order just above the first section
	// header, or at the end of the file if there is none.
	order := []string{"logPath", "logMaxSize", "logMaxBackups", "logLevel"}
	var insertLines []string
	for _, key := range order {
		if !found[key] {
			insertLines = append(insertLines, targets[key])
		}
	}

	if sectionIdx == -1 {
		lines = append(lines, insertLines...)
		return strings.Join(lines, "\n")
	}

	result := make([]string, 0, len(lines)+len(insertLines))
	result = append(result, lines[:sectionIdx]...)
	result = append(result, insertLines...)
	result = append(result, lines[sectionIdx:]...)
	return strings.Join(result, "\n")
}

// matchTOMLKey reports whether trimmed is a (possibly commented-out)
// assignment of one of the given keys, e.g. "#logPath = ..." or
// "logLevel = \"INFO\"".
func matchTOMLKey(trimmed string, targets map[string]string) (string, bool) {
	body := strings.TrimPrefix(trimmed, "#")
	body = strings.TrimSpace(body)

	for key := range targets {
		if body == key {
			continue
		}
		if strings.HasPrefix(body, key+" ") || strings.HasPrefix(body, key+"=") {
			return key, true
		}
	}
	return "", false
}
