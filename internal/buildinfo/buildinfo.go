// Copyright (c) 2025-2026, the Graft contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package buildinfo exposes version metadata stamped in at link time via
// -ldflags, along with the HTTP User-Agent Graft presents to site and
// client adapters.
package buildinfo

import (
	"encoding/json"
	"fmt"
	"runtime"
)

// Version, Commit, and Date are overridden at build time with:
//
//	-ldflags "-X github.com/graftnet/graft/internal/buildinfo.Version=... \
//	           -X github.com/graftnet/graft/internal/buildinfo.Commit=... \
//	           -X github.com/graftnet/graft/internal/buildinfo.Date=..."
var (
	Version = "dev"
	Commit  = ""
	Date    = ""
)

// UserAgent is the HTTP User-Agent Graft sends on every outbound request to
// a site or download client.
var UserAgent string

func init() {
	UserAgent = fmt.Sprintf("graft/%s (%s; %s)", Version, runtime.GOOS, runtime.GOARCH)
}

// String renders a multi-line build summary: version, commit and build date.
func String() string {
	return fmt.Sprintf("Version: %s\nCommit: %s\nBuild date: %s\n", Version, Commit, Date)
}

type info struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

// JSON renders the build summary (version, commit, date) as a JSON object.
func JSON() ([]byte, error) {
	return json.Marshal(info{Version: Version, Commit: Commit, Date: Date})
}
