// Copyright (c) 2025-2026, the Graft contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package redact strips sensitive query parameters out of errors before
// they reach a log line. Site adapters embed passkeys and tracker cookies
// in request URLs; a *url.Error from a failed request carries that URL
// verbatim, so it must be scrubbed before logging or returning to a caller.
package redact

import (
	"errors"
	"net/url"
)

var sensitiveParams = []string{
	"apikey", "api_key", "passkey", "token", "password", "auth", "secret",
}

// URLError returns a copy of err with any *url.Error's query parameters
// named in sensitiveParams replaced with "REDACTED". Non-url.Error values,
// including nil, are returned unchanged.
func URLError(err error) error {
	if err == nil {
		return nil
	}

	var urlErr *url.Error
	if !errors.As(err, &urlErr) {
		return err
	}

	redacted := *urlErr
	redacted.URL = redactURLString(urlErr.URL)
	return &redacted
}

func redactURLString(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	query := parsed.Query()
	changed := false
	for _, key := range sensitiveParams {
		if _, ok := query[key]; ok {
			query.Set(key, "REDACTED")
			changed = true
		}
	}

	if !changed {
		return raw
	}

	parsed.RawQuery = query.Encode()
	return parsed.String()
}
