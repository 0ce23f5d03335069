// Copyright (c) 2025-2026, the Graft contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

import "errors"

// ErrorKind classifies a failure for retry and reporting purposes. Every
// error Graft returns across a client/site/matching boundary wraps one of
// these sentinels so callers can branch with errors.Is instead of string
// matching.
type ErrorKind error

var (
	// ErrConfig marks a misconfiguration: a bad URL, an unknown template.
	// Never retried.
	ErrConfig ErrorKind = errors.New("configuration error")

	// ErrAuthFailed marks a rejected credential: a bad passkey, an expired
	// cookie, a client login failure. Never retried automatically.
	ErrAuthFailed ErrorKind = errors.New("authentication failed")

	// ErrUnreachable marks a transport-level failure: connection refused,
	// DNS failure, timeout. Retried per the executor's backoff schedule.
	ErrUnreachable ErrorKind = errors.New("unreachable")

	// ErrRateLimited marks a 429 or tracker-specific throttle response.
	// Retried per the executor's backoff schedule.
	ErrRateLimited ErrorKind = errors.New("rate limited")

	// ErrNotFound marks a lookup that turned up nothing: no matching
	// torrent on a site or in a client, no site row for an index entry's
	// site id. Never retried.
	ErrNotFound ErrorKind = errors.New("not found")

	// ErrMalformedTorrent marks a .torrent payload that failed bencode
	// validation or metainfo parsing. Never retried.
	ErrMalformedTorrent ErrorKind = errors.New("malformed torrent")

	// ErrAddFailed marks a rejected add-torrent call on a target client:
	// duplicate hash, disk full, client-side validation failure.
	ErrAddFailed ErrorKind = errors.New("add torrent failed")

	// ErrIndexIO marks a failure reading or writing the local index store.
	ErrIndexIO ErrorKind = errors.New("index io error")

	// ErrCancelled marks an operation aborted by context cancellation.
	ErrCancelled ErrorKind = errors.New("cancelled")
)

// Retryable reports whether an error wrapping one of the ErrorKind
// sentinels should be retried by the reseed executor's backoff policy
// (spec §7: only Unreachable and RateLimited are retried).
func Retryable(err error) bool {
	return errors.Is(err, ErrUnreachable) || errors.Is(err, ErrRateLimited)
}

// Encryptor is the credential-at-rest boundary: site passkeys/cookies and
// client passwords are encrypted with it before being written to the
// database, and decrypted only when a client/site adapter is constructed.
type Encryptor interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}
