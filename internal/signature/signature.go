/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */

// Package signature verifies webhook bodies against the keyed hashes the
// platforms send alongside them. Hashes are always computed over the raw bytes.
package signature

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"strings"
)

const (
	GitHubHeader = "X-Hub-Signature-256"
	TaigaHeader  = "X-TAIGA-WEBHOOK-SIGNATURE"

	githubPrefix = "sha256="
)

// GitHub checks a "sha256=<hex>" header value.
func GitHub(secret, body []byte, header string) bool {
	if !strings.HasPrefix(header, githubPrefix) {
		return false
	}
	return verify(sha256.New, secret, body, strings.TrimPrefix(header, githubPrefix))
}

// Taiga checks an unprefixed HMAC-SHA1 hex digest.
func Taiga(secret, body []byte, header string) bool {
	return verify(sha1.New, secret, body, header)
}

// SignGitHub and SignTaiga produce header values; used by tests and tooling.
func SignGitHub(secret, body []byte) string {
	return githubPrefix + sum(sha256.New, secret, body)
}

func SignTaiga(secret, body []byte) string { return sum(sha1.New, secret, body) }

func sum(h func() hash.Hash, secret, body []byte) string {
	m := hmac.New(h, secret)
	m.Write(body)
	return hex.EncodeToString(m.Sum(nil))
}

func verify(h func() hash.Hash, secret, body []byte, got string) bool {
	if got == "" {
		return false
	}
	want := sum(h, secret, body)
	return hmac.Equal([]byte(strings.ToLower(got)), []byte(want))
}
