/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package domain

import "time"

// Window is an inclusive [Since, Until] range; a zero bound is open.
type Window struct {
	Since time.Time
	Until time.Time
}

func (w Window) Unbounded() bool { return w.Since.IsZero() && w.Until.IsZero() }

func (w Window) Contains(t time.Time) bool {
	if !w.Since.IsZero() && t.Before(w.Since) {
		return false
	}
	if !w.Until.IsZero() && t.After(w.Until) {
		return false
	}
	return true
}

// String renders the window for reports: "all time" or "from X to Y".
func (w Window) String() string {
	if w.Unbounded() {
		return "all time"
	}
	bound := func(t time.Time) string {
		if t.IsZero() {
			return "…"
		}
		return t.Format(time.RFC3339)
	}
	return "from " + bound(w.Since) + " to " + bound(w.Until)
}
