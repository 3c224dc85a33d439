/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package main

import (
	"fmt"
	"time"

	"github.com/HamedShams/agile-ingest/internal/domain"
	"github.com/HamedShams/agile-ingest/internal/normalize"
)

const dateOnly = "2006-01-02"

// parseWindow reads the --from-date/--to-date pair. Values without a zone are
// taken in tz; a bare --to-date covers its whole day.
func parseWindow(from, to, tz string) (domain.Window, error) {
	loc, err := normalize.LoadLocation(tz)
	if err != nil {
		return domain.Window{}, err
	}
	var w domain.Window
	if w.Since, err = parseBound(from, loc, false); err != nil {
		return domain.Window{}, fmt.Errorf("--from-date: %w", err)
	}
	if w.Until, err = parseBound(to, loc, true); err != nil {
		return domain.Window{}, fmt.Errorf("--to-date: %w", err)
	}
	if !w.Since.IsZero() && !w.Until.IsZero() && w.Until.Before(w.Since) {
		return domain.Window{}, fmt.Errorf("--to-date %s is before --from-date %s", to, from)
	}
	return w, nil
}

func parseBound(s string, loc *time.Location, endOfDay bool) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation("2006-01-02T15:04:05", s, loc); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation(dateOnly, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("unrecognized date %q", s)
	}
	if endOfDay {
		t = t.AddDate(0, 0, 1).Add(-time.Millisecond)
	}
	return t, nil
}
