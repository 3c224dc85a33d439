/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package normalize

import (
	"time"
	_ "time/tzdata"
)

// StorageLayout is the millisecond-precision format used for every stored timestamp.
const StorageLayout = "2006-01-02T15:04:05.000Z07:00"

func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		name = "Europe/Madrid"
	}
	return time.LoadLocation(name)
}

// Localize converts an ISO-8601 timestamp into loc. Empty input stays empty and
// anything that is not a full timestamp (for instance a bare date) is returned as is.
func Localize(s string, loc *time.Location) string {
	if s == "" {
		return s
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return s
	}
	return t.In(loc).Truncate(time.Millisecond).Format(StorageLayout)
}

func (n *Normalizer) ts(s string) string { return Localize(s, n.loc) }
