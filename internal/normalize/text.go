/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/tidwall/gjson"
)

// taskRe matches a leading "task"/"tasca" keyword with an optional #<digits> reference.
var taskRe = regexp.MustCompile(`(?i)^\W*(?:task|tasca)\b\s*(?:#(\d+))?`)

var storyRe = regexp.MustCompile(`(?i)as\s+.*?\s+i want\s+.*?\s+so that\s+.*`)

type messageStats struct {
	chars     int
	words     int
	written   bool
	reference *int64
}

func analyzeMessage(msg string) messageStats {
	st := messageStats{chars: utf8.RuneCountInString(msg), words: len(strings.Fields(msg))}
	m := taskRe.FindStringSubmatch(msg)
	if m == nil {
		return st
	}
	st.written = true
	if m[1] != "" {
		if v, err := strconv.ParseInt(m[1], 10, 64); err == nil {
			st.reference = &v
		}
	}
	return st
}

// HasStoryPattern reports whether text follows "As a ... I want ... so that ...".
func HasStoryPattern(text string) bool { return storyRe.MatchString(text) }

// SumPoints adds up the value of every {value} record; null or missing values count as zero.
// Anything other than an array yields zero.
func SumPoints(points gjson.Result) float64 {
	if !points.IsArray() {
		return 0
	}
	var total float64
	points.ForEach(func(_, p gjson.Result) bool {
		total += p.Get("value").Float()
		return true
	})
	return total
}

// gjson helpers: every accessor tolerates a missing or null node.

func optInt(r gjson.Result) *int64 {
	if r.Type != gjson.Number {
		return nil
	}
	v := r.Int()
	return &v
}

func optString(obj gjson.Result, field string) *string {
	if !obj.IsObject() {
		return nil
	}
	s := obj.Get(field).String()
	return &s
}

func firstOf(r gjson.Result, paths ...string) gjson.Result {
	for _, p := range paths {
		if v := r.Get(p); v.Exists() && v.Type != gjson.Null {
			return v
		}
	}
	return gjson.Result{}
}

func objectMap(r gjson.Result) map[string]any {
	out := map[string]any{}
	if !r.IsObject() {
		return out
	}
	if m, ok := r.Value().(map[string]any); ok {
		return m
	}
	return out
}

func stringList(r gjson.Result, field string) []string {
	out := []string{}
	r.ForEach(func(_, v gjson.Result) bool {
		if s := v.Get(field).String(); s != "" {
			out = append(out, s)
		}
		return true
	})
	return out
}
