/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package normalize

import (
	"strings"

	"github.com/HamedShams/agile-ingest/internal/domain"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

// ActivityTypes are the fixed columns of the team time-tracking sheet, in
// the order the configRange values arrive.
var ActivityTypes = []string{
	"Reunió d'equip",
	"Reunió focal",
	"Classe passiva",
	"Formació",
	"Desenvolupament",
	"Gestió de projecte",
	"Documentació",
	"Presentació",
}

// Activity normalizes one spreadsheet row. Hours beyond the cleaned member
// list are discarded; missing activity values count as zero.
func (n *Normalizer) Activity(body []byte, prj, qualityModel string) domain.ActivityLog {
	root := gjson.ParseBytes(body)

	members := []string{}
	root.Get("members").ForEach(func(_, m gjson.Result) bool {
		if m.Type == gjson.String {
			if s := strings.TrimSpace(m.String()); s != "" {
				members = append(members, s)
			}
		}
		return true
	})
	hours := root.Get("memberHours").Array()
	memberHours := make(map[string]float64, len(members))
	for i, m := range members {
		if i >= len(hours) {
			break
		}
		memberHours[m] = hours[i].Float()
	}

	cfg := root.Get("configRange").Array()
	activityHours := make(map[string]float64, len(ActivityTypes))
	var total float64
	for i, name := range ActivityTypes {
		var v float64
		if i < len(cfg) {
			v = cfg[i].Float()
		}
		activityHours[name] = v
		total += v
	}

	ts := root.Get("timestamp").String()
	id := ts
	if id == "" {
		id = uuid.NewString()
	}
	return domain.ActivityLog{
		ID:            id,
		Timestamp:     n.ts(ts),
		Team:          prj,
		QualityModel:  qualityModel,
		Iteration:     root.Get("iteration").String(),
		ActivityDate:  n.ts(root.Get("date").String()),
		DurationH:     root.Get("duration").Float(),
		ActivityType:  root.Get("activity").String(),
		Comment:       root.Get("comment").String(),
		Epic:          root.Get("epic").String(),
		Members:       members,
		MemberHours:   memberHours,
		ActivityHours: activityHours,
		TotalHours:    total,
	}
}
