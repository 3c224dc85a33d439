/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package normalize

import (
	"fmt"

	"github.com/HamedShams/agile-ingest/internal/domain"
	"github.com/tidwall/gjson"
)

// Provenance recorded on documents rebuilt from the list API.
const (
	BackfillAuthor = "backfill"
	BackfillAction = "import"
)

// TaigaListDocument converts one record from a tracker list endpoint into the
// canonical document the webhook path would produce. Derived fields share
// their helpers with the webhook normalizer; only assigned_by and action_type
// differ, carrying the backfill provenance.
func (n *Normalizer) TaigaListDocument(ev TaigaEvent, record gjson.Result, prj string) (domain.Document, error) {
	c := taigaCommon{
		event:  ev.String(),
		action: BackfillAction,
		by:     BackfillAuthor,
		team:   record.Get(listShape.project + ".name").String(),
		prj:    prj,
	}
	var doc domain.Document
	switch ev {
	case TaigaTask:
		doc = n.taigaTask(record, c, listShape)
	case TaigaIssue:
		doc = n.taigaIssue(record, c, listShape)
	case TaigaEpic:
		doc = n.taigaEpic(record, c, listShape)
	case TaigaUserStory:
		doc = n.taigaUserStory(record, c, listShape)
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownEntity, ev)
	}
	if doc == nil {
		return nil, domain.ErrMissingID
	}
	return doc, nil
}

// TaigaListEndpoint maps a backfillable event to its list endpoint path.
func TaigaListEndpoint(ev TaigaEvent) (string, bool) {
	switch ev {
	case TaigaTask:
		return "tasks", true
	case TaigaIssue:
		return "issues", true
	case TaigaEpic:
		return "epics", true
	case TaigaUserStory:
		return "userstories", true
	}
	return "", false
}
