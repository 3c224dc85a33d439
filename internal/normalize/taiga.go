/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package normalize

import (
	"strconv"

	"github.com/HamedShams/agile-ingest/internal/domain"
	"github.com/tidwall/gjson"
)

// TaigaEnvelope is the routing metadata read from a tracker webhook before normalization.
type TaigaEnvelope struct {
	Type      string
	Event     TaigaEvent
	Action    string
	ProjectID int64
	Author    string
}

func (e TaigaEnvelope) IsDelete() bool { return e.Action == "delete" }

func ParseTaigaEnvelope(body []byte) TaigaEnvelope {
	root := gjson.ParseBytes(body)
	t := root.Get("type").String()
	return TaigaEnvelope{
		Type:      t,
		Event:     ParseTaigaEvent(t),
		Action:    root.Get("action").String(),
		ProjectID: firstOf(root, "data.project.id", "data.epic.project.id", "data.project").Int(),
		Author:    root.Get("by.username").String(),
	}
}

// TaigaDeleteKey resolves the natural key a delete action targets without
// normalizing the payload. A missing id yields domain.ErrMissingID.
func TaigaDeleteKey(body []byte) (string, error) {
	root := gjson.ParseBytes(body)
	if ParseTaigaEvent(root.Get("type").String()) == TaigaRelatedUserStory {
		epic, us := root.Get("data.epic.id"), root.Get("data.user_story.id")
		if epic.Type != gjson.Number || us.Type != gjson.Number {
			return "", domain.ErrMissingID
		}
		return domain.RelationKey(epic.Int(), us.Int()), nil
	}
	id := root.Get("data.id")
	switch id.Type {
	case gjson.Number:
		return strconv.FormatInt(id.Int(), 10), nil
	case gjson.String:
		if id.String() != "" {
			return id.String(), nil
		}
	}
	return "", domain.ErrMissingID
}

// Taiga normalizes a non-delete tracker webhook.
func (n *Normalizer) Taiga(body []byte, prj string) Result {
	if !gjson.ValidBytes(body) {
		return unsupported("")
	}
	root := gjson.ParseBytes(body)
	tag := root.Get("type").String()
	ev := ParseTaigaEvent(tag)
	if ev == TaigaUnknown {
		return unsupported(tag)
	}
	data := root.Get("data")
	c := taigaCommon{
		event:  tag,
		action: root.Get("action").String(),
		by:     root.Get("by.username").String(),
		team:   data.Get("project.name").String(),
		prj:    prj,
	}

	var doc domain.Document
	switch ev {
	case TaigaIssue:
		doc = n.taigaIssue(data, c, webhookShape)
	case TaigaTask:
		doc = n.taigaTask(data, c, webhookShape)
	case TaigaUserStory:
		doc = n.taigaUserStory(data, c, webhookShape)
	case TaigaEpic:
		doc = n.taigaEpic(data, c, webhookShape)
	case TaigaRelatedUserStory:
		doc = n.taigaRelation(data, c)
	}
	if doc == nil {
		return ignored(tag, ev.Entity(), "missing object id")
	}
	return Result{Outcome: OutcomeDocuments, Event: tag, Entity: ev.Entity(), Documents: []domain.Document{doc}, Author: c.by}
}

type taigaCommon struct {
	event  string
	action string
	by     string
	team   string
	prj    string
}

// shape names where a field lives in the webhook delta vs. the list API record.
type shape struct {
	status    string
	assignee  string
	milestone string // object holding the milestone details
	msID      string // milestone id
	userStory string
	project   string
	severity  string
	priority  string
	issueType string
}

var (
	webhookShape = shape{
		status: "status", assignee: "assigned_to", milestone: "milestone", msID: "milestone.id",
		userStory: "user_story.id", project: "project", severity: "severity", priority: "priority", issueType: "type",
	}
	listShape = shape{
		status: "status_extra_info", assignee: "assigned_to_extra_info", milestone: "milestone_extra_info", msID: "milestone",
		userStory: "user_story", project: "project_extra_info", severity: "severity_extra_info", priority: "priority_extra_info", issueType: "type_extra_info",
	}
)

func isClosed(data gjson.Result, sh shape) bool {
	return firstOf(data, sh.status+".is_closed", "is_closed").Bool()
}

func (n *Normalizer) milestone(data gjson.Result, sh shape) domain.MilestoneInfo {
	m := data.Get(sh.milestone)
	return domain.MilestoneInfo{
		MilestoneID:           optInt(data.Get(sh.msID)),
		MilestoneName:         m.Get("name").String(),
		MilestoneClosed:       firstOf(m, "closed", "is_closed").Bool(),
		MilestoneCreatedDate:  n.ts(m.Get("created_date").String()),
		MilestoneModifiedDate: n.ts(m.Get("modified_date").String()),
		EstimatedStart:        m.Get("estimated_start").String(),
		EstimatedFinish:       m.Get("estimated_finish").String(),
	}
}

func (n *Normalizer) taigaIssue(data gjson.Result, c taigaCommon, sh shape) domain.Document {
	id := data.Get("id")
	if id.Type != gjson.Number {
		return nil
	}
	return domain.Issue{
		IssueID:      id.Int(),
		Reference:    data.Get("ref").Int(),
		Subject:      data.Get("subject").String(),
		Status:       data.Get(sh.status + ".name").String(),
		Description:  data.Get("description").String(),
		AssignedTo:   optString(data.Get(sh.assignee), "username"),
		AssignedBy:   c.by,
		CreatedDate:  n.ts(data.Get("created_date").String()),
		ModifiedDate: n.ts(data.Get("modified_date").String()),
		FinishedDate: n.ts(data.Get("finished_date").String()),
		DueDate:      data.Get("due_date").String(),
		IsClosed:     isClosed(data, sh),
		Severity:     data.Get(sh.severity + ".name").String(),
		Priority:     data.Get(sh.priority + ".name").String(),
		Type:         data.Get(sh.issueType + ".name").String(),
		EventType:    "issue",
		ActionType:   c.action,
		Team:         c.team,
		Project:      c.prj,
	}
}

func (n *Normalizer) taigaTask(data gjson.Result, c taigaCommon, sh shape) domain.Document {
	id := data.Get("id")
	if id.Type != gjson.Number {
		return nil
	}
	return domain.Task{
		TaskID:           id.Int(),
		Reference:        data.Get("ref").Int(),
		UserStoryID:      optInt(data.Get(sh.userStory)),
		Subject:          data.Get("subject").String(),
		Status:           data.Get(sh.status + ".name").String(),
		IsClosed:         isClosed(data, sh),
		AssignedTo:       optString(data.Get(sh.assignee), "username"),
		AssignedBy:       c.by,
		CreatedDate:      n.ts(data.Get("created_date").String()),
		ModifiedDate:     n.ts(data.Get("modified_date").String()),
		FinishedDate:     n.ts(data.Get("finished_date").String()),
		MilestoneInfo:    n.milestone(data, sh),
		CustomAttributes: objectMap(data.Get("custom_attributes_values")),
		EventType:        "task",
		ActionType:       c.action,
		Team:             c.team,
		Project:          c.prj,
	}
}

func (n *Normalizer) taigaUserStory(data gjson.Result, c taigaCommon, sh shape) domain.Document {
	id := data.Get("id")
	if id.Type != gjson.Number {
		return nil
	}
	points := data.Get("points")
	total := SumPoints(points)
	if !points.IsArray() {
		total = data.Get("total_points").Float()
	}
	return domain.UserStory{
		UserStoryID:      id.Int(),
		Reference:        data.Get("ref").Int(),
		Subject:          data.Get("subject").String(),
		Status:           data.Get(sh.status + ".name").String(),
		IsClosed:         isClosed(data, sh),
		AssignedTo:       optString(data.Get(sh.assignee), "username"),
		AssignedBy:       c.by,
		CreatedDate:      n.ts(data.Get("created_date").String()),
		ModifiedDate:     n.ts(data.Get("modified_date").String()),
		FinishedDate:     n.ts(firstOf(data, "finish_date", "finished_date").String()),
		TotalPoints:      total,
		Pattern:          HasStoryPattern(data.Get("description").String()),
		Priority:         data.Get("custom_attributes_values.Priority").String(),
		MilestoneInfo:    n.milestone(data, sh),
		CustomAttributes: objectMap(data.Get("custom_attributes_values")),
		EventType:        "userstory",
		ActionType:       c.action,
		Team:             c.team,
		Project:          c.prj,
	}
}

// Progress and total are best-effort: taiga does not compute them reliably.
func (n *Normalizer) taigaEpic(data gjson.Result, c taigaCommon, sh shape) domain.Document {
	id := data.Get("id")
	if id.Type != gjson.Number {
		return nil
	}
	return domain.Epic{
		EpicID:       id.Int(),
		Reference:    data.Get("ref").Int(),
		ProjectID:    firstOf(data, sh.project+".id", "project").Int(),
		Subject:      data.Get("subject").String(),
		Status:       data.Get(sh.status + ".name").String(),
		IsClosed:     isClosed(data, sh),
		AssignedBy:   c.by,
		CreatedDate:  n.ts(data.Get("created_date").String()),
		ModifiedDate: n.ts(data.Get("modified_date").String()),
		Progress:     firstOf(data, "user_stories_counts.progress", "progress").Float(),
		Total:        firstOf(data, "user_stories_counts.total", "total").Float(),
		EventType:    "epic",
		ActionType:   c.action,
		Team:         c.team,
		Project:      c.prj,
	}
}

func (n *Normalizer) taigaRelation(data gjson.Result, c taigaCommon) domain.Document {
	epic, us := data.Get("epic.id"), data.Get("user_story.id")
	if epic.Type != gjson.Number || us.Type != gjson.Number {
		return nil
	}
	team := c.team
	if team == "" {
		team = data.Get("epic.project.name").String()
	}
	return domain.RelatedUserStory{
		EpicID:       epic.Int(),
		EpicName:     data.Get("epic.subject").String(),
		UserStoryID:  us.Int(),
		Reference:    data.Get("epic.ref").Int(),
		AssignedTo:   data.Get("assigned_to.username").String(),
		FinishedDate: n.ts(data.Get("finished_date").String()),
		EventType:    "relateduserstory",
		ActionType:   c.action,
		Team:         team,
		Project:      c.prj,
	}
}
