package normalize

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/HamedShams/agile-ingest/internal/domain"
	"github.com/tidwall/gjson"
)

func madrid(t *testing.T) *time.Location {
	t.Helper()
	loc, err := LoadLocation("Europe/Madrid")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	return loc
}

type statsFunc func(ctx context.Context, repo, sha string) domain.CommitStats

func (f statsFunc) CommitStats(ctx context.Context, _, repo, sha string) domain.CommitStats {
	return f(ctx, repo, sha)
}

func TestAnalyzeMessage(t *testing.T) {
	cases := []struct {
		msg     string
		written bool
		ref     *int64
		words   int
	}{
		{"task #42 fix bug", true, ptr(42), 4},
		{"no task mentioned", false, nil, 3},
		{"Tasca #7: arreglar login", true, ptr(7), 4},
		{"TASK: cleanup", true, nil, 2},
		{"", false, nil, 0},
	}
	for _, c := range cases {
		st := analyzeMessage(c.msg)
		if st.written != c.written {
			t.Fatalf("%q: written=%v want %v", c.msg, st.written, c.written)
		}
		if !reflect.DeepEqual(st.reference, c.ref) {
			t.Fatalf("%q: reference=%v want %v", c.msg, st.reference, c.ref)
		}
		if st.words != c.words {
			t.Fatalf("%q: words=%d want %d", c.msg, st.words, c.words)
		}
	}
	if st := analyzeMessage("añadir ñ"); st.chars != 8 {
		t.Fatalf("char count should be in runes, got %d", st.chars)
	}
}

func ptr(v int64) *int64 { return &v }

func TestSumPoints(t *testing.T) {
	got := SumPoints(gjson.Parse(`[{"value": 3}, {"value": null}, {"value": 5}]`))
	if got != 8 {
		t.Fatalf("expected 8, got %v", got)
	}
	if SumPoints(gjson.Parse(`[{"role": 1}]`)) != 0 {
		t.Fatalf("missing value should count as zero")
	}
	if SumPoints(gjson.Parse(`{"1": 4}`)) != 0 {
		t.Fatalf("non-list points should sum to zero")
	}
}

func TestHasStoryPattern(t *testing.T) {
	if !HasStoryPattern("As a student I want to track tasks so that I stay organized") {
		t.Fatalf("expected pattern match")
	}
	if !HasStoryPattern("context first. as a professor i want grades so that I can evaluate") {
		t.Fatalf("expected substring match")
	}
	if HasStoryPattern("Random text") {
		t.Fatalf("unexpected pattern match")
	}
}

func TestLocalize(t *testing.T) {
	loc := madrid(t)
	cases := map[string]string{
		"2024-06-01T10:00:00Z":             "2024-06-01T12:00:00.000+02:00",
		"2024-01-15T10:00:00.123456Z":      "2024-01-15T11:00:00.123+01:00",
		"2024-06-01T12:00:00.999999+02:00": "2024-06-01T12:00:00.999+02:00",
		"":                                 "",
		"2024-06-01":                       "2024-06-01",
	}
	for in, want := range cases {
		if got := Localize(in, loc); got != want {
			t.Fatalf("Localize(%q)=%q want %q", in, got, want)
		}
	}
}

func TestGitHubPushOneDocumentPerCommit(t *testing.T) {
	var asked []string
	n := New(madrid(t), statsFunc(func(_ context.Context, repo, sha string) domain.CommitStats {
		asked = append(asked, repo+"@"+sha)
		if sha == "b2" {
			return domain.CommitStats{}
		}
		return domain.CommitStats{Total: 3, Additions: 2, Deletions: 1}
	}))
	body := []byte(`{
		"repository": {"full_name": "org/repo"},
		"organization": {"login": "org"},
		"sender": {"id": 9, "login": "alice", "type": "User"},
		"commits": [
			{"id": "a1", "url": "u1", "message": "task #42 fix bug", "timestamp": "2024-06-01T10:00:00Z",
			 "author": {"username": "alice", "name": "Alice", "email": "a@x"}},
			{"id": "b2", "message": "no task mentioned", "timestamp": "2024-06-01T11:00:00Z"}
		]}`)
	env, err := WithGitHubEvent(body, "push")
	if err != nil {
		t.Fatalf("merge tag: %v", err)
	}
	res := n.GitHub(context.Background(), env, "team1")
	if res.Outcome != OutcomeDocuments || res.Entity != domain.EntityCommit {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(res.Documents) != 2 || len(asked) != 2 {
		t.Fatalf("expected 2 commits and 2 stats lookups, got %d/%d", len(res.Documents), len(asked))
	}
	c1 := res.Documents[0].(domain.Commit)
	if c1.SHA != "a1" || !c1.TaskIsWritten || c1.TaskReference == nil || *c1.TaskReference != 42 || c1.MessageWordCount != 4 {
		t.Fatalf("unexpected derived fields: %+v", c1)
	}
	if c1.Date != "2024-06-01T12:00:00.000+02:00" || c1.Repository != "org/repo" || c1.Team != "org" || c1.Project != "team1" {
		t.Fatalf("unexpected context fields: %+v", c1)
	}
	if c1.Sender.Login != "alice" || c1.Verified != "false" || c1.VerifiedReason != "unsigned" {
		t.Fatalf("unexpected sender/verified: %+v", c1)
	}
	c2 := res.Documents[1].(domain.Commit)
	if c2.Stats != (domain.CommitStats{}) || c2.TaskIsWritten || c2.TaskReference != nil {
		t.Fatalf("unexpected second commit: %+v", c2)
	}
	if c2.Author != (domain.Author{}) {
		t.Fatalf("missing author should be empty, got %+v", c2.Author)
	}
	if res.Author != "alice" {
		t.Fatalf("expected author alice, got %q", res.Author)
	}
}

func TestGitHubPushWithoutCommitsIsIgnored(t *testing.T) {
	n := New(time.UTC, nil)
	env, _ := WithGitHubEvent([]byte(`{"repository":{"full_name":"o/r"}}`), "push")
	if res := n.GitHub(context.Background(), env, "p"); res.Outcome != OutcomeIgnored {
		t.Fatalf("expected ignored, got %v", res.Outcome)
	}
}

func TestGitHubPullRequestOnlyClosed(t *testing.T) {
	n := New(madrid(t), nil)
	open, _ := WithGitHubEvent([]byte(`{"action":"opened","number":5,"pull_request":{"number":5}}`), "pull_request")
	if res := n.GitHub(context.Background(), open, "p"); res.Outcome != OutcomeIgnored {
		t.Fatalf("opened PR should be ignored, got %v", res.Outcome)
	}

	closed, _ := WithGitHubEvent([]byte(`{
		"action":"closed","number":5,
		"repository":{"full_name":"o/r"},
		"pull_request":{"number":5,"title":"t","state":"closed","user":{"login":"bob"},
			"created_at":"2024-06-01T10:00:00Z","closed_at":"2024-06-02T10:00:00Z","merged_at":null,
			"merged_by":null,"assignee":null,
			"requested_reviewers":[{"login":"r1"},{"login":"r2"}]}}`), "pull_request")
	res := n.GitHub(context.Background(), closed, "p")
	if res.Outcome != OutcomeDocuments {
		t.Fatalf("closed PR should produce a document, got %+v", res)
	}
	pr := res.Documents[0].(domain.PullRequest)
	if pr.PRNumber != 5 || pr.Merged || pr.MergedBy != "" || pr.Assignee != "" {
		t.Fatalf("unexpected pr: %+v", pr)
	}
	if !reflect.DeepEqual(pr.Reviewers, []string{"r1", "r2"}) {
		t.Fatalf("reviewers order lost: %v", pr.Reviewers)
	}
	if pr.ClosedAt != "2024-06-02T12:00:00.000+02:00" {
		t.Fatalf("closed_at not localized: %q", pr.ClosedAt)
	}
}

func TestGitHubUnknownEventIsUnsupported(t *testing.T) {
	n := New(time.UTC, nil)
	for _, tag := range []string{"Push", "ping", ""} {
		env, _ := WithGitHubEvent([]byte(`{}`), tag)
		if res := n.GitHub(context.Background(), env, "p"); res.Outcome != OutcomeUnsupported {
			t.Fatalf("%q: expected unsupported, got %v", tag, res.Outcome)
		}
	}
}

func TestGitHubIssueToleratesMissingObjects(t *testing.T) {
	n := New(time.UTC, nil)
	env, _ := WithGitHubEvent([]byte(`{"action":"opened","issue":{"number":12,"title":"bug","state":"open","assignee":null}}`), "issues")
	res := n.GitHub(context.Background(), env, "p")
	if res.Outcome != OutcomeDocuments {
		t.Fatalf("expected document, got %+v", res)
	}
	is := res.Documents[0].(domain.Issue)
	if is.IssueID != 12 || is.AssignedTo != nil || is.IsClosed || is.Team != "" {
		t.Fatalf("unexpected issue: %+v", is)
	}
}

func TestTaigaUnknownTypeIsUnsupported(t *testing.T) {
	n := New(time.UTC, nil)
	if res := n.Taiga([]byte(`{"type":"wikipage","action":"create","data":{"id":1}}`), "p"); res.Outcome != OutcomeUnsupported {
		t.Fatalf("expected unsupported, got %v", res.Outcome)
	}
}

func TestTaigaTaskWithoutOptionalObjects(t *testing.T) {
	n := New(time.UTC, nil)
	res := n.Taiga([]byte(`{"type":"task","action":"create","data":{"id":7,"assigned_to":null,"milestone":null,"custom_attributes_values":null}}`), "p")
	if res.Outcome != OutcomeDocuments {
		t.Fatalf("expected document, got %+v", res)
	}
	task := res.Documents[0].(domain.Task)
	if task.AssignedTo != nil || task.MilestoneID != nil || task.MilestoneName != "" || task.UserStoryID != nil {
		t.Fatalf("optional objects should be neutral: %+v", task)
	}
	if task.CustomAttributes == nil || len(task.CustomAttributes) != 0 {
		t.Fatalf("custom attributes should be an empty map, got %#v", task.CustomAttributes)
	}
}

func TestTaigaDeleteKey(t *testing.T) {
	key, err := TaigaDeleteKey([]byte(`{"type":"task","action":"delete","data":{"id":31}}`))
	if err != nil || key != "31" {
		t.Fatalf("expected key 31, got %q err=%v", key, err)
	}
	key, err = TaigaDeleteKey([]byte(`{"type":"relateduserstory","action":"delete","data":{"epic":{"id":2},"user_story":{"id":9}}}`))
	if err != nil || key != "2:9" {
		t.Fatalf("expected relation key, got %q err=%v", key, err)
	}
	if _, err := TaigaDeleteKey([]byte(`{"type":"task","action":"delete","data":{}}`)); !errors.Is(err, domain.ErrMissingID) {
		t.Fatalf("expected ErrMissingID, got %v", err)
	}
}

func TestTaskParityBetweenWebhookAndList(t *testing.T) {
	n := New(madrid(t), nil)
	webhook := []byte(`{"type":"task","action":"change","by":{"username":"carol"},"data":{
		"id": 100, "ref": 12, "subject": "Write tests",
		"project": {"id": 5, "name": "Team A"},
		"user_story": {"id": 55},
		"status": {"name": "Done", "is_closed": true},
		"assigned_to": {"username": "dave"},
		"created_date": "2024-03-01T09:00:00Z", "modified_date": "2024-06-01T10:00:00Z", "finished_date": "2024-06-01T10:00:00Z",
		"milestone": {"id": 8, "name": "Sprint 1", "closed": false, "created_date": "2024-02-01T09:00:00Z",
			"modified_date": "2024-02-02T09:00:00Z", "estimated_start": "2024-02-05", "estimated_finish": "2024-02-19"},
		"custom_attributes_values": {"Estimated Effort": 3, "Actual Effort": "4"}}}`)
	list := gjson.Parse(`{
		"id": 100, "ref": 12, "subject": "Write tests",
		"project": 5, "project_extra_info": {"id": 5, "name": "Team A"},
		"user_story": 55,
		"status_extra_info": {"name": "Done", "is_closed": true},
		"assigned_to_extra_info": {"username": "dave"},
		"created_date": "2024-03-01T09:00:00Z", "modified_date": "2024-06-01T10:00:00Z", "finished_date": "2024-06-01T10:00:00Z",
		"milestone": 8,
		"milestone_extra_info": {"name": "Sprint 1", "closed": false, "created_date": "2024-02-01T09:00:00Z",
			"modified_date": "2024-02-02T09:00:00Z", "estimated_start": "2024-02-05", "estimated_finish": "2024-02-19"},
		"custom_attributes_values": {"Estimated Effort": 3, "Actual Effort": "4"}}`)

	res := n.Taiga(webhook, "prj1")
	if res.Outcome != OutcomeDocuments {
		t.Fatalf("webhook normalize failed: %+v", res)
	}
	fromHook := res.Documents[0].(domain.Task)
	doc, err := n.TaigaListDocument(TaigaTask, list, "prj1")
	if err != nil {
		t.Fatalf("list convert: %v", err)
	}
	fromList := doc.(domain.Task)
	if fromList.AssignedBy != BackfillAuthor || fromList.ActionType != BackfillAction {
		t.Fatalf("missing backfill provenance: %+v", fromList)
	}
	fromList.AssignedBy, fromList.ActionType = fromHook.AssignedBy, fromHook.ActionType
	if !reflect.DeepEqual(fromHook, fromList) {
		t.Fatalf("parity mismatch:\nwebhook=%+v\nlist=%+v", fromHook, fromList)
	}
}

func TestUserStoryParityBetweenWebhookAndList(t *testing.T) {
	n := New(madrid(t), nil)
	desc := "As a student I want to track tasks so that I stay organized"
	webhook := []byte(`{"type":"userstory","action":"create","by":{"username":"carol"},"data":{
		"id": 55, "ref": 3, "subject": "Tracking", "description": "` + desc + `",
		"project": {"id": 5, "name": "Team A"},
		"status": {"name": "New", "is_closed": false},
		"assigned_to": null,
		"points": [{"value": 3}, {"value": null}, {"value": 5}],
		"created_date": "2024-06-01T10:00:00Z", "modified_date": "2024-06-01T10:00:00Z",
		"milestone": null,
		"custom_attributes_values": {"Priority": "High"}}}`)
	list := gjson.Parse(`{
		"id": 55, "ref": 3, "subject": "Tracking", "description": "` + desc + `",
		"project": 5, "project_extra_info": {"id": 5, "name": "Team A"},
		"status_extra_info": {"name": "New", "is_closed": false},
		"assigned_to_extra_info": null,
		"points": [{"value": 3}, {"value": null}, {"value": 5}],
		"created_date": "2024-06-01T10:00:00Z", "modified_date": "2024-06-01T10:00:00Z",
		"milestone": null, "milestone_extra_info": null,
		"custom_attributes_values": {"Priority": "High"}}`)

	fromHook := n.Taiga(webhook, "prj1").Documents[0].(domain.UserStory)
	doc, err := n.TaigaListDocument(TaigaUserStory, list, "prj1")
	if err != nil {
		t.Fatalf("list convert: %v", err)
	}
	fromList := doc.(domain.UserStory)
	if fromHook.TotalPoints != 8 || !fromHook.Pattern || fromHook.Priority != "High" {
		t.Fatalf("unexpected derived fields: %+v", fromHook)
	}
	fromList.AssignedBy, fromList.ActionType = fromHook.AssignedBy, fromHook.ActionType
	if !reflect.DeepEqual(fromHook, fromList) {
		t.Fatalf("parity mismatch:\nwebhook=%+v\nlist=%+v", fromHook, fromList)
	}
}

func TestIssueParityBetweenWebhookAndList(t *testing.T) {
	n := New(madrid(t), nil)
	webhook := []byte(`{"type":"issue","action":"change","by":{"username":"carol"},"data":{
		"id": 31, "ref": 7, "subject": "Crash on save", "description": "stack trace attached",
		"project": {"id": 5, "name": "Team A"},
		"status": {"name": "Closed", "is_closed": true},
		"assigned_to": {"username": "dave"},
		"severity": {"name": "Critical"}, "priority": {"name": "High"}, "type": {"name": "Bug"},
		"due_date": "2024-06-10",
		"created_date": "2024-06-01T10:00:00Z", "modified_date": "2024-06-02T10:00:00Z", "finished_date": "2024-06-02T10:00:00Z"}}`)
	list := gjson.Parse(`{
		"id": 31, "ref": 7, "subject": "Crash on save", "description": "stack trace attached",
		"project": 5, "project_extra_info": {"id": 5, "name": "Team A"},
		"status_extra_info": {"name": "Closed", "is_closed": true},
		"assigned_to_extra_info": {"username": "dave"},
		"severity_extra_info": {"name": "Critical"}, "priority_extra_info": {"name": "High"}, "type_extra_info": {"name": "Bug"},
		"due_date": "2024-06-10",
		"created_date": "2024-06-01T10:00:00Z", "modified_date": "2024-06-02T10:00:00Z", "finished_date": "2024-06-02T10:00:00Z"}`)

	res := n.Taiga(webhook, "prj1")
	if res.Outcome != OutcomeDocuments {
		t.Fatalf("webhook normalize failed: %+v", res)
	}
	fromHook := res.Documents[0].(domain.Issue)
	doc, err := n.TaigaListDocument(TaigaIssue, list, "prj1")
	if err != nil {
		t.Fatalf("list convert: %v", err)
	}
	fromList := doc.(domain.Issue)
	if fromList.AssignedBy != BackfillAuthor || fromList.ActionType != BackfillAction {
		t.Fatalf("missing backfill provenance: %+v", fromList)
	}
	if fromHook.Severity != "Critical" || fromHook.Type != "Bug" || !fromHook.IsClosed {
		t.Fatalf("unexpected webhook issue: %+v", fromHook)
	}
	fromList.AssignedBy, fromList.ActionType = fromHook.AssignedBy, fromHook.ActionType
	if !reflect.DeepEqual(fromHook, fromList) {
		t.Fatalf("parity mismatch:\nwebhook=%+v\nlist=%+v", fromHook, fromList)
	}
}

func TestEpicParityBetweenWebhookAndList(t *testing.T) {
	n := New(madrid(t), nil)
	webhook := []byte(`{"type":"epic","action":"create","by":{"username":"carol"},"data":{
		"id": 4, "ref": 2, "subject": "Authentication",
		"project": {"id": 5, "name": "Team A"},
		"status": {"name": "In progress", "is_closed": false},
		"user_stories_counts": {"total": 6, "progress": 2},
		"created_date": "2024-06-01T10:00:00Z", "modified_date": "2024-06-01T11:00:00Z"}}`)
	list := gjson.Parse(`{
		"id": 4, "ref": 2, "subject": "Authentication",
		"project": 5, "project_extra_info": {"id": 5, "name": "Team A"},
		"status_extra_info": {"name": "In progress", "is_closed": false},
		"user_stories_counts": {"total": 6, "progress": 2},
		"created_date": "2024-06-01T10:00:00Z", "modified_date": "2024-06-01T11:00:00Z"}`)

	fromHook := n.Taiga(webhook, "prj1").Documents[0].(domain.Epic)
	doc, err := n.TaigaListDocument(TaigaEpic, list, "prj1")
	if err != nil {
		t.Fatalf("list convert: %v", err)
	}
	fromList := doc.(domain.Epic)
	if fromHook.ProjectID != 5 || fromHook.Total != 6 || fromHook.Progress != 2 {
		t.Fatalf("unexpected webhook epic: %+v", fromHook)
	}
	fromList.AssignedBy, fromList.ActionType = fromHook.AssignedBy, fromHook.ActionType
	if !reflect.DeepEqual(fromHook, fromList) {
		t.Fatalf("parity mismatch:\nwebhook=%+v\nlist=%+v", fromHook, fromList)
	}
}

func TestUserStoryListPointsFallBackToTotal(t *testing.T) {
	n := New(time.UTC, nil)
	doc, err := n.TaigaListDocument(TaigaUserStory, gjson.Parse(`{"id":1,"points":{"101":4},"total_points":6.5}`), "p")
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if us := doc.(domain.UserStory); us.TotalPoints != 6.5 {
		t.Fatalf("expected total_points fallback 6.5, got %v", us.TotalPoints)
	}
}

func TestEpicProgressReadsCounts(t *testing.T) {
	n := New(time.UTC, nil)
	res := n.Taiga([]byte(`{"type":"epic","action":"change","data":{"id":4,"project":{"id":5,"name":"T"},"user_stories_counts":{"total":4,"progress":2}}}`), "p")
	ep := res.Documents[0].(domain.Epic)
	if ep.ProjectID != 5 || ep.Total != 4 || ep.Progress != 2 {
		t.Fatalf("unexpected epic: %+v", ep)
	}
}

func TestActivityRow(t *testing.T) {
	n := New(madrid(t), nil)
	row := n.Activity([]byte(`{
		"timestamp": "2024-06-01T10:00:00Z", "iteration": "S1", "date": "2024-06-01", "duration": 1.5,
		"activity": "Desenvolupament", "members": [" Anna ", "", 3, "Pau", "Marc"],
		"memberHours": [1, 2], "configRange": [1, null, 2.5]}`), "team1", "default")
	if !reflect.DeepEqual(row.Members, []string{"Anna", "Pau", "Marc"}) {
		t.Fatalf("unexpected members: %v", row.Members)
	}
	if len(row.MemberHours) != 2 || row.MemberHours["Anna"] != 1 || row.MemberHours["Pau"] != 2 {
		t.Fatalf("unexpected member hours: %v", row.MemberHours)
	}
	if len(row.ActivityHours) != len(ActivityTypes) || row.ActivityHours["Reunió focal"] != 0 || row.ActivityHours["Classe passiva"] != 2.5 {
		t.Fatalf("unexpected activity hours: %v", row.ActivityHours)
	}
	if row.TotalHours != 3.5 || row.ID != "2024-06-01T10:00:00Z" || row.Team != "team1" {
		t.Fatalf("unexpected row: %+v", row)
	}
}

func TestTaigaRelatedUserStory(t *testing.T) {
	n := New(time.UTC, nil)
	body := []byte(`{"type":"relateduserstory","action":"create","by":{"username":"dan"},
		"data":{"epic":{"id":2,"ref":11,"subject":"Login","project":{"name":"Team A"}},"user_story":{"id":9}}}`)
	res := n.Taiga(body, "p1")
	if res.Outcome != OutcomeDocuments || res.Entity != domain.EntityRelatedUserStory {
		t.Fatalf("unexpected result %+v", res)
	}
	rel := res.Documents[0].(domain.RelatedUserStory)
	if rel.Key() != "2:9" || rel.EpicName != "Login" || rel.Team != "Team A" || rel.Reference != 11 {
		t.Fatalf("unexpected relation %+v", rel)
	}
	if res := n.Taiga([]byte(`{"type":"relateduserstory","action":"create","data":{"epic":{"id":2}}}`), "p1"); res.Outcome != OutcomeIgnored {
		t.Fatalf("relation without user story must be ignored, got %v", res.Outcome)
	}
}
