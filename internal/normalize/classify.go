/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */

// Package normalize turns platform webhook envelopes and list-API records into
// canonical documents. It performs no I/O except the commit stats lookup,
// which is delegated to a CommitStatsSource that never fails.
package normalize

import (
	"context"
	"time"

	"github.com/HamedShams/agile-ingest/internal/domain"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// GitHubEventField is where the out-of-band X-GitHub-Event header is merged into the payload.
const GitHubEventField = "X-GitHub-Event"

type Outcome int

const (
	OutcomeDocuments Outcome = iota
	OutcomeIgnored
	OutcomeUnsupported
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDocuments:
		return "documents"
	case OutcomeIgnored:
		return "ignored"
	default:
		return "unsupported"
	}
}

type GitHubEvent int

const (
	GitHubUnknown GitHubEvent = iota
	GitHubPush
	GitHubIssues
	GitHubPullRequest
)

// ParseGitHubEvent is exact and case-sensitive; anything else is GitHubUnknown.
func ParseGitHubEvent(s string) GitHubEvent {
	switch s {
	case "push":
		return GitHubPush
	case "issues":
		return GitHubIssues
	case "pull_request":
		return GitHubPullRequest
	}
	return GitHubUnknown
}

func (e GitHubEvent) String() string {
	switch e {
	case GitHubPush:
		return "push"
	case GitHubIssues:
		return "issues"
	case GitHubPullRequest:
		return "pull_request"
	}
	return "unknown"
}

func (e GitHubEvent) Entity() domain.Entity {
	switch e {
	case GitHubPush:
		return domain.EntityCommit
	case GitHubIssues:
		return domain.EntityIssue
	case GitHubPullRequest:
		return domain.EntityPullRequest
	}
	return ""
}

type TaigaEvent int

const (
	TaigaUnknown TaigaEvent = iota
	TaigaIssue
	TaigaTask
	TaigaUserStory
	TaigaEpic
	TaigaRelatedUserStory
)

func ParseTaigaEvent(s string) TaigaEvent {
	switch s {
	case "issue":
		return TaigaIssue
	case "task":
		return TaigaTask
	case "userstory":
		return TaigaUserStory
	case "epic":
		return TaigaEpic
	case "relateduserstory":
		return TaigaRelatedUserStory
	}
	return TaigaUnknown
}

func (e TaigaEvent) String() string {
	switch e {
	case TaigaIssue:
		return "issue"
	case TaigaTask:
		return "task"
	case TaigaUserStory:
		return "userstory"
	case TaigaEpic:
		return "epic"
	case TaigaRelatedUserStory:
		return "relateduserstory"
	}
	return "unknown"
}

func (e TaigaEvent) Entity() domain.Entity {
	switch e {
	case TaigaIssue:
		return domain.EntityIssue
	case TaigaTask:
		return domain.EntityTask
	case TaigaUserStory:
		return domain.EntityUserStory
	case TaigaEpic:
		return domain.EntityEpic
	case TaigaRelatedUserStory:
		return domain.EntityRelatedUserStory
	}
	return ""
}

// Result is the classifier verdict for one envelope. Documents is only set
// when Outcome is OutcomeDocuments.
type Result struct {
	Outcome   Outcome
	Event     string
	Entity    domain.Entity
	Documents []domain.Document
	Reason    string
	// Author is the login reported to the evaluation service.
	Author string
}

func ignored(event string, entity domain.Entity, reason string) Result {
	return Result{Outcome: OutcomeIgnored, Event: event, Entity: entity, Reason: reason}
}

func unsupported(event string) Result {
	return Result{Outcome: OutcomeUnsupported, Event: event, Reason: "unsupported event type"}
}

// CommitStatsSource returns zero-filled stats when the lookup fails.
type CommitStatsSource interface {
	CommitStats(ctx context.Context, prj, repository, sha string) domain.CommitStats
}

type zeroStats struct{}

func (zeroStats) CommitStats(context.Context, string, string, string) domain.CommitStats {
	return domain.CommitStats{}
}

type Normalizer struct {
	loc   *time.Location
	stats CommitStatsSource
}

// New returns a Normalizer storing timestamps in loc. A nil stats source zero-fills commit stats.
func New(loc *time.Location, stats CommitStatsSource) *Normalizer {
	if loc == nil {
		loc = time.UTC
	}
	if stats == nil {
		stats = zeroStats{}
	}
	return &Normalizer{loc: loc, stats: stats}
}

// WithGitHubEvent merges the event tag into a raw GitHub payload.
func WithGitHubEvent(body []byte, event string) ([]byte, error) {
	return sjson.SetBytes(body, GitHubEventField, event)
}

// GitHubEventOf reads the merged event tag back out of an envelope.
func GitHubEventOf(envelope []byte) string {
	return gjson.GetBytes(envelope, GitHubEventField).String()
}
