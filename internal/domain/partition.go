/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package domain

import "fmt"

type Platform string

const (
	PlatformGitHub Platform = "github"
	PlatformTaiga  Platform = "taiga"
	PlatformSheets Platform = "sheets"
)

type Entity string

const (
	EntityCommit           Entity = "commits"
	EntityIssue            Entity = "issues"
	EntityPullRequest      Entity = "pull_requests"
	EntityTask             Entity = "tasks"
	EntityUserStory        Entity = "userstories"
	EntityEpic             Entity = "epics"
	EntityRelatedUserStory Entity = "epic_userstories"
	EntityActivity         Entity = "activities"
)

// KeyField names the document field holding the natural key.
func (e Entity) KeyField() string {
	switch e {
	case EntityCommit:
		return "sha"
	case EntityIssue:
		return "issue_id"
	case EntityPullRequest:
		return "pr_number"
	case EntityTask:
		return "task_id"
	case EntityUserStory:
		return "userstory_id"
	case EntityEpic:
		return "epic_id"
	case EntityRelatedUserStory:
		return "epic_id:userstory_id"
	case EntityActivity:
		return "id"
	}
	return ""
}

// PartitionName is shared by the webhook and backfill paths so both write to
// the same place for a given (platform, project, entity).
func PartitionName(p Platform, prj string, e Entity) string {
	return fmt.Sprintf("%s_%s.%s", p, prj, e)
}
