/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package domain

import (
	"fmt"
	"strconv"
)

// Document is a canonical, platform-independent record stored in a partition
// and addressed by its natural key.
type Document interface {
	Key() string
	Entity() Entity
}

type Author struct {
	Login string `json:"login"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type Sender struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	URL       string `json:"url"`
	Type      string `json:"type"`
	SiteAdmin bool   `json:"site_admin"`
}

type CommitStats struct {
	Total     int `json:"total"`
	Additions int `json:"additions"`
	Deletions int `json:"deletions"`
}

type Commit struct {
	SHA              string      `json:"sha"`
	URL              string      `json:"url"`
	Message          string      `json:"message"`
	MessageCharCount int         `json:"message_char_count"`
	MessageWordCount int         `json:"message_word_count"`
	TaskIsWritten    bool        `json:"task_is_written"`
	TaskReference    *int64      `json:"task_reference"`
	Author           Author      `json:"author"`
	Repository       string      `json:"repository"`
	Date             string      `json:"date"`
	Stats            CommitStats `json:"stats"`
	// Verified and VerifiedReason are opaque upstream flags, always "false"/"unsigned".
	Verified       string `json:"verified"`
	VerifiedReason string `json:"verified_reason"`
	Sender         Sender `json:"sender_info"`
	EventType      string `json:"event_type"`
	Team           string `json:"team_name"`
	Project        string `json:"prj"`
}

func (c Commit) Key() string  { return c.SHA }
func (Commit) Entity() Entity { return EntityCommit }

// Issue covers both platforms; Severity, Priority and Type are only set by the tracker.
type Issue struct {
	IssueID      int64   `json:"issue_id"`
	Reference    int64   `json:"reference,omitempty"`
	Subject      string  `json:"subject"`
	Status       string  `json:"status"`
	Description  string  `json:"description"`
	AssignedTo   *string `json:"assigned_to"`
	AssignedBy   string  `json:"assigned_by"`
	Author       string  `json:"author,omitempty"`
	CreatedDate  string  `json:"created_date"`
	ModifiedDate string  `json:"modified_date"`
	FinishedDate string  `json:"finished_date"`
	DueDate      string  `json:"due_date"`
	IsClosed     bool    `json:"is_closed"`
	Severity     string  `json:"severity,omitempty"`
	Priority     string  `json:"priority,omitempty"`
	Type         string  `json:"type,omitempty"`
	Repository   string  `json:"repository,omitempty"`
	EventType    string  `json:"event_type"`
	ActionType   string  `json:"action_type"`
	Team         string  `json:"team_name"`
	Project      string  `json:"prj"`
}

func (i Issue) Key() string  { return strconv.FormatInt(i.IssueID, 10) }
func (Issue) Entity() Entity { return EntityIssue }

type PullRequest struct {
	PRNumber   int64    `json:"pr_number"`
	Title      string   `json:"title"`
	State      string   `json:"state"`
	Author     string   `json:"author"`
	CreatedAt  string   `json:"created_at"`
	ClosedAt   string   `json:"closed_at"`
	MergedAt   string   `json:"merged_at"`
	Merged     bool     `json:"merged"`
	MergedBy   string   `json:"merged_by"`
	Assignee   string   `json:"assignee"`
	Reviewers  []string `json:"reviewers"`
	Repository string   `json:"repository"`
	EventType  string   `json:"event_type"`
	ActionType string   `json:"action_type"`
	Team       string   `json:"team_name"`
	Project    string   `json:"prj"`
}

func (p PullRequest) Key() string  { return strconv.FormatInt(p.PRNumber, 10) }
func (PullRequest) Entity() Entity { return EntityPullRequest }

// MilestoneInfo is the parent milestone denormalized onto tasks and user stories.
type MilestoneInfo struct {
	MilestoneID           *int64 `json:"milestone_id"`
	MilestoneName         string `json:"milestone_name"`
	MilestoneClosed       bool   `json:"milestone_closed"`
	MilestoneCreatedDate  string `json:"milestone_created_date"`
	MilestoneModifiedDate string `json:"milestone_modified_date"`
	EstimatedStart        string `json:"estimated_start"`
	EstimatedFinish       string `json:"estimated_finish"`
}

// MilestoneStats are aggregated upstream and known to be unreliable; treat as experimental.
type MilestoneStats struct {
	TotalPoints          float64 `json:"milestone_total_points"`
	ClosedPoints         float64 `json:"milestone_closed_points"`
	TotalUserStories     int     `json:"milestone_total_userstories"`
	CompletedUserStories int     `json:"milestone_completed_userstories"`
	TotalTasks           int     `json:"milestone_total_tasks"`
	CompletedTasks       int     `json:"milestone_completed_tasks"`
}

type Task struct {
	TaskID       int64   `json:"task_id"`
	Reference    int64   `json:"reference"`
	UserStoryID  *int64  `json:"userstory_id"`
	Subject      string  `json:"subject"`
	Status       string  `json:"status"`
	IsClosed     bool    `json:"is_closed"`
	AssignedTo   *string `json:"assigned_to"`
	AssignedBy   string  `json:"assigned_by"`
	CreatedDate  string  `json:"created_date"`
	ModifiedDate string  `json:"modified_date"`
	FinishedDate string  `json:"finished_date"`
	MilestoneInfo
	MilestoneStats   *MilestoneStats `json:"milestone_stats,omitempty"`
	CustomAttributes map[string]any  `json:"custom_attributes"`
	EventType        string          `json:"event_type"`
	ActionType       string          `json:"action_type"`
	Team             string          `json:"team_name"`
	Project          string          `json:"prj"`
}

func (t Task) Key() string  { return strconv.FormatInt(t.TaskID, 10) }
func (Task) Entity() Entity { return EntityTask }

type UserStory struct {
	UserStoryID  int64   `json:"userstory_id"`
	Reference    int64   `json:"reference"`
	Subject      string  `json:"subject"`
	Status       string  `json:"status"`
	IsClosed     bool    `json:"is_closed"`
	AssignedTo   *string `json:"assigned_to"`
	AssignedBy   string  `json:"assigned_by"`
	CreatedDate  string  `json:"created_date"`
	ModifiedDate string  `json:"modified_date"`
	FinishedDate string  `json:"finished_date"`
	TotalPoints  float64 `json:"total_points"`
	Pattern      bool    `json:"pattern"`
	Priority     string  `json:"priority"`
	MilestoneInfo
	MilestoneStats   *MilestoneStats `json:"milestone_stats,omitempty"`
	CustomAttributes map[string]any  `json:"custom_attributes"`
	EventType        string          `json:"event_type"`
	ActionType       string          `json:"action_type"`
	Team             string          `json:"team_name"`
	Project          string          `json:"prj"`
}

func (u UserStory) Key() string  { return strconv.FormatInt(u.UserStoryID, 10) }
func (UserStory) Entity() Entity { return EntityUserStory }

type Epic struct {
	EpicID       int64  `json:"epic_id"`
	Reference    int64  `json:"reference"`
	ProjectID    int64  `json:"project_id"`
	Subject      string `json:"subject"`
	Status       string `json:"status"`
	IsClosed     bool   `json:"is_closed"`
	AssignedBy   string `json:"assigned_by"`
	CreatedDate  string `json:"created_date"`
	ModifiedDate string `json:"modified_date"`
	// Progress and Total are best-effort upstream counters.
	Progress   float64 `json:"progress"`
	Total      float64 `json:"total"`
	EventType  string  `json:"event_type"`
	ActionType string  `json:"action_type"`
	Team       string  `json:"team_name"`
	Project    string  `json:"prj"`
}

func (e Epic) Key() string  { return strconv.FormatInt(e.EpicID, 10) }
func (Epic) Entity() Entity { return EntityEpic }

// RelatedUserStory links a user story to an epic.
type RelatedUserStory struct {
	EpicID       int64  `json:"epic_id"`
	EpicName     string `json:"epic_name"`
	UserStoryID  int64  `json:"userstory_id"`
	Reference    int64  `json:"reference"`
	AssignedTo   string `json:"assigned_to"`
	FinishedDate string `json:"finished_date"`
	EventType    string `json:"event_type"`
	ActionType   string `json:"action_type"`
	Team         string `json:"team_name"`
	Project      string `json:"prj"`
}

func (r RelatedUserStory) Key() string  { return RelationKey(r.EpicID, r.UserStoryID) }
func (RelatedUserStory) Entity() Entity { return EntityRelatedUserStory }

func RelationKey(epicID, userStoryID int64) string {
	return fmt.Sprintf("%d:%d", epicID, userStoryID)
}

// ActivityLog is one manual time-tracking row from the team spreadsheet.
type ActivityLog struct {
	ID            string             `json:"id"`
	Timestamp     string             `json:"timestamp"`
	Team          string             `json:"team"`
	QualityModel  string             `json:"quality_model"`
	Iteration     string             `json:"iteration"`
	ActivityDate  string             `json:"activity_date"`
	DurationH     float64            `json:"duration_h"`
	ActivityType  string             `json:"activity_type"`
	Comment       string             `json:"comment"`
	Epic          string             `json:"epic"`
	Members       []string           `json:"members"`
	MemberHours   map[string]float64 `json:"member_hours"`
	ActivityHours map[string]float64 `json:"activity_hours"`
	TotalHours    float64            `json:"total_hours"`
}

func (a ActivityLog) Key() string  { return a.ID }
func (ActivityLog) Entity() Entity { return EntityActivity }

// Notification is what the downstream evaluation service is told after a write.
type Notification struct {
	EventType    string `json:"event_type"`
	Project      string `json:"prj"`
	AuthorLogin  string `json:"author_login"`
	QualityModel string `json:"quality_model"`
}
