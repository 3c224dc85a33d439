/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package normalize

import (
	"context"

	"github.com/HamedShams/agile-ingest/internal/domain"
	"github.com/tidwall/gjson"
)

// GitHub normalizes an envelope carrying the merged X-GitHub-Event tag.
func (n *Normalizer) GitHub(ctx context.Context, envelope []byte, prj string) Result {
	if !gjson.ValidBytes(envelope) {
		return unsupported("")
	}
	root := gjson.ParseBytes(envelope)
	tag := root.Get(GitHubEventField).String()
	switch ParseGitHubEvent(tag) {
	case GitHubPush:
		return n.githubPush(ctx, tag, root, prj)
	case GitHubIssues:
		return n.githubIssue(tag, root, prj)
	case GitHubPullRequest:
		return n.githubPullRequest(tag, root, prj)
	}
	return unsupported(tag)
}

func teamOf(root gjson.Result) string {
	return firstOf(root, "organization.login", "repository.owner.login").String()
}

func senderOf(root gjson.Result) domain.Sender {
	s := root.Get("sender")
	return domain.Sender{
		ID:        s.Get("id").Int(),
		Login:     s.Get("login").String(),
		URL:       s.Get("url").String(),
		Type:      s.Get("type").String(),
		SiteAdmin: s.Get("site_admin").Bool(),
	}
}

func (n *Normalizer) githubPush(ctx context.Context, tag string, root gjson.Result, prj string) Result {
	commits := root.Get("commits").Array()
	if len(commits) == 0 {
		return ignored(tag, domain.EntityCommit, "push without commits")
	}
	repo := root.Get("repository.full_name").String()
	team := teamOf(root)
	sender := senderOf(root)

	docs := make([]domain.Document, 0, len(commits))
	for _, c := range commits {
		sha := c.Get("id").String()
		if sha == "" {
			continue
		}
		msg := c.Get("message").String()
		ms := analyzeMessage(msg)
		var stats domain.CommitStats
		if repo != "" {
			stats = n.stats.CommitStats(ctx, prj, repo, sha)
		}
		docs = append(docs, domain.Commit{
			SHA:              sha,
			URL:              c.Get("url").String(),
			Message:          msg,
			MessageCharCount: ms.chars,
			MessageWordCount: ms.words,
			TaskIsWritten:    ms.written,
			TaskReference:    ms.reference,
			Author: domain.Author{
				Login: c.Get("author.username").String(),
				Name:  c.Get("author.name").String(),
				Email: c.Get("author.email").String(),
			},
			Repository:     repo,
			Date:           n.ts(c.Get("timestamp").String()),
			Stats:          stats,
			Verified:       "false",
			VerifiedReason: "unsigned",
			Sender:         sender,
			EventType:      "commit",
			Team:           team,
			Project:        prj,
		})
	}
	if len(docs) == 0 {
		return ignored(tag, domain.EntityCommit, "push without commit ids")
	}
	return Result{Outcome: OutcomeDocuments, Event: tag, Entity: domain.EntityCommit, Documents: docs, Author: sender.Login}
}

func (n *Normalizer) githubIssue(tag string, root gjson.Result, prj string) Result {
	is := root.Get("issue")
	num := is.Get("number")
	if num.Type != gjson.Number {
		return ignored(tag, domain.EntityIssue, "issue without number")
	}
	sender := senderOf(root)
	doc := domain.Issue{
		IssueID:      num.Int(),
		Subject:      is.Get("title").String(),
		Status:       is.Get("state").String(),
		Description:  is.Get("body").String(),
		AssignedTo:   optString(is.Get("assignee"), "login"),
		AssignedBy:   sender.Login,
		Author:       is.Get("user.login").String(),
		CreatedDate:  n.ts(is.Get("created_at").String()),
		ModifiedDate: n.ts(is.Get("updated_at").String()),
		FinishedDate: n.ts(is.Get("closed_at").String()),
		DueDate:      n.ts(is.Get("milestone.due_on").String()),
		IsClosed:     is.Get("state").String() == "closed",
		Repository:   root.Get("repository.full_name").String(),
		EventType:    "issue",
		ActionType:   root.Get("action").String(),
		Team:         teamOf(root),
		Project:      prj,
	}
	return Result{Outcome: OutcomeDocuments, Event: tag, Entity: domain.EntityIssue, Documents: []domain.Document{doc}, Author: sender.Login}
}

func (n *Normalizer) githubPullRequest(tag string, root gjson.Result, prj string) Result {
	action := root.Get("action").String()
	if action != "closed" {
		return ignored(tag, domain.EntityPullRequest, "pull request action "+action)
	}
	pr := root.Get("pull_request")
	num := firstOf(root, "number", "pull_request.number")
	if num.Type != gjson.Number {
		return ignored(tag, domain.EntityPullRequest, "pull request without number")
	}
	mergedAt := pr.Get("merged_at").String()
	merged := mergedAt != ""
	if m := pr.Get("merged"); m.IsBool() {
		merged = m.Bool()
	}
	doc := domain.PullRequest{
		PRNumber:   num.Int(),
		Title:      pr.Get("title").String(),
		State:      pr.Get("state").String(),
		Author:     pr.Get("user.login").String(),
		CreatedAt:  n.ts(pr.Get("created_at").String()),
		ClosedAt:   n.ts(pr.Get("closed_at").String()),
		MergedAt:   n.ts(mergedAt),
		Merged:     merged,
		MergedBy:   pr.Get("merged_by.login").String(),
		Assignee:   pr.Get("assignee.login").String(),
		Reviewers:  stringList(pr.Get("requested_reviewers"), "login"),
		Repository: root.Get("repository.full_name").String(),
		EventType:  "pull_request",
		ActionType: action,
		Team:       teamOf(root),
		Project:    prj,
	}
	return Result{Outcome: OutcomeDocuments, Event: tag, Entity: domain.EntityPullRequest, Documents: []domain.Document{doc}, Author: senderOf(root).Login}
}
