/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/HamedShams/agile-ingest/internal/domain"
	"github.com/HamedShams/agile-ingest/internal/normalize"
	gh "github.com/google/go-github/v62/github"
	"github.com/tidwall/sjson"
)

// GitHub backfill entity names, as accepted on the command line.
const (
	GitHubCommits      = "commits"
	GitHubIssues       = "issues"
	GitHubPullRequests = "pull_requests"
)

var DefaultGitHubEvents = []string{GitHubCommits, GitHubIssues, GitHubPullRequests}

type GitHubParams struct {
	Org          string
	Repo         string // empty means every repository of Org
	Project      string
	QualityModel string
	Events       []string
	Window       domain.Window
	Token        string // optional per-course token
}

func (b *Backfiller) GitHub(ctx context.Context, p GitHubParams) (BackfillReport, error) {
	rep := newReport(p.Window)
	events := p.Events
	if len(events) == 0 {
		events = DefaultGitHubEvents
	}
	for _, e := range events {
		if githubEventFor(e) == normalize.GitHubUnknown {
			return *rep, fmt.Errorf("%w: %s", domain.ErrUnknownEntity, e)
		}
	}

	gl := b.github
	if p.Token != "" && b.githubFor != nil {
		var err error
		if gl, err = b.githubFor(p.Token); err != nil {
			return *rep, err
		}
	}

	repos := []string{p.Repo}
	if p.Repo == "" {
		var err error
		if repos, err = gl.ListOrgRepos(ctx, p.Org); err != nil {
			return *rep, err
		}
	}
	if len(repos) == 0 {
		return *rep, fmt.Errorf("%w in organization %s", domain.ErrNoRepositories, p.Org)
	}

	for _, repo := range repos {
		for _, e := range events {
			ev := githubEventFor(e)
			t := Target{Platform: domain.PlatformGitHub, Project: p.Project, Entity: ev.Entity(), EventType: e, Author: normalize.BackfillAuthor, QualityModel: p.QualityModel}
			n, err := b.githubEntity(ctx, gl, p, repo, ev, t, rep)
			rep.add(e, n)
			if err != nil {
				return *rep, err
			}
			b.log.Info().Str("repo", p.Org+"/"+repo).Str("entity", e).Int("docs", n).Msg("github backfill")
			b.notify(ctx, t)
		}
	}
	return *rep, nil
}

func githubEventFor(name string) normalize.GitHubEvent {
	switch name {
	case GitHubCommits:
		return normalize.GitHubPush
	case GitHubIssues:
		return normalize.GitHubIssues
	case GitHubPullRequests:
		return normalize.GitHubPullRequest
	}
	return normalize.GitHubUnknown
}

func (b *Backfiller) githubEntity(ctx context.Context, gl GitHubLister, p GitHubParams, repo string, ev normalize.GitHubEvent, t Target, rep *BackfillReport) (int, error) {
	full := p.Org + "/" + repo
	total := 0
	page := func(envs [][]byte) error {
		docs := make([]domain.Document, 0, len(envs))
		for _, env := range envs {
			res := b.norm.GitHub(ctx, env, p.Project)
			if res.Outcome == normalize.OutcomeDocuments {
				docs = append(docs, res.Documents...)
			}
		}
		total += b.writePage(ctx, t, docs, rep)
		return nil
	}
	var err error
	switch ev {
	case normalize.GitHubPush:
		err = gl.ListCommits(ctx, p.Org, repo, p.Window, func(cs []*gh.RepositoryCommit) error {
			envs, err := mapEnvelopes(cs, func(c *gh.RepositoryCommit) ([]byte, error) { return commitEnvelope(p.Org, full, c) })
			if err != nil {
				return err
			}
			return page(envs)
		})
	case normalize.GitHubIssues:
		err = gl.ListIssues(ctx, p.Org, repo, p.Window, func(is []*gh.Issue) error {
			envs, err := mapEnvelopes(is, func(i *gh.Issue) ([]byte, error) { return issueEnvelope(p.Org, full, i) })
			if err != nil {
				return err
			}
			return page(envs)
		})
	default:
		err = gl.ListClosedPulls(ctx, p.Org, repo, p.Window, func(prs []*gh.PullRequest) error {
			envs, err := mapEnvelopes(prs, func(pr *gh.PullRequest) ([]byte, error) { return pullEnvelope(p.Org, full, pr) })
			if err != nil {
				return err
			}
			return page(envs)
		})
	}
	return total, err
}

func mapEnvelopes[T any](items []T, build func(T) ([]byte, error)) ([][]byte, error) {
	out := make([][]byte, 0, len(items))
	for _, it := range items {
		env, err := build(it)
		if err != nil {
			return nil, err
		}
		out = append(out, env)
	}
	return out, nil
}

// envelope starts a webhook-shaped payload for repo, sent by sender.
func envelope(event, org, fullName string, sender *gh.User) ([]byte, error) {
	env, err := normalize.WithGitHubEvent([]byte(`{}`), event)
	if err != nil {
		return nil, err
	}
	if env, err = sjson.SetBytes(env, "repository.full_name", fullName); err != nil {
		return nil, err
	}
	if env, err = sjson.SetBytes(env, "organization.login", org); err != nil {
		return nil, err
	}
	if sender == nil {
		sender = &gh.User{}
	}
	raw, err := json.Marshal(sender)
	if err != nil {
		return nil, err
	}
	return sjson.SetRawBytes(env, "sender", raw)
}

type pushCommit struct {
	ID        string     `json:"id"`
	URL       string     `json:"url"`
	Message   string     `json:"message"`
	Timestamp string     `json:"timestamp"`
	Author    pushAuthor `json:"author"`
}

type pushAuthor struct {
	Username string `json:"username"`
	Name     string `json:"name"`
	Email    string `json:"email"`
}

// commitEnvelope wraps one listed commit as a single-commit push.
func commitEnvelope(org, fullName string, c *gh.RepositoryCommit) ([]byte, error) {
	env, err := envelope("push", org, fullName, c.Author)
	if err != nil {
		return nil, err
	}
	ca := c.GetCommit().GetAuthor()
	pc := pushCommit{
		ID:      c.GetSHA(),
		URL:     c.GetHTMLURL(),
		Message: c.GetCommit().GetMessage(),
		Author:  pushAuthor{Username: c.GetAuthor().GetLogin(), Name: ca.GetName(), Email: ca.GetEmail()},
	}
	if d := ca.GetDate(); !d.IsZero() {
		pc.Timestamp = d.Format(time.RFC3339)
	}
	raw, err := json.Marshal([]pushCommit{pc})
	if err != nil {
		return nil, err
	}
	return sjson.SetRawBytes(env, "commits", raw)
}

func issueEnvelope(org, fullName string, is *gh.Issue) ([]byte, error) {
	env, err := envelope("issues", org, fullName, is.User)
	if err != nil {
		return nil, err
	}
	action := "opened"
	if is.GetState() == "closed" {
		action = "closed"
	}
	if env, err = sjson.SetBytes(env, "action", action); err != nil {
		return nil, err
	}
	raw, err := json.Marshal(is)
	if err != nil {
		return nil, err
	}
	return sjson.SetRawBytes(env, "issue", raw)
}

func pullEnvelope(org, fullName string, pr *gh.PullRequest) ([]byte, error) {
	env, err := envelope("pull_request", org, fullName, pr.User)
	if err != nil {
		return nil, err
	}
	if env, err = sjson.SetBytes(env, "action", "closed"); err != nil {
		return nil, err
	}
	if env, err = sjson.SetBytes(env, "number", pr.GetNumber()); err != nil {
		return nil, err
	}
	raw, err := json.Marshal(pr)
	if err != nil {
		return nil, err
	}
	return sjson.SetRawBytes(env, "pull_request", raw)
}
