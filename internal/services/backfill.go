/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package services

import (
	"context"
	"fmt"
	"io"

	"github.com/HamedShams/agile-ingest/internal/adapters/taiga"
	"github.com/HamedShams/agile-ingest/internal/domain"
	"github.com/HamedShams/agile-ingest/internal/enrich"
	"github.com/HamedShams/agile-ingest/internal/normalize"
	gh "github.com/google/go-github/v62/github"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

type GitHubLister interface {
	ListOrgRepos(ctx context.Context, org string) ([]string, error)
	ListCommits(ctx context.Context, owner, repo string, w domain.Window, fn func([]*gh.RepositoryCommit) error) error
	ListIssues(ctx context.Context, owner, repo string, w domain.Window, fn func([]*gh.Issue) error) error
	ListClosedPulls(ctx context.Context, owner, repo string, w domain.Window, fn func([]*gh.PullRequest) error) error
}

type TaigaLister interface {
	ProjectBySlug(ctx context.Context, token, slug string) (taiga.Project, error)
	List(ctx context.Context, token, endpoint string, projectID int64, w domain.Window, fn func([]gjson.Result) error) error
}

type TokenSource interface {
	Token(ctx context.Context, cr enrich.Credentials) (string, error)
}

// Backfiller re-derives documents from the platform list APIs and writes them
// through the same normalizers and router as the webhook path.
type Backfiller struct {
	norm       *normalize.Normalizer
	router     *Router
	github     GitHubLister
	taiga      TaigaLister
	tokens     TokenSource
	milestones MilestoneStatser
	log        zerolog.Logger

	githubFor func(token string) (GitHubLister, error)
}

func NewBackfiller(norm *normalize.Normalizer, router *Router, github GitHubLister, taiga TaigaLister, tokens TokenSource, milestones MilestoneStatser, log zerolog.Logger) *Backfiller {
	return &Backfiller{norm: norm, router: router, github: github, taiga: taiga, tokens: tokens, milestones: milestones, log: log}
}

// WithGitHubClients lets GitHubParams.Token select a differently
// authenticated client; without it the default lister is always used.
func (b *Backfiller) WithGitHubClients(f func(token string) (GitHubLister, error)) *Backfiller {
	b.githubFor = f
	return b
}

// BackfillReport holds per-entity counts in the order they were processed.
type BackfillReport struct {
	Counts map[string]int
	Order  []string
	Total  int
	Window domain.Window
	Failed int // documents that could not be written
}

func newReport(w domain.Window) *BackfillReport {
	return &BackfillReport{Counts: map[string]int{}, Window: w}
}

func (r *BackfillReport) add(entity string, n int) {
	if _, ok := r.Counts[entity]; !ok {
		r.Order = append(r.Order, entity)
	}
	r.Counts[entity] += n
	r.Total += n
}

func (r BackfillReport) Print(w io.Writer) {
	for _, e := range r.Order {
		fmt.Fprintf(w, " • %-14s → %5d documents\n", e, r.Counts[e])
	}
	fmt.Fprintf(w, "%d documents upserted (%s)\n", r.Total, r.Window)
	if r.Failed > 0 {
		fmt.Fprintf(w, "%d documents failed to write, see log\n", r.Failed)
	}
}

// writePage writes one page; per-document failures are logged and counted, not fatal.
func (b *Backfiller) writePage(ctx context.Context, t Target, docs []domain.Document, rep *BackfillReport) int {
	n, err := b.router.Write(ctx, t, docs)
	if err != nil {
		rep.Failed += len(docs) - n
		b.log.Error().Err(err).Str("partition", t.Partition()).Msg("backfill page partially written")
	}
	return n
}

func (b *Backfiller) notify(ctx context.Context, t Target) {
	if err := b.router.Notify(ctx, t); err != nil {
		b.log.Warn().Err(err).Str("event", t.EventType).Str("prj", t.Project).Msg("backfill notify failed, continuing")
	}
}
