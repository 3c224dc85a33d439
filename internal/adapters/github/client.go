/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/HamedShams/agile-ingest/internal/domain"
	gh "github.com/google/go-github/v62/github"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const perPage = 100

type Options struct {
	Token      string
	BaseURL    string // empty means api.github.com
	Timeout    time.Duration
	RatePerSec float64 // <= 0 disables limiting
}

type Client struct {
	gh      *gh.Client
	limiter *rate.Limiter
	log     zerolog.Logger
}

func NewClient(opt Options, log zerolog.Logger) (*Client, error) {
	hc := &http.Client{Timeout: opt.Timeout}
	if opt.Token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opt.Token})
		hc = oauth2.NewClient(context.Background(), ts)
		hc.Timeout = opt.Timeout
	}
	c := gh.NewClient(hc)
	if opt.BaseURL != "" {
		base := opt.BaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		u, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("github: base url: %w", err)
		}
		c.BaseURL = u
	}
	lim := rate.NewLimiter(rate.Inf, 1)
	if opt.RatePerSec > 0 {
		lim = rate.NewLimiter(rate.Limit(opt.RatePerSec), 1)
	}
	return &Client{gh: c, limiter: lim, log: log}, nil
}

func (c *Client) wait(ctx context.Context) error { return c.limiter.Wait(ctx) }

// SplitRepo splits "owner/name".
func SplitRepo(full string) (string, string, error) {
	owner, name, ok := strings.Cut(full, "/")
	if !ok || owner == "" || name == "" {
		return "", "", fmt.Errorf("github: invalid repository %q", full)
	}
	return owner, name, nil
}

// ListOrgRepos returns the names of every repository in org.
func (c *Client) ListOrgRepos(ctx context.Context, org string) ([]string, error) {
	opt := &gh.RepositoryListByOrgOptions{ListOptions: gh.ListOptions{PerPage: perPage}}
	var out []string
	for {
		if err := c.wait(ctx); err != nil {
			return nil, err
		}
		repos, resp, err := c.gh.Repositories.ListByOrg(ctx, org, opt)
		if err != nil {
			return nil, fmt.Errorf("github: list repos of %s: %w", org, err)
		}
		for _, r := range repos {
			out = append(out, r.GetName())
		}
		if resp.NextPage == 0 {
			return out, nil
		}
		opt.Page = resp.NextPage
	}
}

// ListCommits pages through commits; the window is applied server-side.
func (c *Client) ListCommits(ctx context.Context, owner, repo string, w domain.Window, fn func([]*gh.RepositoryCommit) error) error {
	opt := &gh.CommitsListOptions{Since: w.Since, Until: w.Until, ListOptions: gh.ListOptions{PerPage: perPage}}
	for {
		if err := c.wait(ctx); err != nil {
			return err
		}
		page, resp, err := c.gh.Repositories.ListCommits(ctx, owner, repo, opt)
		if err != nil {
			if isEmptyRepo(err) {
				return nil
			}
			return fmt.Errorf("github: list commits %s/%s page %d: %w", owner, repo, opt.Page, err)
		}
		if err := fn(page); err != nil {
			return err
		}
		if resp.NextPage == 0 {
			return nil
		}
		opt.Page = resp.NextPage
	}
}

// ListIssues pages through issues in every state. Since is applied
// server-side, Until on updated_at client-side; pull requests are skipped.
func (c *Client) ListIssues(ctx context.Context, owner, repo string, w domain.Window, fn func([]*gh.Issue) error) error {
	opt := &gh.IssueListByRepoOptions{State: "all", Since: w.Since, ListOptions: gh.ListOptions{PerPage: perPage}}
	for {
		if err := c.wait(ctx); err != nil {
			return err
		}
		page, resp, err := c.gh.Issues.ListByRepo(ctx, owner, repo, opt)
		if err != nil {
			return fmt.Errorf("github: list issues %s/%s page %d: %w", owner, repo, opt.Page, err)
		}
		kept := page[:0]
		for _, is := range page {
			if is.IsPullRequest() || !w.Contains(is.GetUpdatedAt().Time) {
				continue
			}
			kept = append(kept, is)
		}
		if err := fn(kept); err != nil {
			return err
		}
		if resp.NextPage == 0 {
			return nil
		}
		opt.Page = resp.NextPage
	}
}

// ListClosedPulls pages through closed pull requests whose closed_at falls in the window.
func (c *Client) ListClosedPulls(ctx context.Context, owner, repo string, w domain.Window, fn func([]*gh.PullRequest) error) error {
	opt := &gh.PullRequestListOptions{State: "closed", ListOptions: gh.ListOptions{PerPage: perPage}}
	for {
		if err := c.wait(ctx); err != nil {
			return err
		}
		page, resp, err := c.gh.PullRequests.List(ctx, owner, repo, opt)
		if err != nil {
			return fmt.Errorf("github: list pulls %s/%s page %d: %w", owner, repo, opt.Page, err)
		}
		kept := page[:0]
		for _, pr := range page {
			if pr.ClosedAt != nil && !w.Contains(pr.GetClosedAt().Time) {
				continue
			}
			kept = append(kept, pr)
		}
		if err := fn(kept); err != nil {
			return err
		}
		if resp.NextPage == 0 {
			return nil
		}
		opt.Page = resp.NextPage
	}
}

// CommitStats fetches additions/deletions for one commit.
func (c *Client) CommitStats(ctx context.Context, repository, sha string) (domain.CommitStats, error) {
	owner, name, err := SplitRepo(repository)
	if err != nil {
		return domain.CommitStats{}, err
	}
	if err := c.wait(ctx); err != nil {
		return domain.CommitStats{}, err
	}
	rc, _, err := c.gh.Repositories.GetCommit(ctx, owner, name, sha, nil)
	if err != nil {
		return domain.CommitStats{}, fmt.Errorf("github: commit %s@%s: %w", repository, sha, err)
	}
	st := rc.GetStats()
	return domain.CommitStats{Total: st.GetTotal(), Additions: st.GetAdditions(), Deletions: st.GetDeletions()}, nil
}

// An empty repository answers the commits listing with 409.
func isEmptyRepo(err error) bool {
	var er *gh.ErrorResponse
	return errors.As(err, &er) && er.Response != nil && er.Response.StatusCode == http.StatusConflict
}
