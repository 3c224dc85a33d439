/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package taiga

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/HamedShams/agile-ingest/internal/domain"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

// ErrNotFound is returned for 404s, e.g. an unknown project slug.
var ErrNotFound = errors.New("taiga: not found")

type Client struct {
	r   *resty.Client
	log zerolog.Logger
}

func NewClient(baseURL string, timeout time.Duration, log zerolog.Logger) *Client {
	r := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetRetryCount(2).
		SetRetryWaitTime(300 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		AddRetryCondition(func(resp *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return resp.StatusCode() == http.StatusTooManyRequests || resp.StatusCode() >= 500
		})
	return &Client{r: r, log: log}
}

func (c *Client) req(ctx context.Context, token string) *resty.Request {
	rq := c.r.R().SetContext(ctx)
	if token != "" {
		rq.SetAuthToken(token)
	}
	return rq
}

func statusErr(what string, resp *resty.Response) error {
	if resp.StatusCode() == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrNotFound, what)
	}
	return fmt.Errorf("taiga %s status=%d body=%s", what, resp.StatusCode(), strings.TrimSpace(resp.String()))
}

// Token exchanges username/password for an auth token.
func (c *Client) Token(ctx context.Context, username, password string) (string, error) {
	resp, err := c.req(ctx, "").
		SetBody(map[string]string{"username": username, "password": password, "type": "normal"}).
		Post("/api/v1/auth")
	if err != nil {
		return "", fmt.Errorf("taiga auth: %w", err)
	}
	if resp.IsError() {
		return "", statusErr("auth", resp)
	}
	tok := gjson.GetBytes(resp.Body(), "auth_token").String()
	if tok == "" {
		return "", errors.New("taiga auth: empty auth_token")
	}
	return tok, nil
}

type Project struct {
	ID   int64
	Name string
	Slug string
}

// ProjectBySlug resolves a project; token may be empty for public projects.
func (c *Client) ProjectBySlug(ctx context.Context, token, slug string) (Project, error) {
	resp, err := c.req(ctx, token).SetQueryParam("slug", slug).Get("/api/v1/projects/by_slug")
	if err != nil {
		return Project{}, fmt.Errorf("taiga project %q: %w", slug, err)
	}
	if resp.IsError() {
		return Project{}, statusErr("project "+slug, resp)
	}
	b := gjson.ParseBytes(resp.Body())
	return Project{ID: b.Get("id").Int(), Name: b.Get("name").String(), Slug: b.Get("slug").String()}, nil
}

// utcParam renders a window bound the way the list filters expect it.
func utcParam(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format("2006-01-02T15:04:05Z")
}

// List pages through a list endpoint ("tasks", "userstories", ...) for a
// project, filtered on modified_date. Pages are followed through the
// X-Pagination-Next header or a "next" URL in an object body.
func (c *Client) List(ctx context.Context, token, endpoint string, projectID int64, w domain.Window, fn func([]gjson.Result) error) error {
	params := map[string]string{"project": strconv.FormatInt(projectID, 10)}
	if !w.Since.IsZero() {
		params["modified_date__gte"] = utcParam(w.Since)
	}
	if !w.Until.IsZero() {
		params["modified_date__lte"] = utcParam(w.Until)
	}
	next := "/api/v1/" + endpoint
	for page := 1; next != ""; page++ {
		rq := c.req(ctx, token)
		if page == 1 {
			rq.SetQueryParams(params)
		}
		resp, err := rq.Get(next)
		if err != nil {
			return fmt.Errorf("taiga list %s page %d: %w", endpoint, page, err)
		}
		if resp.IsError() {
			return statusErr("list "+endpoint, resp)
		}
		body := gjson.ParseBytes(resp.Body())
		items := body
		next = resp.Header().Get("X-Pagination-Next")
		if body.IsObject() {
			items = body.Get("results")
			if next == "" {
				next = body.Get("next").String()
			}
		}
		if err := fn(items.Array()); err != nil {
			return err
		}
		c.log.Debug().Str("endpoint", endpoint).Int("page", page).Int("items", len(items.Array())).Msg("taiga page")
	}
	return nil
}

// MilestoneStats reads the sprint aggregates. total_points is a per-role map,
// completed_points a list; both are summed.
func (c *Client) MilestoneStats(ctx context.Context, token string, projectID, milestoneID int64) (domain.MilestoneStats, error) {
	resp, err := c.req(ctx, token).
		SetQueryParam("project", strconv.FormatInt(projectID, 10)).
		Get("/api/v1/milestones/" + strconv.FormatInt(milestoneID, 10) + "/stats")
	if err != nil {
		return domain.MilestoneStats{}, fmt.Errorf("taiga milestone %d stats: %w", milestoneID, err)
	}
	if resp.IsError() {
		return domain.MilestoneStats{}, statusErr("milestone stats", resp)
	}
	b := gjson.ParseBytes(resp.Body())
	sum := func(r gjson.Result) float64 {
		var t float64
		r.ForEach(func(_, v gjson.Result) bool { t += v.Float(); return true })
		return t
	}
	return domain.MilestoneStats{
		TotalPoints:          sum(b.Get("total_points")),
		ClosedPoints:         sum(b.Get("completed_points")),
		TotalUserStories:     int(b.Get("total_userstories").Int()),
		CompletedUserStories: int(b.Get("completed_userstories").Int()),
		TotalTasks:           int(b.Get("total_tasks").Int()),
		CompletedTasks:       int(b.Get("completed_tasks").Int()),
	}, nil
}
