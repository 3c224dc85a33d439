/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */

// Package enrich fetches supplementary statistics from the platform APIs.
// Commit and milestone lookups fail soft; token acquisition fails hard.
package enrich

import (
	"context"
	"fmt"
	"time"

	"github.com/HamedShams/agile-ingest/internal/cache"
	"github.com/HamedShams/agile-ingest/internal/domain"
	"github.com/rs/zerolog"
)

type CommitAPI interface {
	CommitStats(ctx context.Context, repository, sha string) (domain.CommitStats, error)
}

// Commits wraps a CommitAPI so that every failure degrades to zero stats.
type Commits struct {
	api       CommitAPI
	clientFor func(prj string) (CommitAPI, error)
	timeout   time.Duration
	log       zerolog.Logger
}

func NewCommits(api CommitAPI, timeout time.Duration, log zerolog.Logger) *Commits {
	return &Commits{api: api, timeout: timeout, log: log}
}

// WithClients resolves the API per team so that course credentials are
// used when present. A nil client from f means the default api.
func (c *Commits) WithClients(f func(prj string) (CommitAPI, error)) *Commits {
	c.clientFor = f
	return c
}

func (c *Commits) CommitStats(ctx context.Context, prj, repository, sha string) domain.CommitStats {
	if c == nil {
		return domain.CommitStats{}
	}
	api := c.api
	if c.clientFor != nil {
		a, err := c.clientFor(prj)
		if err != nil {
			c.log.Warn().Err(err).Str("prj", prj).Msg("commit stats client unavailable, zero-filled")
			return domain.CommitStats{}
		}
		if a != nil {
			api = a
		}
	}
	if api == nil {
		return domain.CommitStats{}
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	st, err := api.CommitStats(ctx, repository, sha)
	if err != nil {
		c.log.Warn().Err(err).Str("repo", repository).Str("sha", sha).Msg("commit stats unavailable, zero-filled")
		return domain.CommitStats{}
	}
	return st
}

type TokenAPI interface {
	Token(ctx context.Context, username, password string) (string, error)
}

type Credentials struct {
	Username string
	Password string
}

func (c Credentials) Empty() bool { return c.Username == "" || c.Password == "" }

// Tokens caches tracker auth tokens per credential pair. Entries are
// refreshed margin before their nominal lifetime ends.
type Tokens struct {
	api   TokenAPI
	cache *cache.TTL[Credentials, string]
}

const tokenRefreshMargin = 60 * time.Second

func NewTokens(api TokenAPI, ttl time.Duration, now func() time.Time) *Tokens {
	if ttl > 2*tokenRefreshMargin {
		ttl -= tokenRefreshMargin
	}
	return &Tokens{api: api, cache: cache.New[Credentials, string](ttl, now)}
}

func (t *Tokens) Token(ctx context.Context, cr Credentials) (string, error) {
	if tok, ok := t.cache.Get(cr); ok {
		return tok, nil
	}
	tok, err := t.api.Token(ctx, cr.Username, cr.Password)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrTokenAcquisition, err)
	}
	t.cache.Set(cr, tok)
	return tok, nil
}

type MilestoneAPI interface {
	MilestoneStats(ctx context.Context, token string, projectID, milestoneID int64) (domain.MilestoneStats, error)
}

type milestoneKey struct{ project, milestone int64 }

// Milestones serves sprint aggregates from a short-lived cache keyed by
// (project, milestone) so bursts of related events share one lookup.
type Milestones struct {
	api    MilestoneAPI
	tokens *Tokens
	cache  *cache.TTL[milestoneKey, domain.MilestoneStats]
	log    zerolog.Logger
}

func NewMilestones(api MilestoneAPI, tokens *Tokens, ttl time.Duration, now func() time.Time, log zerolog.Logger) *Milestones {
	return &Milestones{api: api, tokens: tokens, cache: cache.New[milestoneKey, domain.MilestoneStats](ttl, now), log: log}
}

// Stats returns nil when the lookup fails; the only error is a token failure.
func (m *Milestones) Stats(ctx context.Context, cr Credentials, projectID, milestoneID int64) (*domain.MilestoneStats, error) {
	key := milestoneKey{projectID, milestoneID}
	if st, ok := m.cache.Get(key); ok {
		return &st, nil
	}
	tok, err := m.tokens.Token(ctx, cr)
	if err != nil {
		return nil, err
	}
	st, err := m.api.MilestoneStats(ctx, tok, projectID, milestoneID)
	if err != nil {
		m.log.Warn().Err(err).Int64("project", projectID).Int64("milestone", milestoneID).Msg("milestone stats unavailable")
		return nil, nil
	}
	m.cache.Set(key, st)
	return &st, nil
}
