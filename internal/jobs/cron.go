/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/HamedShams/agile-ingest/internal/config"
	"github.com/HamedShams/agile-ingest/internal/domain"
	"github.com/HamedShams/agile-ingest/internal/enrich"
	"github.com/HamedShams/agile-ingest/internal/normalize"
	"github.com/HamedShams/agile-ingest/internal/services"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

const lockKey int64 = 424242

type backfiller interface {
	GitHub(ctx context.Context, p services.GitHubParams) (services.BackfillReport, error)
	Taiga(ctx context.Context, p services.TaigaParams) (services.BackfillReport, error)
}

// Teams is satisfied by *config.Credentials.
type Teams interface {
	Teams() []string
	Resolve(prj, field string) string
}

// Locker runs fn only if no other replica holds key. *repo.PostgresStore satisfies it.
type Locker interface {
	WithAdvisoryLock(ctx context.Context, key int64, fn func(context.Context) error) (bool, error)
}

// Cron periodically reconciles every configured team over a trailing window.
type Cron struct {
	cfg   config.Config
	log   zerolog.Logger
	bf    backfiller
	teams Teams
	lock  Locker
	now   func() time.Time
	c     *cron.Cron
}

func NewCron(cfg config.Config, log zerolog.Logger, bf backfiller, teams Teams, lock Locker) (*Cron, error) {
	loc, err := normalize.LoadLocation(cfg.TZ)
	if err != nil {
		return nil, err
	}
	c := cron.New(cron.WithLocation(loc), cron.WithParser(cron.NewParser(cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow)))
	cr := &Cron{cfg: cfg, log: log, bf: bf, teams: teams, lock: lock, now: time.Now, c: c}
	if _, err := c.AddFunc(cfg.BackfillCron, cr.reconcile); err != nil {
		return nil, fmt.Errorf("backfill cron %q: %w", cfg.BackfillCron, err)
	}
	return cr, nil
}

func (cr *Cron) Start() { cr.c.Start() }

// Stop waits for a running reconciliation to finish.
func (cr *Cron) Stop() { <-cr.c.Stop().Done() }

func (cr *Cron) reconcile() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()
	run := func(ctx context.Context) error { cr.RunOnce(ctx); return nil }
	if cr.lock == nil {
		cr.RunOnce(ctx)
		return
	}
	ok, err := cr.lock.WithAdvisoryLock(ctx, lockKey, run)
	if err != nil {
		cr.log.Error().Err(err).Msg("cron: lock error")
		return
	}
	if !ok {
		cr.log.Info().Msg("cron: already running elsewhere")
	}
}

// RunOnce backfills every team on both platforms. Failures are logged per
// team and platform so one team cannot block the others.
func (cr *Cron) RunOnce(ctx context.Context) {
	until := cr.now()
	w := domain.Window{Since: until.Add(-cr.cfg.BackfillLookback), Until: until}
	runID := uuid.NewString()
	log := cr.log.With().Str("run", runID).Logger()
	log.Info().Str("window", w.String()).Int("teams", len(cr.teams.Teams())).Msg("cron: reconcile")

	for _, team := range cr.teams.Teams() {
		org, repo := cr.githubScope(team)
		gp := services.GitHubParams{
			Org:          org,
			Repo:         repo,
			Project:      team,
			QualityModel: cr.cfg.DefaultQualityModel,
			Window:       w,
			Token:        cr.teams.Resolve(team, "github_token"),
		}
		if rep, err := cr.bf.GitHub(ctx, gp); err != nil {
			log.Error().Err(err).Str("team", team).Msg("cron: github backfill failed")
		} else {
			log.Info().Str("team", team).Int("docs", rep.Total).Int("failed", rep.Failed).Msg("cron: github backfill")
		}

		tp := services.TaigaParams{
			Slug:         cr.taigaSlug(team),
			Project:      team,
			QualityModel: cr.cfg.DefaultQualityModel,
			Window:       w,
			Credentials: enrich.Credentials{
				Username: cr.teams.Resolve(team, "taiga_username"),
				Password: cr.teams.Resolve(team, "taiga_password"),
			},
		}
		if rep, err := cr.bf.Taiga(ctx, tp); err != nil {
			log.Error().Err(err).Str("team", team).Msg("cron: taiga backfill failed")
		} else {
			log.Info().Str("team", team).Int("docs", rep.Total).Int("failed", rep.Failed).Msg("cron: taiga backfill")
		}
	}
}

// githubScope maps a team to a repository of its course organization, or to
// a whole organization named after the team when no course org is set.
func (cr *Cron) githubScope(team string) (org, repo string) {
	if org := cr.teams.Resolve(team, "github_org"); org != "" {
		return org, team
	}
	return team, ""
}

// taigaSlug is the course slug when configured, else the team name.
func (cr *Cron) taigaSlug(team string) string {
	if slug := cr.teams.Resolve(team, "taiga_slug"); slug != "" {
		return slug
	}
	return team
}
