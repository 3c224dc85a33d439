/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */

// Package app wires configuration, storage, platform clients and services
// into the components the binaries run.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/HamedShams/agile-ingest/internal/adapters/eval"
	ghadapter "github.com/HamedShams/agile-ingest/internal/adapters/github"
	"github.com/HamedShams/agile-ingest/internal/adapters/taiga"
	"github.com/HamedShams/agile-ingest/internal/cache"
	"github.com/HamedShams/agile-ingest/internal/config"
	"github.com/HamedShams/agile-ingest/internal/enrich"
	"github.com/HamedShams/agile-ingest/internal/normalize"
	"github.com/HamedShams/agile-ingest/internal/repo"
	"github.com/HamedShams/agile-ingest/internal/services"
	"github.com/rs/zerolog"
)

type App struct {
	Cfg   config.Config
	Log   zerolog.Logger
	Creds *config.Credentials

	Store repo.Store
	// Postgres is nil when STORE=memory; it provides the cron advisory lock.
	Postgres *repo.PostgresStore

	Service    *services.Service
	Backfiller *services.Backfiller

	ghOpt     ghadapter.Options
	ghClients *cache.TTL[string, *ghadapter.Client]
	closers   []func()
}

func New(ctx context.Context, cfg config.Config, log zerolog.Logger) (*App, error) {
	a := &App{Cfg: cfg, Log: log}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	loc, err := normalize.LoadLocation(cfg.TZ)
	if err != nil {
		return nil, err
	}
	if a.Creds, err = config.LoadCredentials(cfg.CredentialsFile, cfg); err != nil {
		return nil, err
	}
	if err := a.openStore(ctx); err != nil {
		return nil, err
	}
	notifier := a.notifier()

	a.ghOpt = ghadapter.Options{Token: cfg.GitHubToken, BaseURL: cfg.GitHubAPIURL, Timeout: cfg.HTTPTimeout, RatePerSec: cfg.APIRatePerSec}
	a.ghClients = cache.New[string, *ghadapter.Client](cfg.TokenTTL, nil)
	gh, err := ghadapter.NewClient(a.ghOpt, log)
	if err != nil {
		return nil, err
	}
	tg := taiga.NewClient(cfg.TaigaAPIURL, cfg.HTTPTimeout, log)
	tokens := enrich.NewTokens(tg, cfg.TokenTTL, nil)
	milestones := enrich.NewMilestones(tg, tokens, cfg.MilestoneCacheTTL, nil, log)

	commits := enrich.NewCommits(gh, cfg.HTTPTimeout, log).WithClients(a.commitsFor)
	norm := normalize.New(loc, commits)
	router := services.NewRouter(a.Store, notifier, log)
	a.Service = services.NewService(norm, router, milestones, a.Creds, log)
	a.Backfiller = services.NewBackfiller(norm, router, gh, tg, tokens, milestones, log).WithGitHubClients(a.githubFor)

	log.Info().Str("store", cfg.Store).Str("notifier", cfg.Notifier).Str("tz", loc.String()).Int("teams", len(a.Creds.Teams())).Msg("app wired")
	ok = true
	return a, nil
}

func (a *App) openStore(ctx context.Context) error {
	if a.Cfg.Store == "memory" {
		a.Store = repo.NewMemoryStore()
		a.Log.Warn().Msg("using in-memory store, documents are lost on exit")
		return nil
	}
	db, err := repo.Open(ctx, a.Cfg.DBDSN, a.Log)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, db.Close)
	pg := repo.NewPostgresStore(db, a.Log)
	sctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := pg.EnsureSchema(sctx); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	a.Store, a.Postgres = pg, pg
	return nil
}

func (a *App) notifier() services.Notifier {
	switch a.Cfg.Notifier {
	case "none":
		return eval.Nop{}
	case "redis":
		p := eval.NewRedisPublisher(a.Cfg.RedisAddr, a.Cfg.RedisChannel, a.Log)
		a.closers = append(a.closers, func() { _ = p.Close() })
		return p
	}
	return eval.NewHTTPClient(a.Cfg.EvalURL, a.Cfg.EvalTimeout, a.Log)
}

// githubFor returns a client authenticated with a course token.
func (a *App) githubFor(token string) (services.GitHubLister, error) {
	c, err := a.githubClient(token)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// commitsFor picks the stats client for a team. A nil client means the
// global GITHUB_TOKEN client.
func (a *App) commitsFor(prj string) (enrich.CommitAPI, error) {
	token := a.Creds.Resolve(prj, "github_token")
	if token == "" || token == a.Cfg.GitHubToken {
		return nil, nil
	}
	c, err := a.githubClient(token)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (a *App) githubClient(token string) (*ghadapter.Client, error) {
	if c, ok := a.ghClients.Get(token); ok {
		return c, nil
	}
	opt := a.ghOpt
	opt.Token = token
	c, err := ghadapter.NewClient(opt, a.Log)
	if err != nil {
		return nil, err
	}
	a.ghClients.Set(token, c)
	return c, nil
}

// Close releases connections in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
