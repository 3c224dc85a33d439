/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/HamedShams/agile-ingest/internal/app"
	"github.com/HamedShams/agile-ingest/internal/config"
	apihttp "github.com/HamedShams/agile-ingest/internal/http"
	"github.com/HamedShams/agile-ingest/internal/jobs"
	"github.com/HamedShams/agile-ingest/internal/logger"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}
	lg := logger.New(cfg)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(ctx, cfg, lg)
	if err != nil {
		lg.Fatal().Err(err).Msg("startup failed")
	}
	defer a.Close()

	// Cron
	if cfg.BackfillCron != "" {
		var lock jobs.Locker
		if a.Postgres != nil {
			lock = a.Postgres
		}
		cr, err := jobs.NewCron(cfg, lg, a.Backfiller, a.Creds, lock)
		if err != nil {
			lg.Fatal().Err(err).Msg("cron")
		}
		cr.Start()
		defer cr.Stop()
		lg.Info().Str("schedule", cfg.BackfillCron).Dur("lookback", cfg.BackfillLookback).Msg("scheduled reconciliation enabled")
	}

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: apihttp.NewRouter(cfg, lg, a.Service), ReadHeaderTimeout: 10 * time.Second}

	// graceful shutdown
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	lg.Info().Str("addr", cfg.HTTPAddr).Msg("listening")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		lg.Info().Msg("shutting down...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Error().Err(err).Msg("http server error")
		}
	}

	sctx, scancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer scancel()
	if err := srv.Shutdown(sctx); err != nil {
		lg.Error().Err(err).Msg("http shutdown")
	}
}
