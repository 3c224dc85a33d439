/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package main

import (
	"context"

	"github.com/HamedShams/agile-ingest/internal/app"
	"github.com/HamedShams/agile-ingest/internal/enrich"
	"github.com/HamedShams/agile-ingest/internal/services"
	"github.com/spf13/cobra"
)

func taigaCmd() *cobra.Command {
	var (
		c    common
		slug string
	)
	cmd := &cobra.Command{
		Use:   "taiga",
		Short: "Backfill tasks, user stories, issues and epics",
		Long: `Backfill Taiga history for one team.

The project is looked up by --slug, defaulting to the course taiga_slug
and then to the team id.

Examples:
  backfill taiga --prj team-a
  backfill taiga --slug course-team-a --prj team-a --events task,userstory --to-date 2024-05-31`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, c, func(ctx context.Context, a *app.App) (services.BackfillReport, error) {
				w, err := parseWindow(c.fromDate, c.toDate, a.Cfg.TZ)
				if err != nil {
					return services.BackfillReport{Window: w}, err
				}
				return a.Backfiller.Taiga(ctx, services.TaigaParams{
					Slug:         projectSlug(slug, c.prj, a.Creds),
					Project:      c.prj,
					QualityModel: c.qualityModel,
					Events:       c.events,
					Window:       w,
					Credentials: enrich.Credentials{
						Username: a.Creds.Resolve(c.prj, "taiga_username"),
						Password: a.Creds.Resolve(c.prj, "taiga_password"),
					},
				})
			})
		},
	}
	cmd.Flags().StringVar(&slug, "slug", "", "project slug (default: course taiga_slug, then --prj)")
	c.register(cmd, services.DefaultTaigaEvents)
	return cmd
}

type resolver interface {
	Resolve(prj, field string) string
}

// projectSlug picks --slug, then the course taiga_slug, then the team id.
func projectSlug(flag, prj string, creds resolver) string {
	if flag != "" {
		return flag
	}
	if s := creds.Resolve(prj, "taiga_slug"); s != "" {
		return s
	}
	return prj
}
