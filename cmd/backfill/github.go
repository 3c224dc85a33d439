/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package main

import (
	"context"
	"fmt"

	"github.com/HamedShams/agile-ingest/internal/app"
	"github.com/HamedShams/agile-ingest/internal/services"
	"github.com/spf13/cobra"
)

func githubCmd() *cobra.Command {
	var (
		c    common
		org  string
		repo string
	)
	cmd := &cobra.Command{
		Use:   "github",
		Short: "Backfill commits, issues and closed pull requests",
		Long: `Backfill GitHub history for one team.

Without --repo every repository of the organization is processed.

Examples:
  backfill github --org course-2024 --repo team-a --prj team-a
  backfill github --org team-a --prj team-a --events commits --from-date 2024-02-01`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, c, func(ctx context.Context, a *app.App) (services.BackfillReport, error) {
				w, err := parseWindow(c.fromDate, c.toDate, a.Cfg.TZ)
				if err != nil {
					return services.BackfillReport{Window: w}, err
				}
				if org == "" {
					org = a.Creds.Resolve(c.prj, "github_org")
				}
				if org == "" {
					return services.BackfillReport{Window: w}, fmt.Errorf("--org is required when no course organization is configured for %s", c.prj)
				}
				return a.Backfiller.GitHub(ctx, services.GitHubParams{
					Org:          org,
					Repo:         repo,
					Project:      c.prj,
					QualityModel: c.qualityModel,
					Events:       c.events,
					Window:       w,
					Token:        a.Creds.Resolve(c.prj, "github_token"),
				})
			})
		},
	}
	cmd.Flags().StringVar(&org, "org", "", "organization / owner")
	cmd.Flags().StringVar(&repo, "repo", "", "repository name (default: all repositories of --org)")
	c.register(cmd, services.DefaultGitHubEvents)
	return cmd
}
