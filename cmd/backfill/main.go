/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/HamedShams/agile-ingest/internal/app"
	"github.com/HamedShams/agile-ingest/internal/config"
	"github.com/HamedShams/agile-ingest/internal/logger"
	"github.com/HamedShams/agile-ingest/internal/services"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// common flags shared by both platforms
type common struct {
	prj          string
	events       []string
	fromDate     string
	toDate       string
	qualityModel string
}

func (c *common) register(cmd *cobra.Command, defaults []string) {
	cmd.Flags().StringVar(&c.prj, "prj", "", "team / project external id (required)")
	cmd.Flags().StringSliceVar(&c.events, "events", defaults, "comma-separated entity types to backfill")
	cmd.Flags().StringVar(&c.fromDate, "from-date", "", "inclusive lower bound (YYYY-MM-DD or ISO-8601)")
	cmd.Flags().StringVar(&c.toDate, "to-date", "", "inclusive upper bound (YYYY-MM-DD or ISO-8601)")
	cmd.Flags().StringVar(&c.qualityModel, "quality-model", "", "quality profile sent with notifications")
	_ = cmd.MarkFlagRequired("prj")
}

func main() {
	rootCmd := &cobra.Command{
		Use:           "backfill",
		Short:         "Rebuild stored documents from the GitHub and Taiga list APIs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(githubCmd())
	rootCmd.AddCommand(taigaCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "backfill:", err)
		os.Exit(1)
	}
}

// run wires the application and hands it to fn. The report is printed even
// when fn fails part way.
func run(cmd *cobra.Command, c common, fn func(ctx context.Context, a *app.App) (services.BackfillReport, error)) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if c.qualityModel == "" {
		c.qualityModel = cfg.DefaultQualityModel
	}
	lg := logger.New(cfg).With().Str("run", uuid.NewString()).Str("prj", c.prj).Logger()
	ctx := cmd.Context()
	a, err := app.New(ctx, cfg, lg)
	if err != nil {
		return err
	}
	defer a.Close()

	rep, err := fn(ctx, a)
	rep.Print(cmd.OutOrStdout())
	return err
}
