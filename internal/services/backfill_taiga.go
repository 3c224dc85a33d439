/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/HamedShams/agile-ingest/internal/adapters/taiga"
	"github.com/HamedShams/agile-ingest/internal/domain"
	"github.com/HamedShams/agile-ingest/internal/enrich"
	"github.com/HamedShams/agile-ingest/internal/normalize"
	"github.com/tidwall/gjson"
)

var DefaultTaigaEvents = []string{"task", "userstory", "issue", "epic"}

type TaigaParams struct {
	Slug         string
	Project      string
	QualityModel string
	Events       []string
	Window       domain.Window
	// Credentials are optional for public projects; they also enable milestone stats.
	Credentials enrich.Credentials
}

func (b *Backfiller) Taiga(ctx context.Context, p TaigaParams) (BackfillReport, error) {
	rep := newReport(p.Window)
	events := p.Events
	if len(events) == 0 {
		events = DefaultTaigaEvents
	}
	for _, e := range events {
		if _, ok := normalize.TaigaListEndpoint(normalize.ParseTaigaEvent(e)); !ok {
			return *rep, fmt.Errorf("%w: %s", domain.ErrUnknownEntity, e)
		}
	}

	token := ""
	if !p.Credentials.Empty() && b.tokens != nil {
		var err error
		if token, err = b.tokens.Token(ctx, p.Credentials); err != nil {
			return *rep, err
		}
	}
	proj, err := b.taiga.ProjectBySlug(ctx, token, p.Slug)
	if errors.Is(err, taiga.ErrNotFound) || (err == nil && proj.ID == 0) {
		return *rep, fmt.Errorf("%w: slug %q", domain.ErrNoProjects, p.Slug)
	}
	if err != nil {
		return *rep, err
	}

	for _, e := range events {
		ev := normalize.ParseTaigaEvent(e)
		endpoint, _ := normalize.TaigaListEndpoint(ev)
		t := Target{Platform: domain.PlatformTaiga, Project: p.Project, Entity: ev.Entity(), EventType: e, Author: normalize.BackfillAuthor, QualityModel: p.QualityModel}
		n := 0
		err := b.taiga.List(ctx, token, endpoint, proj.ID, p.Window, func(items []gjson.Result) error {
			docs := make([]domain.Document, 0, len(items))
			for _, it := range items {
				doc, err := b.norm.TaigaListDocument(ev, it, p.Project)
				if err != nil {
					b.log.Warn().Err(err).Str("entity", e).Msg("skipping list record")
					continue
				}
				if doc, err = enrichMilestone(ctx, b.milestones, p.Credentials, proj.ID, doc); err != nil {
					return err
				}
				docs = append(docs, doc)
			}
			n += b.writePage(ctx, t, docs, rep)
			return nil
		})
		rep.add(e, n)
		if err != nil {
			return *rep, err
		}
		b.log.Info().Str("slug", p.Slug).Str("entity", e).Int("docs", n).Msg("taiga backfill")
		b.notify(ctx, t)
	}
	return *rep, nil
}
