/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package services

import (
	"context"
	"errors"

	"github.com/HamedShams/agile-ingest/internal/domain"
	"github.com/HamedShams/agile-ingest/internal/enrich"
	"github.com/HamedShams/agile-ingest/internal/normalize"
	"github.com/rs/zerolog"
)

// MilestoneStatser is satisfied by *enrich.Milestones.
type MilestoneStatser interface {
	Stats(ctx context.Context, cr enrich.Credentials, projectID, milestoneID int64) (*domain.MilestoneStats, error)
}

// CredentialSource resolves per-team credentials; *config.Credentials satisfies it.
type CredentialSource interface {
	Resolve(prj, field string) string
}

func taigaCredentials(cs CredentialSource, prj string) enrich.Credentials {
	if cs == nil {
		return enrich.Credentials{}
	}
	return enrich.Credentials{Username: cs.Resolve(prj, "taiga_username"), Password: cs.Resolve(prj, "taiga_password")}
}

// Report summarizes one webhook delivery.
type Report struct {
	Status    string `json:"status"` // ok | ignored
	Reason    string `json:"reason,omitempty"`
	Partition string `json:"partition,omitempty"`
	Written   int    `json:"written,omitempty"`
	Deleted   bool   `json:"deleted,omitempty"`
}

func ignoredReport(res normalize.Result) Report {
	return Report{Status: "ignored", Reason: res.Reason}
}

// Service is the live ingestion path.
type Service struct {
	norm       *normalize.Normalizer
	router     *Router
	milestones MilestoneStatser
	creds      CredentialSource
	log        zerolog.Logger
}

func NewService(norm *normalize.Normalizer, router *Router, milestones MilestoneStatser, creds CredentialSource, log zerolog.Logger) *Service {
	return &Service{norm: norm, router: router, milestones: milestones, creds: creds, log: log}
}

func (s *Service) HandleGitHub(ctx context.Context, event string, body []byte, prj, qualityModel string) (Report, error) {
	env, err := normalize.WithGitHubEvent(body, event)
	if err != nil {
		return Report{}, err
	}
	res := s.norm.GitHub(ctx, env, prj)
	if res.Outcome != normalize.OutcomeDocuments {
		s.log.Info().Str("event", event).Str("outcome", res.Outcome.String()).Str("reason", res.Reason).Msg("github event skipped")
		return ignoredReport(res), nil
	}
	t := Target{Platform: domain.PlatformGitHub, Project: prj, Entity: res.Entity, EventType: res.Event, Author: res.Author, QualityModel: qualityModel}
	n, err := s.router.Persist(ctx, t, res.Documents)
	rep := Report{Status: "ok", Partition: t.Partition(), Written: n}
	if err != nil {
		return rep, err
	}
	s.log.Info().Str("event", event).Str("partition", t.Partition()).Int("written", n).Msg("github event stored")
	return rep, nil
}

// HandleTaiga resolves deletes by natural key before any normalization.
func (s *Service) HandleTaiga(ctx context.Context, body []byte, prj, qualityModel string) (Report, error) {
	env := normalize.ParseTaigaEnvelope(body)
	if env.Event == normalize.TaigaUnknown {
		return Report{Status: "ignored", Reason: "unsupported event type"}, nil
	}
	t := Target{Platform: domain.PlatformTaiga, Project: prj, Entity: env.Event.Entity(), EventType: env.Type, Author: env.Author, QualityModel: qualityModel}

	if env.IsDelete() {
		key, err := normalize.TaigaDeleteKey(body)
		if err != nil {
			return Report{}, err
		}
		ok, err := s.router.Delete(ctx, t, key)
		if err != nil {
			return Report{}, err
		}
		s.log.Info().Str("partition", t.Partition()).Str("key", key).Bool("found", ok).Msg("taiga document deleted")
		return Report{Status: "ok", Partition: t.Partition(), Deleted: ok}, nil
	}

	res := s.norm.Taiga(body, prj)
	if res.Outcome != normalize.OutcomeDocuments {
		return ignoredReport(res), nil
	}
	cr := taigaCredentials(s.creds, prj)
	for i, d := range res.Documents {
		d, err := enrichMilestone(ctx, s.milestones, cr, env.ProjectID, d)
		if err != nil {
			return Report{}, err
		}
		res.Documents[i] = d
	}
	n, err := s.router.Persist(ctx, t, res.Documents)
	rep := Report{Status: "ok", Partition: t.Partition(), Written: n}
	if err != nil {
		return rep, err
	}
	s.log.Info().Str("event", env.Type).Str("action", env.Action).Str("partition", t.Partition()).Msg("taiga event stored")
	return rep, nil
}

func (s *Service) HandleActivity(ctx context.Context, body []byte, prj, qualityModel string) (Report, error) {
	row := s.norm.Activity(body, prj, qualityModel)
	t := Target{Platform: domain.PlatformSheets, Project: prj, Entity: domain.EntityActivity, EventType: "sheets_activity", QualityModel: qualityModel}
	n, err := s.router.Persist(ctx, t, []domain.Document{row})
	rep := Report{Status: "ok", Partition: t.Partition(), Written: n}
	if err != nil {
		return rep, err
	}
	return rep, nil
}

// enrichMilestone attaches sprint aggregates to tasks and user stories that
// reference a milestone. Without credentials it is a no-op.
func enrichMilestone(ctx context.Context, m MilestoneStatser, cr enrich.Credentials, projectID int64, doc domain.Document) (domain.Document, error) {
	if m == nil || cr.Empty() || projectID == 0 {
		return doc, nil
	}
	switch d := doc.(type) {
	case domain.Task:
		if d.MilestoneID == nil {
			return doc, nil
		}
		st, err := m.Stats(ctx, cr, projectID, *d.MilestoneID)
		if err != nil {
			return doc, err
		}
		d.MilestoneStats = st
		return d, nil
	case domain.UserStory:
		if d.MilestoneID == nil {
			return doc, nil
		}
		st, err := m.Stats(ctx, cr, projectID, *d.MilestoneID)
		if err != nil {
			return doc, err
		}
		d.MilestoneStats = st
		return d, nil
	}
	return doc, nil
}

// IsClientError reports errors that map to a 400 response.
func IsClientError(err error) bool {
	return errors.Is(err, domain.ErrMissingID)
}
