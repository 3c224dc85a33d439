/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package services

import (
	"context"
	"fmt"

	"github.com/HamedShams/agile-ingest/internal/domain"
	"github.com/HamedShams/agile-ingest/internal/repo"
	"github.com/rs/zerolog"
)

type Notifier interface {
	Notify(ctx context.Context, n domain.Notification) error
}

// Target identifies where a batch of documents goes and who is told about it.
type Target struct {
	Platform     domain.Platform
	Project      string
	Entity       domain.Entity
	EventType    string
	Author       string
	QualityModel string
}

func (t Target) Partition() string { return domain.PartitionName(t.Platform, t.Project, t.Entity) }

func (t Target) notification() domain.Notification {
	return domain.Notification{EventType: t.EventType, Project: t.Project, AuthorLogin: t.Author, QualityModel: t.QualityModel}
}

// Router owns the write discipline: upsert by natural key, delete by natural
// key, and the notification that follows a committed write.
type Router struct {
	store    repo.Store
	notifier Notifier
	log      zerolog.Logger
}

func NewRouter(store repo.Store, notifier Notifier, log zerolog.Logger) *Router {
	return &Router{store: store, notifier: notifier, log: log}
}

// Write upserts docs without notifying. Multi-document writes are unordered.
func (r *Router) Write(ctx context.Context, t Target, docs []domain.Document) (int, error) {
	switch len(docs) {
	case 0:
		return 0, nil
	case 1:
		if err := r.store.Upsert(ctx, t.Partition(), docs[0]); err != nil {
			return 0, fmt.Errorf("upsert %s/%s: %w", t.Partition(), docs[0].Key(), err)
		}
		return 1, nil
	}
	n, err := r.store.UpsertMany(ctx, t.Partition(), docs)
	if err != nil {
		return n, fmt.Errorf("upsert %d/%d into %s: %w", len(docs)-n, len(docs), t.Partition(), err)
	}
	return n, nil
}

// Persist writes docs and then notifies. A notify failure is returned as
// domain.ErrNotifyFailed; the write stays committed.
func (r *Router) Persist(ctx context.Context, t Target, docs []domain.Document) (int, error) {
	n, err := r.Write(ctx, t, docs)
	if err != nil {
		return n, err
	}
	if err := r.Notify(ctx, t); err != nil {
		return n, err
	}
	return n, nil
}

func (r *Router) Notify(ctx context.Context, t Target) error {
	if r.notifier == nil {
		return nil
	}
	if err := r.notifier.Notify(ctx, t.notification()); err != nil {
		r.log.Error().Err(err).Str("event", t.EventType).Str("prj", t.Project).Msg("notify eval failed")
		return fmt.Errorf("%w: %v", domain.ErrNotifyFailed, err)
	}
	return nil
}

// Delete removes exactly one document by natural key. It never notifies.
func (r *Router) Delete(ctx context.Context, t Target, key string) (bool, error) {
	if key == "" {
		return false, domain.ErrMissingID
	}
	ok, err := r.store.Delete(ctx, t.Partition(), key)
	if err != nil {
		return false, fmt.Errorf("delete %s/%s: %w", t.Partition(), key, err)
	}
	return ok, nil
}
