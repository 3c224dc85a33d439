/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/HamedShams/agile-ingest/internal/config"
	"github.com/HamedShams/agile-ingest/internal/domain"
	"github.com/HamedShams/agile-ingest/internal/normalize"
	"github.com/HamedShams/agile-ingest/internal/services"
	"github.com/HamedShams/agile-ingest/internal/signature"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

// Ingester is satisfied by *services.Service.
type Ingester interface {
	HandleGitHub(ctx context.Context, event string, body []byte, prj, qualityModel string) (services.Report, error)
	HandleTaiga(ctx context.Context, body []byte, prj, qualityModel string) (services.Report, error)
	HandleActivity(ctx context.Context, body []byte, prj, qualityModel string) (services.Report, error)
}

type Handlers struct {
	cfg config.Config
	svc Ingester
}

func NewHandlers(cfg config.Config, svc Ingester) *Handlers {
	return &Handlers{cfg: cfg, svc: svc}
}

func (h *Handlers) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handlers) GitHubWebhook(c *gin.Context) {
	body, ok := h.accept(c, h.cfg.GitHubWebhookSecret, signature.GitHub, signature.GitHubHeader)
	if !ok {
		return
	}
	prj, qm, ok := h.params(c, body)
	if !ok {
		return
	}
	rep, err := h.svc.HandleGitHub(c.Request.Context(), c.GetHeader(normalize.GitHubEventField), body, prj, qm)
	h.respond(c, rep, err)
}

func (h *Handlers) TaigaWebhook(c *gin.Context) {
	body, ok := h.accept(c, h.cfg.TaigaWebhookSecret, signature.Taiga, signature.TaigaHeader)
	if !ok {
		return
	}
	prj, qm, ok := h.params(c, body)
	if !ok {
		return
	}
	rep, err := h.svc.HandleTaiga(c.Request.Context(), body, prj, qm)
	h.respond(c, rep, err)
}

// ExcelWebhook receives rows pushed by the team spreadsheet script. It is unsigned.
func (h *Handlers) ExcelWebhook(c *gin.Context) {
	body, ok := h.accept(c, "", nil, "")
	if !ok {
		return
	}
	prj, qm, ok := h.params(c, body)
	if !ok {
		return
	}
	rep, err := h.svc.HandleActivity(c.Request.Context(), body, prj, qm)
	h.respond(c, rep, err)
}

// accept reads the raw body and checks its signature when a secret is configured.
func (h *Handlers) accept(c *gin.Context, secret string, verify func(secret, body []byte, header string) bool, header string) ([]byte, bool) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return nil, false
	}
	if secret != "" && !verify([]byte(secret), body, c.GetHeader(header)) {
		zerolog.Ctx(c.Request.Context()).Warn().Str("ip", c.ClientIP()).Str("p", c.FullPath()).Msg("invalid webhook signature")
		c.JSON(http.StatusForbidden, gin.H{"error": "invalid signature"})
		return nil, false
	}
	return body, true
}

// params validates the team parameter and then the body.
func (h *Handlers) params(c *gin.Context, body []byte) (string, string, bool) {
	prj := c.Query("prj")
	if prj == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing prj parameter"})
		return "", "", false
	}
	if !gjson.ValidBytes(body) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return "", "", false
	}
	qm := c.Query("quality_model")
	if qm == "" {
		qm = h.cfg.DefaultQualityModel
	}
	return prj, qm, true
}

func (h *Handlers) respond(c *gin.Context, rep services.Report, err error) {
	if err == nil {
		c.JSON(http.StatusOK, rep)
		return
	}
	log := zerolog.Ctx(c.Request.Context())
	switch {
	case services.IsClientError(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrNotifyFailed):
		log.Error().Err(err).Str("partition", rep.Partition).Msg("document stored but notification failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to notify evaluation service"})
	default:
		log.Error().Err(err).Msg("webhook processing failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
