/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package http

import (
	"time"

	"github.com/HamedShams/agile-ingest/internal/config"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const RequestIDHeader = "X-Request-ID"

func NewRouter(cfg config.Config, log zerolog.Logger, svc Ingester) *gin.Engine {
	if cfg.AppEnv != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(log))

	h := NewHandlers(cfg, svc)

	r.GET("/healthz", h.Healthz)
	wh := r.Group("/webhook")
	wh.POST("/github", h.GitHubWebhook)
	wh.POST("/taiga", h.TaigaWebhook)
	wh.POST("/excel", h.ExcelWebhook)

	return r
}

// requestLogger tags every request with an id, exposes a request-scoped logger
// through the request context and writes one access line per request.
func requestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		rid := c.GetHeader(RequestIDHeader)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Header(RequestIDHeader, rid)
		l := log.With().Str("request_id", rid).Logger()
		c.Request = c.Request.WithContext(l.WithContext(c.Request.Context()))

		c.Next()

		l.Info().Str("m", c.Request.Method).Str("p", c.FullPath()).Int("s", c.Writer.Status()).Dur("lat", time.Since(start)).Msg("http")
	}
}
