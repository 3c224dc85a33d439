/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */

// Package eval tells the downstream evaluation service that new documents
// were written, either over HTTP or by publishing on a Redis channel.
package eval

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/HamedShams/agile-ingest/internal/domain"
	"github.com/go-redis/redis/v8"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

type HTTPClient struct {
	url string
	r   *resty.Client
	log zerolog.Logger
}

func NewHTTPClient(url string, timeout time.Duration, log zerolog.Logger) *HTTPClient {
	return &HTTPClient{url: url, r: resty.New().SetTimeout(timeout), log: log}
}

func (c *HTTPClient) Notify(ctx context.Context, n domain.Notification) error {
	if c.url == "" {
		return fmt.Errorf("eval: missing url")
	}
	resp, err := c.r.R().SetContext(ctx).SetBody(n).Post(c.url)
	if err != nil {
		return fmt.Errorf("eval notify: %w", err)
	}
	if resp.StatusCode() >= 300 {
		return fmt.Errorf("eval notify status=%d body=%s", resp.StatusCode(), strings.TrimSpace(resp.String()))
	}
	c.log.Debug().Str("event", n.EventType).Str("prj", n.Project).Int("s", resp.StatusCode()).Msg("eval notified")
	return nil
}

// RedisPublisher fans a notification out to every subscriber of channel.
type RedisPublisher struct {
	rdb     *redis.Client
	channel string
	log     zerolog.Logger
}

func NewRedisPublisher(addr, channel string, log zerolog.Logger) *RedisPublisher {
	return &RedisPublisher{rdb: redis.NewClient(&redis.Options{Addr: addr}), channel: channel, log: log}
}

func (p *RedisPublisher) Notify(ctx context.Context, n domain.Notification) error {
	b, err := json.Marshal(n)
	if err != nil {
		return err
	}
	if err := p.rdb.Publish(ctx, p.channel, b).Err(); err != nil {
		return fmt.Errorf("eval publish %s: %w", p.channel, err)
	}
	return nil
}

func (p *RedisPublisher) Close() error { return p.rdb.Close() }

type Nop struct{}

func (Nop) Notify(context.Context, domain.Notification) error { return nil }
