// Package notify posts finished game results to an optional external
// webhook. Delivery is best effort; failures are logged and never feed back
// into gameplay.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/chess-arena/server/internal/obslog"
)

// ResultNotice is the payload delivered for each finalized game.
type ResultNotice struct {
	RoomID      string `json:"roomId"`
	White       string `json:"white"`
	Black       string `json:"black"`
	Result      string `json:"result"`
	Reason      string `json:"reason"`
	Category    string `json:"category"`
	TimeControl string `json:"timeControl"`
	WhiteDelta  int    `json:"whiteDelta"`
	BlackDelta  int    `json:"blackDelta"`
	EndedAt     int64  `json:"endedAt"`
}

type Announcer struct {
	url     string
	http    *fasthttp.Client
	timeout time.Duration
}

// NewAnnouncer returns nil when no URL is configured; a nil Announcer is
// safe to call and does nothing.
func NewAnnouncer(webhookURL string) *Announcer {
	webhookURL = strings.TrimSpace(webhookURL)
	if webhookURL == "" {
		return nil
	}
	return &Announcer{
		url:     webhookURL,
		http:    &fasthttp.Client{ReadTimeout: 5 * time.Second, WriteTimeout: 5 * time.Second, MaxConnsPerHost: 8},
		timeout: 5 * time.Second,
	}
}

// Announce posts the notice, retrying once on failure.
func (a *Announcer) Announce(ctx context.Context, n ResultNotice) {
	if a == nil {
		return
	}
	var lastErr error
	for attempt := 1; attempt <= 2; attempt++ {
		if err := a.post(ctx, n); err != nil {
			lastErr = err
			continue
		}
		return
	}
	obslog.L().Warn("result_webhook_failed",
		zap.String("room_id", n.RoomID),
		zap.Error(lastErr),
	)
}

func (a *Announcer) post(ctx context.Context, n ResultNotice) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notice: %w", err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(fasthttp.MethodPost)
	req.SetRequestURI(a.url)
	req.Header.SetContentType("application/json")
	req.SetBody(payload)

	deadline := time.Now().Add(a.timeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	if err := a.http.DoDeadline(req, resp, deadline); err != nil {
		return fmt.Errorf("webhook request: %w", err)
	}
	if status := resp.StatusCode(); status < 200 || status >= 300 {
		return fmt.Errorf("webhook status %d", status)
	}
	return nil
}
