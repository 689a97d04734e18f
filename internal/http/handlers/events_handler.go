// Slack Events API webhook.
//
// One POST route receives every tenant's deliveries. The handler is
// transport-thin: it authenticates the raw body, answers URL verification,
// maps event_callback payloads onto domain.InboundEvent, and hands them to
// the pipeline. Apart from authentication and malformed JSON, every path
// answers {"status":"ok"} so Slack does not retry events the pipeline chose
// to drop.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/tbourn/duckbot/internal/auth"
	"github.com/tbourn/duckbot/internal/domain"
	"github.com/tbourn/duckbot/internal/http/middleware"
	"github.com/tbourn/duckbot/internal/services"
)

const (
	headerTimestamp = "X-Slack-Request-Timestamp"
	headerSignature = "X-Slack-Signature"
	headerRetryNum  = "X-Slack-Retry-Num"
)

// EventProcessor runs one authenticated event through the pipeline.
type EventProcessor interface {
	Handle(ctx context.Context, tenant string, ev domain.InboundEvent) (services.Outcome, error)
}

// SignatureVerifier authenticates a raw webhook body and names its tenant.
type SignatureVerifier interface {
	Verify(body []byte, timestamp, signature string, now time.Time) (string, error)
}

// Events serves the Slack webhook.
type Events struct {
	verifier SignatureVerifier
	pipeline EventProcessor
	async    bool
	now      func() time.Time

	inflight sync.WaitGroup
}

// NewEvents builds the webhook handler. With async set, events are
// acknowledged before the pipeline runs; Wait drains them on shutdown.
func NewEvents(v SignatureVerifier, p EventProcessor, async bool) *Events {
	return &Events{verifier: v, pipeline: p, async: async, now: time.Now}
}

// envelope is the outer Events API payload.
type envelope struct {
	Type      string      `json:"type"`
	Challenge string      `json:"challenge"`
	EventID   string      `json:"event_id"`
	Event     *slackEvent `json:"event"`
}

type slackEvent struct {
	Type        string `json:"type"`
	User        string `json:"user"`
	Channel     string `json:"channel"`
	Text        string `json:"text"`
	TS          string `json:"ts"`
	ThreadTS    string `json:"thread_ts"`
	BotID       string `json:"bot_id"`
	ClientMsgID string `json:"client_msg_id"`
}

// ChallengeResponse echoes a URL verification challenge.
type ChallengeResponse struct {
	Challenge string `json:"challenge"`
}

func (e slackEvent) inbound() domain.InboundEvent {
	id := e.ClientMsgID
	if id == "" {
		id = e.TS
	}
	return domain.InboundEvent{
		Kind:     domain.ParseEventKind(e.Type),
		ID:       id,
		User:     e.User,
		Channel:  e.Channel,
		Text:     e.Text,
		ThreadTS: e.ThreadTS,
		TS:       e.TS,
		BotID:    e.BotID,
	}
}

// Receive godoc
// @ID          receiveSlackEvent
// @Summary     Slack Events API webhook
// @Description Authenticates the request with the tenant signing secrets, answers url_verification, and processes message and app_mention events.
// @Tags        Webhook
// @Accept      json
// @Produce     json
// @Param       X-Slack-Request-Timestamp  header  string  true  "Request timestamp (epoch seconds)"
// @Param       X-Slack-Signature          header  string  true  "v0=<hex hmac-sha256>"
// @Success     200  {object}  handlers.StatusResponse
// @Success     200  {object}  handlers.ChallengeResponse  "url_verification"
// @Failure     400  {object}  handlers.ErrorResponse  "Malformed body"
// @Failure     401  {object}  handlers.ErrorResponse  "Invalid signature"
// @Router      /slack/events [post]
func (h *Events) Receive(c *gin.Context) {
	lg := middleware.LoggerFrom(c)

	body, err := c.GetRawData()
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unreadable body")
		return
	}

	tenant, err := h.verifier.Verify(body, c.GetHeader(headerTimestamp), c.GetHeader(headerSignature), h.now())
	if err != nil {
		lg.Warn().Err(err).Str("failure", "authentication").Msg("webhook rejected")
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "invalid signature")
		return
	}
	c.Set(middleware.TenantKey, tenant)

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	switch {
	case env.Type == string(domain.EventURLVerification):
		ok(c, http.StatusOK, ChallengeResponse{Challenge: env.Challenge})
		return
	case env.Type != "event_callback" || env.Event == nil:
		ok(c, http.StatusOK, StatusResponse{Status: "ok"})
		return
	}

	ev := env.Event.inbound()
	if retry := c.GetHeader(headerRetryNum); retry != "" {
		lg.Debug().Str("retry_num", retry).Str("slack_event_id", env.EventID).Str("event_id", ev.ID).Msg("slack redelivery")
	}

	ctx := c.Request.Context()
	if h.async {
		h.inflight.Add(1)
		go func() {
			defer h.inflight.Done()
			h.process(context.WithoutCancel(ctx), tenant, ev)
		}()
	} else {
		h.process(ctx, tenant, ev)
	}
	ok(c, http.StatusOK, StatusResponse{Status: "ok"})
}

func (h *Events) process(ctx context.Context, tenant string, ev domain.InboundEvent) {
	// Stage failures are logged by the pipeline with their failure class.
	if _, err := h.pipeline.Handle(ctx, tenant, ev); errors.Is(err, services.ErrUnknownTenant) {
		zerolog.Ctx(ctx).Error().Err(err).Msg("event dropped")
	}
}

// Wait blocks until in-flight asynchronous events finish or ctx is done.
func (h *Events) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		h.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var _ SignatureVerifier = (*auth.Verifier)(nil)
