// Package services – Pipeline
//
// This file implements Pipeline, the per-event state machine behind the
// webhook. An authenticated event moves through deduplication, scope
// resolution, command interception, admission, history retrieval,
// completion, persistence, and reply dispatch. Each stage can end the event
// early:
//
//   - duplicate, ineligible, and rate-limited events are dropped (the
//     rate-limited user gets a notice);
//   - a failed completion degrades to a fixed fallback reply that is still
//     stored with zero tokens;
//   - a failed store is reported as ErrPersistence and the user sees the
//     fallback notice;
//   - a failed reply post is logged and the stored turn is kept.
//
// Retrieval through append runs under a per-scope lock so two events in one
// scope cannot both read stale history. The append itself runs detached from
// the request context so a cancelled request never leaves half a write; a
// request cancelled before the append stores nothing and posts nothing.
//
// Observability: every event gets a span, an outcome counter, and request
// scoped logs carrying tenant, event id, and scope.
package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/tbourn/duckbot/internal/completion"
	"github.com/tbourn/duckbot/internal/dedup"
	"github.com/tbourn/duckbot/internal/domain"
	"github.com/tbourn/duckbot/internal/repo"
	"github.com/tbourn/duckbot/internal/scope"

	// OpenTelemetry
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Outcome is the terminal state of one event.
type Outcome string

const (
	OutcomeReplied     Outcome = "replied"
	OutcomeFallback    Outcome = "fallback"
	OutcomeCommand     Outcome = "command"
	OutcomeDuplicate   Outcome = "duplicate"
	OutcomeIneligible  Outcome = "ineligible"
	OutcomeRateLimited Outcome = "rate_limited"
	OutcomeAbandoned   Outcome = "abandoned"
	OutcomeRejected    Outcome = "rejected"
)

// Transport posts replies and looks up Slack identities.
type Transport interface {
	PostMessage(ctx context.Context, tenant, channel, threadTS, text string) error
	UserName(ctx context.Context, tenant, user string) (string, error)
	BotUserID(ctx context.Context, tenant string) (string, error)
}

// Limiter admits or denies one request for a user.
type Limiter interface {
	Allow(user string) bool
	Remaining(user string) int
}

// Pipeline processes authenticated webhook events. All fields except Now
// are required. Completer is called while the scope lock is held, so it
// should be bounded (see completion.WithTimeout). A Pipeline is safe for
// concurrent use once configured.
type Pipeline struct {
	DB        *gorm.DB
	Tenants   map[string]domain.Tenant
	Dedup     dedup.Store
	Limiter   Limiter
	Completer completion.Dispatcher
	Transport Transport
	Stats     *StatsService

	// Admins may run stats and query commands.
	Admins []string

	HistoryLimit   int
	RetentionLimit int

	Now func() time.Time

	locks scopeLocks
}

func (p *Pipeline) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

func (p *Pipeline) isAdmin(user string) bool { return slices.Contains(p.Admins, user) }

// FallbackReply is sent when no generated text can be delivered.
func FallbackReply(t domain.Tenant) string {
	return t.Prefix + " Something went wrong. Could you try asking your question again?"
}

// RateLimitNotice is sent to users who exhausted their window.
func RateLimitNotice(t domain.Tenant) string {
	interjection := "Quack!"
	if t.ID == "goose" {
		interjection = "Honk!"
	}
	return t.Prefix + " " + interjection + " Take a break and think about the questions that have been asked. What have you tried so far?"
}

// Directive appends the author's name to the tenant's system prompt.
func Directive(t domain.Tenant, userName string) string {
	if userName == "" {
		return t.Directive
	}
	return t.Directive + "\n\nThe student's name is " + userName + ". Feel free to address them by name in your responses."
}

// FallbackUserName is used when the display name lookup fails.
func FallbackUserName(userID string) string {
	if len(userID) > 4 {
		userID = userID[len(userID)-4:]
	}
	return "User_" + userID
}

// Handle runs ev for tenantID through the pipeline. The returned error is nil
// for replied and command outcomes; otherwise it wraps one or more of the
// package's sentinel errors.
func (p *Pipeline) Handle(ctx context.Context, tenantID string, ev domain.InboundEvent) (Outcome, error) {
	tenant, ok := p.Tenants[tenantID]
	if !ok {
		return OutcomeRejected, fmt.Errorf("%w: %q", ErrUnknownTenant, tenantID)
	}

	tr := otel.Tracer("services/Pipeline")
	ctx, span := tr.Start(ctx, "Handle",
		trace.WithAttributes(
			attribute.String("tenant", tenant.ID),
			attribute.String("event.id", ev.ID),
			attribute.String("event.kind", string(ev.Kind)),
		),
	)
	defer span.End()

	log := zerolog.Ctx(ctx).With().
		Str("tenant", tenant.ID).
		Str("event_id", ev.ID).
		Str("event_kind", string(ev.Kind)).
		Logger()
	ctx = log.WithContext(ctx)

	out, err := p.handle(ctx, tenant, ev)

	eventsTotal.WithLabelValues(tenant.ID, string(out)).Inc()
	span.SetAttributes(attribute.String("outcome", string(out)))
	if err != nil && out != OutcomeDuplicate && out != OutcomeIneligible {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	log.Debug().Str("outcome", string(out)).Err(err).Msg("event handled")
	return out, err
}

func (p *Pipeline) handle(ctx context.Context, tenant domain.Tenant, ev domain.InboundEvent) (Outcome, error) {
	log := zerolog.Ctx(ctx)

	if ev.BotID != "" {
		return OutcomeIneligible, fmt.Errorf("%w: bot message", ErrIneligible)
	}

	// Deduplicated
	seen, err := p.Dedup.Seen(ctx, dedup.Key{EventID: ev.ID, Tenant: tenant.ID, Kind: string(ev.Kind)})
	if err != nil {
		failuresTotal.WithLabelValues("dedup_store").Inc()
		log.Warn().Err(err).Str("failure", "dedup_store").Msg("dedup store unavailable; processing event")
	} else if seen {
		return OutcomeDuplicate, ErrDuplicateEvent
	}

	// ScopeResolved
	botID, err := p.Transport.BotUserID(ctx, tenant.ID)
	if err != nil {
		log.Warn().Err(err).Msg("bot identity unknown")
	}
	res := scope.Resolve(tenant.ID, botID, ev)
	if !res.Eligible {
		return OutcomeIneligible, fmt.Errorf("%w: %s", ErrIneligible, res.Reason)
	}
	key := res.Key
	l := log.With().Str("scope", key.String()).Str("channel_kind", res.Kind.String()).Logger()
	log = &l
	ctx = log.WithContext(ctx)

	// AdmissionChecked: commands first, they never consume budget.
	if res.Kind == domain.ChannelDirect {
		cmd := ParseCommand(res.Text)
		if cmd.Kind != CmdNone && (!cmd.Privileged() || p.isAdmin(ev.User)) {
			return p.runCommand(ctx, tenant, res, cmd)
		}
	}

	if !p.Limiter.Allow(ev.User) {
		log.Info().Msg("rate limited")
		err := p.reply(ctx, tenant, res, RateLimitNotice(tenant))
		return OutcomeRateLimited, errors.Join(ErrAdmissionDenied, err)
	}
	log.Debug().Int("remaining", p.Limiter.Remaining(ev.User)).Msg("admitted")

	userName, err := p.Transport.UserName(ctx, tenant.ID, ev.User)
	if err != nil || userName == "" {
		log.Warn().Err(err).Msg("display name lookup failed")
		userName = FallbackUserName(ev.User)
	}

	text, genErr, storeErr := p.converse(ctx, tenant, key, userName, res.Text)
	if errors.Is(storeErr, context.Canceled) || errors.Is(storeErr, context.DeadlineExceeded) {
		return OutcomeAbandoned, errors.Join(genErr, storeErr)
	}

	// Replied
	deliveryErr := p.reply(ctx, tenant, res, text)

	out := OutcomeReplied
	if genErr != nil || storeErr != nil {
		out = OutcomeFallback
	}
	return out, errors.Join(genErr, storeErr, deliveryErr)
}

// converse holds the scope lock across retrieve, complete, and append and
// returns the text to post. genErr and storeErr are independent: a failed
// completion still stores the fallback turn.
func (p *Pipeline) converse(ctx context.Context, tenant domain.Tenant, key domain.ScopeKey, userName, message string) (text string, genErr, storeErr error) {
	log := zerolog.Ctx(ctx)

	unlock, err := p.locks.lock(ctx, key.String())
	if err != nil {
		return "", nil, err
	}
	defer unlock()

	history, err := repo.RetrieveTurns(ctx, p.DB, key, p.HistoryLimit)
	if err != nil {
		failuresTotal.WithLabelValues("persistence").Inc()
		log.Error().Err(err).Str("failure", "persistence").Msg("history retrieval failed")
		return FallbackReply(tenant), nil, fmt.Errorf("%w: retrieve: %w", ErrPersistence, err)
	}

	// Dispatched
	reply, tokens, genErr := p.complete(ctx, tenant, userName, history, message)
	// The caller went away; nothing is stored because nothing can be posted.
	if err := ctx.Err(); err != nil {
		return "", genErr, err
	}

	// Persisted
	turn := domain.NewTurn(key, userName, message, reply, tokens, p.now())
	if err := repo.AppendTurn(context.WithoutCancel(ctx), p.DB, turn, p.RetentionLimit); err != nil {
		failuresTotal.WithLabelValues("persistence").Inc()
		log.Error().Err(err).Str("failure", "persistence").Msg("turn append failed")
		return FallbackReply(tenant), genErr, fmt.Errorf("%w: append: %w", ErrPersistence, err)
	}
	return reply, genErr, nil
}

func (p *Pipeline) complete(ctx context.Context, tenant domain.Tenant, userName string, history []domain.Turn, message string) (string, int, error) {
	tr := otel.Tracer("services/Pipeline")
	ctx, span := tr.Start(ctx, "complete", trace.WithAttributes(attribute.Int("history.len", len(history))))
	defer span.End()

	req := completion.Request{
		Model:     tenant.Model,
		Directive: Directive(tenant, userName),
		Message:   message,
		History:   make([]completion.Exchange, 0, len(history)),
	}
	for _, h := range history {
		req.History = append(req.History, completion.Exchange{Message: h.Message, Reply: h.Response})
	}

	start := time.Now()
	res, err := p.Completer.Complete(ctx, req)
	completionSeconds.WithLabelValues(tenant.ID).Observe(time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		failuresTotal.WithLabelValues("generation").Inc()
		zerolog.Ctx(ctx).Error().Err(err).Str("failure", "generation").Msg("completion failed; using fallback")
		return FallbackReply(tenant), 0, fmt.Errorf("%w: %w", ErrGeneration, err)
	}
	span.SetAttributes(attribute.Int("tokens", res.Tokens))
	return res.Text, max(res.Tokens, 0), nil
}

// reply posts text to the origin channel, threaded only for channel threads.
func (p *Pipeline) reply(ctx context.Context, tenant domain.Tenant, res scope.Resolution, text string) error {
	threadTS := ""
	if res.Threaded() {
		threadTS = res.Key.Thread
	}
	if err := p.Transport.PostMessage(ctx, tenant.ID, res.Channel, threadTS, text); err != nil {
		failuresTotal.WithLabelValues("delivery").Inc()
		zerolog.Ctx(ctx).Error().Err(err).Str("failure", "delivery").Msg("reply post failed")
		return fmt.Errorf("%w: %w", ErrDelivery, err)
	}
	return nil
}

func (p *Pipeline) runCommand(ctx context.Context, tenant domain.Tenant, res scope.Resolution, cmd Command) (Outcome, error) {
	log := zerolog.Ctx(ctx)

	var (
		text string
		err  error
	)
	switch cmd.Kind {
	case CmdReset:
		var n int64
		unlock, lerr := p.locks.lock(ctx, res.Key.String())
		if lerr != nil {
			return OutcomeAbandoned, lerr
		}
		n, err = repo.ResetScope(context.WithoutCancel(ctx), p.DB, res.Key)
		unlock()
		text = formatReset(tenant.Prefix, n)
		log.Info().Int64("deleted", n).Msg("conversation reset")
	case CmdStats:
		var s Summary
		s, err = p.Stats.Summary(ctx, tenant.ID)
		text = formatStats(tenant.Prefix, s)
	case CmdQuery:
		var qs []Query
		qs, err = p.Stats.RecentQueries(ctx, tenant.ID, cmd.N)
		text = formatQueries(tenant.Prefix, qs)
	}
	if err != nil {
		failuresTotal.WithLabelValues("persistence").Inc()
		log.Error().Err(err).Str("failure", "persistence").Msg("command failed")
		err = fmt.Errorf("%w: %w", ErrPersistence, err)
		text = FallbackReply(tenant)
	}
	return OutcomeCommand, errors.Join(err, p.reply(ctx, tenant, res, text))
}
