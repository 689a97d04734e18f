package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/tbourn/duckbot/internal/auth"
	"github.com/tbourn/duckbot/internal/completion"
	"github.com/tbourn/duckbot/internal/config"
	"github.com/tbourn/duckbot/internal/dedup"
	"github.com/tbourn/duckbot/internal/domain"
	httpapi "github.com/tbourn/duckbot/internal/http"
	"github.com/tbourn/duckbot/internal/http/handlers"
	"github.com/tbourn/duckbot/internal/observability"
	"github.com/tbourn/duckbot/internal/ratelimit"
	"github.com/tbourn/duckbot/internal/scope"
	"github.com/tbourn/duckbot/internal/services"
	"github.com/tbourn/duckbot/internal/slackapi"
)

const shutdownGrace = 15 * time.Second

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the Slack webhook server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	cfg := a.cfg
	lg := log.With().Str("version", Version).Logger()

	shutdownOTel, err := observability.Setup(ctx, cfg.OTEL, Version, tenantIDs(cfg.Tenants))
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			lg.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	db, closeDB, err := a.openDB(ctx)
	if err != nil {
		return err
	}
	defer closeDB()

	store, closeStore, err := openDedup(ctx, cfg.Dedup, db)
	if err != nil {
		return err
	}
	defer closeStore()
	if sqlStore, ok := store.(*dedup.SQL); ok {
		go purgeLoop(ctx, sqlStore, cfg.Dedup.TTL)
	}

	tenants := make(map[string]domain.Tenant, len(cfg.Tenants))
	tokens := make(map[string]string, len(cfg.Tenants))
	secrets := make([]auth.Secret, 0, len(cfg.Tenants))
	for _, t := range cfg.Tenants {
		tenants[t.ID] = t
		tokens[t.ID] = t.BotToken
		secrets = append(secrets, auth.Secret{Tenant: t.ID, Key: t.SigningSecret})
		if t.BotToken == "" {
			lg.Warn().Str("tenant", t.ID).Msg("no bot token configured; replies for this tenant will fail")
		}
	}

	stats := &services.StatsService{DB: db, Admins: cfg.Admin.UserIDs}
	pipeline := &services.Pipeline{
		DB:      db,
		Tenants: tenants,
		Dedup:   store,
		Limiter: ratelimit.New(cfg.RateLimit, cfg.RateWindow),
		Completer: completion.WithTimeout(completion.NewOpenAI(completion.OpenAIOptions{
			APIKey:      cfg.Completion.APIKey,
			BaseURL:     cfg.Completion.BaseURL,
			MaxTokens:   cfg.Completion.MaxTokens,
			Temperature: cfg.Completion.Temperature,
		}), cfg.Completion.Timeout),
		Transport:      slackapi.New(tokens, ""),
		Stats:          stats,
		Admins:         cfg.Admin.UserIDs,
		HistoryLimit:   cfg.HistoryLimit,
		RetentionLimit: cfg.RetentionLimit,
	}
	events := handlers.NewEvents(auth.NewVerifier(secrets, cfg.SignatureTolerance), pipeline, cfg.AsyncEvents)

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, httpapi.Deps{Events: events, Stats: stats}, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		lg.Info().
			Str("addr", srv.Addr).
			Strs("tenants", tenantIDs(cfg.Tenants)).
			Str("events_path", cfg.EventsPath).
			Str("dedup", cfg.Dedup.Backend).
			Bool("admin_api", cfg.Admin.APIEnabled).
			Strs("required_events", scope.RequiredEvents).
			Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	lg.Info().Msg("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		lg.Error().Err(err).Msg("http shutdown")
	}
	if err := events.Wait(sctx); err != nil {
		lg.Warn().Err(err).Msg("abandoned in-flight events")
	}
	return nil
}

// openDedup builds the configured deduplication backend. The returned close
// function releases backend connections; the SQL backend shares db.
func openDedup(ctx context.Context, cfg config.DedupConfig, db *gorm.DB) (dedup.Store, func(), error) {
	switch cfg.Backend {
	case "sql":
		return dedup.NewSQL(db, cfg.TTL), func() {}, nil
	case "redis":
		client, err := dedup.OpenRedis(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		return dedup.NewRedis(client, cfg.TTL), func() { _ = client.Close() }, nil
	default:
		return dedup.NewMemory(cfg.Capacity, cfg.TTL), func() {}, nil
	}
}

// purgeLoop deletes expired processed-event rows once per ttl.
func purgeLoop(ctx context.Context, s *dedup.SQL, ttl time.Duration) {
	t := time.NewTicker(ttl)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := s.Purge(ctx)
			if err != nil {
				log.Warn().Err(err).Str("failure", "dedup_store").Msg("purge processed events")
				continue
			}
			log.Debug().Int64("deleted", n).Msg("purged processed events")
		}
	}
}

func tenantIDs(ts []domain.Tenant) []string {
	out := make([]string, 0, len(ts))
	for _, t := range ts {
		out = append(out, t.ID)
	}
	return out
}
