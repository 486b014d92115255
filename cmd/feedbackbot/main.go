// Command feedbackbot runs the Telegram feedback relay: users send
// suggestions, complaints and messages; the administrator triages and
// answers them from the same chat. Alongside the bot it serves health,
// metrics, an optional webhook endpoint and an optional read-only admin API.
//
// @title                      Feedback Bot Admin API
// @version                    1.0
// @description                Read-only view of the feedback bot's triage queue, user directory and per-user history.
// @BasePath                   /api/v1
// @securityDefinitions.apikey BearerAuth
// @in                         header
// @name                       Authorization
// @description                Type "Bearer" followed by the ADMIN_API_TOKEN.
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
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-feedback-bot/internal/bot"
	"github.com/tbourn/go-feedback-bot/internal/config"
	httpapi "github.com/tbourn/go-feedback-bot/internal/http"
	"github.com/tbourn/go-feedback-bot/internal/http/middleware"
	"github.com/tbourn/go-feedback-bot/internal/i18n"
	"github.com/tbourn/go-feedback-bot/internal/observability"
	"github.com/tbourn/go-feedback-bot/internal/repo"
	"github.com/tbourn/go-feedback-bot/internal/services"
	"github.com/tbourn/go-feedback-bot/internal/session"
	"github.com/tbourn/go-feedback-bot/internal/sysutil"
	"github.com/tbourn/go-feedback-bot/internal/telegram"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

const housekeepingInterval = time.Minute

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("feedback bot stopped")
	}
}

func run() error {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	ver := sysutil.FirstNonEmpty(os.Getenv("APP_VERSION"), version)
	sysutil.SetupLogger(os.Stdout, cfg.LogLevel, cfg.OTEL.ServiceName, cfg.LogPretty)
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, ver)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		fctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(fctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	// Storage
	db, err := repo.OpenSQLite(cfg.DBPath, repo.Options{
		Tracing:  cfg.OTEL.Enabled,
		LogLevel: sysutil.GormLogLevel(cfg.LogLevel),
	})
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}
	if err := repo.AutoMigrate(db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	texts, err := i18n.Load()
	if err != nil {
		return fmt.Errorf("locales: %w", err)
	}

	api, err := tgbotapi.NewBotAPI(cfg.Bot.Token)
	if err != nil {
		return fmt.Errorf("telegram: %w", err)
	}
	log.Info().Str("bot", api.Self.UserName).Str("version", ver).Msg("authorized")

	// Services and dispatcher
	triage := &services.TriageService{DB: db}
	sessions := session.NewTracker(cfg.Bot.SessionTTL)
	dedupe := &bot.StoreDeduper{DB: db, TTL: cfg.Bot.UpdateDedupeTTL}
	disp := bot.New(bot.Config{
		AdminID:            cfg.Bot.AdminID,
		MaxTextRunes:       cfg.Bot.MaxMessageLength,
		UnansweredPageSize: cfg.Bot.UnansweredPageSize,
		HistoryPageSize:    cfg.Bot.HistoryPageSize,
		QueueSize:          cfg.Bot.QueueSize,
		TimeLocation:       cfg.Bot.Location(),
	}, bot.Deps{
		Gateway:   telegram.NewGateway(api),
		Texts:     texts,
		Accounts:  &services.AccountService{DB: db},
		Lifecycle: &services.LifecycleService{DB: db, MaxTextRunes: cfg.Bot.MaxMessageLength},
		Triage:    triage,
		Sessions:  sessions,
		Limiter:   middleware.NewRateLimiter(cfg.Bot.UserRateRPS, cfg.Bot.UserRateBurst, nil),
		Deduper:   dedupe,
	})

	errCh := make(chan error, 3)
	go func() { errCh <- disp.Run(ctx) }()
	go housekeep(ctx, housekeepingInterval, sessions, dedupe)

	// HTTP
	deps := httpapi.Deps{Triage: triage}
	if cfg.Webhook.Enabled() {
		deps.Sink = disp
	}
	r := gin.New()
	httpapi.RegisterRoutes(r, deps, cfg)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("http listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http: %w", err)
		}
	}()

	// Update delivery
	if cfg.Webhook.Enabled() {
		if err := telegram.SetWebhook(api, cfg.Webhook.Endpoint()); err != nil {
			stop()
			shutdownHTTP(srv, cfg.ShutdownTimeout)
			return err
		}
		log.Info().Msg("webhook registered")
	} else {
		go func() { errCh <- telegram.Poll(ctx, api, disp, cfg.Bot.PollTimeout) }()
	}

	var runErr error
	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			runErr = err
		}
		stop()
	}

	shutdownHTTP(srv, cfg.ShutdownTimeout)
	return runErr
}

// shutdownHTTP drains in-flight requests for at most timeout.
func shutdownHTTP(srv *http.Server, timeout time.Duration) {
	sctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Warn().Err(err).Msg("http shutdown")
	}
}

// sweeper drops expired in-memory state.
type sweeper interface {
	Sweep() int
}

// purger drops expired persisted state.
type purger interface {
	Purge(ctx context.Context) (int64, error)
}

// housekeep expires abandoned session intents and old processed-update
// records every interval until ctx ends.
func housekeep(ctx context.Context, interval time.Duration, sessions sweeper, dedupe purger) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := sessions.Sweep(); n > 0 {
				log.Debug().Int("expired", n).Msg("session intents swept")
			}
			n, err := dedupe.Purge(ctx)
			if err != nil {
				log.Warn().Err(err).Msg("purge processed updates")
				continue
			}
			if n > 0 {
				log.Debug().Int64("deleted", n).Msg("processed updates purged")
			}
		}
	}
}
