// Command vouchguardd runs the group moderation daemon: the layered
// classification pipeline, the durable vouch ledger, and the admin HTTP API.
//
// Inbound chat messages arrive from a bot gateway over POST /api/v1/messages;
// outbound actions (deliveries, deletions, restrictions, polls) go back to
// the gateway. All other settings come from the environment (see
// internal/config).
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	_ "github.com/joho/godotenv/autoload"

	"github.com/tpetrou/go-vouchguard/internal/classifier"
	"github.com/tpetrou/go-vouchguard/internal/config"
	httpapi "github.com/tpetrou/go-vouchguard/internal/http"
	"github.com/tpetrou/go-vouchguard/internal/lexicon"
	"github.com/tpetrou/go-vouchguard/internal/moderation"
	"github.com/tpetrou/go-vouchguard/internal/observability"
	"github.com/tpetrou/go-vouchguard/internal/pipeline"
	"github.com/tpetrou/go-vouchguard/internal/repo"
	"github.com/tpetrou/go-vouchguard/internal/services"
	"github.com/tpetrou/go-vouchguard/internal/sysutil"
	"github.com/tpetrou/go-vouchguard/internal/track"
	"github.com/tpetrou/go-vouchguard/internal/transport"
)

var version = "dev"

func main() {
	app := &cli.App{
		Name:    "vouchguardd",
		Usage:   "group moderation daemon with a durable vouch ledger",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "gateway-url",
				Usage:   "base URL of the bot gateway for outbound chat actions",
				EnvVars: []string{"CHAT_GATEWAY_URL"},
			},
			&cli.StringFlag{
				Name:    "gateway-token",
				Usage:   "bearer token for the bot gateway",
				EnvVars: []string{"CHAT_GATEWAY_TOKEN"},
			},
			&cli.DurationFlag{
				Name:    "gateway-timeout",
				Value:   10 * time.Second,
				EnvVars: []string{"CHAT_GATEWAY_TIMEOUT"},
			},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("vouchguardd exited")
	}
}

func run(cctx *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	logger := log.With().Str("service", "vouchguardd").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		return err
	}
	defer func() {
		sctx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		if err := shutdownOTel(sctx); err != nil {
			logger.Warn().Err(err).Msg("trace exporter shutdown failed")
		}
	}()

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		return err
	}
	if err := repo.AutoMigrate(db); err != nil {
		return err
	}

	// Moderation stack
	lex := lexicon.Default()
	overrides := lexicon.NewOverrides()
	matcher := moderation.NewMatcher(lex, overrides)

	var remote classifier.Remote
	if cfg.Classifier.APIKey != "" {
		remote = classifier.NewGroqClient(
			cfg.Classifier.BaseURL, cfg.Classifier.APIKey, cfg.Classifier.Model,
			cfg.Classifier.Timeout, logger)
		logger.Info().Str("model", cfg.Classifier.Model).Msg("remote classifier enabled")
	} else {
		logger.Info().Msg("remote classifier disabled, running on local rules only")
	}

	pipe := &pipeline.Pipeline{
		Matcher:        matcher,
		Toxicity:       classifier.Unavailable(),
		Remote:         remote,
		ToxicThreshold: cfg.Moderation.ToxicThreshold,
		Logger:         logger,
	}

	// Outbound chat
	chat := transport.NewHTTPChat(
		cctx.String("gateway-url"), cctx.String("gateway-token"),
		cctx.Duration("gateway-timeout"), logger)
	timers := transport.NewTimerQueue(chat, logger)
	defer timers.Close()

	// Behavioral trackers
	velocity := track.NewVelocity(
		cfg.Moderation.MsgLimit, cfg.Moderation.MsgWindow,
		cfg.Moderation.LinkLimit, cfg.Moderation.LinkWindow)
	accounts := track.NewAccountAges(cfg.Moderation.Probation)
	strikes, err := track.NewStrikes(cfg.Moderation.StrikeCapacity, cfg.Moderation.MaxStrikes, cfg.Moderation.StrikeReset)
	if err != nil {
		return err
	}

	// Services
	vouchSvc := services.NewVouchService(db, chat, timers, matcher, logger)
	vouchSvc.DupWindow = cfg.Vouch.DupWindow
	vouchSvc.AckDelay = cfg.Vouch.AckDelay
	vouchSvc.NoticeDelay = cfg.Vouch.NoticeDelay
	vouchSvc.NoteMaxLen = cfg.Vouch.NoteMaxLen
	vouchSvc.AdminID = cfg.AdminID

	modSvc := services.NewModerationService(pipe, vouchSvc, chat, timers, velocity, accounts, strikes, logger)
	modSvc.AdminID = cfg.AdminID
	modSvc.NoticeDelay = cfg.Vouch.NoticeDelay
	modSvc.MuteDuration = cfg.Moderation.MuteDuration
	modSvc.DedupWindow = cfg.Moderation.DedupWindow

	// HTTP surface
	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, httpapi.Deps{
		Moderator: modSvc,
		Ledger:    vouchSvc,
		Overrides: overrides,
		Strikes:   strikes,
	}, cfg)

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
		logger.Info().Str("addr", srv.Addr).Msg("admin API listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	sctx, done := context.WithTimeout(context.Background(), 10*time.Second)
	defer done()
	return srv.Shutdown(sctx)
}
