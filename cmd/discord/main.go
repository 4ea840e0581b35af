// cmd/discord/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/keshon/server-companion/internal/ai"
	"github.com/keshon/server-companion/internal/assistant"
	"github.com/keshon/server-companion/internal/config"
	"github.com/keshon/server-companion/internal/discord"
	"github.com/keshon/server-companion/internal/logging"
	"github.com/keshon/server-companion/internal/metrics"
	"github.com/keshon/server-companion/internal/pipeline"
	"github.com/keshon/server-companion/internal/ratelimit"
	"github.com/keshon/server-companion/internal/rolereward"
	"github.com/keshon/server-companion/internal/storage"
	v "github.com/keshon/server-companion/internal/version"
	"github.com/keshon/server-companion/internal/xp"
)

const limiterCleanupEvery = 5 * time.Minute

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.New()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	log := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	log.Info().Str("app", v.AppName).Str("version", v.Version).Msg("starting")

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("bot stopped")
	}
	log.Info().Msg("bye")
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	if err := cfg.RequireDiscord(); err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.MustNew(reg)
	if cfg.MetricsAddr != "" {
		go metrics.RunServer(ctx, cfg.MetricsAddr, reg, log)
	}

	base, err := storage.Open(cfg.StorageDriver, cfg.StoragePath, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := base.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close store")
		}
	}()
	store := storage.NewCached(base, cfg.ConfigCacheTTL)

	completer, err := ai.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init ai provider: %w", err)
	}
	log.Info().Str("provider", completer.Name()).Msg("ai provider ready")

	limiter := ratelimit.New()
	go ratelimit.RunCleaner(ctx, limiter, limiterCleanupEvery, log)

	bot, err := discord.New(cfg.DiscordToken, log)
	if err != nil {
		return err
	}

	reconciler := rolereward.New(store, discord.NewRoleGranter(bot.Session(), cfg.RoleGrantRPS, log), m, log)
	tracker := xp.NewTracker(store, log,
		xp.WithRoleRewards(reconciler, discord.NewRankSource(bot.Session())),
		xp.WithMetrics(m),
	)
	responder := assistant.NewResponder(store, limiter, completer, log,
		assistant.WithTimeout(cfg.AITimeout),
		assistant.WithMaxPromptChars(cfg.AIMaxPromptChars),
		assistant.WithMetrics(m),
	)

	pipe := pipeline.New(log, m).
		Use("xp", tracker).
		Use("ai", responder)

	return bot.Run(ctx, pipe)
}
