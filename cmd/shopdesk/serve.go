package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/gosuda/shopdesk/internal/auth"
	"github.com/gosuda/shopdesk/internal/billing"
	"github.com/gosuda/shopdesk/internal/config"
	"github.com/gosuda/shopdesk/internal/domain"
	"github.com/gosuda/shopdesk/internal/giveaway"
	"github.com/gosuda/shopdesk/internal/jobs"
	"github.com/gosuda/shopdesk/internal/messenger"
	"github.com/gosuda/shopdesk/internal/messenger/slack"
	"github.com/gosuda/shopdesk/internal/metrics"
	"github.com/gosuda/shopdesk/internal/notify"
	"github.com/gosuda/shopdesk/internal/secrets"
	"github.com/gosuda/shopdesk/internal/server"
	"github.com/gosuda/shopdesk/internal/storage"
	"github.com/gosuda/shopdesk/internal/store/postgres"
	redisstore "github.com/gosuda/shopdesk/internal/store/redis"
)

func newServeCmd() *cobra.Command {
	var (
		migrate bool
		noJobs  bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, websocket streams and scheduled jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), migrate, !noJobs)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply pending migrations before serving")
	cmd.Flags().BoolVar(&noJobs, "no-jobs", false, "do not run scheduled jobs on this instance")
	return cmd
}

func serve(ctx context.Context, migrate, runJobs bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if cfg.Database.MaxConns < 0 || cfg.Database.MaxConns > math.MaxInt32 {
		return fmt.Errorf("database max_conns %d out of int32 range", cfg.Database.MaxConns)
	}

	if migrate {
		if err := withMigrator(func(mg *postgres.Migrator) error { return mg.Up() }); err != nil {
			return err
		}
	}

	// Graceful shutdown on SIGINT / SIGTERM.
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Connect to PostgreSQL.
	store, err := postgres.New(ctx, cfg.Database.DSN(), int32(cfg.Database.MaxConns)) //nolint:gosec // bounds checked above
	if err != nil {
		return err
	}
	defer store.Close()

	// Connect to Redis.
	pubsub, err := redisstore.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB,
		redisstore.WithRetryDelay(cfg.Realtime.RetryDelay))
	if err != nil {
		return err
	}
	defer pubsub.Close()
	positions := redisstore.NewPositions(pubsub.Client())

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	authSvc := auth.NewService(store.Users(), store.Tenants(), cfg.JWT.Secret, cfg.JWT.AccessTTL, cfg.JWT.RefreshTTL)
	plans := billing.NewService(store.Tenants(), store.Billing(), store.Orders(), store.Products(), store.Couriers())
	drawer := giveaway.NewService(store.Giveaways(), nil, pubsub, m)

	deps := server.Deps{
		Store:      store,
		Auth:       authSvc,
		Plans:      plans,
		Drawer:     drawer,
		Positions:  positions,
		Events:     pubsub,
		Subscriber: pubsub,
		Metrics:    m,
		Providers:  oauthProviders(cfg.OAuth),
		Checks: map[string]server.Pinger{
			"postgres": store,
			"redis":    pubsub,
		},
	}

	// Tenant credentials need the encryption key; without it tenants share
	// the platform Slack bot.
	var credentials notify.CredentialSource
	if cfg.EncryptionKey != "" {
		key, err := cfg.EncryptionKeyBytes()
		if err != nil {
			return err
		}
		vault, err := secrets.NewVault(key)
		if err != nil {
			return err
		}
		keeper := secrets.NewKeeper(store.Secrets(), vault)
		credentials = keeper
		deps.Secrets = keeper
	} else {
		log.Warn().Msg("SHOPDESK_ENCRYPTION_KEY not set; per-shop integration credentials are disabled")
	}

	registry := notify.NewRegistry()
	registry.Register(domain.ChannelSlack, func(token string) (messenger.Messenger, error) {
		sm, err := slack.NewFromToken(token)
		if err != nil {
			return nil, err
		}
		return sm, nil
	})
	notifier := notify.New(store.Notifications(), credentials, registry, cfg.Slack.BotToken)
	deps.Notifier = notifier

	files, err := storage.New(ctx, cfg.Storage)
	switch {
	case errors.Is(err, storage.ErrDisabled):
		log.Info().Msg("object storage not configured; uploads disabled")
	case err != nil:
		return err
	default:
		if err := files.EnsureBucket(ctx); err != nil {
			return err
		}
		deps.Files = files
	}

	var scheduler *jobs.Scheduler
	if runJobs {
		scheduler = jobs.New(m)
		for _, j := range []struct {
			name, spec string
			fn         jobs.Func
		}{
			{jobs.JobInvoices, cfg.Billing.InvoiceSchedule, jobs.Invoices(plans)},
			{jobs.JobGiveawayDraws, cfg.Giveaway.DrawSchedule, jobs.GiveawayDraws(drawer)},
			{jobs.JobLowStockDigest, cfg.Inventory.DigestSchedule, jobs.LowStockDigest(store.Tenants(), store.Products(), notifier)},
		} {
			if err := scheduler.Add(j.name, j.spec, j.fn); err != nil {
				return err
			}
		}
		scheduler.Start()
	}

	srv := server.New(ctx, cfg, deps)

	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("starting server")
		if startErr := srv.Start(ctx); startErr != nil {
			log.Error().Err(startErr).Msg("server error")
			cancel()
		}
	}()

	// Block until shutdown signal.
	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	var errs []error
	if scheduler != nil {
		errs = append(errs, scheduler.Stop(shutdownCtx))
	}
	errs = append(errs, srv.Shutdown(shutdownCtx))
	if err := errors.Join(errs...); err != nil {
		return err
	}

	log.Info().Msg("stopped")
	return nil
}

// oauthProviders enables each provider whose client ID is configured.
func oauthProviders(cfg config.OAuthConfig) map[string]auth.OAuthExchanger {
	base := strings.TrimRight(cfg.RedirectBaseURL, "/")
	callback := func(name string) string {
		return base + "/api/v1/auth/oauth/" + name + "/callback"
	}

	providers := map[string]auth.OAuthExchanger{}
	if cfg.GoogleClientID != "" {
		providers["google"] = auth.NewGoogleProvider(cfg.GoogleClientID, cfg.GoogleClientSecret, callback("google"))
	}
	if cfg.GitHubClientID != "" {
		providers["github"] = auth.NewGitHubProvider(cfg.GitHubClientID, cfg.GitHubClientSecret, callback("github"))
	}
	return providers
}
