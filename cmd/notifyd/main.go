// notifyd is the notification dispatch daemon: it serves the HTTP API,
// runs the queue worker and fans notifications out to the configured
// channels.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/campuskit/notify/internal/api"
	"github.com/campuskit/notify/pkg/delivery"
	"github.com/campuskit/notify/pkg/dispatch"
	"github.com/campuskit/notify/pkg/email"
	"github.com/campuskit/notify/pkg/fallback"
	"github.com/campuskit/notify/pkg/httpserver"
	"github.com/campuskit/notify/pkg/inapp"
	"github.com/campuskit/notify/pkg/logger"
	"github.com/campuskit/notify/pkg/notification"
	"github.com/campuskit/notify/pkg/pg"
	"github.com/campuskit/notify/pkg/push"
	"github.com/campuskit/notify/pkg/queue"
	"github.com/campuskit/notify/pkg/reconcile"
	redisconn "github.com/campuskit/notify/pkg/redis"
	"github.com/campuskit/notify/pkg/sms"
	"github.com/campuskit/notify/pkg/webhook"
)

// appConfig selects storage drivers and provider chain composition.
// Provider lists are explicit: a channel with an empty list is not
// registered, and an unrecognized provider name aborts startup.
type appConfig struct {
	StorageDriver string `env:"STORAGE_DRIVER" envDefault:"memory"` // memory or postgres
	QueueDriver   string `env:"QUEUE_DRIVER" envDefault:"memory"`   // memory or redis
	QueuePrefix   string `env:"QUEUE_PREFIX" envDefault:"notify"`

	EmailProviders []string `env:"EMAIL_PROVIDERS" envSeparator:","`
	SMSProviders   []string `env:"SMS_PROVIDERS" envSeparator:","`
	PushProviders  []string `env:"PUSH_PROVIDERS" envSeparator:","`

	FCMServerKey string `env:"FCM_SERVER_KEY"`

	// CallbackSecrets maps provider names to inbound callback signing
	// secrets, e.g. "postmark:abc,twilio:def".
	CallbackSecrets map[string]string `env:"CALLBACK_SECRETS" envSeparator:"," envKeyValSeparator:":"`
}

func main() {
	if err := run(); err != nil {
		slog.Error("notifyd exited", logger.Error(err))
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var logCfg logger.Config
	if err := env.Parse(&logCfg); err != nil {
		return fmt.Errorf("failed to parse logger config: %w", err)
	}
	log := logger.NewFromConfig(logCfg, logger.WithAttr(logger.Component("notifyd")))
	slog.SetDefault(log)

	var cfg appConfig
	if err := env.Parse(&cfg); err != nil {
		return fmt.Errorf("failed to parse app config: %w", err)
	}

	var probes []func(context.Context) error

	// Storage layer.
	var (
		logs     delivery.Store
		tokens   push.TokenStore
		subs     webhook.SubscriptionStore
		inboxSto inapp.Storage
	)
	switch cfg.StorageDriver {
	case "memory":
		logs = delivery.NewMemoryStore()
		tokens = push.NewMemoryTokenStore()
		subs = webhook.NewMemorySubscriptionStore()
		inboxSto = inapp.NewMemoryStorage()
	case "postgres":
		var pgCfg pg.Config
		if err := env.Parse(&pgCfg); err != nil {
			return fmt.Errorf("failed to parse postgres config: %w", err)
		}
		pool, err := pg.Connect(ctx, pgCfg)
		if err != nil {
			return err
		}
		defer pool.Close()
		if err := pg.Migrate(ctx, pool, pgCfg, log); err != nil {
			return err
		}
		if logs, err = delivery.NewPgStore(pool); err != nil {
			return err
		}
		if tokens, err = push.NewPgTokenStore(pool); err != nil {
			return err
		}
		subs = webhook.NewPgSubscriptionStore(pool)
		inboxSto = inapp.NewPgStorage(pool)
		probes = append(probes, pg.Healthcheck(pool))
	default:
		return fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}

	// Queue backend.
	var storage interface {
		queue.EnqueuerStorage
		queue.WorkerStorage
		api.DeadLetterStorage
	}
	switch cfg.QueueDriver {
	case "memory":
		storage = queue.NewMemoryStorage()
	case "redis":
		var redisCfg redisconn.Config
		if err := env.Parse(&redisCfg); err != nil {
			return fmt.Errorf("failed to parse redis config: %w", err)
		}
		client, err := redisconn.Connect(ctx, redisCfg)
		if err != nil {
			return err
		}
		defer client.Close()
		if storage, err = queue.NewRedisStorage(client, cfg.QueuePrefix); err != nil {
			return err
		}
		probes = append(probes, redisconn.Healthcheck(client))
	default:
		return fmt.Errorf("unknown queue driver %q", cfg.QueueDriver)
	}

	// Channel adapters.
	registry := inapp.NewRegistry()
	inbox := inapp.NewAdapter(inboxSto, registry, inapp.WithLogger(log))

	adapters := []dispatch.Adapter{inbox}

	if len(cfg.EmailProviders) > 0 {
		adapter, err := buildEmailAdapter(ctx, cfg.EmailProviders, log)
		if err != nil {
			return err
		}
		adapters = append(adapters, adapter)
	}
	if len(cfg.SMSProviders) > 0 {
		adapter, err := buildSMSAdapter(cfg.SMSProviders, log)
		if err != nil {
			return err
		}
		adapters = append(adapters, adapter)
	}
	if len(cfg.PushProviders) > 0 {
		adapter, err := buildPushAdapter(cfg, tokens, log)
		if err != nil {
			return err
		}
		adapters = append(adapters, adapter)
	}
	adapters = append(adapters, webhook.NewAdapter(subs, webhook.NewSender(), logs,
		webhook.WithAdapterLogger(log)))

	router := dispatch.NewRouter(logs, adapters, dispatch.WithLogger(log))

	enqueuer, err := queue.NewEnqueuer(storage)
	if err != nil {
		return err
	}

	var queueCfg queue.Config
	if err := env.Parse(&queueCfg); err != nil {
		return fmt.Errorf("failed to parse queue config: %w", err)
	}
	worker, err := queue.NewWorkerFromConfig(storage, queueCfg,
		queue.WithWorkerLogger(log),
		queue.WithDeadLetterHook(func(job queue.Job, err error) {
			log.Error("dispatch job dead-lettered",
				logger.JobID(job.ID),
				logger.Queue(job.Queue),
				logger.Error(err))
		}),
	)
	if err != nil {
		return err
	}
	worker.RegisterHandler(dispatch.NewJobHandler(router))

	// HTTP surface.
	apiOpts := []api.Option{api.WithLogger(log)}
	for provider, secret := range cfg.CallbackSecrets {
		apiOpts = append(apiOpts, api.WithCallbackSecret(provider, secret))
	}
	for _, probe := range probes {
		apiOpts = append(apiOpts, api.WithReadinessProbe(probe))
	}
	apiServer := api.New(router, enqueuer, storage, logs, tokens, subs, inbox,
		reconcile.New(logs, reconcile.WithLogger(log)), apiOpts...)

	var httpCfg httpserver.Config
	if err := env.Parse(&httpCfg); err != nil {
		return fmt.Errorf("failed to parse http config: %w", err)
	}
	server := httpserver.NewFromConfig(httpCfg, httpserver.WithLogger(log))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(worker.Run(ctx))
	g.Go(func() error {
		return server.Run(ctx, apiServer.Routes())
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("notifyd stopped")
	return nil
}

func buildEmailAdapter(ctx context.Context, names []string, log *slog.Logger) (*email.Adapter, error) {
	var cfg email.Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse email config: %w", err)
	}

	providers := make([]fallback.Provider[email.Message], 0, len(names))
	for _, name := range names {
		var (
			p   fallback.Provider[email.Message]
			err error
		)
		switch name {
		case "postmark":
			p, err = email.NewPostmarkProvider(cfg)
		case "sendgrid":
			p, err = email.NewSendGridProvider(cfg)
		case "smtp":
			p, err = email.NewSMTPProvider(cfg)
		default:
			return nil, fmt.Errorf("unknown email provider %q", name)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to build email provider %q: %w", name, err)
		}
		providers = append(providers, p)
	}

	opts := []email.AdapterOption{email.WithLogger(log)}

	var s3Cfg email.S3Config
	if err := env.Parse(&s3Cfg); err != nil {
		return nil, fmt.Errorf("failed to parse attachment storage config: %w", err)
	}
	if s3Cfg.Bucket != "" {
		loader, err := email.NewS3Loader(ctx, s3Cfg)
		if err != nil {
			return nil, err
		}
		opts = append(opts, email.WithAttachmentLoader(loader))
	}

	chain := fallback.NewChain(notification.ChannelEmail, providers,
		fallback.WithChainLogger[email.Message](log))
	return email.NewAdapter(chain, opts...), nil
}

func buildSMSAdapter(names []string, log *slog.Logger) (*sms.Adapter, error) {
	var cfg sms.Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse sms config: %w", err)
	}

	providers := make([]fallback.Provider[sms.Message], 0, len(names))
	for _, name := range names {
		var (
			p   fallback.Provider[sms.Message]
			err error
		)
		switch name {
		case "twilio":
			p, err = sms.NewTwilioProvider(cfg)
		case "httpgateway":
			p, err = sms.NewGatewayProvider(cfg)
		default:
			return nil, fmt.Errorf("unknown sms provider %q", name)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to build sms provider %q: %w", name, err)
		}
		providers = append(providers, p)
	}

	chain := fallback.NewChain(notification.ChannelSMS, providers,
		fallback.WithChainLogger[sms.Message](log))
	return sms.NewAdapter(chain, cfg.DefaultRegion, sms.WithLogger(log)), nil
}

func buildPushAdapter(cfg appConfig, tokens push.TokenStore, log *slog.Logger) (*push.Adapter, error) {
	providers := make([]fallback.Provider[push.Message], 0, len(cfg.PushProviders))
	for _, name := range cfg.PushProviders {
		var (
			p   fallback.Provider[push.Message]
			err error
		)
		switch name {
		case "fcm":
			p, err = push.NewFCMProvider(cfg.FCMServerKey)
		case "webpush":
			var wpCfg push.WebPushConfig
			if err := env.Parse(&wpCfg); err != nil {
				return nil, fmt.Errorf("failed to parse webpush config: %w", err)
			}
			p, err = push.NewWebPushProvider(wpCfg)
		default:
			return nil, fmt.Errorf("unknown push provider %q", name)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to build push provider %q: %w", name, err)
		}
		providers = append(providers, p)
	}

	chain := fallback.NewChain(notification.ChannelPush, providers,
		fallback.WithChainLogger[push.Message](log))
	return push.NewAdapter(chain, tokens, push.WithLogger(log)), nil
}
