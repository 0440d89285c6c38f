package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stoik/timeline/services/digest-service/internal/config"
	"github.com/stoik/timeline/services/digest-service/internal/db"
	"github.com/stoik/timeline/services/digest-service/internal/digest"
	"github.com/stoik/timeline/services/digest-service/internal/github"
	"github.com/stoik/timeline/services/digest-service/internal/mailer"
	"github.com/stoik/timeline/services/digest-service/internal/metrics"
	"github.com/stoik/timeline/services/digest-service/internal/pipeline"
	"github.com/stoik/timeline/services/digest-service/internal/runlog"
	"github.com/stoik/timeline/services/digest-service/internal/status"
	"github.com/stoik/timeline/services/digest-service/internal/subscriber"
)

// runtime owns everything a command builds from the configuration.
type runtime struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *metrics.Metrics
	service *pipeline.Service
	history *runlog.PostgresRecorder
	pool    *pgxpool.Pool
	closers []func()
}

func newRuntime(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *runtime, err error) {
	rt := &runtime{cfg: cfg, logger: logger, metrics: metrics.New()}
	defer func() {
		if err != nil {
			rt.Close()
		}
	}()

	client, err := newGitHubClient(cfg, logger)
	if err != nil {
		return nil, err
	}

	// The run log is kept whenever a database is configured.
	if cfg.Database.URL != "" {
		pool, err := db.Connect(ctx, cfg.Database.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		rt.pool = pool
		rt.closers = append(rt.closers, pool.Close)
	}

	store, err := rt.subscriberStore(ctx)
	if err != nil {
		return nil, err
	}

	sender, err := newSender(cfg, logger)
	if err != nil {
		return nil, err
	}

	deps := pipeline.Deps{
		Source:   client,
		Store:    store,
		Sender:   sender,
		Renderer: digest.NewRenderer(cfg.Digest.Subject, cfg.Digest.UnsubscribeURL),
		Metrics:  rt.metrics,
		Logger:   logger,
	}
	if rt.pool != nil {
		rt.history = runlog.NewPostgresRecorder(rt.pool, logger)
		deps.Recorder = rt.history
	}

	rt.service = pipeline.NewService(pipeline.Config{
		Window:    cfg.Digest.Window,
		Endpoints: cfg.Digest.Endpoints,
		Workers:   cfg.Digest.Workers,
	}, deps)
	return rt, nil
}

// statusOptions falls /status back to the run log when a database is configured.
func (rt *runtime) statusOptions() []status.Option {
	if rt.history == nil {
		return nil
	}
	return []status.Option{status.WithHistory(rt.history)}
}

func (rt *runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
	rt.closers = nil
}

func (rt *runtime) subscriberStore(ctx context.Context) (subscriber.Store, error) {
	switch rt.cfg.Subscribers.Source {
	case config.SourcePostgres:
		if rt.pool == nil {
			return nil, fmt.Errorf("subscribers.source is postgres but database.url is empty")
		}
		return subscriber.NewPostgresStore(rt.pool, rt.logger), nil
	case config.SourceRedis:
		rdb, err := subscriber.Dial(ctx, rt.cfg.Redis.Addr)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, func() { _ = rdb.Close() })
		return subscriber.NewRedisStore(rdb, rt.cfg.Subscribers.RedisKey, rt.logger), nil
	default:
		return subscriber.NewFileStore(rt.cfg.Subscribers.File, rt.logger), nil
	}
}

func newGitHubClient(cfg *config.Config, logger *slog.Logger) (*github.Client, error) {
	return github.NewClient(github.Config{
		BaseURL:   cfg.GitHub.APIURL,
		Token:     cfg.GitHub.Token,
		UserAgent: cfg.GitHub.UserAgent,
		Timeout:   cfg.GitHub.Timeout,
		RateLimit: cfg.GitHub.RateLimit,
		RateBurst: cfg.GitHub.RateBurst,
		Logger:    logger,
	})
}

func newSender(cfg *config.Config, logger *slog.Logger) (mailer.Sender, error) {
	if cfg.Mailer.Type == config.MailerLog {
		return mailer.NewLogSender(logger), nil
	}
	return mailer.NewSMTPSender(mailer.SMTPConfig{
		Host:      cfg.SMTP.Host,
		Port:      cfg.SMTP.Port,
		Username:  cfg.SMTP.Username,
		Password:  cfg.SMTP.Password,
		FromEmail: cfg.SMTP.FromEmail,
		FromName:  cfg.SMTP.FromName,
	}, logger)
}
