package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"quiz-eval-service/internal/app"
	"quiz-eval-service/internal/config"
	"quiz-eval-service/internal/infra/llm"
	"quiz-eval-service/internal/infra/memory"
	"quiz-eval-service/internal/infra/postgres"
	redisstore "quiz-eval-service/internal/infra/redis"
	"quiz-eval-service/internal/metrics"
	transport "quiz-eval-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the evaluation server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "3000"
	}

	m := metrics.New()

	backends, err := openBackends(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer backends.Close()

	mode, err := app.ParseMode(cfg.Provider.Mode)
	if err != nil {
		return err
	}
	provider, err := newProvider(ctx, mode, cfg)
	if err != nil {
		return err
	}
	logger.Info("answer provider ready", zap.String("mode", string(mode)), zap.String("provider", provider.Name()))

	runCtx, stopBackground := context.WithCancel(ctx)
	defer stopBackground()

	var (
		hubOpts  []app.HubOption
		presence *redisstore.Presence
	)
	if backends.redis != nil {
		ttl := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)
		presence = redisstore.NewPresence(backends.redis, ttl, logger)
		hubOpts = append(hubOpts, app.WithPresence(presence))
		m.TrackPresence(presence.Count)
	}
	hub := app.NewHub(cfg.Server.ObserverBuffer, logger, m, hubOpts...)
	if presence != nil {
		go presence.Keepalive(runCtx, hub.ObserverIDs)
	}

	reporter := app.NewReporter(backends.store)
	evaluator := app.NewEvaluator(mode, provider, reporter.Invalidating(backends.store), hub,
		app.WithLogger(logger), app.WithMetrics(m))

	router := transport.NewRouter(
		transport.NewAPIHandler(evaluator, reporter, logger),
		transport.NewWSHandler(hub, logger),
		transport.RouterOptions{Logger: logger, Metrics: m.Handler(), StaticDir: cfg.Server.StaticDir},
	)

	server := &http.Server{
		Addr:              ":" + finalPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      writeTimeout(mode, cfg),
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting evaluation service", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	select {
	case <-stop:
		logger.Info("shutting down server")
	case <-ctx.Done():
		logger.Info("context canceled, shutting down server")
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// backends holds the record store and the connections behind it.
type backends struct {
	store app.RecordStore
	pool  *pgxpool.Pool
	redis *redis.Client
}

func (b *backends) Close() {
	if b.pool != nil {
		b.pool.Close()
	}
	if b.redis != nil {
		_ = b.redis.Close()
	}
}

// openBackends picks Postgres when a URL is configured, then Redis, then the
// in-process store. A configured Redis is still used for observer presence
// when Postgres holds the records.
func openBackends(ctx context.Context, cfg config.Config, logger *zap.Logger) (*backends, error) {
	b := &backends{}

	if cfg.Redis.Addr != "" {
		b.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := b.redis.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable at startup", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
	}

	switch {
	case cfg.Postgres.URL != "":
		if err := runMigrationsWithConfig(ctx, cfg, logger); err != nil {
			b.Close()
			return nil, err
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		b.pool = pool
		b.store = postgres.NewRecordStore(pool)
		logger.Info("using postgres record store")
	case b.redis != nil:
		b.store = redisstore.NewRecordStore(b.redis, 0)
		logger.Info("using redis record store", zap.String("addr", cfg.Redis.Addr))
	default:
		b.store = memory.NewRecordStore()
		logger.Warn("no database configured, records are kept in memory")
	}
	return b, nil
}

// writeTimeout leaves room for the slowest expected provider call. An
// unbounded delegated provider gets no write deadline.
func writeTimeout(mode app.Mode, cfg config.Config) time.Duration {
	const slack = 15 * time.Second
	if mode == app.ModeSimulated {
		return config.TTLDuration(cfg.Provider.MaxLatency, 350*time.Millisecond) + slack
	}
	timeout := config.TTLDuration(cfg.Provider.Timeout, 0)
	if timeout <= 0 {
		return 0
	}
	return timeout + slack
}

func newProvider(ctx context.Context, mode app.Mode, cfg config.Config) (app.AnswerProvider, error) {
	if mode == app.ModeSimulated {
		return app.NewSimulatedProvider(
			config.TTLDuration(cfg.Provider.MinLatency, 50*time.Millisecond),
			config.TTLDuration(cfg.Provider.MaxLatency, 350*time.Millisecond),
		), nil
	}

	timeout := config.TTLDuration(cfg.Provider.Timeout, 0)
	switch cfg.Provider.Backend {
	case "", "openai":
		if cfg.Provider.APIKey == "" {
			return nil, fmt.Errorf("delegated mode needs an API key for %q", "openai")
		}
		return llm.NewOpenAIProvider(llm.OpenAIConfig{
			BaseURL: cfg.Provider.BaseURL,
			APIKey:  cfg.Provider.APIKey,
			Model:   cfg.Provider.Model,
			Timeout: timeout,
		}), nil
	case "gemini":
		return llm.NewGeminiProvider(ctx, llm.GeminiConfig{
			APIKey:  cfg.Provider.APIKey,
			Model:   cfg.Provider.Model,
			BaseURL: cfg.Provider.BaseURL,
			Timeout: timeout,
		})
	default:
		return nil, fmt.Errorf("unknown provider backend %q", cfg.Provider.Backend)
	}
}
