package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"

	"TweetWatch/internal/actor"
	"TweetWatch/internal/config"
	"TweetWatch/internal/domain"
	"TweetWatch/internal/infrastructure/llm"
	"TweetWatch/internal/infrastructure/scheduler"
	"TweetWatch/internal/infrastructure/sentiment"
	"TweetWatch/internal/infrastructure/storage"
	"TweetWatch/internal/infrastructure/telegram"
	"TweetWatch/internal/infrastructure/twitter"
	"TweetWatch/internal/logging"
	"TweetWatch/internal/ports"
	"TweetWatch/internal/search"
	"TweetWatch/internal/server"
	"TweetWatch/internal/usecase"
)

const shutdownTimeout = 15 * time.Second

// Store is the persistence the runtime needs: scoped state plus reminder rows.
type Store interface {
	ports.StateBackend
	ports.ReminderStore
	Close() error
}

// components are the driven adapters; tests swap them for fakes.
type components struct {
	store     Store
	scheduler ports.Scheduler
	searcher  ports.TweetSearcher
	scorer    ports.SentimentScorer
	notifier  ports.Notifier
}

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg     config.Config
	logger  *slog.Logger
	store   Store
	runtime *actor.Runtime[*usecase.Watch]
	watches *WatchService
	server  *server.Server
	lock    *flock.Flock
}

// New builds the daemon from configuration.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}

	store, err := openStore(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	comps := components{
		store:     store,
		scheduler: scheduler.NewCronScheduler(baseLogger.With("component", "scheduler")),
		searcher:  newSearcher(cfg.Twitter, baseLogger),
		scorer:    newScorer(cfg),
	}
	if cfg.Telegram.Enabled() {
		comps.notifier = telegram.NewNotifier(cfg.Telegram.BaseURL, cfg.Telegram.BotToken, cfg.Telegram.ChatID)
	}

	return newApplication(cfg, baseLogger, comps), nil
}

func newApplication(cfg config.Config, baseLogger *slog.Logger, comps components) *Application {
	enricher := usecase.NewEnricher(usecase.EnricherDeps{
		Searcher:      comps.searcher,
		Scorer:        comps.scorer,
		SearchTimeout: cfg.Twitter.Timeout.Duration,
		ScoreTimeout:  cfg.Sentiment.Timeout.Duration,
		Logger:        baseLogger.With("component", "enricher"),
	})

	runtime := actor.NewRuntime(actor.Deps[*usecase.Watch]{
		State:     comps.store,
		Reminders: comps.store,
		Scheduler: comps.scheduler,
		Factory:   watchFactory(cfg, enricher, comps.notifier),
		Options: actor.Options{
			TurnTimeout: cfg.Runtime.TurnTimeout.Duration,
			MailboxSize: cfg.Runtime.MailboxSize,
			RetryDelay:  cfg.Reminders.RetryDelay.Duration,
			MaxRetries:  cfg.Reminders.MaxRetries,
		},
		Logger: baseLogger.With("component", "runtime"),
	})

	watches := NewWatchService(runtime)

	a := &Application{
		cfg:     cfg,
		logger:  baseLogger,
		store:   comps.store,
		runtime: runtime,
		watches: watches,
		server:  server.New(cfg.Server.Addr, watches, baseLogger.With("component", "http")),
	}
	if cfg.Runtime.LockPath != "" {
		a.lock = flock.New(cfg.Runtime.LockPath)
	}
	return a
}

func watchFactory(cfg config.Config, enricher usecase.BatchEnricher, notifier ports.Notifier) actor.Factory[*usecase.Watch] {
	return func(host actor.Host) *usecase.Watch {
		query := domain.WatchQuery{Account: host.ID}
		if w, ok := cfg.Watch(host.ID); ok {
			if w.Account != "" {
				query.Account = w.Account
			}
			query.Query = w.Query
		}

		return usecase.NewWatch(usecase.WatchDeps{
			ID:           host.ID,
			State:        host.State,
			Reminders:    host.Reminders,
			Enricher:     enricher,
			Notifier:     notifier,
			DefaultQuery: query,
			DueTime:      cfg.Schedule.DueTime.Duration,
			Period:       cfg.Schedule.Period.Duration,
			Logger:       host.Logger,
		})
	}
}

// Watches exposes the entity surface, e.g. for in-process callers.
func (a *Application) Watches() *WatchService {
	return a.watches
}

// Handler returns the HTTP handler of the daemon.
func (a *Application) Handler() http.Handler {
	return a.server.Handler()
}

// Run serves until ctx is cancelled, then stops the HTTP server, the runtime and
// the store in that order.
func (a *Application) Run(ctx context.Context) error {
	if err := a.acquireLock(); err != nil {
		_ = a.store.Close()
		return err
	}
	defer a.releaseLock()

	if err := a.runtime.Start(ctx); err != nil {
		_ = a.store.Close()
		return err
	}
	a.autoStart(ctx)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := a.server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		return a.shutdown()
	})

	return g.Wait()
}

func (a *Application) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.server.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown http: %w", err))
	}
	if err := a.runtime.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("stop runtime: %w", err))
	}
	if err := a.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}

	a.logger.Info("daemon stopped")
	return errors.Join(errs...)
}

func (a *Application) autoStart(ctx context.Context) {
	for _, w := range a.cfg.Watches {
		if !w.AutoStart {
			continue
		}
		err := a.watches.Start(ctx, w.ID)
		switch {
		case err == nil:
			a.logger.Info("watch auto-started", "entity", w.ID)
		case errors.Is(err, usecase.ErrAlreadyStarted):
			a.logger.Debug("watch already running", "entity", w.ID)
		default:
			a.logger.Error("auto-start failed", "entity", w.ID, "error", err)
		}
	}
}

func (a *Application) acquireLock() error {
	if a.lock == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(a.lock.Path()), 0o755); err != nil {
		return fmt.Errorf("create lock dir: %w", err)
	}
	ok, err := a.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("another tweetwatch daemon holds %s", a.lock.Path())
	}
	return nil
}

func (a *Application) releaseLock() {
	if a.lock == nil {
		return
	}
	if err := a.lock.Unlock(); err != nil {
		a.logger.Warn("release lock", "error", err)
	}
}

func openStore(ctx context.Context, cfg config.DatabaseConfig) (Store, error) {
	if cfg.Driver == storage.DriverMemory {
		return storage.NewMemoryRepository(), nil
	}
	repo, err := storage.Open(ctx, cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Driver, err)
	}
	return repo, nil
}

func newSearcher(cfg config.TwitterConfig, logger *slog.Logger) ports.TweetSearcher {
	httpClient := &http.Client{Timeout: cfg.Timeout.Duration}

	registry := search.NewRegistry()
	registry.Register(twitter.NewAPIClient(cfg.Endpoint, cfg.BearerToken, httpClient))
	registry.Register(twitter.NewHTMLScanner(cfg.HTMLBaseURL, httpClient))

	return search.NewSource(registry, cfg.Backends, cfg.Limit, logger.With("component", "search"))
}

func newScorer(cfg config.Config) ports.SentimentScorer {
	switch cfg.Sentiment.Backend {
	case "ml":
		return sentiment.NewClient(cfg.Sentiment.Endpoint, cfg.Sentiment.APIKey, cfg.Sentiment.Timeout.Duration, cfg.Sentiment.RatePerSecond)
	case "chatgpt":
		return llm.NewChatGPTScorer(cfg.ChatGPT)
	default:
		return nil
	}
}
