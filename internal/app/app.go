// Package app wires configuration, providers, storage and schedulers into
// the pipeline stages exposed by the mailmarks command.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"google.golang.org/api/option"

	"github.com/MrSnakeDoc/mailmarks/internal/config"
	"github.com/MrSnakeDoc/mailmarks/internal/domain"
	"github.com/MrSnakeDoc/mailmarks/internal/httpserver"
	"github.com/MrSnakeDoc/mailmarks/internal/httpserver/deps"
	"github.com/MrSnakeDoc/mailmarks/internal/index"
	"github.com/MrSnakeDoc/mailmarks/internal/ingest"
	"github.com/MrSnakeDoc/mailmarks/internal/logger"
	"github.com/MrSnakeDoc/mailmarks/internal/mail"
	"github.com/MrSnakeDoc/mailmarks/internal/mail/gmail"
	"github.com/MrSnakeDoc/mailmarks/internal/mail/imapbox"
	"github.com/MrSnakeDoc/mailmarks/internal/redis"
	"github.com/MrSnakeDoc/mailmarks/internal/scheduler"
	redisstore "github.com/MrSnakeDoc/mailmarks/internal/store/redis"
	"github.com/MrSnakeDoc/mailmarks/internal/vault"
	"github.com/MrSnakeDoc/mailmarks/internal/version"
)

// ProviderFactory opens the configured mail provider.
type ProviderFactory func(ctx context.Context, cfg *config.Config, log logger.Logger) (mail.Provider, error)

type App struct {
	cfg         *config.Config
	logger      logger.Logger
	providers   ProviderFactory
	redisClient *goredis.Client
	ledger      *redisstore.Store
}

// Option customizes an App.
type Option func(*App)

// WithProviderFactory replaces the default Gmail/IMAP provider selection.
func WithProviderFactory(f ProviderFactory) Option {
	return func(a *App) {
		if f != nil {
			a.providers = f
		}
	}
}

func New(cfg *config.Config, loggerClient logger.Logger, opts ...Option) *App {
	if loggerClient == nil {
		loggerClient = logger.NewNop()
	}
	a := &App{
		cfg:       cfg,
		logger:    loggerClient,
		providers: OpenProvider,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// OpenProvider dials the provider named in cfg.Provider.
func OpenProvider(ctx context.Context, cfg *config.Config, log logger.Logger) (mail.Provider, error) {
	switch cfg.Provider {
	case config.ProviderGmail:
		client, err := gmail.HTTPClient(ctx, cfg.GmailCredentials, cfg.GmailToken,
			gmail.TerminalPrompter(os.Stdin, os.Stderr), log)
		if err != nil {
			return nil, err
		}
		return gmail.New(ctx, gmail.Config{
			QueryLabel: cfg.GmailQueryLabel,
			MaxResults: int64(cfg.MaxResults),
		}, log, option.WithHTTPClient(client))
	case config.ProviderIMAP:
		return imapbox.Dial(imapbox.Config{
			Server:     cfg.IMAPServer,
			Port:       cfg.IMAPPort,
			Username:   cfg.IMAPUsername,
			Password:   cfg.IMAPPassword,
			Folder:     cfg.IMAPFolder,
			MaxResults: cfg.MaxResults,
		}, log)
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}

// connectLedger opens the redis ledger when an address is configured.
// A configured but unreachable redis is an error.
func (a *App) connectLedger(ctx context.Context) error {
	if !a.cfg.RedisEnabled() || a.ledger != nil {
		return nil
	}

	a.logger.Infof("Connecting to Redis at %s", a.cfg.RedisAddr)
	client, err := redis.Connect(ctx, a.cfg.RedisOptions(), a.logger)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	a.logger.Info("Redis initialized successfully")

	a.redisClient = client
	a.ledger = redisstore.NewStore(client)
	return nil
}

func (a *App) newBuilder(snapshot *index.Snapshot) *index.Builder {
	loader := vault.NewLoader(a.cfg.ContentDir,
		vault.WithStrictDatetime(a.cfg.StrictDatetime),
		vault.WithLogger(a.logger))
	return index.NewBuilder(loader, a.cfg.OutputPath, snapshot, a.logger)
}

// Ingest polls the mailbox and writes one bookmark file per extracted link.
// After every batch that wrote bookmarks the index page is rebuilt.
func (a *App) Ingest(ctx context.Context) error {
	if err := a.cfg.ValidateIngest(); err != nil {
		return err
	}
	if err := a.connectLedger(ctx); err != nil {
		return err
	}

	provider, err := a.providers(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("open %s provider: %w", a.cfg.Provider, err)
	}
	defer func() {
		if err := provider.Close(); err != nil {
			a.logger.Warn("failed to close mail provider", logger.Error(err))
		}
	}()

	opts := []ingest.Option{ingest.WithLogger(a.logger)}
	if a.ledger != nil {
		opts = append(opts, ingest.WithLedger(a.ledger))
	}
	pipeline, err := ingest.New(provider, vault.NewWriter(a.cfg.ContentDir), a.cfg.ProcessedLabel, opts...)
	if err != nil {
		return err
	}

	builder := a.newBuilder(nil)
	poller := scheduler.NewPoller(pipeline, a.logger, a.cfg.PollInterval, a.cfg.RunOnce)
	poller.OnBatch(func(run domain.IngestRun) {
		if run.Bookmarks == 0 {
			return
		}
		if _, err := builder.Rebuild(ctx); err != nil {
			a.logger.Warn("index rebuild after ingestion failed", logger.Error(err))
		}
	})

	a.logger.Info("ingestion started",
		logger.String("provider", a.cfg.Provider),
		logger.String("content_dir", a.cfg.ContentDir),
		logger.Duration("interval", a.cfg.PollInterval),
		logger.Bool("run_once", a.cfg.RunOnce),
		logger.Bool("ledger", a.ledger != nil))

	err = poller.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Index loads every bookmark file and writes the index page.
func (a *App) Index(ctx context.Context) (index.Result, error) {
	return a.newBuilder(nil).Rebuild(ctx)
}

// Views writes views.md and views.html into the configured views directory.
func (a *App) Views(ctx context.Context) (index.Result, error) {
	return a.newBuilder(nil).BuildViews(ctx, a.cfg.ViewsDir)
}

// Serve runs the preview server until ctx is cancelled.
func (a *App) Serve(ctx context.Context) error {
	a.logger.Infof("🚀 Starting mailmarks %s on %s", version.Version, a.cfg.ListenPort)
	a.logger.Infof("mailmarks %s (commit=%s, built=%s, go=%s)",
		version.Version, version.Commit, version.BuildDate, version.GoVersion)

	// The preview works without redis; only /api/status loses the ledger.
	if err := a.connectLedger(ctx); err != nil {
		a.logger.Warn("redis unavailable, ledger status disabled", logger.Error(err))
	}

	snapshot := index.NewSnapshot()
	rebuilder := scheduler.NewIndexRebuilder(a.newBuilder(snapshot), a.logger, a.cfg.RebuildInterval)
	if err := rebuilder.Start(ctx); err != nil {
		return fmt.Errorf("failed to build index: %w", err)
	}
	defer rebuilder.Stop()
	a.logger.Info("index rebuilder started",
		logger.Duration("interval", a.cfg.RebuildInterval))

	if a.cfg.WatchContent {
		watcher := scheduler.NewContentWatcher(a.cfg.ContentDir, vault.Extension,
			func() { rebuilder.Trigger() }, a.logger)
		if err := watcher.Start(ctx); err != nil {
			return fmt.Errorf("failed to watch %s: %w", a.cfg.ContentDir, err)
		}
		defer watcher.Stop()
	}

	d := deps.Deps{
		Logger:       a.logger,
		StartTime:    time.Now(),
		Version:      version.Version,
		Commit:       version.Commit,
		BuildDate:    version.BuildDate,
		GoVersion:    version.GoVersion,
		AllowedCIDRS: a.cfg.AllowedCIDRS,
		TrustProxy:   a.cfg.TrustProxy,
		ContentDir:   a.cfg.ContentDir,
		Snapshot:     snapshot,
		Rebuilder:    rebuilder,
	}
	if a.ledger != nil {
		d.Ledger = a.ledger
		d.RedisClient = a.redisClient
	}

	server := httpserver.New(a.cfg, a.logger, d)

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}

	a.logger.Info("✅ mailmarks stopped cleanly")
	return nil
}

// Close releases the redis connection, if any.
func (a *App) Close() error {
	if a.redisClient == nil {
		return nil
	}
	if err := a.redisClient.Close(); err != nil {
		return fmt.Errorf("close redis: %w", err)
	}
	a.logger.Info("✅ Redis closed cleanly")
	a.redisClient = nil
	a.ledger = nil
	return nil
}
