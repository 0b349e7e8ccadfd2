package container

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"trends/scraper/internal/client"
	"trends/scraper/internal/config"
	"trends/scraper/internal/fetcher"
	"trends/scraper/internal/metrics"
	"trends/scraper/internal/proxy"
	"trends/scraper/internal/queue"
	"trends/scraper/internal/repository"
	"trends/scraper/internal/service"
	"trends/scraper/internal/state"
)

// StampLayout prefixes per-run output files.
const StampLayout = "20060102-150405_"

// Container holds all initialized components
type Container struct {
	Config  *config.Config
	Service *service.Service

	metricsServer *metrics.Server

	db     *pgxpool.Pool
	sqlite *repository.SQLiteLedger
	redis  *redis.Client
}

// New creates a new container with all dependencies initialized. Only the stores named in
// output.sinks are opened; Redis is also opened for the retry mode.
func New(ctx context.Context, cfg *config.Config) (*Container, error) {
	container := &Container{
		Config: cfg,
	}

	ok := false
	defer func() {
		if !ok {
			_ = container.Close()
		}
	}()

	proxySupplier, err := proxy.NewProxySupplier(ctx, cfg.Trends.Proxies, cfg.Trends.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize proxy supplier: %w", err)
	}

	deps := service.Deps{
		Trends: client.NewTrendsClient(cfg.Trends, proxySupplier),
		News:   client.NewNewsClient(cfg.Trends, proxySupplier),
	}

	var ledgers repository.Ledgers

	if cfg.Output.HasSink(config.SinkCSV) {
		csvLedger := repository.NewCSVLedger(cfg.Output.Dir, time.Now().Format(StampLayout), repository.CSVFiles{
			Results:      cfg.Output.ResultsFile,
			Unsuccessful: cfg.Output.UnsuccessfulFile,
			Metadata:     cfg.Output.MetadataFile,
			News:         cfg.Output.NewsFile,
		})
		ledgers = append(ledgers, csvLedger)
		deps.Metadata = csvLedger
		log.Infof("📝 Writing CSV files to %s", cfg.Output.Dir)
	}

	if cfg.Output.HasSink(config.SinkSQLite) {
		container.sqlite, err = repository.NewSQLiteLedger(cfg.SQLite.File)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite ledger: %w", err)
		}
		ledgers = append(ledgers, container.sqlite)
		log.Infof("✅ Opened SQLite ledger %s", cfg.SQLite.File)
	}

	if cfg.Output.HasSink(config.SinkPostgres) {
		container.db, err = pgxpool.New(ctx, cfg.Database.DSN())
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := repository.Migrate(ctx, container.db); err != nil {
			return nil, err
		}
		ledgers = append(ledgers, repository.NewPostgresLedger(container.db))
		log.Info("✅ Connected to PostgreSQL successfully")
	}

	deps.Ledger = ledgers

	if cfg.Output.HasSink(config.SinkRedis) || cfg.Run.Mode == config.ModeRetry {
		container.redis = redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.Database,
		})

		if _, err := container.redis.Ping(ctx).Result(); err != nil {
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		log.Info("✅ Connected to Redis successfully")

		redisQueue, err := queue.NewRedisQueue(ctx, container.redis, cfg.Redis)
		if err != nil {
			return nil, err
		}
		deps.Queue = redisQueue
		deps.State = state.NewRedisStateManager(container.redis)
	}

	if cfg.Retry.CountdownStep > 0 {
		deps.Options = append(deps.Options, fetcher.WithSleeper(fetcher.Countdown(cfg.Retry.CountdownStep, nil)))
	}

	if cfg.Metrics.Enabled {
		registry := prometheus.NewRegistry()
		deps.Options = append(deps.Options, fetcher.WithObserver(metrics.NewObserver(registry, "fetcher")))
		container.metricsServer = metrics.NewServer(registry, cfg.Metrics.Port)
	}

	container.Service = service.NewService(service.Settings{
		RunName:      cfg.Run.Name,
		KeywordsFile: cfg.Input.KeywordsFile,
		SampleSize:   cfg.Input.SampleSize,
		BatchSize:    cfg.Trends.BatchSize,
		Workers:      cfg.Trends.MaxWorkers,
		NewsPages:    cfg.Trends.NewsPages,
		MaxRequeues:  cfg.Retry.MaxRequeues,
		Policy:       cfg.Retry.Policy(),
		GroupName:    cfg.Redis.ConsumerGroup,
		MinIdleTime:  time.Duration(cfg.Redis.MinIdleTime) * time.Second,
	}, deps)

	ok = true
	return container, nil
}

// Run executes the configured mode. The metrics server, when enabled, runs alongside it.
func (c *Container) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	runCtx, stop := context.WithCancel(gctx)
	defer stop()

	if c.metricsServer != nil {
		g.Go(c.metricsServer.Start)
		g.Go(func() error {
			<-runCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			return c.metricsServer.Stop(shutdownCtx)
		})
		log.Infof("📈 Serving metrics on :%d", c.Config.Metrics.Port)
	}

	g.Go(func() error {
		defer stop()
		return c.runMode(runCtx)
	})

	return g.Wait()
}

func (c *Container) runMode(ctx context.Context) error {
	switch c.Config.Run.Mode {
	case config.ModeNews:
		_, err := c.Service.CollectNews(ctx)
		return err
	case config.ModeRetry:
		return c.Service.RunRetryWorkers(ctx, c.Config.Run.RetryWorkers)
	default:
		summary, err := c.Service.ParseAll(ctx)
		if summary.Exhausted > 0 {
			log.Warnf("⚠️ %d batches exhausted their retries", summary.Exhausted)
		}
		return err
	}
}

// Close performs cleanup when shutting down
func (c *Container) Close() error {
	log.Info("Shutting down container...")

	var errs []error
	if c.sqlite != nil {
		errs = append(errs, c.sqlite.Close())
	}
	if c.db != nil {
		c.db.Close()
	}
	if c.redis != nil {
		errs = append(errs, c.redis.Close())
	}

	if err := errors.Join(errs...); err != nil {
		return err
	}

	log.Info("Container shut down successfully")
	return nil
}
