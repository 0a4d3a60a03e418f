package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"mercator-hq/warden/pkg/config"
	"mercator-hq/warden/pkg/evidence"
	"mercator-hq/warden/pkg/evidence/recorder"
	"mercator-hq/warden/pkg/evidence/retention"
	evstorage "mercator-hq/warden/pkg/evidence/storage"
	"mercator-hq/warden/pkg/limits/ratelimit"
	limitstorage "mercator-hq/warden/pkg/limits/storage"
	"mercator-hq/warden/pkg/policy/bundle"
	"mercator-hq/warden/pkg/policy/engine"
	"mercator-hq/warden/pkg/policy/git"
	"mercator-hq/warden/pkg/policy/rules"
	rulestorage "mercator-hq/warden/pkg/policy/rules/storage"
	"mercator-hq/warden/pkg/security/secrets"
	"mercator-hq/warden/pkg/security/tenant"
	"mercator-hq/warden/pkg/server"
	"mercator-hq/warden/pkg/telemetry/health"
	"mercator-hq/warden/pkg/telemetry/metrics"
	"mercator-hq/warden/pkg/telemetry/tracing"
)

// app holds the wired runtime. Close releases everything in reverse
// construction order.
type app struct {
	server  *server.Server
	engine  *engine.Engine
	pruner  *retention.Pruner
	watcher *bundle.Watcher
	gitSrc  *git.Source
	tracer  *tracing.Tracer
	health  *health.Checker

	closers []func() error
	logger  *slog.Logger
}

func (a *app) onClose(fn func() error) {
	a.closers = append(a.closers, fn)
}

// Close stops background work and closes all stores.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// resolveSecrets expands ${secret:name} references in the credential
// fields of cfg before any store is opened.
func (a *app) resolveSecrets(ctx context.Context, cfg *config.Config) error {
	fields := map[string]*string{
		"evidence.postgres.url":               &cfg.Evidence.Postgres.URL,
		"limits.redis.password":               &cfg.Limits.Redis.Password,
		"bundles.pointer.redis.password":      &cfg.Bundles.Pointer.Redis.Password,
		"bundles.git.auth.token":              &cfg.Bundles.Git.Auth.Token,
		"bundles.git.auth.ssh_key_passphrase": &cfg.Bundles.Git.Auth.SSHKeyPassphrase,
	}
	pending := false
	for _, f := range fields {
		if secrets.HasReference(*f) {
			pending = true
		}
	}
	if !pending {
		return nil
	}

	sc := &cfg.Security.Secrets
	var sources []secrets.Source
	if sc.Dir != "" {
		dir, err := secrets.NewDirSource(sc.Dir, sc.Watch)
		if err != nil {
			return err
		}
		a.onClose(dir.Close)
		sources = append(sources, dir)
	}
	sources = append(sources, secrets.EnvSource{Prefix: sc.EnvPrefix})

	return secrets.NewResolver(sc.CacheTTL, sources...).ExpandFields(ctx, fields)
}

// buildApp wires stores, limiter, engine, gateway and server from cfg. On
// error every resource opened so far is closed.
func buildApp(ctx context.Context, cfg *config.Config) (_ *app, err error) {
	a := &app{
		health: health.New(0),
		logger: slog.Default().With("component", "warden"),
	}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	var collector *metrics.Collector
	if cfg.Telemetry.Metrics.Enabled {
		collector = metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
	}

	a.tracer, err = tracing.New(&cfg.Telemetry.Tracing)
	if err != nil {
		return nil, fmt.Errorf("tracing: %w", err)
	}
	a.onClose(func() error { return a.tracer.Shutdown(context.Background()) })

	if err := a.resolveSecrets(ctx, cfg); err != nil {
		return nil, fmt.Errorf("secrets: %w", err)
	}

	counters, err := openCounterStore(&cfg.Limits)
	if err != nil {
		return nil, fmt.Errorf("counter store: %w", err)
	}
	a.onClose(counters.Close)
	a.registerPing("limits."+cfg.Limits.Backend, counters)

	evStore, err := openEvidenceStorage(ctx, &cfg.Evidence)
	if err != nil {
		return nil, fmt.Errorf("evidence storage: %w", err)
	}
	a.onClose(evStore.Close)
	a.registerPing("evidence."+cfg.Evidence.Backend, evStore)

	ruleStore, err := openRuleStore(&cfg.Policy.Rules)
	if err != nil {
		return nil, fmt.Errorf("rule store: %w", err)
	}
	a.onClose(ruleStore.Close)
	a.registerPing("rules."+cfg.Policy.Rules.Backend, ruleStore)

	registry, err := openRegistry(ctx, &cfg.Bundles)
	if err != nil {
		return nil, fmt.Errorf("bundle registry: %w", err)
	}

	escalations := recorder.NewEscalationManager(evStore)
	a.engine, err = engine.New(engine.Components{
		Bundles: registry,
		Limiter: ratelimit.NewFixedWindowLimiter(counters,
			ratelimit.NewCircuitBreaker(cfg.Limits.Breaker.Threshold, cfg.Limits.Breaker.Cooldown)),
		TenantRules: ruleStore,
		Recorder: recorder.NewRecorder(evStore, &recorder.Config{
			WriteTimeout:   cfg.Evidence.Recorder.WriteTimeout,
			RedactContext:  cfg.Evidence.Recorder.RedactContext,
			MaxFieldLength: cfg.Evidence.Recorder.MaxFieldLength,
		}),
		Escalations: escalations,
		Metrics:     collector,
		Tracer:      a.tracer,
	}, &engine.Config{TenantRules: cfg.Policy.TenantRules})
	if err != nil {
		return nil, fmt.Errorf("policy engine: %w", err)
	}

	gwCfg := tenant.ConfigFrom(&cfg.Security, &cfg.Limits.Tenant)
	gwCfg.Authenticator, err = tenant.AuthenticatorFrom(cfg.Security.APIKeys)
	if err != nil {
		return nil, fmt.Errorf("api keys: %w", err)
	}
	gateway := tenant.NewGateway(gwCfg,
		ratelimit.NewTenantLimiterWithBreaker(cfg.Limits.Breaker.Threshold, cfg.Limits.Breaker.Cooldown),
		collector,
	)

	a.server, err = server.New(&cfg.Server, &cfg.Telemetry.Metrics, server.Deps{
		Engine:      a.engine,
		Bundles:     registry,
		Rules:       ruleStore,
		Evidence:    evStore,
		Escalations: escalations,
		Gateway:     gateway,
		Health:      a.health,
		Metrics:     collector,
		Tracer:      a.tracer,
		Federation:  cfg.Security.Federation,
	})
	if err != nil {
		return nil, fmt.Errorf("server: %w", err)
	}

	if ret := cfg.Evidence.Retention; ret.PruneSchedule != "" {
		a.pruner = retention.NewPruner(evStore, counters, &retention.Config{
			RetentionDays:    ret.Days,
			CounterRetention: ret.CounterRetention,
			PruneSchedule:    ret.PruneSchedule,
		})
	}

	if w := cfg.Bundles.Watch; w.Enabled {
		a.watcher, err = bundle.NewWatcher(registry, &bundle.WatcherConfig{
			Dir:              w.Dir,
			Activate:         w.Activate,
			DebounceInterval: w.Debounce,
		})
		if err != nil {
			return nil, fmt.Errorf("bundle watcher: %w", err)
		}
	}

	if g := &cfg.Bundles.Git; g.Enabled {
		repo, err := git.NewRepository(g)
		if err != nil {
			return nil, fmt.Errorf("git bundle source: %w", err)
		}
		a.gitSrc = git.NewSource(repo, registry, g.PollInterval, g.Activate)
	}

	return a, nil
}

// startBackground starts the retention scheduler and the bundle sources.
func (a *app) startBackground(ctx context.Context) error {
	if a.pruner != nil {
		if err := a.pruner.Start(ctx); err != nil {
			return fmt.Errorf("retention scheduler: %w", err)
		}
		a.onClose(func() error { a.pruner.Stop(); return nil })
		if next := a.pruner.NextPruning(); next != nil {
			a.logger.Info("retention scheduler started", "next_pruning", next)
		}
	}

	if a.watcher != nil {
		n, err := a.watcher.Sync(ctx)
		if err != nil {
			return fmt.Errorf("bundle sync: %w", err)
		}
		a.logger.Info("bundle directory synced", "published", n)
		go func() {
			if err := a.watcher.Watch(ctx); err != nil {
				a.logger.Error("bundle watcher stopped", "error", err)
			}
		}()
		a.onClose(a.watcher.Stop)
	}

	if a.gitSrc != nil {
		res, err := a.gitSrc.Sync(ctx)
		if err != nil {
			return fmt.Errorf("git bundle sync: %w", err)
		}
		a.logger.Info("git bundle source synced", "commit", res.Commit, "published", res.Published)
		go func() {
			if err := a.gitSrc.Run(ctx); err != nil {
				a.logger.Error("git bundle source stopped", "error", err)
			}
		}()
		a.onClose(a.gitSrc.Stop)
	}
	return nil
}

func (a *app) registerPing(name string, store any) {
	if p, ok := store.(health.Pinger); ok {
		a.health.RegisterCheck(name, health.PingCheck(p))
	}
}

func openCounterStore(cfg *config.LimitsConfig) (limitstorage.CounterStore, error) {
	switch cfg.Backend {
	case "memory":
		return limitstorage.NewMemoryStore(), nil
	case "sqlite":
		return limitstorage.NewSQLiteStoreWithConfig(limitstorage.SQLiteConfig{
			DBPath:             cfg.SQLite.Path,
			CheckpointInterval: cfg.SQLite.CheckpointInterval,
			BusyTimeout:        cfg.SQLite.BusyTimeout,
		})
	case "redis":
		return limitstorage.NewRedisStore(newRedisClient(&cfg.Redis), cfg.Redis.Retention), nil
	default:
		return nil, fmt.Errorf("unsupported limits backend %q", cfg.Backend)
	}
}

func openEvidenceStorage(ctx context.Context, cfg *config.EvidenceConfig) (evidence.Storage, error) {
	switch cfg.Backend {
	case "memory":
		return evstorage.NewMemoryStorage(), nil
	case "sqlite":
		return evstorage.NewSQLiteStorage(&evstorage.SQLiteConfig{
			Path:         cfg.SQLite.Path,
			MaxOpenConns: cfg.SQLite.MaxOpenConns,
			MaxIdleConns: cfg.SQLite.MaxIdleConns,
			WALMode:      cfg.SQLite.WALMode,
			BusyTimeout:  cfg.SQLite.BusyTimeout,
		})
	case "postgres":
		pool, err := evstorage.NewPostgresPool(ctx, evstorage.PostgresConfig{
			URL:            cfg.Postgres.URL,
			MaxConns:       cfg.Postgres.MaxConns,
			MinConns:       cfg.Postgres.MinConns,
			RequireTLS:     cfg.Postgres.RequireTLS,
			ConnectTimeout: cfg.Postgres.ConnectTimeout,
		})
		if err != nil {
			return nil, err
		}
		store, err := evstorage.NewPostgresStorage(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported evidence backend %q", cfg.Backend)
	}
}

func openRuleStore(cfg *config.RulesStoreConfig) (rules.Store, error) {
	switch cfg.Backend {
	case "memory":
		return rulestorage.NewMemoryStore(), nil
	case "sqlite":
		return rulestorage.NewSQLiteStore(cfg.SQLitePath, cfg.BusyTimeout)
	default:
		return nil, fmt.Errorf("unsupported rules backend %q", cfg.Backend)
	}
}

func openRegistry(ctx context.Context, cfg *config.BundlesConfig) (*bundle.Registry, error) {
	var blobs bundle.BlobStore
	switch cfg.Blob.Backend {
	case "memory":
		blobs = bundle.NewMemoryBlobStore()
	case "file":
		fs, err := bundle.NewFileBlobStore(cfg.Blob.Dir)
		if err != nil {
			return nil, err
		}
		blobs = fs
	case "s3":
		client, err := bundle.NewS3Client(ctx, bundle.S3Config{
			Bucket:       cfg.Blob.S3.Bucket,
			Region:       cfg.Blob.S3.Region,
			Prefix:       cfg.Blob.S3.Prefix,
			Endpoint:     cfg.Blob.S3.Endpoint,
			UsePathStyle: cfg.Blob.S3.UsePathStyle,
		})
		if err != nil {
			return nil, err
		}
		blobs = bundle.NewS3BlobStore(client, cfg.Blob.S3.Bucket, cfg.Blob.S3.Prefix)
	default:
		return nil, fmt.Errorf("unsupported bundle blob backend %q", cfg.Blob.Backend)
	}

	var pointers bundle.PointerStore
	switch cfg.Pointer.Backend {
	case "memory":
		pointers = bundle.NewMemoryPointerStore()
	case "blob":
		pointers = bundle.NewBlobPointerStore(blobs)
	case "redis":
		pointers = bundle.NewRedisPointerStore(newRedisClient(&cfg.Pointer.Redis))
	default:
		return nil, fmt.Errorf("unsupported bundle pointer backend %q", cfg.Pointer.Backend)
	}

	return bundle.NewRegistry(blobs, pointers), nil
}

func newRedisClient(cfg *config.RedisConfig) *redis.Client {
	return limitstorage.NewRedisClient(limitstorage.RedisConfig{
		Addr:      cfg.Addr,
		Password:  cfg.Password,
		DB:        cfg.DB,
		Retention: cfg.Retention,
	})
}
