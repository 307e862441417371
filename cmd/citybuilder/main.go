package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"citybuilder/internal/catalog"
	"citybuilder/internal/config"
	delivery "citybuilder/internal/delivery/http"
	"citybuilder/internal/lock"
	"citybuilder/internal/logging"
	"citybuilder/internal/metrics"
	mongorepo "citybuilder/internal/repository/mongo"
	redisrepo "citybuilder/internal/repository/redis"
	"citybuilder/internal/server"
	"citybuilder/internal/usecase"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to a YAML config file")
	addr := flag.String("addr", "", "HTTP listen address (overrides config)")
	redisURL := flag.String("redis", "", "Redis URL (overrides config)")
	mongoURI := flag.String("mongo", "", "MongoDB URI for the ledger archive (overrides config)")
	logLevel := flag.String("log-level", "", "Log level (overrides config)")
	dev := flag.Bool("dev", false, "Enable dev endpoints and console logging")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *addr != "" {
		cfg.HTTP.Addr = *addr
	}
	if *redisURL != "" {
		cfg.Redis.URL = *redisURL
	}
	if *mongoURI != "" {
		cfg.Mongo.URI = *mongoURI
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if *dev {
		cfg.Game.AllowDevEndpoints = true
		cfg.Log.Development = true
	}

	// Create logger
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("Server exited with error", zap.Error(err))
	}
	logger.Info("Bye")
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	cat, err := catalog.Load(cfg.Game.CatalogPath)
	if err != nil {
		return err
	}

	// Connect to Redis
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	redisClient, err := redisrepo.NewClient(connectCtx, &redisrepo.ClientOptions{
		URL:         cfg.Redis.URL,
		PoolSize:    cfg.Redis.PoolSize,
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		return err
	}
	defer redisClient.Close()
	logger.Info("Connected to Redis")

	m := metrics.New()

	ids, err := snowflake.NewNode(cfg.Game.SnowflakeNode)
	if err != nil {
		return err
	}

	lockOpts := lock.DefaultOptions()
	lockOpts.TTL = cfg.Lock.TTL
	lockOpts.WaitTimeout = cfg.Lock.WaitTimeout
	lockOpts.RetryInterval = cfg.Lock.RetryInterval
	locker := lock.NewRedisLocker(lock.NewRedisClientAdapter(redisClient), lockOpts, logger.Named("lock"), m)

	store := redisrepo.NewPlayerStore(redisClient, logger.Named("store"))

	svc := usecase.NewCityService(store, locker, cat, ids, usecase.Options{
		Unlimited:     cfg.Game.UnlimitedResources,
		Unbounded:     cfg.Game.DisableWorldBounds,
		DefaultRadius: cfg.Game.DefaultWorldRadius,
		DebugDump:     cfg.Game.DebugDump,
	}, logger.Named("city"), m)

	// 원장 보관소는 선택 사항
	if cfg.Mongo.URI != "" {
		archive, err := mongorepo.NewLedgerArchive(connectCtx, mongorepo.ArchiveOptions{
			URI:        cfg.Mongo.URI,
			Database:   cfg.Mongo.Database,
			Collection: cfg.Mongo.Collection,
		}, logger.Named("archive"))
		if err != nil {
			return err
		}
		defer archive.Close(context.Background())
		svc.SetArchive(archive)
		logger.Info("Ledger archive enabled", zap.String("database", cfg.Mongo.Database))
	}

	handler := delivery.NewHandler(svc, svc, svc,
		func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		delivery.Flags{
			DevEndpoints:  cfg.Game.AllowDevEndpoints,
			ShopEndpoints: cfg.Game.EnableShopEndpoints,
			Unlimited:     cfg.Game.UnlimitedResources,
			Unbounded:     cfg.Game.DisableWorldBounds,
			DefaultRadius: cfg.Game.DefaultWorldRadius,
		},
		logger.Named("http"),
	)

	limiter := delivery.NewRateLimiter(cfg.HTTP.RateLimit, cfg.HTTP.RateBurst)
	router := delivery.NewRouter(handler, delivery.RouterOptions{
		CORSOrigins: cfg.HTTP.CORSOrigins,
		Limiter:     limiter,
		Metrics:     m.Handler(),
	}, logger.Named("http"))

	srvCfg := server.DefaultConfig()
	srvCfg.Addr = cfg.HTTP.Addr
	srvCfg.ReadTimeout = cfg.HTTP.ReadTimeout
	srvCfg.WriteTimeout = cfg.HTTP.WriteTimeout
	srvCfg.ShutdownTimeout = cfg.HTTP.ShutdownTimeout

	srv := server.New(srvCfg, router.Setup(), logger)
	srv.SetJanitor(limiter.Cleanup)

	logger.Info("City builder starting",
		zap.String("addr", cfg.HTTP.Addr),
		zap.Bool("dev_endpoints", cfg.Game.AllowDevEndpoints),
		zap.Bool("shop_endpoints", cfg.Game.EnableShopEndpoints),
		zap.Bool("unlimited", cfg.Game.UnlimitedResources),
		zap.Bool("unbounded", cfg.Game.DisableWorldBounds),
		zap.Int("default_world_radius", cfg.Game.DefaultWorldRadius),
	)
	return srv.Run(ctx)
}
