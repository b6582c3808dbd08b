package main

import (
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/nimasrn/kamoa-supervision/internal/config"
	"github.com/nimasrn/kamoa-supervision/internal/feed"
	"github.com/nimasrn/kamoa-supervision/internal/handlers"
	"github.com/nimasrn/kamoa-supervision/internal/queue"
	"github.com/nimasrn/kamoa-supervision/internal/repository"
	"github.com/nimasrn/kamoa-supervision/internal/services"
	xhttp "github.com/nimasrn/kamoa-supervision/pkg/http"
	"github.com/nimasrn/kamoa-supervision/pkg/logger"
	"github.com/nimasrn/kamoa-supervision/pkg/pg"
	"github.com/nimasrn/kamoa-supervision/pkg/prom"
	"github.com/nimasrn/kamoa-supervision/pkg/redis"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	defer logger.Sync()

	err := config.Load(argContainsEnvPath())
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return
	}
	cfg := config.Get()
	logger.Info("starting api server", "version", version, "commit", commit, "date", date, "env", cfg.AppEnv)

	// transport (tcp for now)
	opt := xhttp.DefaultServerOption
	opt.Name = cfg.AppName
	opt.ReadTimeout = cfg.HttpServerReadTimeout
	opt.WriteTimeout = cfg.HttpServerWriteTimeout
	opt.ReadBufferSize = cfg.HttpServerReadBufferSize
	opt.WriteBufferSize = cfg.HttpServerWriteBufferSize
	s := xhttp.NewServer(opt)
	s.Use(xhttp.CompressMiddleware(6))
	s.Use(xhttp.TimeoutMiddleware(cfg.HttpHandlerTimeout))
	s.Use(xhttp.RequestLoggerMiddleware)
	s.Use(xhttp.RecoverMiddleware)

	readConf := pg.Config{
		User:     cfg.PostgresReadUser,
		Host:     cfg.PostgresReadHost,
		Port:     cfg.PostgresReadPort,
		Password: cfg.PostgresReadPassword,
		Database: cfg.PostgresReadDatabase,
		SSLMode:  cfg.PostgresSSLMode,
	}
	writeConf := pg.Config{
		User:     cfg.PostgresWriteUser,
		Host:     cfg.PostgresWriteHost,
		Port:     cfg.PostgresWritePort,
		Password: cfg.PostgresWritePassword,
		Database: cfg.PostgresWriteDatabase,
		SSLMode:  cfg.PostgresSSLMode,
	}

	pgDebug := cfg.AppEnv == "dev"
	db, err := pg.CreateReadWrite(readConf, writeConf, pgDebug)
	if err != nil {
		logger.Error("failed connecting to pg", "error", err)
		return
	}
	defer db.Close()

	redisAdap, err := redis.NewRedisAdapter("default", cfg.RedisUniversalKeyPrefix, &redis.Options{
		Addrs:      []string{cfg.RedisAddr},
		ClientName: cfg.AppName,
		DB:         cfg.RedisDatabase,
		Username:   cfg.RedisUsername,
		Password:   cfg.RedisPassword,
	})
	if err != nil {
		logger.Error("failed connecting to redis", "error", err)
		return
	}

	if cfg.AppDebugMetricsAddr != "" {
		host, _ := os.Hostname()
		if err := prom.Create(host, cfg.AppEnv, cfg.PromNamespace); err != nil {
			logger.Error("failed registering metrics", "error", err)
		}
		go func() {
			if err := prom.ListenAndServer(cfg.AppDebugMetricsAddr, cfg.AppDebugMetricsURI); err != nil {
				logger.Error("error in running metrics server", "error", err)
			}
		}()
	}

	changeLog, err := queue.NewQueue(redisAdap, queue.QueueConfig{
		Name:         cfg.FeedStream,
		GroupPrefix:  cfg.AppName,
		PollInterval: cfg.FeedPollInterval,
		BatchSize:    cfg.FeedBatchSize,
		MaxLen:       cfg.FeedMaxLen,
	})
	if err != nil {
		logger.Error("failed creating change log", "error", err)
		return
	}
	reportFeed := feed.New(changeLog)

	unitRepo := repository.NewUnitRepository(db)
	faultRepo := repository.NewFaultRepository(db)
	reportRepo := repository.NewReportRepository(db)

	// services
	catalogService := services.NewCatalogService(unitRepo, faultRepo)
	reportService := services.NewReportService(reportRepo, reportFeed)
	healthService := services.NewHealthService(map[string]services.Pinger{
		"postgres": db,
		"redis":    redisAdap,
	})

	// v1 handlers
	catalogHandler := handlers.NewCatalogHandler(catalogService)
	reportHandler := handlers.NewReportHandler(reportService, cfg.AdminAPIKey)
	streamHandler := handlers.NewStreamHandler(reportFeed)
	healthHandler := handlers.NewHealthHandler(healthService)

	if cfg.AdminAPIKey == "" {
		logger.Warn("ADMIN_API_KEY is empty, admin routes are disabled")
	}

	g := s.Router.Group("/api/v1")
	handlers.RegisterHealthRoutes(g, healthHandler)
	handlers.RegisterCatalogRoutes(g, catalogHandler)
	handlers.RegisterReportRoutes(g, reportHandler)
	handlers.RegisterStreamRoutes(g, streamHandler)

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		var err = s.ListenAndServe(cfg.HttpListenAddr)
		if err != nil {
			logger.Error("error in running http-server", "error", err)
		}
	}()

	<-c
	// open event streams would hold the shutdown forever
	streamHandler.Close()
	s.Shutdown()
}

func argContainsEnvPath() string {
	for _, v := range os.Args {
		if strings.Contains(v, "--env=") {
			s := strings.Split(v, "=")
			if _, err := os.Open(s[1]); err != nil {
				logger.Error("failed to open the passed env file, got error" + err.Error())
				return ""
			}
			return s[1]
		}
	}
	return ""
}
