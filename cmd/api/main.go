package main

import (
	"context"
	"log"
	"time"

	"stylestudioapi/config"
	"stylestudioapi/controllers"
	"stylestudioapi/dbhelper"
	"stylestudioapi/logger"
	"stylestudioapi/services"

	"github.com/getsentry/sentry-go"
	sentryecho "github.com/getsentry/sentry-go/echo"
	"github.com/hibiken/asynq"
	"github.com/labstack/echo/v4/middleware"
)

func main() {
	cfg, err := config.Load(services.GetEnv("CONFIG_PATH", "config.yaml"))
	if err != nil {
		log.Fatalf("config: %s", err)
	}
	appLog, err := logger.NewWithOptions(cfg.Env, logger.Options{File: cfg.Logging.File})
	if err != nil {
		log.Fatalf("logger: %s", err)
	}
	defer appLog.Sync()

	err = sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.Sentry.DSN,
		Environment:      cfg.Env,
		Release:          cfg.Sentry.Release,
		Debug:            false,
		TracesSampleRate: 1.0,
	})
	if err != nil {
		appLog.Fatal("sentry init failed", "error", err)
	}
	defer sentry.Recover()
	defer sentry.Flush(2 * time.Second)

	db, err := dbhelper.SetupDB(cfg.Database)
	if err != nil {
		appLog.Fatal("database setup failed", "error", err)
	}

	redisOpt := asynq.RedisClientOpt{Addr: cfg.Broker.Address}
	asynqClient := asynq.NewClient(redisOpt)
	defer asynqClient.Close()
	asynqInspector := asynq.NewInspector(redisOpt)
	defer asynqInspector.Close()

	awsService := services.NewAWSService(cfg.Storage.AccountID, cfg.Storage.AccessKeyID, cfg.Storage.AccessKeySecret)
	if err := awsService.InitPresignClient(context.Background()); err != nil {
		appLog.Fatal("failed to initialize storage client", "error", err)
	}
	urlCache, err := services.NewURLCacheService(awsService, cfg.Storage.Bucket, appLog)
	if err != nil {
		appLog.Fatal("failed to initialize URL cache service", "error", err)
	}

	var apple services.AppleServiceProvider
	if cfg.Auth.AppleClientID != "" {
		apple = services.AppleService{
			TeamID:        cfg.Auth.AppleTeamID,
			KeyID:         cfg.Auth.AppleKeyID,
			ClientID:      cfg.Auth.AppleClientID,
			PrivateKeyEnv: config.ApplePrivateKeyEnv,
		}
	}

	e, err := controllers.SetupServer(db, controllers.Dependencies{
		Google:     services.GoogleService{},
		Apple:      apple,
		AWSService: awsService,
		URLCache:   urlCache,
		Catalogues: services.NewCatalogueStore(db, appLog),
		Enqueuer:   asynqClient,
		Canceller:  asynqInspector,
		Config:     cfg,
		Log:        appLog,
	})
	if err != nil {
		appLog.Fatal("server setup failed", "error", err)
	}
	e.Debug = !cfg.IsProduction()
	e.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(10)))
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(sentryecho.New(sentryecho.Options{Repanic: true}))

	appLog.Info("api starting", "env", cfg.Env, "address", ":8083")
	e.Logger.Fatal(e.Start(":8083"))
}
