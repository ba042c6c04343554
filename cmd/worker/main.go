package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"stylestudioapi/config"
	"stylestudioapi/dbhelper"
	"stylestudioapi/logger"
	"stylestudioapi/services"
	"stylestudioapi/tasks"

	firebase "firebase.google.com/go/v4"
	"github.com/getsentry/sentry-go"
	"github.com/hibiken/asynq"
)

func runScheduler(redisOpt asynq.RedisClientOpt, appLog *logger.Logger) {
	scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{
		LogLevel: asynq.InfoLevel,
	})

	for cron, task := range tasks.ScheduledTasks() {
		entryID, err := scheduler.Register(cron, task, asynq.Queue(tasks.QueueGenerate))
		if err != nil {
			appLog.Fatal("failed to register scheduled task", "type", task.Type(), "error", err)
		}
		appLog.Info("registered scheduled task", "type", task.Type(), "entry_id", entryID, "cron", cron)
	}

	appLog.Info("starting scheduler")
	if err := scheduler.Run(); err != nil {
		appLog.Fatal("scheduler failed", "error", err)
	}
}

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
		Dsn:         cfg.Sentry.DSN,
		Environment: cfg.Env,
		Release:     cfg.Sentry.Release,
	})
	if err != nil {
		appLog.Fatal("sentry init failed", "error", err)
	}
	defer sentry.Flush(2 * time.Second)

	redisOpt := asynq.RedisClientOpt{Addr: cfg.Broker.Address}
	srv := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: cfg.Broker.Concurrency,
			Queues: map[string]int{
				tasks.QueueGenerate: 7,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				retried, _ := asynq.GetRetryCount(ctx)
				maxRetry, _ := asynq.GetMaxRetry(ctx)
				appLog.Warn("task failed", "type", task.Type(), "retry", retried, "max_retry", maxRetry, "error", err)
				if retried >= maxRetry {
					sentry.CaptureException(fmt.Errorf("[Queue: %s] giving up: %w", task.Type(), err))
				}
			}),
		},
	)

	awsService := services.NewAWSService(cfg.Storage.AccountID, cfg.Storage.AccessKeyID, cfg.Storage.AccessKeySecret)
	if err := awsService.InitPresignClient(context.Background()); err != nil {
		appLog.Fatal("[Queue] Failed to initialize AWS provider: S3", "error", err)
	}
	styleAI, err := services.NewGoogleStyleAI(context.Background(), cfg.AI.APIKey, appLog)
	if err != nil {
		appLog.Fatal("failed to initialize style AI", "error", err)
	}
	if cfg.AI.ClassifyModel != "" {
		styleAI.ClassifyModel = cfg.AI.ClassifyModel
	}
	if cfg.AI.TryOnModel != "" {
		styleAI.TryOnModel = cfg.AI.TryOnModel
	}
	app, err := firebase.NewApp(context.Background(), nil)
	if err != nil {
		appLog.Fatal("error initializing firebase app", "error", err)
	}
	db, err := dbhelper.SetupDB(cfg.Database)
	if err != nil {
		appLog.Fatal("database setup failed", "error", err)
	}

	worker := &tasks.Worker{
		DB:            db,
		AI:            styleAI,
		Storage:       awsService,
		Catalogues:    services.NewCatalogueStore(db, appLog),
		Notifier:      services.NewFirebaseNotifier(app, db, appLog),
		Bucket:        cfg.Storage.Bucket,
		CallDelay:     cfg.Studio.CallDelayDuration(),
		ClassifyDelay: cfg.Studio.ClassifyDelayDuration(),
		StaleAfter:    cfg.Studio.StaleAfterDuration(),
		Log:           appLog,
	}
	mux := asynq.NewServeMux()
	worker.Register(mux)

	go runScheduler(redisOpt, appLog)
	appLog.Info("worker starting", "env", cfg.Env, "concurrency", cfg.Broker.Concurrency)
	if err := srv.Run(mux); err != nil {
		appLog.Fatal("worker stopped", "error", err)
	}
}
