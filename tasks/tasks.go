package tasks

import (
	"context"
	"encoding/json"
	"time"

	"stylestudioapi/logger"
	"stylestudioapi/models"
	"stylestudioapi/services"

	"github.com/hibiken/asynq"
	"gorm.io/gorm"
)

const (
	TypeTryOnBatch    = "generate:tryon_batch"
	TypeClassifyBatch = "generate:classify_batch"
	TypeStaleBatches  = "maintenance:stale_batches"

	QueueGenerate = "generate"
)

// Enqueuer is satisfied by *asynq.Client.
type Enqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Canceller is satisfied by *asynq.Inspector.
type Canceller interface {
	CancelProcessing(id string) error
}

type TryOnBatchPayload struct {
	BatchID uint `json:"batch_id"`
}

type ClassifyBatchPayload struct {
	UserID  uint          `json:"user_id"`
	Gender  models.Gender `json:"gender"`
	ItemIDs []uint        `json:"item_ids"`
}

func NewTryOnBatchTask(batchID uint) (*asynq.Task, error) {
	payload, err := json.Marshal(TryOnBatchPayload{BatchID: batchID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeTryOnBatch, payload), nil
}

func NewClassifyBatchTask(userID uint, gender models.Gender, itemIDs []uint) (*asynq.Task, error) {
	payload, err := json.Marshal(ClassifyBatchPayload{UserID: userID, Gender: gender, ItemIDs: itemIDs})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeClassifyBatch, payload), nil
}

func NewStaleBatchesTask() *asynq.Task {
	return asynq.NewTask(TypeStaleBatches, nil)
}

// EnqueueOptions is shared by the API and the CLI so that generation work
// always lands on the generate queue with the same retry budget.
func EnqueueOptions() []asynq.Option {
	return []asynq.Option{asynq.MaxRetry(3), asynq.Queue(QueueGenerate), asynq.Timeout(time.Hour)}
}

// Worker holds what the task handlers need.
type Worker struct {
	DB         *gorm.DB
	AI         services.StyleAIProvider
	Storage    services.AWSServiceProvider
	Catalogues services.CatalogueStoreProvider
	Notifier   services.NotificationSender
	Bucket     string

	CallDelay     time.Duration
	ClassifyDelay time.Duration
	StaleAfter    time.Duration
	Sleep         func(ctx context.Context, d time.Duration) error

	Log *logger.Logger
}

func (w *Worker) log() *logger.Logger {
	if w.Log == nil {
		return logger.NewNop()
	}
	return w.Log
}

func (w *Worker) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeTryOnBatch, w.HandleTryOnBatchTask)
	mux.HandleFunc(TypeClassifyBatch, w.HandleClassifyBatchTask)
	mux.HandleFunc(TypeStaleBatches, w.HandleStaleBatchesTask)
}

// ScheduledTasks lists the periodic jobs with their cron specs.
func ScheduledTasks() map[string]*asynq.Task {
	return map[string]*asynq.Task{
		"@every 15m": NewStaleBatchesTask(),
	}
}
