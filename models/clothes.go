package models

import (
	"strings"

	"gorm.io/datatypes"
)

const (
	BatchPending   = "pending"
	BatchRunning   = "running"
	BatchCompleted = "completed"
	BatchFailed    = "failed"
	BatchCancelled = "cancelled"
)

// PlannedItem references a catalogue item inside a queued look.
type PlannedItem struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Category Category `json:"category"`
}

type PlannedAttempt struct {
	Items []PlannedItem `json:"items"`
}

func (a PlannedAttempt) Names() string {
	names := make([]string, 0, len(a.Items))
	for _, item := range a.Items {
		names = append(names, item.Name)
	}
	return strings.Join(names, ", ")
}

type TryOnBatch struct {
	JsonModel
	UserAccountID uint                                 `json:"-"`
	UserAccount   UserAccount                          `json:"-"`
	Gender        Gender                               `json:"gender"`
	PersonPhotoID uint                                 `json:"person_photo_id"`
	PersonPhoto   PersonPhoto                          `json:"-"`
	Attempts      datatypes.JSONType[[]PlannedAttempt] `json:"-"`
	AttemptCount  int                                  `json:"attempt_count"`
	Results       []TryOnResult                        `json:"results"`

	Status       string   `json:"status"` // pending, running, completed, failed, cancelled
	TaskID       *string  `json:"-"`
	ErrorMessage *string  `json:"error_message"`
	Duration     *float64 `json:"duration"` // in seconds

	LLMModel              *string `json:"llm_model"`
	LLMInputTokenCount    int32   `json:"llm_input_token_usage"`
	LLMOutputTokenCount   int32   `json:"llm_output_token_usage"`
	LLMTotalTokenCount    int32   `json:"llm_total_token_usage"`
	LLMThoughtsTokenCount int32   `json:"llm_thoughts_token_count"`
}

func (b TryOnBatch) IsTerminal() bool {
	return b.Status == BatchCompleted || b.Status == BatchFailed || b.Status == BatchCancelled
}

// TryOnResult is one generated look, stored in order of its attempt.
type TryOnResult struct {
	JsonModel
	TryOnBatchID        uint   `json:"-"`
	Position            int    `json:"position"`
	ObjectKey           string `json:"-"`
	ItemNames           string `json:"item_names"`
	LLMTotalTokenCount  int32  `json:"llm_total_token_usage"`
	LLMOutputTokenCount int32  `json:"llm_output_token_usage"`
}
