package jobs

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskDocumentRender renders a stored record into the document directory.
	TaskDocumentRender = "documents:render"
	// TaskDocumentPrune removes rendered files past their retention.
	TaskDocumentPrune = "documents:prune"
)

// DocumentRenderPayload identifies the stored record to render.
type DocumentRenderPayload struct {
	Variant    string `json:"variant"`
	Number     string `json:"number"`
	LogoRef    string `json:"logo_ref,omitempty"`
	IncludeVAT *bool  `json:"include_vat,omitempty"`
	Barcode    bool   `json:"barcode,omitempty"`
}

// NewDocumentRenderTask constructs an Asynq task.
func NewDocumentRenderTask(payload DocumentRenderPayload) (*asynq.Task, error) {
	if strings.TrimSpace(payload.Variant) == "" || strings.TrimSpace(payload.Number) == "" {
		return nil, errors.New("jobs: document render needs variant and number")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDocumentRender, data, asynq.Queue(QueueDefault), asynq.MaxRetry(3)), nil
}

// DocumentPrunePayload carries the retention window of a prune run.
type DocumentPrunePayload struct {
	MaxAgeHours int `json:"max_age_hours"`
}

// NewDocumentPruneTask constructs the scheduled retention task.
func NewDocumentPruneTask(maxAge time.Duration) (*asynq.Task, error) {
	hours := int(maxAge / time.Hour)
	if hours <= 0 {
		return nil, errors.New("jobs: document prune needs a retention of at least one hour")
	}
	data, err := json.Marshal(DocumentPrunePayload{MaxAgeHours: hours})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDocumentPrune, data, asynq.Queue(QueueDefault), asynq.MaxRetry(1)), nil
}
