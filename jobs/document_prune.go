package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/odyssey-docs/internal/jobs"
)

// StoragePruner removes stored documents older than a cutoff.
type StoragePruner interface {
	Prune(cutoff time.Time) (int, error)
}

// DocumentPruneJob handles TaskDocumentPrune.
type DocumentPruneJob struct {
	Pruner  StoragePruner
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewDocumentPruneJob wires dependencies for the prune handler.
func NewDocumentPruneJob(pruner StoragePruner, logger *slog.Logger, metrics *jobmetrics.Metrics) *DocumentPruneJob {
	return &DocumentPruneJob{Pruner: pruner, Logger: logger, Metrics: metrics}
}

// WithClock overrides the time source, for tests.
func (j *DocumentPruneJob) WithClock(clock func() time.Time) {
	j.clock = clock
}

// Handle removes files older than the payload's retention window.
func (j *DocumentPruneJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Pruner == nil {
		return errors.New("document prune: handler not configured")
	}
	var payload DocumentPrunePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.MaxAgeHours <= 0 {
		return fmt.Errorf("invalid retention %dh: %w", payload.MaxAgeHours, asynq.SkipRetry)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	tracker := j.metrics().Track(TaskDocumentPrune)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	cutoff := j.now().Add(-time.Duration(payload.MaxAgeHours) * time.Hour)
	removed, err := j.Pruner.Prune(cutoff)
	if err != nil {
		j.logger().Error("prune documents", slog.Int("removed", removed), slog.Any("error", err))
		return err
	}
	j.logger().Info("documents pruned", slog.Int("removed", removed), slog.Time("cutoff", cutoff))
	return nil
}

func (j *DocumentPruneJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}

func (j *DocumentPruneJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *DocumentPruneJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
