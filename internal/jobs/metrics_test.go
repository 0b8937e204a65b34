package jobmetrics

import (
	"errors"
	"fmt"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestOutcome(t *testing.T) {
	assert.Equal(t, StatusSuccess, Outcome(nil))
	assert.Equal(t, StatusFailure, Outcome(errors.New("disk full")))
	assert.Equal(t, StatusRejected, Outcome(fmt.Errorf("bad payload: %w", asynq.SkipRetry)))
}

func TestTrackerRecordsRuns(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.Track("documents:render").End(nil)
	m.Track("documents:render").End(errors.New("disk full"))
	m.Track("documents:render").End(asynq.SkipRetry)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("documents:render", StatusSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("documents:render", StatusFailure)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("documents:render", StatusRejected)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.failures.WithLabelValues("documents:render")))
}

func TestNilTrackerPassesErrorThrough(t *testing.T) {
	var m *Metrics
	err := errors.New("boom")
	assert.Same(t, err, m.Track("x").End(err))
}
