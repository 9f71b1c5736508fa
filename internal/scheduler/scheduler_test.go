package scheduler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/ewindex/pkg/config"
	"github.com/wonny/ewindex/pkg/logger"
)

type noopJob struct {
	name string
}

func (j *noopJob) Name() string                { return j.name }
func (j *noopJob) Run(_ context.Context) error { return nil }
func (j *noopJob) Schedule() string            { return "0 0 18 * * 1-5" }

func testScheduler() *Scheduler {
	return New(logger.New(&config.Config{LogLevel: "error", LogFormat: "console"}))
}

func TestAddJob(t *testing.T) {
	s := testScheduler()

	require.NoError(t, s.AddJob(&noopJob{name: "a"}))
	require.NoError(t, s.AddJob(&noopJob{name: "b"}))
	assert.ElementsMatch(t, []string{"a", "b"}, s.JobNames())

	assert.Error(t, s.AddJob(&noopJob{name: "a"}), "duplicate names rejected")
}

func TestAddJob_BadSchedule(t *testing.T) {
	s := testScheduler()

	err := s.AddJob(jobWithSchedule{name: "bad", schedule: "not a cron expr"})
	assert.Error(t, err)
}

type jobWithSchedule struct {
	name     string
	schedule string
}

func (j jobWithSchedule) Name() string                { return j.name }
func (j jobWithSchedule) Run(_ context.Context) error { return nil }
func (j jobWithSchedule) Schedule() string            { return j.schedule }

func TestRunJob_Unknown(t *testing.T) {
	s := testScheduler()
	assert.Error(t, s.RunJob("missing"))
}

func TestJobHistory(t *testing.T) {
	h := &JobHistory{}
	assert.Equal(t, 0.0, h.SuccessRate())

	h.AddResult(JobResult{Success: true})
	h.AddResult(JobResult{Success: true})
	h.AddResult(JobResult{Success: false})
	assert.InDelta(t, 2.0/3.0, h.SuccessRate(), 1e-12)

	for i := 0; i < 150; i++ {
		h.AddResult(JobResult{Success: true})
	}
	assert.Len(t, h.Results, 100)
}
