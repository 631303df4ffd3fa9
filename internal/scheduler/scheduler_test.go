package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noop(context.Context) error { return nil }

func TestNewRejectsBadTimezone(t *testing.T) {
	_, err := New("Mars/Olympus_Mons")
	assert.Error(t, err)

	s, err := New("")
	require.NoError(t, err)
	assert.Equal(t, time.Local, s.timezone)
}

func TestAddPruneJob(t *testing.T) {
	s, err := New("UTC")
	require.NoError(t, err)

	require.NoError(t, s.AddPruneJob("", noop))
	s.Start()
	defer s.Stop()

	require.Eventually(t, func() bool {
		jobs := s.ListJobs()
		return len(jobs) == 1 && !jobs[0].NextRun.IsZero()
	}, time.Second, 10*time.Millisecond)

	job := s.ListJobs()[0]
	assert.Equal(t, JobPrune, job.Name)
	assert.WithinDuration(t, time.Now().Add(6*time.Hour), job.NextRun, time.Minute)
}

func TestAddJobReplacesSameName(t *testing.T) {
	s, err := New("UTC")
	require.NoError(t, err)

	require.NoError(t, s.AddJob("a", "@every 1h", noop))
	require.NoError(t, s.AddJob("a", "@every 2h", noop))
	assert.Len(t, s.cron.Entries(), 1)

	s.RemoveJob("a")
	assert.Empty(t, s.ListJobs())
	assert.Empty(t, s.cron.Entries())
}

func TestAddJobInvalidSchedule(t *testing.T) {
	s, err := New("UTC")
	require.NoError(t, err)

	assert.Error(t, s.AddJob("bad", "not a schedule", noop))
	assert.Empty(t, s.ListJobs())
}

func TestScheduledJobRuns(t *testing.T) {
	s, err := New("UTC")
	require.NoError(t, err)

	var runs int32
	require.NoError(t, s.AddJob("tick", "@every 1s", func(ctx context.Context) error {
		_, ok := ctx.Deadline()
		assert.True(t, ok)
		atomic.AddInt32(&runs, 1)
		return nil
	}))
	s.Start()
	defer s.Stop()

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&runs) > 0 }, 3*time.Second, 50*time.Millisecond)
}

func TestRunNow(t *testing.T) {
	s, err := New("UTC")
	require.NoError(t, err)

	boom := errors.New("boom")
	assert.ErrorIs(t, s.RunNow("prune", func(context.Context) error { return boom }), boom)
	assert.NoError(t, s.RunNow("prune", noop))
}
