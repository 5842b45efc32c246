package tasks

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/depo/internal/core/model"
)

func waitFor(t *testing.T, q *Queue, id string, status model.TaskStatus) *model.Task {
	t.Helper()
	var task *model.Task
	require.Eventually(t, func() bool {
		var err error
		task, err = q.Get(id)
		return err == nil && task.Status == status
	}, 2*time.Second, 5*time.Millisecond)
	return task
}

func TestQueueRunsJob(t *testing.T) {
	q := NewQueue(2, 4)
	defer q.Shutdown(context.Background())

	var ran atomic.Bool
	var seenID atomic.Value
	task, err := q.Submit(model.TaskAnalysis, 7, func(ctx context.Context, r *Report) error {
		seenID.Store(r.TaskID)
		ran.Store(true)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, model.TaskQueued, task.Status)
	assert.Equal(t, int64(7), task.SubjectID)
	assert.NotEmpty(t, task.ID)

	done := waitFor(t, q, task.ID, model.TaskSucceeded)
	assert.True(t, ran.Load())
	assert.Equal(t, task.ID, seenID.Load())
	assert.Equal(t, 1, done.Attempts)
	assert.NotNil(t, done.StartedAt)
	assert.NotNil(t, done.FinishedAt)
}

func TestQueueRecordsFailureAndPartialPairs(t *testing.T) {
	q := NewQueue(1, 4)
	defer q.Shutdown(context.Background())

	task, err := q.Submit(model.TaskComparison, 1, func(ctx context.Context, r *Report) error {
		r.FailedPair()
		r.FailedPair()
		return errors.New("oracle unavailable")
	})
	require.NoError(t, err)

	done := waitFor(t, q, task.ID, model.TaskFailed)
	assert.Equal(t, "oracle unavailable", done.Error)
	assert.Equal(t, 2, done.FailedPairs)
}

func TestQueueRecoversPanics(t *testing.T) {
	q := NewQueue(1, 1)
	defer q.Shutdown(context.Background())

	task, err := q.Submit(model.TaskAnalysis, 1, func(ctx context.Context, r *Report) error {
		panic("boom")
	})
	require.NoError(t, err)

	done := waitFor(t, q, task.ID, model.TaskFailed)
	assert.Contains(t, done.Error, "boom")
}

func TestQueueFullDoesNotBlock(t *testing.T) {
	q := NewQueue(1, 1)
	release := make(chan struct{})
	started := make(chan struct{})

	_, err := q.Submit(model.TaskAnalysis, 1, func(ctx context.Context, r *Report) error {
		close(started)
		<-release
		return nil
	})
	require.NoError(t, err)
	<-started

	_, err = q.Submit(model.TaskAnalysis, 2, func(ctx context.Context, r *Report) error { return nil })
	require.NoError(t, err)

	_, err = q.Submit(model.TaskAnalysis, 3, func(ctx context.Context, r *Report) error { return nil })
	assert.True(t, errors.Is(err, ErrQueueFull))
	assert.Len(t, q.List(), 2)

	close(release)
	require.NoError(t, q.Shutdown(context.Background()))
}

func TestQueueShutdown(t *testing.T) {
	q := NewQueue(1, 2)

	var count atomic.Int32
	for i := 0; i < 2; i++ {
		_, err := q.Submit(model.TaskAnalysis, int64(i), func(ctx context.Context, r *Report) error {
			count.Add(1)
			return nil
		})
		require.NoError(t, err)
	}

	require.NoError(t, q.Shutdown(context.Background()))
	assert.Equal(t, int32(2), count.Load())

	_, err := q.Submit(model.TaskAnalysis, 9, func(ctx context.Context, r *Report) error { return nil })
	assert.True(t, errors.Is(err, ErrClosed))
}

func TestQueueGetUnknown(t *testing.T) {
	q := NewQueue(1, 1)
	defer q.Shutdown(context.Background())

	_, err := q.Get("missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestQueueDropsOldestFinishedTasks(t *testing.T) {
	q := NewQueue(1, 8)
	defer q.Shutdown(context.Background())
	q.SetRetention(2)

	var ids []string
	for i := 0; i < 3; i++ {
		task, err := q.Submit(model.TaskAnalysis, int64(i+1), func(ctx context.Context, r *Report) error {
			return nil
		})
		require.NoError(t, err)
		ids = append(ids, task.ID)
	}
	waitFor(t, q, ids[2], model.TaskSucceeded)

	_, err := q.Get(ids[0])
	assert.ErrorIs(t, err, ErrNotFound)

	var kept []string
	for _, task := range q.List() {
		kept = append(kept, task.ID)
	}
	assert.ElementsMatch(t, ids[1:], kept)
}
