package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyQueue_ProcessesEnqueuedEmail(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := env.seedAccount(t, "user-1")
	email := env.seedEmail(t, account, "msg-1", "Queued")

	queue := NewClassifyQueue(newAssociationService(env, &fakeAnalyzer{}, nil), nil)
	queue.Start(ctx)
	defer queue.Stop()

	require.True(t, queue.Enqueue(email.ID, "user-1"))

	assert.Eventually(t, func() bool {
		count, err := env.emailRepo.CountUnprocessed(ctx, "user-1")
		return err == nil && count == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestClassifyQueue_RetriesTransientFailure(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := env.seedAccount(t, "user-1")
	email := env.seedEmail(t, account, "msg-1", "Flaky")

	analyzer := &fakeAnalyzer{failUntil: 2}
	queue := NewClassifyQueue(newAssociationService(env, analyzer, nil), nil,
		WithMaxAttempts(3),
		WithRetryBaseDelay(time.Millisecond))
	queue.Start(ctx)
	defer queue.Stop()

	require.True(t, queue.Enqueue(email.ID, "user-1"))

	assert.Eventually(t, func() bool {
		count, err := env.emailRepo.CountUnprocessed(ctx, "user-1")
		return err == nil && count == 0
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 3, analyzer.callCount())
}

func TestClassifyQueue_GivesUpAfterMaxAttempts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := env.seedAccount(t, "user-1")
	email := env.seedEmail(t, account, "msg-1", "Doomed")

	analyzer := &fakeAnalyzer{failUntil: 100}
	queue := NewClassifyQueue(newAssociationService(env, analyzer, nil), nil,
		WithMaxAttempts(2),
		WithRetryBaseDelay(time.Millisecond))
	queue.Start(ctx)
	defer queue.Stop()

	require.True(t, queue.Enqueue(email.ID, "user-1"))

	assert.Eventually(t, func() bool {
		return analyzer.callCount() == 2
	}, 2*time.Second, 10*time.Millisecond)

	// The email stays in the backlog for the batch sweep.
	count, err := env.emailRepo.CountUnprocessed(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestClassifyQueue_EnqueueFullQueue(t *testing.T) {
	env := newTestEnv(t)

	// Never started, so nothing drains the single slot.
	queue := NewClassifyQueue(newAssociationService(env, &fakeAnalyzer{}, nil), nil,
		WithQueueCapacity(1))

	assert.True(t, queue.Enqueue("email-1", "user-1"))
	assert.False(t, queue.Enqueue("email-2", "user-1"))
	assert.Equal(t, 1, queue.Len())
}

func TestClassifyQueue_EnqueueAfterStop(t *testing.T) {
	env := newTestEnv(t)

	queue := NewClassifyQueue(newAssociationService(env, &fakeAnalyzer{}, nil), nil)
	queue.Start(context.Background())
	queue.Stop()

	assert.False(t, queue.Enqueue("email-1", "user-1"))
}

func TestClassifyQueue_StopIsIdempotent(t *testing.T) {
	env := newTestEnv(t)

	queue := NewClassifyQueue(newAssociationService(env, &fakeAnalyzer{}, nil), nil)
	queue.Start(context.Background())
	queue.Stop()
	queue.Stop()
}

func TestClassifyQueue_StopWithoutStart(t *testing.T) {
	env := newTestEnv(t)

	// Stop on a never-started queue returns instead of waiting for a
	// worker that does not exist.
	queue := NewClassifyQueue(newAssociationService(env, &fakeAnalyzer{}, nil), nil)

	done := make(chan struct{})
	go func() {
		queue.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop blocked on a queue that was never started")
	}

	assert.False(t, queue.Enqueue("email-1", "user-1"))
}
