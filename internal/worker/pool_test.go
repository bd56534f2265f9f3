package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPoolRunsSubmittedTasks(t *testing.T) {
	p := New(context.Background(), 2, 10, testLogger())

	var count atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		err := p.Submit(Task{Name: "count", Run: func(context.Context) error {
			defer wg.Done()
			count.Add(1)
			return nil
		}})
		require.NoError(t, err)
	}
	wg.Wait()
	p.Close()

	assert.Equal(t, int32(5), count.Load())
}

func TestPoolQueueFull(t *testing.T) {
	p := New(context.Background(), 1, 1, testLogger())
	defer p.Close()

	block := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, p.Submit(Task{Name: "blocker", Run: func(context.Context) error {
		close(started)
		<-block
		return nil
	}}))
	<-started

	// Worker is busy; one slot in the queue.
	require.NoError(t, p.Submit(Task{Name: "queued", Run: func(context.Context) error { return nil }}))

	err := p.Submit(Task{Name: "rejected", Run: func(context.Context) error { return nil }})
	assert.ErrorIs(t, err, ErrQueueFull)
	close(block)
}

func TestPoolRecoversPanic(t *testing.T) {
	p := New(context.Background(), 1, 2, testLogger())

	done := make(chan struct{})
	require.NoError(t, p.Submit(Task{Name: "boom", Run: func(context.Context) error {
		panic("boom")
	}}))
	require.NoError(t, p.Submit(Task{Name: "after", Run: func(context.Context) error {
		close(done)
		return nil
	}}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not survive panic")
	}
	p.Close()
}

func TestPoolCloseDrainsAndRejects(t *testing.T) {
	p := New(context.Background(), 1, 4, testLogger())

	var ran atomic.Int32
	for i := 0; i < 3; i++ {
		require.NoError(t, p.Submit(Task{Name: "drain", Run: func(context.Context) error {
			ran.Add(1)
			return nil
		}}))
	}
	p.Close()
	assert.Equal(t, int32(3), ran.Load())

	err := p.Submit(Task{Name: "late", Run: func(context.Context) error { return errors.New("never runs") }})
	require.Error(t, err)
}
