package cron

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduler_RunOnceRunsEveryJob(t *testing.T) {
	s := NewScheduler()
	var a, b int32
	s.AddJob("a", time.Hour, func(ctx context.Context) error {
		atomic.AddInt32(&a, 1)
		return nil
	})
	s.AddJob("b", time.Hour, func(ctx context.Context) error {
		atomic.AddInt32(&b, 1)
		return errors.New("boom")
	})
	s.AddJob("c", time.Hour, func(ctx context.Context) error {
		panic("bad job")
	})

	s.RunOnce(context.Background())

	assert.Equal(t, int32(1), a)
	assert.Equal(t, int32(1), b)
	assert.Len(t, s.Jobs(), 3)
}

func TestScheduler_ServeRunsImmediatelyAndStops(t *testing.T) {
	s := NewScheduler()
	var runs int32
	s.AddJob("tick", time.Hour, func(ctx context.Context) error {
		atomic.AddInt32(&runs, 1)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve(ctx) }()

	require.Eventually(t, func() bool { return atomic.LoadInt32(&runs) == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
