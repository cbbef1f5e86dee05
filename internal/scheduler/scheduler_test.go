package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsUnknownTimezone(t *testing.T) {
	_, err := New("Atlantis/Lost")
	assert.Error(t, err)
}

func TestRunNowJobFiresImmediately(t *testing.T) {
	s, err := New("Europe/Moscow")
	require.NoError(t, err)

	fired := make(chan struct{})
	s.AddInterval("probe", time.Hour, true, func(ctx context.Context) {
		close(fired)
	})

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)

	select {
	case <-fired:
	case <-time.After(5 * time.Second):
		t.Fatal("run-now job never fired")
	}

	cancel()
	s.Wait()
}

func TestIntervalJobWaitsForFirstTick(t *testing.T) {
	s, err := New("Europe/Moscow")
	require.NoError(t, err)

	var runs atomic.Int32
	s.AddInterval("slow", time.Hour, false, func(ctx context.Context) {
		runs.Add(1)
	})

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)

	time.Sleep(100 * time.Millisecond)
	cancel()
	s.Wait()

	assert.Zero(t, runs.Load())
}

func TestDispatchCapsOverlappingInstances(t *testing.T) {
	s, err := New("Europe/Moscow")
	require.NoError(t, err)

	release := make(chan struct{})
	var started atomic.Int32
	j := &job{name: "stuck", run: func(ctx context.Context) {
		started.Add(1)
		<-release
	}}

	for i := 0; i < maxInstances+2; i++ {
		s.dispatch(context.Background(), j)
	}

	assert.Eventually(t, func() bool {
		return started.Load() == int32(maxInstances)
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(maxInstances), j.running.Load())

	close(release)
	s.Wait()
	assert.Zero(t, j.running.Load())
}

func TestDispatchRecoversFromPanic(t *testing.T) {
	s, err := New("Europe/Moscow")
	require.NoError(t, err)

	j := &job{name: "panicky", run: func(ctx context.Context) {
		panic("boom")
	}}

	s.dispatch(context.Background(), j)
	s.Wait()

	assert.Zero(t, j.running.Load())
}

func TestNextDailyIsInFuture(t *testing.T) {
	s, err := New("Europe/Moscow")
	require.NoError(t, err)

	j := &job{name: "midnight", daily: true}
	fireAt := s.next(j)

	assert.True(t, fireAt.After(time.Now()))
	assert.Zero(t, fireAt.Hour())
	assert.Zero(t, fireAt.Minute())
	assert.True(t, time.Until(fireAt) <= 24*time.Hour)
}
