package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseIntervalDuration(t *testing.T) {
	cases := map[string]time.Duration{
		"30m": 30 * time.Minute,
		"6H":  6 * time.Hour,
		"1d":  24 * time.Hour,
		"2w":  14 * 24 * time.Hour,
	}
	for raw, want := range cases {
		got, ok := ParseIntervalDuration(raw)
		assert.True(t, ok, raw)
		assert.Equal(t, want, got, raw)
	}
	for _, raw := range []string{"", "d", "0d", "-1h", "5x", "1.5h"} {
		_, ok := ParseIntervalDuration(raw)
		assert.False(t, ok, raw)
	}
}

func TestNextTimesHonoursOffset(t *testing.T) {
	s := NewAlignedScheduler(24*time.Hour, 30*time.Minute)

	// 00:10 还没到当天 00:30 的执行点
	now := time.Date(2024, 3, 4, 0, 10, 0, 0, time.UTC)
	closeAt, wake, wait := s.nextTimes(now)
	assert.Equal(t, time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), closeAt)
	assert.Equal(t, time.Date(2024, 3, 4, 0, 30, 0, 0, time.UTC), wake)
	assert.Equal(t, 20*time.Minute, wait)

	now = time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC)
	closeAt, wake, wait = s.nextTimes(now)
	assert.Equal(t, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), closeAt)
	assert.Equal(t, time.Date(2024, 3, 5, 0, 30, 0, 0, time.UTC), wake)
	assert.Equal(t, 12*time.Hour+30*time.Minute, wait)
}

func TestRunImmediatelyThenStopsOnCancel(t *testing.T) {
	s := NewAlignedScheduler(24*time.Hour, 0)
	s.RunImmediately = true
	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32
	done := make(chan struct{})
	go func() {
		s.Run(ctx, func(context.Context) {
			calls.Add(1)
			cancel()
		})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not exit after cancel")
	}
	assert.Equal(t, int32(1), calls.Load())
}

func TestRunRejectsInvalidInterval(t *testing.T) {
	s := NewAlignedScheduler(0, 0)
	called := false
	s.Run(context.Background(), func(context.Context) { called = true })
	assert.False(t, called)
}
