package scheduler

import (
	"context"
	"time"

	"stratlab/internal/logger"
)

// AlignedScheduler 在每根 K 线收盘后 Offset 处执行任务，例如日线收盘后同步规范库。
type AlignedScheduler struct {
	Interval       time.Duration
	Offset         time.Duration
	RunImmediately bool

	nowFn func() time.Time
}

func NewAlignedScheduler(interval, offset time.Duration) *AlignedScheduler {
	return &AlignedScheduler{
		Interval: interval,
		Offset:   offset,
		nowFn:    time.Now,
	}
}

// Run 阻塞执行，直到 ctx 取消。任务串行执行，上一轮未结束不会开始下一轮。
func (s *AlignedScheduler) Run(ctx context.Context, task func(context.Context)) {
	if s == nil {
		return
	}
	if task == nil {
		logger.Warnf("AlignedScheduler: task is nil, exit")
		return
	}
	if s.Interval <= 0 {
		logger.Warnf("AlignedScheduler: invalid interval=%s, exit", s.Interval)
		return
	}
	if s.Offset < 0 {
		logger.Warnf("AlignedScheduler: negative offset=%s, clamp to 0", s.Offset)
		s.Offset = 0
	}
	if s.nowFn == nil {
		s.nowFn = time.Now
	}

	logger.Infof("AlignedScheduler: started interval=%s offset=%s run_immediately=%v",
		s.Interval, s.Offset, s.RunImmediately)
	if s.RunImmediately && ctx.Err() == nil {
		task(ctx)
	}

	for {
		now := s.nowFn().UTC()
		nextClose, wakeAt, wait := s.nextTimes(now)
		logger.Debugf("AlignedScheduler: 下一根收盘=%s 执行时间=%s (in %s)",
			nextClose.Format(time.RFC3339), wakeAt.Format(time.RFC3339), wait.Truncate(time.Second))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			logger.Infof("AlignedScheduler: ctx done, exit")
			return
		case <-timer.C:
		}
		task(ctx)
	}
}

// nextTimes 返回 now 之后的下一次收盘与执行时间；wait 恒为正。
func (s *AlignedScheduler) nextTimes(now time.Time) (nextClose, wakeAt time.Time, wait time.Duration) {
	now = now.UTC()
	nextClose = now.Truncate(s.Interval).Add(s.Interval)
	wakeAt = nextClose.Add(s.Offset)
	// offset 尚未到达时，本根 K 线的执行点还在前面
	if prev := nextClose.Add(-s.Interval).Add(s.Offset); prev.After(now) {
		nextClose, wakeAt = nextClose.Add(-s.Interval), prev
	}
	return nextClose, wakeAt, wakeAt.Sub(now)
}
