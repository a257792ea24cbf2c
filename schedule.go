package main

import (
	"context"
	"time"

	"marketValuation/internal/market"
	"marketValuation/internal/notify"
	"marketValuation/internal/quote"
	"marketValuation/internal/trace"
)

// 调度时间（北京时间，交易日）
const (
	scheduleMarketOpen   = 9
	scheduleMarketClose  = 15
	scheduleFirstMinute  = 15
	scheduleSlotInterval = 30
)

// 最多向后找这么多天的交易日，覆盖春节、国庆长假
const maxLookaheadDays = 30

const timeFormatNextRun = "2006-01-02 15:04"

// runScheduler 常驻进程：交易日 9:15/9:45/.../14:45/15:00 各执行一次。
// 连续 AlertAfter 次不是完整实时数据时发送告警。
func (a *app) runScheduler(ctx context.Context) {
	trace.Log(ctx, "main: 调度模式启动，交易日每半小时 9:15~15:00")
	tracker := newDegradeTracker(a.cfg.Schedule.AlertAfter)
	for {
		next := nextRunTime(time.Now(), a.status.Holidays(ctx))
		d := time.Until(next)
		trace.Log(ctx, "main: 下次执行 %s (约 %s 后)", next.Format(timeFormatNextRun), d.Round(time.Second))
		timer := time.NewTimer(d)
		select {
		case <-ctx.Done():
			timer.Stop()
			trace.Log(ctx, "main: 调度退出")
			return
		case <-timer.C:
		}

		runCtx, cancel := context.WithTimeout(ctx, a.timeout)
		res := a.runOnce(runCtx)
		cancel()
		if n, alert := tracker.observe(res); alert {
			trace.Warn(ctx, "main: 连续 %d 次非实时数据，发送告警", n)
			if err := a.alerter.Alert(ctx, notify.FallbackSubject, notify.FormatFallbackAlert(res, n)); err != nil {
				trace.Warn(ctx, "main: 发送告警失败 err=%v", err)
			}
		}
	}
}

// degradeTracker 统计连续非 live 结果，达到阈值时触发一次并清零。
type degradeTracker struct {
	threshold int
	count     int
}

func newDegradeTracker(threshold int) *degradeTracker {
	if threshold <= 0 {
		threshold = 1
	}
	return &degradeTracker{threshold: threshold}
}

func (t *degradeTracker) observe(res quote.Result) (int, bool) {
	if res.Source == quote.SourceLive {
		t.count = 0
		return 0, false
	}
	t.count++
	if t.count >= t.threshold {
		n := t.count
		t.count = 0
		return n, true
	}
	return t.count, false
}

// nextRunTime 返回 now 之后的下一个执行时刻（北京时间）。
func nextRunTime(now time.Time, holidays market.Holidays) time.Time {
	now = now.In(market.Beijing)
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, market.Beijing)
	if market.IsTradingDay(day, holidays) {
		for _, slotMin := range buildScheduleSlots() {
			at := day.Add(time.Duration(slotMin) * time.Minute)
			if at.After(now) {
				return at
			}
		}
	}
	return nextTradingDayAt(day, holidays, scheduleMarketOpen, scheduleFirstMinute)
}

func buildScheduleSlots() []int {
	var slots []int
	for h := scheduleMarketOpen; h < scheduleMarketClose; h++ {
		slots = append(slots, h*60+scheduleFirstMinute, h*60+scheduleFirstMinute+scheduleSlotInterval)
	}
	slots = append(slots, scheduleMarketClose*60+0)
	return slots
}

// nextTradingDayAt 节假日数据缺失时退化为只跳过周末。
func nextTradingDayAt(from time.Time, holidays market.Holidays, hour, min int) time.Time {
	next := from
	for i := 0; i < maxLookaheadDays; i++ {
		next = next.AddDate(0, 0, 1)
		if market.IsTradingDay(next, holidays) {
			break
		}
	}
	return time.Date(next.Year(), next.Month(), next.Day(), hour, min, 0, 0, market.Beijing)
}
