package runloop

import (
	"context"
	"sync"
	"time"
)

// periodicScheduler runs repeating callbacks on dedicated goroutines,
// standing in for the single periodic-timer thread of §5. It is used by
// TaskWorker.init to arm the window and commit ticks (§4.2). Adapted from
// the teacher's pattern of tracking every spawned goroutine with a
// WaitGroup and stopping it via context cancellation (dispatcher.go,
// lifecycle.go), generalized from "one dispatch goroutine" to "N
// independent repeating tickers that can all be stopped together".
type periodicScheduler struct {
	wg      sync.WaitGroup
	cancel  context.CancelFunc
	baseCtx context.Context
	logger  Logger
}

func newPeriodicScheduler(ctx context.Context, logger Logger) *periodicScheduler {
	c, cancel := context.WithCancel(ctx)
	return &periodicScheduler{baseCtx: c, cancel: cancel, logger: logger}
}

// schedule arms fn to run every interval until stop is called. A
// non-positive interval is a no-op (disables the tick per §6: "0 disables
// windowing" / "0 disables periodic commit").
func (p *periodicScheduler) schedule(interval time.Duration, fn func()) {
	if interval <= 0 {
		return
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-p.baseCtx.Done():
				return
			case <-t.C:
				fn()
			}
		}
	}()
}

// stop cancels every scheduled tick and waits for its goroutine to exit
// (§4.1 Teardown: "cancel the periodic-timer scheduler").
func (p *periodicScheduler) stop() {
	p.cancel()
	p.wg.Wait()
	if p.logger != nil {
		p.logger.Debug("periodic scheduler stopped")
	}
}
