package util

import (
	"sync"
	"time"

	"github.com/synctools/tracksync/logger"
	"go.uber.org/zap"
)

// TickWorker runs fn on a fixed interval until stopped. Used for the
// periodic sync mode. Runs happen on a single goroutine, so fn never
// overlaps with itself.
type TickWorker struct {
	stop         chan struct{}
	stopOnce     sync.Once
	tickInterval time.Duration
	wg           *sync.WaitGroup
	name         string
	fn           func()
	running      bool
}

func NewTickWorker(name string, interval time.Duration, stop chan struct{}, fn func(), wg *sync.WaitGroup) *TickWorker {
	return &TickWorker{
		stop:         stop,
		tickInterval: interval,
		wg:           wg,
		fn:           fn,
		name:         name,
	}
}

func (tw *TickWorker) Start() {
	ticker := time.NewTicker(tw.tickInterval)
	tw.wg.Add(1)
	go func() {
		defer tw.wg.Done()
		for {
			select {
			case <-ticker.C:
				tw.fn()
			case <-tw.stop:
				logger.Info("stopping tick worker", zap.String("worker", tw.name))
				ticker.Stop()
				tw.running = false
				return
			}
		}
	}()
	tw.running = true
	logger.Info("tick worker started", zap.String("worker", tw.name))
}

// Stop shuts the worker down. Safe to call more than once.
func (tw *TickWorker) Stop() {
	tw.stopOnce.Do(func() {
		close(tw.stop)
	})
}

func (tw *TickWorker) IsRunning() bool {
	return tw.running
}
