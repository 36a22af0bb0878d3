package util

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTickWorker(t *testing.T) {
	for scenario, fn := range map[string]func(t *testing.T){
		"runs fn on every tick":               testTicks,
		"does not run before first tick":      testNoRunBeforeFirstTick,
		"stop is safe to call more than once": testStopTwice,
	} {
		t.Run(scenario, func(t *testing.T) {
			fn(t)
		})
	}
}

func testTicks(t *testing.T) {
	var runs int32
	var wg sync.WaitGroup
	worker := NewTickWorker("test", 10*time.Millisecond, make(chan struct{}), func() {
		atomic.AddInt32(&runs, 1)
	}, &wg)
	worker.Start()
	assert.True(t, worker.IsRunning())

	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&runs) >= 2
	}, time.Second, 5*time.Millisecond)

	worker.Stop()
	wg.Wait()
	assert.False(t, worker.IsRunning())
}

// Work done before Start cannot overlap with the worker: fn only ever runs
// after a full interval has elapsed, never at start.
func testNoRunBeforeFirstTick(t *testing.T) {
	var runs int32
	var wg sync.WaitGroup
	worker := NewTickWorker("test", time.Hour, make(chan struct{}), func() {
		atomic.AddInt32(&runs, 1)
	}, &wg)
	worker.Start()

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&runs))

	worker.Stop()
	wg.Wait()
}

func testStopTwice(t *testing.T) {
	var wg sync.WaitGroup
	worker := NewTickWorker("test", time.Hour, make(chan struct{}), func() {}, &wg)
	worker.Start()

	worker.Stop()
	wg.Wait()
	assert.NotPanics(t, func() {
		worker.Stop()
	})
}
