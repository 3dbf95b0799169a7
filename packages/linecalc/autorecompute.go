package linecalc

import (
	"sync"
	"time"

	"github.com/pkg/errors"
)

// ResultSink receives the results of every automatic pass
type ResultSink interface {
	Deliver(results map[LineKey]Result, err error)
}

// ResultSinkFunc adapts a function to ResultSink
type ResultSinkFunc func(results map[LineKey]Result, err error)

func (f ResultSinkFunc) Deliver(results map[LineKey]Result, err error) {
	f(results, err)
}

// AutoRecompute runs RunScheduledRecompute once edits have been quiet for
// the debounce window. at most one pass is in flight; edits arriving during
// a pass schedule another one.
type AutoRecompute struct {
	wb     *Workbook
	sink   ResultSink
	window time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	running bool
	again   bool
	stopped bool
}

// StartAutoRecompute attaches a debounced recompute loop to the workbook.
// ApplyEdit notifies it from then on.
func (wb *Workbook) StartAutoRecompute(sink ResultSink) (*AutoRecompute, error) {
	wb.autoMu.Lock()
	defer wb.autoMu.Unlock()

	if wb.auto != nil {
		return nil, errors.WithStack(NewApplicationError(FailedPrecondition, "auto recompute already started"))
	}
	wb.auto = &AutoRecompute{
		wb:     wb,
		sink:   sink,
		window: wb.config.DebounceWindow,
	}
	return wb.auto, nil
}

// Notify restarts the debounce window
func (a *AutoRecompute) Notify() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stopped {
		return
	}
	if a.timer != nil {
		a.timer.Stop()
	}
	a.timer = time.AfterFunc(a.window, a.fire)
}

func (a *AutoRecompute) fire() {
	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		return
	}
	if a.running {
		a.again = true
		a.mu.Unlock()
		return
	}
	a.running = true
	a.mu.Unlock()

	results, err := a.wb.RunScheduledRecompute()
	a.sink.Deliver(results, err)

	a.mu.Lock()
	a.running = false
	again := a.again && !a.stopped
	a.again = false
	a.mu.Unlock()

	if again {
		a.Notify()
	}
}

// Stop cancels a pending pass and detaches from the workbook. a pass
// already running still delivers.
func (a *AutoRecompute) Stop() {
	a.mu.Lock()
	a.stopped = true
	if a.timer != nil {
		a.timer.Stop()
	}
	a.mu.Unlock()

	a.wb.autoMu.Lock()
	if a.wb.auto == a {
		a.wb.auto = nil
	}
	a.wb.autoMu.Unlock()
}
