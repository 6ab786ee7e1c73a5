package watch

import (
	"sync"
	"time"
)

// Debouncer collapses bursts of triggers into a single fire once the
// burst has been quiet for the full delay. Editors tend to produce
// several write events per save.
type Debouncer struct {
	mu    sync.Mutex
	timer *time.Timer
	delay time.Duration
	fire  func()
}

func NewDebouncer(delay time.Duration, fire func()) *Debouncer {
	return &Debouncer{
		delay: delay,
		fire:  fire,
	}
}

// Trigger restarts the quiet window.
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, d.fire)
}

// Stop cancels a pending fire, if any.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
