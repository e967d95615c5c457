package detector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/harrison/remedy/internal/models"
)

// watchdogTable tracks the active timers. At most one watchdog per id.
type watchdogTable struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
}

// StartWatchdog schedules a deferred timeout detection for id. If the
// watched operation does not call StopWatchdog before the timeout elapses,
// a TIMEOUT error is detected, recorded, and passed to onTimeout. Starting
// a watchdog for an id that already has one cancels the prior timer first.
func (d *Detector) StartWatchdog(id string, timeout time.Duration, src Source, onTimeout func(*models.DetectedError)) {
	d.watchdogs.mu.Lock()
	defer d.watchdogs.mu.Unlock()

	if d.watchdogs.timers == nil {
		d.watchdogs.timers = make(map[string]*time.Timer)
	}
	if prior, ok := d.watchdogs.timers[id]; ok {
		prior.Stop()
	}

	d.watchdogs.timers[id] = time.AfterFunc(timeout, func() {
		d.watchdogs.mu.Lock()
		delete(d.watchdogs.timers, id)
		d.watchdogs.mu.Unlock()

		e := d.newError(models.ErrorTypeTimeout, models.CategoryRecoverable, models.SeverityHigh, src,
			fmt.Sprintf("operation %s exceeded %s", id, timeout))
		d.record(context.Background(), e)
		d.logger.Warnf("Watchdog fired for %s after %s", id, timeout)
		if onTimeout != nil {
			onTimeout(e)
		}
	})
}

// StopWatchdog cancels the watchdog for id. Reports whether a timer was
// still pending; false means the watchdog already fired or never existed.
func (d *Detector) StopWatchdog(id string) bool {
	d.watchdogs.mu.Lock()
	defer d.watchdogs.mu.Unlock()

	timer, ok := d.watchdogs.timers[id]
	if !ok {
		return false
	}
	delete(d.watchdogs.timers, id)
	return timer.Stop()
}
