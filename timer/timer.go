// Package timer provides cancellable deadline and interval tasks over an
// injected clock, so that "must cancel on dispose" is a value a node can
// hold rather than a convention around opaque handles.
package timer

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// A Task is a pending callback that the owner must cancel when it no
// longer wants the callback to fire. Cancel is idempotent.
type Task interface {
	Cancel()
}

type deadline struct {
	t    *clock.Timer
	once sync.Once
}

// NewDeadline schedules f to run once, d from now on c.
func NewDeadline(c clock.Clock, d time.Duration, f func()) Task {
	return &deadline{t: c.AfterFunc(d, f)}
}

func (d *deadline) Cancel() {
	d.once.Do(func() {
		d.t.Stop()
	})
}

type interval struct {
	ticker *clock.Ticker
	stopC  chan struct{}
	once   sync.Once
}

// NewInterval schedules f to run every d on c until cancelled.
func NewInterval(c clock.Clock, d time.Duration, f func()) Task {
	iv := &interval{
		ticker: c.Ticker(d),
		stopC:  make(chan struct{}),
	}
	go iv.run(f)
	return iv
}

func (iv *interval) run(f func()) {
	for {
		select {
		case <-iv.ticker.C:
			f()
		case <-iv.stopC:
			return
		}
	}
}

func (iv *interval) Cancel() {
	iv.once.Do(func() {
		iv.ticker.Stop()
		close(iv.stopC)
	})
}
