package sched

import (
	"sync"
	"time"
)

type Timer interface {
	Stop() bool
}

type Scheduler interface {
	Now() time.Time
	AfterFunc(d time.Duration, fn func()) Timer
	Every(d time.Duration, fn func()) Timer
}

type Real struct{}

func NewReal() Real {
	return Real{}
}

func (Real) Now() time.Time {
	return time.Now()
}

func (Real) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}

func (Real) Every(d time.Duration, fn func()) Timer {
	t := &realTicker{ticker: time.NewTicker(d), stopCh: make(chan struct{})}
	go t.loop(fn)
	return t
}

type realTicker struct {
	ticker   *time.Ticker
	stopCh   chan struct{}
	stopOnce sync.Once
}

func (t *realTicker) loop(fn func()) {
	for {
		select {
		case <-t.stopCh:
			return
		case <-t.ticker.C:
			fn()
		}
	}
}

func (t *realTicker) Stop() bool {
	stopped := false
	t.stopOnce.Do(func() {
		t.ticker.Stop()
		close(t.stopCh)
		stopped = true
	})
	return stopped
}

type Group struct {
	mu     sync.Mutex
	timers []Timer
}

func (g *Group) Add(t Timer) Timer {
	g.mu.Lock()
	g.timers = append(g.timers, t)
	g.mu.Unlock()
	return t
}

func (g *Group) StopAll() int {
	g.mu.Lock()
	timers := g.timers
	g.timers = nil
	g.mu.Unlock()

	stopped := 0
	for _, t := range timers {
		if t.Stop() {
			stopped++
		}
	}
	return stopped
}
