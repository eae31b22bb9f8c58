package sched

import (
	"sync"
	"time"

	"github.com/google/btree"
)

// Manual срабатывает только в Advance, по порядку времени, на горутине вызывающего.
type Manual struct {
	mu    sync.Mutex
	now   time.Time
	seq   uint64
	queue *btree.BTreeG[*task]
}

type task struct {
	due     time.Time
	seq     uint64
	period  time.Duration
	fn      func()
	owner   *Manual
	stopped bool
}

func lessTask(a, b *task) bool {
	if !a.due.Equal(b.due) {
		return a.due.Before(b.due)
	}
	return a.seq < b.seq
}

func NewManual(start time.Time) *Manual {
	return &Manual{
		now:   start,
		queue: btree.NewG[*task](8, lessTask),
	}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *Manual) AfterFunc(d time.Duration, fn func()) Timer {
	return m.schedule(d, 0, fn)
}

func (m *Manual) Every(d time.Duration, fn func()) Timer {
	if d <= 0 {
		d = time.Nanosecond
	}
	return m.schedule(d, d, fn)
}

func (m *Manual) schedule(d, period time.Duration, fn func()) *task {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d < 0 {
		d = 0
	}
	m.seq++
	t := &task{due: m.now.Add(d), seq: m.seq, period: period, fn: fn, owner: m}
	m.queue.ReplaceOrInsert(t)
	return t
}

func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queue.Len()
}

func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now.Add(d)
	m.mu.Unlock()

	for {
		m.mu.Lock()
		next, ok := m.queue.Min()
		if !ok || next.due.After(target) {
			m.now = target
			m.mu.Unlock()
			return
		}
		m.queue.DeleteMin()
		m.now = next.due
		if next.period > 0 {
			m.seq++
			next.due = next.due.Add(next.period)
			next.seq = m.seq
			m.queue.ReplaceOrInsert(next)
		}
		fn := next.fn
		m.mu.Unlock()

		fn()
	}
}

func (t *task) Stop() bool {
	m := t.owner
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.stopped {
		return false
	}
	t.stopped = true
	_, found := m.queue.Delete(t)
	return found
}
