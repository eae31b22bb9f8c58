package engine

import (
	"context"

	"vaultsim/internal/feed"
)

// enqueue не блокирует: при полной очереди снимок теряется.
func (e *Engine) enqueue(ev feed.Event) {
	select {
	case e.events <- ev:
	default:
		e.logEntry().WithField("topic", ev.Topic).Warn("Очередь событий переполнена, снимок отброшен.")
		if e.onDrop != nil {
			e.onDrop(ev)
		}
	}
}

func (e *Engine) handleEvents(ctx context.Context) {
	defer close(e.done)
	for {
		select {
		case <-ctx.Done():
			e.drain()
			return
		case ev := <-e.events:
			e.out.Publish(ev)
		}
	}
}

func (e *Engine) drain() {
	for {
		select {
		case ev := <-e.events:
			e.out.Publish(ev)
		default:
			return
		}
	}
}
