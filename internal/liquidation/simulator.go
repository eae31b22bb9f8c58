package liquidation

import (
	"sync"

	"github.com/sirupsen/logrus"

	"vaultsim/internal/config"
	"vaultsim/internal/feed"
	"vaultsim/internal/logger"
	"vaultsim/internal/models"
	"vaultsim/internal/random"
	"vaultsim/internal/sched"
)

type CandidateSource func() ([]Candidate, float64)

type Simulator struct {
	cfg        config.LiquidationConfig
	sched      sched.Scheduler
	rng        random.Source
	log        *logger.Logger
	pub        feed.Publisher
	candidates CandidateSource

	mu          sync.Mutex
	events      []models.LiquidationEvent
	keepers     models.KeeperStats
	started     bool
	stopped     bool
	timers      sched.Group
	settlements map[string]sched.Timer
}

func NewSimulator(cfg config.LiquidationConfig, sch sched.Scheduler, rng random.Source, log *logger.Logger, pub feed.Publisher, candidates CandidateSource) *Simulator {
	if pub == nil {
		pub = feed.Nop
	}
	if candidates == nil {
		candidates = func() ([]Candidate, float64) { return nil, 0 }
	}
	return &Simulator{
		cfg:         cfg,
		sched:       sch,
		rng:         rng,
		log:         log,
		pub:         pub,
		candidates:  candidates,
		keepers:     InitialKeeperStats(),
		settlements: make(map[string]sched.Timer),
	}
}

func (s *Simulator) Start() {
	candidates, _ := s.candidates()

	s.mu.Lock()
	if s.started || s.stopped {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.events = SeedHistory(s.rng, s.sched.Now(), len(candidates), s.cfg.HistorySize)
	s.events = RetireOldest(s.events, s.cfg.FeedCapacity)
	for _, ev := range s.events {
		if ev.Status == models.LiquidationPending {
			s.scheduleSettleLocked(ev.ID)
		}
	}
	s.timers.Add(s.sched.Every(s.cfg.EmitInterval, s.emitTick))
	s.timers.Add(s.sched.Every(s.cfg.KeeperInterval, s.driftTick))
	events := s.eventsLocked()
	keepers := s.keepersEventLocked()
	s.mu.Unlock()

	s.logEntry().WithField("history", len(events.Liquidations)).Info("Симулятор ликвидаций запущен.")
	s.pub.Publish(events)
	s.pub.Publish(keepers)
}

func (s *Simulator) Stop() {
	s.mu.Lock()
	s.stopped = true
	pending := s.settlements
	s.settlements = make(map[string]sched.Timer)
	s.mu.Unlock()

	for _, t := range pending {
		t.Stop()
	}
	s.timers.StopAll()
}

func (s *Simulator) emitTick() {
	candidates, price := s.candidates()

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	ev, ok := MaybeEmitEvent(candidates, price, s.rng, s.sched.Now(), s.cfg)
	if !ok {
		s.mu.Unlock()
		return
	}
	s.events = Push(s.events, ev, s.cfg.FeedCapacity)
	s.scheduleSettleLocked(ev.ID)
	published := s.eventsLocked()
	s.mu.Unlock()

	s.logEntry().WithFields(logrus.Fields{
		"event_id":   ev.ID,
		"vault_id":   ev.VaultID,
		"liquidator": ev.Liquidator,
		"collateral": ev.CollateralLiquidated,
		"debt":       ev.DebtRepaid,
	}).Info("Новая ликвидация.")
	s.pub.Publish(published)
}

func (s *Simulator) scheduleSettleLocked(id string) {
	s.settlements[id] = s.sched.AfterFunc(s.cfg.SettleDelay, func() {
		s.settle(id)
	})
}

func (s *Simulator) settle(id string) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	delete(s.settlements, id)
	idx := -1
	for i := range s.events {
		if s.events[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		s.logEntry().WithField("event_id", id).Debug("Ликвидация вытеснена из ленты до завершения.")
		return
	}
	if s.events[idx].Status.Terminal() {
		s.mu.Unlock()
		return
	}

	settled := Settle(s.events[idx], s.rng, s.cfg.SuccessProbability)
	events := make([]models.LiquidationEvent, len(s.events))
	copy(events, s.events)
	events[idx] = settled
	s.events = events
	s.keepers = CreditSettlement(s.keepers, settled)
	published := s.eventsLocked()
	keepers := s.keepersEventLocked()
	s.mu.Unlock()

	entry := s.logEntry().WithFields(logrus.Fields{
		"event_id": id,
		"vault_id": settled.VaultID,
		"status":   settled.Status,
	})
	if settled.Status == models.LiquidationFailed {
		entry.Warn("Ликвидация не удалась.")
	} else {
		entry.Info("Ликвидация завершена.")
	}
	s.pub.Publish(published)
	s.pub.Publish(keepers)
}

func (s *Simulator) driftTick() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.keepers = DriftKeeperStats(s.keepers, s.rng)
	published := s.keepersEventLocked()
	s.mu.Unlock()

	s.pub.Publish(published)
}

func (s *Simulator) Events() []models.LiquidationEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return RetireOldest(s.events, -1)
}

func (s *Simulator) Keepers() models.KeeperStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.keepers
}

func (s *Simulator) eventsLocked() feed.Event {
	return feed.Event{
		Topic:        feed.TopicLiquidations,
		Time:         s.sched.Now(),
		Liquidations: RetireOldest(s.events, -1),
	}
}

func (s *Simulator) keepersEventLocked() feed.Event {
	keepers := s.keepers
	return feed.Event{Topic: feed.TopicKeepers, Time: s.sched.Now(), Keepers: &keepers}
}

func (s *Simulator) logEntry() *logrus.Entry {
	return s.log.WithComponent("liquidation")
}
