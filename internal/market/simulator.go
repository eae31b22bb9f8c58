package market

import (
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"vaultsim/internal/config"
	"vaultsim/internal/feed"
	"vaultsim/internal/logger"
	"vaultsim/internal/models"
	"vaultsim/internal/random"
	"vaultsim/internal/sched"
)

var (
	ErrVaultNotFound = errors.New("Хранилище не найдено.")
	ErrStopped       = errors.New("Симулятор остановлен.")
)

type Simulator struct {
	cfg   config.MarketConfig
	sched sched.Scheduler
	rng   random.Source
	log   *logger.Logger
	pub   feed.Publisher

	mu      sync.Mutex
	vaults  []models.Vault
	oracle  models.OraclePrice
	stats   models.ProtocolStats
	lastID  int
	started bool
	stopped bool
	timers  sched.Group
}

func NewSimulator(cfg config.MarketConfig, sch sched.Scheduler, rng random.Source, log *logger.Logger, pub feed.Publisher) *Simulator {
	if pub == nil {
		pub = feed.Nop
	}
	return &Simulator{
		cfg:   cfg,
		sched: sch,
		rng:   rng,
		log:   log,
		pub:   pub,
	}
}

func (s *Simulator) Start() {
	s.mu.Lock()
	if s.started || s.stopped {
		s.mu.Unlock()
		return
	}
	s.started = true
	now := s.sched.Now()
	s.vaults, s.oracle = Initialize(s.rng, now, s.cfg)
	s.lastID = len(s.vaults)
	s.stats = RecomputeAggregates(s.vaults, s.oracle.Price)
	events := s.snapshotEventsLocked()
	s.timers.Add(s.sched.Every(s.cfg.PriceInterval, s.tick))
	s.mu.Unlock()

	s.logEntry().WithFields(logrus.Fields{
		"vaults": len(events[0].Vaults),
		"price":  s.cfg.InitialPrice,
	}).Info("Рынок запущен.")
	s.publish(events)
}

func (s *Simulator) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	s.timers.StopAll()
}

func (s *Simulator) tick() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.oracle = StepPrice(s.oracle, s.rng, s.sched.Now(), BoundsFrom(s.cfg))
	s.vaults = Reprice(s.vaults, s.oracle.Price)
	s.stats = RecomputeAggregates(s.vaults, s.oracle.Price)
	events := s.snapshotEventsLocked()
	price := s.oracle.Price
	s.mu.Unlock()

	s.logEntry().WithFields(logrus.Fields{
		"price":        price,
		"liquidatable": countLiquidatable(events[0].Vaults),
	}).Debug("Цена оракула обновлена.")
	s.publish(events)
}

func (s *Simulator) OpenVault(owner string, collateral, debt float64) (models.Vault, error) {
	if !positive(collateral) || !positive(debt) {
		return models.Vault{}, ErrInvalidAmount
	}
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return models.Vault{}, ErrStopped
	}
	now := s.sched.Now()
	s.lastID++
	v := models.Vault{
		ID:               vaultID(s.lastID),
		Owner:            owner,
		CollateralAmount: collateral,
		DebtAmount:       debt,
		CreatedAt:        now,
		LastUpdated:      now,
	}
	derive(&v, s.oracle.Price)
	s.vaults = append(s.vaults, v)
	s.stats = RecomputeAggregates(s.vaults, s.oracle.Price)
	events := s.snapshotEventsLocked()
	s.mu.Unlock()

	s.logEntry().WithFields(logrus.Fields{
		"vault_id":   v.ID,
		"owner":      owner,
		"collateral": collateral,
		"debt":       debt,
		"ratio":      v.CollateralRatio,
	}).Info("Открыто новое хранилище.")
	s.publish(events)
	return v, nil
}

func (s *Simulator) AdjustVault(id string, collateralDelta, debtDelta float64) (models.Vault, error) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return models.Vault{}, ErrStopped
	}
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return models.Vault{}, fmt.Errorf("%w: %s", ErrVaultNotFound, id)
	}
	v := s.vaults[idx]
	v.CollateralAmount = max(0, v.CollateralAmount+collateralDelta)
	v.DebtAmount = max(0, v.DebtAmount+debtDelta)
	v.LastUpdated = s.sched.Now()
	derive(&v, s.oracle.Price)

	vaults := make([]models.Vault, len(s.vaults))
	copy(vaults, s.vaults)
	vaults[idx] = v
	s.vaults = vaults
	s.stats = RecomputeAggregates(s.vaults, s.oracle.Price)
	events := s.snapshotEventsLocked()
	s.mu.Unlock()

	s.logEntry().WithFields(logrus.Fields{
		"vault_id":   id,
		"collateral": v.CollateralAmount,
		"debt":       v.DebtAmount,
		"ratio":      v.CollateralRatio,
	}).Info("Хранилище изменено.")
	s.publish(events)
	return v, nil
}

func (s *Simulator) Vaults() []models.Vault {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyVaults(s.vaults)
}

func (s *Simulator) Vault(id string) (models.Vault, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexLocked(id)
	if idx < 0 {
		return models.Vault{}, false
	}
	return s.vaults[idx], true
}

func (s *Simulator) Oracle() models.OraclePrice {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.oracle
}

func (s *Simulator) Stats() models.ProtocolStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

func (s *Simulator) indexLocked(id string) int {
	for i := range s.vaults {
		if s.vaults[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Simulator) snapshotEventsLocked() []feed.Event {
	now := s.sched.Now()
	oracle := s.oracle
	stats := s.stats
	return []feed.Event{
		{Topic: feed.TopicVaults, Time: now, Vaults: copyVaults(s.vaults)},
		{Topic: feed.TopicOracle, Time: now, Oracle: &oracle},
		{Topic: feed.TopicProtocol, Time: now, Protocol: &stats},
	}
}

func (s *Simulator) publish(events []feed.Event) {
	for _, e := range events {
		s.pub.Publish(e)
	}
}

func (s *Simulator) logEntry() *logrus.Entry {
	return s.log.WithComponent("market").WithField("pair", s.cfg.Pair)
}

func copyVaults(vaults []models.Vault) []models.Vault {
	out := make([]models.Vault, len(vaults))
	copy(out, vaults)
	return out
}

func countLiquidatable(vaults []models.Vault) int {
	n := 0
	for _, v := range vaults {
		if v.IsLiquidatable {
			n++
		}
	}
	return n
}
