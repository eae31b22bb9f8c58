package wallet

import (
	"context"
	"errors"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"vaultsim/internal/config"
	"vaultsim/internal/feed"
	"vaultsim/internal/logger"
	"vaultsim/internal/models"
	"vaultsim/internal/random"
	"vaultsim/internal/sched"
	"vaultsim/internal/store"
)

type KV interface {
	Get(key string) ([]byte, error)
	Put(key string, value []byte) error
	Delete(key string) error
}

type SubmitOption func(*submitOptions)

type submitOptions struct {
	hook func(models.Transaction)
}

func WithSettleHook(fn func(models.Transaction)) SubmitOption {
	return func(o *submitOptions) {
		o.hook = fn
	}
}

type ConnectCallback func(models.WalletState, error)

type Simulator struct {
	cfg       config.WalletConfig
	sched     sched.Scheduler
	rng       random.Source
	log       *logger.Logger
	pub       feed.Publisher
	kv        KV
	providers []Provider

	mu           sync.Mutex
	state        models.WalletState
	txs          []models.Transaction
	session      uint64
	connecting   bool
	connectTimer sched.Timer
	connectDone  ConnectCallback
	settlements  map[string]sched.Timer
	hooks        map[string]func(models.Transaction)
	rewards      sched.Timer
	stopped      bool
}

func NewSimulator(cfg config.WalletConfig, sch sched.Scheduler, rng random.Source, log *logger.Logger, pub feed.Publisher, kv KV) *Simulator {
	if pub == nil {
		pub = feed.Nop
	}
	return &Simulator{
		cfg:         cfg,
		sched:       sch,
		rng:         rng,
		log:         log,
		pub:         pub,
		kv:          kv,
		providers:   DefaultProviders(),
		state:       DefaultState(cfg.Network),
		settlements: make(map[string]sched.Timer),
		hooks:       make(map[string]func(models.Transaction)),
	}
}

func (s *Simulator) Providers() []Provider {
	out := make([]Provider, len(s.providers))
	copy(out, s.providers)
	return out
}

func (s *Simulator) State() models.WalletState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Simulator) Connecting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connecting
}

func (s *Simulator) Transactions() []models.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyTransactions(s.txs)
}

// done вызывается ровно один раз: с состоянием или с ErrConnectCanceled.
func (s *Simulator) ConnectAsync(providerID string, done ConnectCallback) error {
	provider, ok := findProvider(s.providers, providerID)
	if !ok {
		return &ConnectionError{Provider: providerID, Err: ErrUnknownProvider}
	}
	if !provider.Installed {
		return &ConnectionError{Provider: providerID, Err: ErrProviderNotInstalled}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.stopped:
		return ErrStopped
	case s.state.IsConnected:
		return ErrAlreadyConnected
	case s.connecting:
		return ErrConnectInProgress
	}
	s.connecting = true
	s.connectDone = done
	session := s.session
	s.connectTimer = s.sched.AfterFunc(s.cfg.ConnectDelay, func() {
		s.completeConnect(session, provider)
	})
	s.logEntry().WithField("provider", provider.ID).Info("Подключение кошелька...")
	return nil
}

func (s *Simulator) Connect(ctx context.Context, providerID string) (models.WalletState, error) {
	type result struct {
		state models.WalletState
		err   error
	}
	ch := make(chan result, 1)
	err := s.ConnectAsync(providerID, func(state models.WalletState, err error) {
		ch <- result{state: state, err: err}
	})
	if err != nil {
		return s.State(), err
	}
	select {
	case r := <-ch:
		return r.state, r.err
	case <-ctx.Done():
		if s.cancelConnect() {
			return s.State(), ctx.Err()
		}
		// Подключение уже завершено или сброшено, done вызывается в любом случае.
		r := <-ch
		return r.state, r.err
	}
}

func (s *Simulator) cancelConnect() bool {
	s.mu.Lock()
	if !s.connecting {
		s.mu.Unlock()
		return false
	}
	s.abortConnectLocked()
	s.mu.Unlock()
	s.logEntry().Warn("Подключение кошелька отменено.")
	return true
}

func (s *Simulator) abortConnectLocked() {
	if s.connectTimer != nil {
		s.connectTimer.Stop()
	}
	s.connectTimer = nil
	s.connectDone = nil
	s.connecting = false
	s.session++
}

func (s *Simulator) completeConnect(session uint64, provider Provider) {
	s.mu.Lock()
	if s.stopped || session != s.session || !s.connecting {
		s.mu.Unlock()
		return
	}
	done := s.connectDone
	s.connecting = false
	s.connectTimer = nil
	s.connectDone = nil

	address := "AS1" + random.Base36(s.rng, 26)
	name := provider.Name
	s.state = models.WalletState{
		IsConnected: true,
		Address:     &address,
		Balance:     random.Uniform(s.rng, s.cfg.BalanceMin, s.cfg.BalanceMax),
		Network:     s.cfg.Network,
		Provider:    &name,
	}
	s.txs = SeedConnectHistory(s.rng, s.sched.Now(), s.cfg.ConnectHistory, s.cfg.SuccessProbability)
	for _, tx := range s.txs {
		if tx.Status == models.TxStatusPending {
			s.scheduleSettleLocked(tx.ID)
		}
	}
	s.startRewardsLocked()
	s.persistLocked()
	state := s.state
	events := s.eventsLocked()
	s.mu.Unlock()

	s.logEntry().WithFields(logrus.Fields{
		"provider": provider.ID,
		"address":  address,
		"balance":  state.Balance,
	}).Info("Кошелёк подключён.")
	s.publish(events)
	if done != nil {
		done(state, nil)
	}
}

func (s *Simulator) Disconnect() {
	s.mu.Lock()
	done := s.connectDone
	wasConnecting := s.connecting
	if s.connecting {
		s.abortConnectLocked()
	} else {
		s.session++
	}
	s.cancelTimersLocked()
	s.state = DefaultState(s.cfg.Network)
	s.txs = nil
	if s.kv != nil {
		if err := s.kv.Delete(s.cfg.SnapshotKey); err != nil {
			s.logEntry().WithError(err).Error("Не удалось удалить снимок кошелька.")
		}
	}
	events := s.eventsLocked()
	s.mu.Unlock()

	s.logEntry().Info("Кошелёк отключён.")
	s.publish(events)
	if wasConnecting && done != nil {
		done(DefaultState(s.cfg.Network), ErrConnectCanceled)
	}
}

func (s *Simulator) Submit(t models.TxType, amount float64, asset models.Asset, opts ...SubmitOption) (string, error) {
	if !t.Valid() {
		return "", ErrInvalidTxType
	}
	if !validAmount(amount) {
		return "", ErrInvalidAmount
	}
	if asset == "" {
		asset = AssetFor(t, nil)
	}
	if !validAsset(asset) {
		return "", ErrInvalidAsset
	}
	var o submitOptions
	for _, opt := range opts {
		opt(&o)
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return "", ErrStopped
	}
	if !s.state.IsConnected {
		s.mu.Unlock()
		return "", ErrNotConnected
	}
	tx := NewTransaction(s.rng, s.sched.Now(), t, amount, asset)
	s.txs = append([]models.Transaction{tx}, s.txs...)
	s.scheduleSettleLocked(tx.ID)
	if o.hook != nil {
		s.hooks[tx.ID] = o.hook
	}
	txs := copyTransactions(s.txs)
	s.mu.Unlock()

	s.logEntry().WithFields(logrus.Fields{
		"tx_hash": tx.Hash,
		"type":    t,
		"amount":  amount,
		"asset":   asset,
	}).Info("Транзакция отправлена.")
	s.pub.Publish(feed.Event{Topic: feed.TopicTransactions, Time: tx.Timestamp, Transactions: txs})
	return tx.Hash, nil
}

func (s *Simulator) scheduleSettleLocked(id string) {
	session := s.session
	delay := random.Duration(s.rng, s.cfg.SettleMin, s.cfg.SettleMax)
	s.settlements[id] = s.sched.AfterFunc(delay, func() {
		s.settle(session, id)
	})
}

func (s *Simulator) settle(session uint64, id string) {
	s.mu.Lock()
	if s.stopped || session != s.session {
		s.mu.Unlock()
		return
	}
	delete(s.settlements, id)
	hook := s.hooks[id]
	delete(s.hooks, id)

	idx := -1
	for i := range s.txs {
		if s.txs[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 || s.txs[idx].Status.Terminal() {
		s.mu.Unlock()
		return
	}

	settled := SettleTransaction(s.txs[idx], s.rng, s.cfg.SuccessProbability)
	txs := copyTransactions(s.txs)
	txs[idx] = settled
	s.txs = txs

	events := []feed.Event{{Topic: feed.TopicTransactions, Time: s.sched.Now(), Transactions: copyTransactions(s.txs)}}
	next := ApplyConfirmed(s.state, settled)
	if next != s.state {
		s.state = next
		s.persistLocked()
		events = append(events, s.walletEventLocked())
	}
	s.mu.Unlock()

	entry := s.logEntry().WithFields(logrus.Fields{
		"tx_hash": settled.Hash,
		"type":    settled.Type,
		"status":  settled.Status,
	})
	if settled.Status == models.TxStatusFailed {
		entry.Warn("Транзакция не прошла.")
	} else {
		entry.Info("Транзакция подтверждена.")
	}
	s.publish(events)
	if hook != nil {
		hook(settled)
	}
}

func (s *Simulator) startRewardsLocked() {
	if s.rewards != nil {
		s.rewards.Stop()
	}
	session := s.session
	s.rewards = s.sched.Every(s.cfg.RewardInterval, func() {
		s.reward(session)
	})
}

func (s *Simulator) reward(session uint64) {
	s.mu.Lock()
	if s.stopped || session != s.session || !s.state.IsConnected {
		s.mu.Unlock()
		return
	}
	if !random.Chance(s.rng, s.cfg.RewardProbability) {
		s.mu.Unlock()
		return
	}
	amount := random.Uniform(s.rng, 0, s.cfg.RewardMax)
	s.state.Balance = decimal.NewFromFloat(s.state.Balance).Add(decimal.NewFromFloat(amount)).InexactFloat64()
	s.persistLocked()
	event := s.walletEventLocked()
	s.mu.Unlock()

	s.logEntry().WithField("amount", amount).Debug("Начислено вознаграждение.")
	s.pub.Publish(event)
}

func (s *Simulator) RestoreFromSnapshot(raw []byte) (models.WalletState, error) {
	state, decodeErr := DecodeSnapshot(raw, s.cfg.Network)

	s.mu.Lock()
	if s.stopped || s.state.IsConnected || s.connecting {
		current, stopped := s.state, s.stopped
		s.mu.Unlock()
		if stopped {
			return current, ErrStopped
		}
		return current, ErrAlreadyConnected
	}
	s.state = state
	s.txs = nil
	if state.IsConnected {
		s.txs = SeedRestoreHistory(s.rng, s.sched.Now(), s.cfg.RestoreHistory)
		s.startRewardsLocked()
		s.persistLocked()
	}
	events := s.eventsLocked()
	s.mu.Unlock()

	s.publish(events)
	return state, decodeErr
}

func (s *Simulator) Restore() models.WalletState {
	if s.kv == nil {
		return s.State()
	}
	raw, err := s.kv.Get(s.cfg.SnapshotKey)
	if errors.Is(err, store.ErrNotFound) {
		return s.State()
	}
	if err != nil {
		s.logEntry().WithError(err).Error("Не удалось прочитать снимок кошелька.")
		return s.State()
	}

	state, err := s.RestoreFromSnapshot(raw)
	if errors.Is(err, ErrCorruptSnapshot) {
		s.logEntry().WithError(err).Warn("Снимок кошелька повреждён, используется состояние по умолчанию.")
		if delErr := s.kv.Delete(s.cfg.SnapshotKey); delErr != nil {
			s.logEntry().WithError(delErr).Error("Не удалось удалить снимок кошелька.")
		}
		return state
	}
	if err != nil {
		s.logEntry().WithError(err).Warn("Снимок кошелька не восстановлен.")
		return s.State()
	}
	if state.IsConnected {
		s.logEntry().WithField("address", *state.Address).Info("Кошелёк восстановлен из снимка.")
	}
	return state
}

func (s *Simulator) Stop() {
	s.mu.Lock()
	s.stopped = true
	if s.connectTimer != nil {
		s.connectTimer.Stop()
		s.connectTimer = nil
	}
	s.cancelTimersLocked()
	s.mu.Unlock()
}

func (s *Simulator) cancelTimersLocked() {
	for id, t := range s.settlements {
		t.Stop()
		delete(s.settlements, id)
	}
	clear(s.hooks)
	if s.rewards != nil {
		s.rewards.Stop()
		s.rewards = nil
	}
}

func (s *Simulator) persistLocked() {
	if s.kv == nil || !s.state.IsConnected {
		return
	}
	raw, err := EncodeSnapshot(s.state)
	if err == nil {
		err = s.kv.Put(s.cfg.SnapshotKey, raw)
	}
	if err != nil {
		s.logEntry().WithError(err).Error("Не удалось сохранить снимок кошелька.")
	}
}

func (s *Simulator) walletEventLocked() feed.Event {
	state := s.state
	return feed.Event{Topic: feed.TopicWallet, Time: s.sched.Now(), Wallet: &state}
}

func (s *Simulator) eventsLocked() []feed.Event {
	return []feed.Event{
		s.walletEventLocked(),
		{Topic: feed.TopicTransactions, Time: s.sched.Now(), Transactions: copyTransactions(s.txs)},
	}
}

func (s *Simulator) publish(events []feed.Event) {
	for _, e := range events {
		s.pub.Publish(e)
	}
}

func (s *Simulator) logEntry() *logrus.Entry {
	return s.log.WithComponent("wallet")
}
