package engine

import (
	"context"
	"sync"

	"vaultsim/internal/config"
	"vaultsim/internal/feed"
	"vaultsim/internal/liquidation"
	"vaultsim/internal/logger"
	"vaultsim/internal/market"
	"vaultsim/internal/models"
	"vaultsim/internal/random"
	"vaultsim/internal/sched"
	"vaultsim/internal/wallet"
)

const defaultQueueSize = 256

type Options struct {
	Scheduler sched.Scheduler
	Store     wallet.KV
	Publisher feed.Publisher
	OnDrop    func(feed.Event)
	QueueSize int
}

type Engine struct {
	cfg    *config.Config
	log    *logger.Logger
	sched  sched.Scheduler
	out    feed.Publisher
	onDrop func(feed.Event)
	events chan feed.Event

	market      *market.Simulator
	liquidation *liquidation.Simulator
	wallet      *wallet.Simulator

	mu      sync.Mutex
	started bool
	stopped bool
	done    chan struct{}
}

func New(cfg *config.Config, log *logger.Logger, opts Options) *Engine {
	sch := opts.Scheduler
	if sch == nil {
		sch = sched.NewReal()
	}
	out := opts.Publisher
	if out == nil {
		out = feed.Nop
	}
	size := opts.QueueSize
	if size <= 0 {
		size = defaultQueueSize
	}

	e := &Engine{
		cfg:    cfg,
		log:    log,
		sched:  sch,
		out:    out,
		onDrop: opts.OnDrop,
		events: make(chan feed.Event, size),
		done:   make(chan struct{}),
	}

	seed := cfg.Simulation.Seed
	pub := feed.PublisherFunc(e.enqueue)
	e.market = market.NewSimulator(cfg.Market, sch, random.New(derive(seed, 1)), log, pub)
	e.liquidation = liquidation.NewSimulator(cfg.Liquidation, sch, random.New(derive(seed, 2)), log, pub, e.candidates)
	e.wallet = wallet.NewSimulator(cfg.Wallet, sch, random.New(derive(seed, 3)), log, pub, opts.Store)
	return e
}

// нулевой seed остаётся нулевым, тогда каждый поток сеется временем.
func derive(seed, stream uint64) uint64 {
	if seed == 0 {
		return 0
	}
	return seed*0x9e3779b97f4a7c15 + stream
}

func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return nil
	}
	e.started = true
	e.mu.Unlock()

	go e.handleEvents(ctx)

	state := e.wallet.Restore()
	e.market.Start()
	e.liquidation.Start()

	e.logEntry().WithField("wallet_connected", state.IsConnected).Info("Движок запущен.")
	return nil
}

func (e *Engine) Stop() {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return
	}
	e.stopped = true
	e.mu.Unlock()

	e.liquidation.Stop()
	e.market.Stop()
	e.wallet.Stop()
	e.logEntry().Info("Движок остановлен.")
}

func (e *Engine) Done() <-chan struct{} {
	return e.done
}

func (e *Engine) candidates() ([]liquidation.Candidate, float64) {
	vaults := e.market.Vaults()
	out := make([]liquidation.Candidate, 0, len(vaults))
	for _, v := range vaults {
		out = append(out, liquidation.Candidate{
			VaultID:    v.ID,
			Collateral: v.CollateralAmount,
			Debt:       v.DebtAmount,
		})
	}
	return out, e.market.Oracle().Price
}

func (e *Engine) Market() *market.Simulator {
	return e.market
}

func (e *Engine) Liquidation() *liquidation.Simulator {
	return e.liquidation
}

func (e *Engine) Wallet() *wallet.Simulator {
	return e.wallet
}

func (e *Engine) Providers() []wallet.Provider {
	return e.wallet.Providers()
}

type Snapshot struct {
	Vaults       []models.Vault            `json:"vaults"`
	Oracle       models.OraclePrice        `json:"oracle"`
	Protocol     models.ProtocolStats      `json:"protocol"`
	Liquidations []models.LiquidationEvent `json:"liquidations"`
	Keepers      models.KeeperStats        `json:"keepers"`
	Wallet       models.WalletState        `json:"wallet"`
	Transactions []models.Transaction      `json:"transactions"`
}

func (e *Engine) Snapshot() Snapshot {
	return Snapshot{
		Vaults:       e.market.Vaults(),
		Oracle:       e.market.Oracle(),
		Protocol:     e.market.Stats(),
		Liquidations: e.liquidation.Events(),
		Keepers:      e.liquidation.Keepers(),
		Wallet:       e.wallet.State(),
		Transactions: e.wallet.Transactions(),
	}
}
