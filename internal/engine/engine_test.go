package engine

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vaultsim/internal/config"
	"vaultsim/internal/feed"
	"vaultsim/internal/logger"
	"vaultsim/internal/market"
	"vaultsim/internal/sched"
	"vaultsim/internal/store"
	"vaultsim/internal/wallet"
)

var epoch = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

const (
	ownerAddress = "AS1q8w7e6r5t4y3u2i1o0pasdfgh"
	walletAt5000 = `{"version":1,"isConnected":true,"address":"` + ownerAddress + `","balance":5000,"network":"Massa Mainnet","provider":"Massa Station"}`
)

type recorder struct {
	mu     sync.Mutex
	topics map[feed.Topic]int
}

func (r *recorder) Publish(e feed.Event) {
	r.mu.Lock()
	if r.topics == nil {
		r.topics = make(map[feed.Topic]int)
	}
	r.topics[e.Topic]++
	r.mu.Unlock()
}

func (r *recorder) count(t feed.Topic) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.topics[t]
}

type fixture struct {
	engine *Engine
	clock  *sched.Manual
	kv     *store.Store
	rec    *recorder
	cancel context.CancelFunc
}

func newFixture(t *testing.T, snapshot string) *fixture {
	t.Helper()
	cfg := config.Default()
	cfg.Simulation.Seed = 42
	cfg.Wallet.SuccessProbability = 1
	cfg.Liquidation.EmitProbability = 0

	kv, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })
	if snapshot != "" {
		require.NoError(t, kv.Put(cfg.Wallet.SnapshotKey, []byte(snapshot)))
	}

	clock := sched.NewManual(epoch)
	rec := &recorder{}
	e := New(cfg, logger.Nop(), Options{Scheduler: clock, Store: kv, Publisher: rec})

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, e.Start(ctx))
	t.Cleanup(func() {
		e.Stop()
		cancel()
		<-e.Done()
	})
	return &fixture{engine: e, clock: clock, kv: kv, rec: rec, cancel: cancel}
}

func TestStartPopulatesEverySlice(t *testing.T) {
	f := newFixture(t, "")

	snap := f.engine.Snapshot()
	assert.Len(t, snap.Vaults, 15)
	assert.Equal(t, 45.23, snap.Oracle.Price)
	assert.Equal(t, 15, snap.Protocol.TotalVaults)
	assert.Len(t, snap.Liquidations, 8)
	assert.Equal(t, int64(1247), snap.Keepers.TotalLiquidations)
	assert.False(t, snap.Wallet.IsConnected)
	assert.Empty(t, snap.Transactions)
	assert.Len(t, f.engine.Providers(), 4)

	_, err := json.Marshal(snap)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return f.rec.count(feed.TopicOracle) >= 1 && f.rec.count(feed.TopicLiquidations) >= 1
	}, 2*time.Second, 5*time.Millisecond)
}

func TestStartRestoresWallet(t *testing.T) {
	f := newFixture(t, walletAt5000)

	state := f.engine.Wallet().State()
	require.True(t, state.IsConnected)
	assert.Equal(t, ownerAddress, *state.Address)
	assert.Len(t, f.engine.Wallet().Transactions(), 8)
}

func TestCreateVaultOpensAfterBothConfirm(t *testing.T) {
	f := newFixture(t, walletAt5000)

	hash, err := f.engine.CreateVault(1000, 100)
	require.NoError(t, err)
	assert.Regexp(t, `^0x[0-9a-f]{64}$`, hash)
	assert.Len(t, f.engine.Market().Vaults(), 15)

	f.clock.Advance(12 * time.Second)
	assert.Equal(t, 4000.0, f.engine.Wallet().State().Balance)
	vaults := f.engine.Market().Vaults()
	require.Len(t, vaults, 16)
	opened := vaults[15]
	assert.Equal(t, ownerAddress, opened.Owner)
	assert.Equal(t, 1000.0, opened.CollateralAmount)
	assert.Equal(t, 100.0, opened.DebtAmount)
	assert.Equal(t, 100.0, f.engine.Wallet().State().StableBalance)
}

func TestCreateVaultValidation(t *testing.T) {
	f := newFixture(t, "")
	_, err := f.engine.CreateVault(100, 10)
	assert.ErrorIs(t, err, wallet.ErrNotConnected)

	f = newFixture(t, walletAt5000)
	_, err = f.engine.CreateVault(6000, 10)
	assert.ErrorIs(t, err, market.ErrInsufficientBalance)
	_, err = f.engine.CreateVault(10, 1000)
	assert.ErrorIs(t, err, market.ErrUndercollateralized)
	_, err = f.engine.CreateVault(0, 10)
	assert.ErrorIs(t, err, market.ErrInvalidAmount)
	assert.Empty(t, pendingOf(f))
}

func pendingOf(f *fixture) []string {
	var out []string
	for _, tx := range f.engine.Wallet().Transactions() {
		if !tx.Status.Terminal() {
			out = append(out, tx.ID)
		}
	}
	return out
}

func TestDepositAndRepayOwnVault(t *testing.T) {
	f := newFixture(t, walletAt5000)

	_, err := f.engine.DepositVault("vault-001", 0)
	assert.ErrorIs(t, err, ErrNotOwner)
	_, err = f.engine.RepayVault("vault-404")
	assert.ErrorIs(t, err, market.ErrVaultNotFound)

	_, err = f.engine.CreateVault(1000, 100)
	require.NoError(t, err)
	f.clock.Advance(12 * time.Second)
	vaults := f.engine.Market().Vaults()
	require.Len(t, vaults, 16)
	id := vaults[15].ID

	_, err = f.engine.DepositVault(id, 0)
	require.NoError(t, err)
	f.clock.Advance(6 * time.Second)
	v, ok := f.engine.Market().Vault(id)
	require.True(t, ok)
	assert.Equal(t, 1100.0, v.CollateralAmount)

	_, err = f.engine.RepayVault(id)
	require.NoError(t, err)
	f.clock.Advance(6 * time.Second)
	v, _ = f.engine.Market().Vault(id)
	assert.InDelta(t, 90.0, v.DebtAmount, 1e-9)
	assert.InDelta(t, 90.0, f.engine.Wallet().State().StableBalance, 1e-9)
}

func TestFullQueueDropsSnapshots(t *testing.T) {
	cfg := config.Default()
	cfg.Simulation.Seed = 7
	dropped := 0
	e := New(cfg, logger.Nop(), Options{
		Scheduler: sched.NewManual(epoch),
		QueueSize: 1,
		OnDrop:    func(feed.Event) { dropped++ },
	})
	e.Market().Start()
	defer e.Stop()

	assert.Equal(t, 2, dropped)
}

func TestStopCancelsAllTimers(t *testing.T) {
	f := newFixture(t, walletAt5000)
	_, err := f.engine.CreateVault(1000, 100)
	require.NoError(t, err)
	require.NotZero(t, f.clock.Pending())

	f.engine.Stop()
	assert.Zero(t, f.clock.Pending())

	_, err = f.kv.Get("massa-wallet-connected")
	assert.NoError(t, err)
}

func TestDoneClosesOnCancel(t *testing.T) {
	f := newFixture(t, "")
	f.cancel()
	select {
	case <-f.engine.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("dispatch loop did not exit")
	}
}
