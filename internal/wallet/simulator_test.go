package wallet

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vaultsim/internal/config"
	"vaultsim/internal/feed"
	"vaultsim/internal/logger"
	"vaultsim/internal/models"
	"vaultsim/internal/random"
	"vaultsim/internal/sched"
	"vaultsim/internal/store"
)

var epoch = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

const walletAt500 = `{"version":1,"isConnected":true,"address":"AS1q8w7e6r5t4y3u2i1o0pasdfgh","balance":500,"network":"Massa Mainnet","provider":"Massa Station"}`

type recorder struct {
	mu     sync.Mutex
	events []feed.Event
}

func (r *recorder) Publish(e feed.Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) count(topic feed.Topic) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Topic == topic {
			n++
		}
	}
	return n
}

type fixture struct {
	sim   *Simulator
	clock *sched.Manual
	kv    *store.Store
	rec   *recorder
	cfg   config.WalletConfig
}

func newFixture(t *testing.T, rng random.Source, mutate func(*config.WalletConfig)) *fixture {
	t.Helper()
	cfg := config.Default().Wallet
	if mutate != nil {
		mutate(&cfg)
	}
	kv, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })

	clock := sched.NewManual(epoch)
	rec := &recorder{}
	sim := NewSimulator(cfg, clock, rng, logger.Nop(), rec, kv)
	t.Cleanup(sim.Stop)
	return &fixture{sim: sim, clock: clock, kv: kv, rec: rec, cfg: cfg}
}

func quietHistory(cfg *config.WalletConfig) {
	cfg.ConnectHistory = 0
	cfg.RestoreHistory = 0
}

func TestConnectMassaStation(t *testing.T) {
	f := newFixture(t, random.New(9), nil)

	var got models.WalletState
	var gotErr error
	calls := 0
	require.NoError(t, f.sim.ConnectAsync("massa-station", func(state models.WalletState, err error) {
		got, gotErr = state, err
		calls++
	}))
	assert.True(t, f.sim.Connecting())
	assert.False(t, f.sim.State().IsConnected)

	f.clock.Advance(2499 * time.Millisecond)
	assert.Zero(t, calls)

	f.clock.Advance(time.Millisecond)
	require.Equal(t, 1, calls)
	require.NoError(t, gotErr)
	assert.False(t, f.sim.Connecting())

	state := f.sim.State()
	assert.Equal(t, got, state)
	assert.True(t, state.IsConnected)
	require.NotNil(t, state.Address)
	assert.Regexp(t, `^AS1[0-9a-z]{26}$`, *state.Address)
	assert.GreaterOrEqual(t, state.Balance, 2000.0)
	assert.Less(t, state.Balance, 7000.0)
	assert.Equal(t, "Massa Mainnet", state.Network)
	require.NotNil(t, state.Provider)
	assert.Equal(t, "Massa Station", *state.Provider)

	txs := f.sim.Transactions()
	require.Len(t, txs, 12)
	pending := 0
	for _, tx := range txs {
		if tx.Status == models.TxStatusPending {
			pending++
		}
	}
	assert.Equal(t, 2, pending)

	raw, err := f.kv.Get(f.cfg.SnapshotKey)
	require.NoError(t, err)
	persisted, err := DecodeSnapshot(raw, f.cfg.Network)
	require.NoError(t, err)
	assert.Equal(t, *state.Address, *persisted.Address)

	f.clock.Advance(6 * time.Second)
	for _, tx := range f.sim.Transactions() {
		assert.True(t, tx.Status.Terminal())
	}

	_, err = f.sim.Connect(context.Background(), "massa-wallet")
	assert.ErrorIs(t, err, ErrAlreadyConnected)
}

func TestConnectRejectsProviders(t *testing.T) {
	f := newFixture(t, random.New(9), nil)

	err := f.sim.ConnectAsync("phantom", nil)
	var connErr *ConnectionError
	require.True(t, errors.As(err, &connErr))
	assert.Equal(t, "phantom", connErr.Provider)
	assert.ErrorIs(t, err, ErrUnknownProvider)

	err = f.sim.ConnectAsync("metamask", nil)
	assert.ErrorIs(t, err, ErrProviderNotInstalled)
	assert.True(t, errors.As(err, &connErr))

	assert.False(t, f.sim.Connecting())
	assert.False(t, f.sim.State().IsConnected)
	assert.Zero(t, f.clock.Pending())

	require.NoError(t, f.sim.ConnectAsync("walletconnect", nil))
	assert.ErrorIs(t, f.sim.ConnectAsync("massa-station", nil), ErrConnectInProgress)
}

func TestDepositConfirmedDebitsBalance(t *testing.T) {
	f := newFixture(t, random.NewScripted(0.5, 0.0, 0.5), quietHistory)
	_, err := f.sim.RestoreFromSnapshot([]byte(walletAt500))
	require.NoError(t, err)

	hash, err := f.sim.Submit(models.TxTypeDeposit, 100, models.AssetMAS)
	require.NoError(t, err)
	assert.Regexp(t, `^0x[0-9a-f]{64}$`, hash)

	txs := f.sim.Transactions()
	require.Len(t, txs, 1)
	assert.Equal(t, models.TxStatusPending, txs[0].Status)
	assert.Equal(t, hash, txs[0].Hash)
	assert.Equal(t, 500.0, f.sim.State().Balance)

	f.clock.Advance(4 * time.Second)
	txs = f.sim.Transactions()
	assert.Equal(t, models.TxStatusConfirmed, txs[0].Status)
	require.NotNil(t, txs[0].GasUsed)
	assert.Equal(t, int64(96000), *txs[0].GasUsed)
	assert.Equal(t, 400.0, f.sim.State().Balance)

	raw, err := f.kv.Get(f.cfg.SnapshotKey)
	require.NoError(t, err)
	persisted, err := DecodeSnapshot(raw, f.cfg.Network)
	require.NoError(t, err)
	assert.Equal(t, 400.0, persisted.Balance)
}

func TestDepositFailedKeepsBalance(t *testing.T) {
	f := newFixture(t, random.NewScripted(0.5, 0.99, 0.5), quietHistory)
	_, err := f.sim.RestoreFromSnapshot([]byte(walletAt500))
	require.NoError(t, err)

	_, err = f.sim.Submit(models.TxTypeDeposit, 100, models.AssetMAS)
	require.NoError(t, err)

	f.clock.Advance(4 * time.Second)
	txs := f.sim.Transactions()
	assert.Equal(t, models.TxStatusFailed, txs[0].Status)
	assert.Equal(t, 500.0, f.sim.State().Balance)

	f.clock.Advance(time.Minute)
	assert.Equal(t, models.TxStatusFailed, f.sim.Transactions()[0].Status)
}

func TestSubmitMintMovesStableBalance(t *testing.T) {
	f := newFixture(t, random.NewScripted(0.0, 0.0, 0.0), quietHistory)
	_, err := f.sim.RestoreFromSnapshot([]byte(walletAt500))
	require.NoError(t, err)

	var settled models.Transaction
	_, err = f.sim.Submit(models.TxTypeMint, 250, "", WithSettleHook(func(tx models.Transaction) {
		settled = tx
	}))
	require.NoError(t, err)
	assert.Equal(t, models.AssetZMASD, f.sim.Transactions()[0].Asset)

	f.clock.Advance(2 * time.Second)
	assert.Equal(t, models.TxStatusConfirmed, settled.Status)
	assert.Equal(t, models.TxTypeMint, settled.Type)

	state := f.sim.State()
	assert.Equal(t, 500.0, state.Balance)
	assert.Equal(t, 250.0, state.StableBalance)
}

func TestSubmitValidation(t *testing.T) {
	f := newFixture(t, random.New(3), quietHistory)

	_, err := f.sim.Submit(models.TxTypeDeposit, 1, models.AssetMAS)
	assert.ErrorIs(t, err, ErrNotConnected)

	_, err = f.sim.RestoreFromSnapshot([]byte(walletAt500))
	require.NoError(t, err)

	_, err = f.sim.Submit("stake", 1, models.AssetMAS)
	assert.ErrorIs(t, err, ErrInvalidTxType)
	_, err = f.sim.Submit(models.TxTypeDeposit, 0, models.AssetMAS)
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = f.sim.Submit(models.TxTypeDeposit, -3, models.AssetMAS)
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = f.sim.Submit(models.TxTypeDeposit, 1, "BTC")
	assert.ErrorIs(t, err, ErrInvalidAsset)
	assert.Empty(t, f.sim.Transactions())

	_, err = f.sim.Submit(models.TxTypeDeposit, 1000, models.AssetMAS)
	assert.NoError(t, err)
}

func TestRestoreFromCorruptSnapshot(t *testing.T) {
	f := newFixture(t, random.New(3), nil)

	assert.NotPanics(t, func() {
		state, err := f.sim.RestoreFromSnapshot([]byte("{not json"))
		assert.ErrorIs(t, err, ErrCorruptSnapshot)
		assert.Equal(t, DefaultState("Massa Mainnet"), state)
	})
	assert.Equal(t, DefaultState("Massa Mainnet"), f.sim.State())
	assert.Empty(t, f.sim.Transactions())
}

func TestRestoreDeletesCorruptKey(t *testing.T) {
	f := newFixture(t, random.New(3), nil)
	require.NoError(t, f.kv.Put(f.cfg.SnapshotKey, []byte("{not json")))

	state := f.sim.Restore()
	assert.False(t, state.IsConnected)

	_, err := f.kv.Get(f.cfg.SnapshotKey)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRestoreConnectedSnapshot(t *testing.T) {
	f := newFixture(t, random.New(3), nil)
	require.NoError(t, f.kv.Put(f.cfg.SnapshotKey, []byte(walletAt500)))

	state := f.sim.Restore()
	require.True(t, state.IsConnected)
	assert.Equal(t, 500.0, state.Balance)

	txs := f.sim.Transactions()
	require.Len(t, txs, 8)
	for _, tx := range txs {
		assert.Equal(t, models.TxStatusConfirmed, tx.Status)
	}
}

func TestRestoreWithoutSnapshot(t *testing.T) {
	f := newFixture(t, random.New(3), nil)
	assert.Equal(t, DefaultState("Massa Mainnet"), f.sim.Restore())
}

func TestDisconnectCancelsEverything(t *testing.T) {
	f := newFixture(t, random.New(4), nil)
	require.NoError(t, f.sim.ConnectAsync("massa-station", nil))
	f.clock.Advance(2500 * time.Millisecond)
	require.True(t, f.sim.State().IsConnected)

	_, err := f.sim.Submit(models.TxTypeWithdraw, 10, models.AssetMAS)
	require.NoError(t, err)
	require.NotZero(t, f.clock.Pending())

	f.sim.Disconnect()
	assert.Equal(t, DefaultState("Massa Mainnet"), f.sim.State())
	assert.Empty(t, f.sim.Transactions())
	assert.Zero(t, f.clock.Pending())

	_, err = f.kv.Get(f.cfg.SnapshotKey)
	assert.ErrorIs(t, err, store.ErrNotFound)

	f.clock.Advance(time.Hour)
	assert.False(t, f.sim.State().IsConnected)
	assert.Empty(t, f.sim.Transactions())
}

func TestDisconnectAbortsPendingConnect(t *testing.T) {
	f := newFixture(t, random.New(4), nil)
	var gotErr error
	require.NoError(t, f.sim.ConnectAsync("massa-wallet", func(_ models.WalletState, err error) {
		gotErr = err
	}))

	f.sim.Disconnect()
	assert.ErrorIs(t, gotErr, ErrConnectCanceled)
	assert.False(t, f.sim.Connecting())

	f.clock.Advance(time.Minute)
	assert.False(t, f.sim.State().IsConnected)
}

func TestRewardsCreditBalance(t *testing.T) {
	f := newFixture(t, random.New(8), func(cfg *config.WalletConfig) {
		quietHistory(cfg)
		cfg.RewardProbability = 1
	})
	_, err := f.sim.RestoreFromSnapshot([]byte(walletAt500))
	require.NoError(t, err)

	before := f.rec.count(feed.TopicWallet)
	f.clock.Advance(30 * time.Second)

	balance := f.sim.State().Balance
	assert.GreaterOrEqual(t, balance, 500.0)
	assert.LessOrEqual(t, balance, 505.0)
	assert.Equal(t, before+1, f.rec.count(feed.TopicWallet))
}

func TestStopFreezesWallet(t *testing.T) {
	f := newFixture(t, random.New(4), quietHistory)
	_, err := f.sim.RestoreFromSnapshot([]byte(walletAt500))
	require.NoError(t, err)
	_, err = f.sim.Submit(models.TxTypeDeposit, 10, models.AssetMAS)
	require.NoError(t, err)

	f.sim.Stop()
	assert.Zero(t, f.clock.Pending())

	_, err = f.sim.Submit(models.TxTypeDeposit, 10, models.AssetMAS)
	assert.ErrorIs(t, err, ErrStopped)
	assert.Equal(t, models.TxStatusPending, f.sim.Transactions()[0].Status)

	_, err = f.kv.Get(f.cfg.SnapshotKey)
	assert.NoError(t, err)
}

func TestConnectBlocking(t *testing.T) {
	cfg := config.Default().Wallet
	cfg.ConnectDelay = 10 * time.Millisecond
	cfg.ConnectHistory = 0
	sim := NewSimulator(cfg, sched.NewReal(), random.New(1), logger.Nop(), nil, nil)
	defer sim.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	state, err := sim.Connect(ctx, "massa-station")
	require.NoError(t, err)
	assert.True(t, state.IsConnected)
}

func TestConnectHonorsContext(t *testing.T) {
	cfg := config.Default().Wallet
	cfg.ConnectDelay = time.Hour
	sim := NewSimulator(cfg, sched.NewReal(), random.New(1), logger.Nop(), nil, nil)
	defer sim.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := sim.Connect(ctx, "massa-station")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, sim.Connecting())
	assert.False(t, sim.State().IsConnected)
}

type cancelOnConnect struct {
	cancel context.CancelFunc
}

func (c cancelOnConnect) Publish(e feed.Event) {
	if e.Topic == feed.TopicWallet && e.Wallet.IsConnected {
		c.cancel()
	}
}

func TestConnectReportsSuccessWhenContextEndsDuringCompletion(t *testing.T) {
	cfg := config.Default().Wallet
	quietHistory(&cfg)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clock := sched.NewManual(epoch)
	sim := NewSimulator(cfg, clock, random.New(4), logger.Nop(), cancelOnConnect{cancel: cancel}, nil)
	defer sim.Stop()

	type result struct {
		state models.WalletState
		err   error
	}
	done := make(chan result, 1)
	go func() {
		state, err := sim.Connect(ctx, "massa-station")
		done <- result{state: state, err: err}
	}()
	require.Eventually(t, sim.Connecting, 2*time.Second, time.Millisecond)

	clock.Advance(cfg.ConnectDelay)

	select {
	case r := <-done:
		require.NoError(t, r.err)
		assert.True(t, r.state.IsConnected)
	case <-time.After(2 * time.Second):
		t.Fatal("Connect не вернул результат")
	}
	assert.True(t, sim.State().IsConnected)
}
