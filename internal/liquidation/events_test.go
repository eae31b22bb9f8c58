package liquidation

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vaultsim/internal/config"
	"vaultsim/internal/models"
	"vaultsim/internal/random"
)

var epoch = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

var testCandidates = []Candidate{
	{VaultID: "vault-001", Collateral: 500, Debt: 200},
	{VaultID: "vault-002", Collateral: 1000, Debt: 400},
	{VaultID: "vault-003", Collateral: 800, Debt: 0},
}

func TestMaybeEmitEventCoupledToVault(t *testing.T) {
	cfg := config.Default().Liquidation
	r := random.NewScripted(0.2, 0.5, 0.5)

	ev, ok := MaybeEmitEvent(testCandidates, 40, r, epoch, cfg)
	require.True(t, ok)

	assert.Equal(t, "vault-002", ev.VaultID)
	assert.InDelta(t, 120.0, ev.DebtRepaid, 1e-9)
	assert.InDelta(t, 3.3, ev.CollateralLiquidated, 1e-9)
	assert.Equal(t, models.LiquidationPending, ev.Status)
	assert.Equal(t, epoch, ev.Timestamp)
	assert.Regexp(t, regexp.MustCompile(`^0x[0-9a-f]{8}$`), ev.Liquidator)
	assert.Regexp(t, regexp.MustCompile(`^liquidation-[0-9a-f]{12}$`), ev.ID)
}

func TestMaybeEmitEventIsReproducible(t *testing.T) {
	cfg := config.Default().Liquidation
	cfg.EmitProbability = 1
	a, ok := MaybeEmitEvent(testCandidates, 45, random.New(3), epoch, cfg)
	require.True(t, ok)
	b, _ := MaybeEmitEvent(testCandidates, 45, random.New(3), epoch, cfg)
	assert.Equal(t, a, b)
}

func TestMaybeEmitEventCollateralCappedByVault(t *testing.T) {
	cfg := config.Default().Liquidation
	r := random.NewScripted(0.0, 0.0, 1.0)
	candidates := []Candidate{{VaultID: "vault-001", Collateral: 2, Debt: 400}}

	ev, ok := MaybeEmitEvent(candidates, 40, r, epoch, cfg)
	require.True(t, ok)
	assert.InDelta(t, 200.0, ev.DebtRepaid, 1e-9)
	assert.Equal(t, 2.0, ev.CollateralLiquidated)
}

func TestMaybeEmitEventIndependentAmounts(t *testing.T) {
	cfg := config.Default().Liquidation
	cfg.CoupleToVault = false
	r := random.NewScripted(0.1, 0.0, 0.5, 0.5)

	ev, ok := MaybeEmitEvent(testCandidates, 40, r, epoch, cfg)
	require.True(t, ok)
	assert.Equal(t, "vault-001", ev.VaultID)
	assert.Equal(t, 100.0, ev.CollateralLiquidated)
	assert.Equal(t, 300.0, ev.DebtRepaid)
}

func TestMaybeEmitEventDebtFreeVaultFallsBack(t *testing.T) {
	cfg := config.Default().Liquidation
	r := random.NewScripted(0.1, 0.9, 0.0, 1.0)

	ev, ok := MaybeEmitEvent(testCandidates, 40, r, epoch, cfg)
	require.True(t, ok)
	assert.Equal(t, "vault-003", ev.VaultID)
	assert.Equal(t, 25.0, ev.CollateralLiquidated)
	assert.Equal(t, 500.0, ev.DebtRepaid)
}

func TestMaybeEmitEventSkips(t *testing.T) {
	cfg := config.Default().Liquidation

	_, ok := MaybeEmitEvent(testCandidates, 40, random.NewScripted(0.3), epoch, cfg)
	assert.False(t, ok)

	_, ok = MaybeEmitEvent(nil, 40, random.NewScripted(0.0), epoch, cfg)
	assert.False(t, ok)
}

func TestSettle(t *testing.T) {
	pending := models.LiquidationEvent{ID: "liquidation-001", Status: models.LiquidationPending}

	assert.Equal(t, models.LiquidationCompleted, Settle(pending, random.NewScripted(0.5), 0.9).Status)
	assert.Equal(t, models.LiquidationFailed, Settle(pending, random.NewScripted(0.95), 0.9).Status)

	done := pending
	done.Status = models.LiquidationFailed
	assert.Equal(t, done, Settle(done, random.NewScripted(0.0), 0.9))
}

func TestPushRetiresOldest(t *testing.T) {
	var feed []models.LiquidationEvent
	for i := 0; i < 12; i++ {
		feed = Push(feed, models.LiquidationEvent{ID: string(rune('a' + i))}, 8)
		require.LessOrEqual(t, len(feed), 8)
	}
	require.Len(t, feed, 8)
	assert.Equal(t, "l", feed[0].ID)
	assert.Equal(t, "e", feed[7].ID)
}

func TestRetireOldestCopies(t *testing.T) {
	in := []models.LiquidationEvent{{ID: "a"}, {ID: "b"}}
	out := RetireOldest(in, -1)
	out[0].ID = "z"
	assert.Equal(t, "a", in[0].ID)
	assert.Len(t, RetireOldest(in, 1), 1)
}

func TestSeedHistory(t *testing.T) {
	events := SeedHistory(random.New(3), epoch, 15, 8)
	require.Len(t, events, 8)

	vaultRe := regexp.MustCompile(`^vault-0(0[1-9]|1[0-5])$`)
	for i, ev := range events {
		assert.Regexp(t, vaultRe, ev.VaultID)
		assert.InDelta(t, ev.CollateralLiquidated*0.6, ev.DebtRepaid, 1e-9)
		assert.GreaterOrEqual(t, ev.CollateralLiquidated, 50.0)
		assert.LessOrEqual(t, ev.CollateralLiquidated, 250.0)
		assert.False(t, ev.Timestamp.After(epoch))
		assert.True(t, ev.Timestamp.After(epoch.Add(-48*time.Hour)))
		if i > 0 {
			assert.False(t, ev.Timestamp.After(events[i-1].Timestamp))
		}
	}

	assert.Empty(t, SeedHistory(random.New(3), epoch, 0, 8))
}
