package liquidation

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"vaultsim/internal/config"
	"vaultsim/internal/models"
	"vaultsim/internal/random"
)

type Candidate struct {
	VaultID    string
	Collateral float64
	Debt       float64
}

func MaybeEmitEvent(candidates []Candidate, price float64, r random.Source, now time.Time, cfg config.LiquidationConfig) (models.LiquidationEvent, bool) {
	if !random.Chance(r, cfg.EmitProbability) || len(candidates) == 0 {
		return models.LiquidationEvent{}, false
	}
	target := candidates[r.IntN(len(candidates))]

	var collateral, debt float64
	if cfg.CoupleToVault && target.Debt > 0 && price > 0 {
		debt = target.Debt * random.Uniform(r, cfg.CloseFactorMin, cfg.CloseFactorMax)
		collateral = math.Min(target.Collateral, debt*(1+cfg.LiquidationBonus)/price)
	} else {
		collateral = random.Uniform(r, 25, 175)
		debt = random.Uniform(r, 100, 500)
	}

	return models.LiquidationEvent{
		ID:                   newEventID(r),
		VaultID:              target.VaultID,
		Liquidator:           "0x" + random.Hex(r, 8),
		CollateralLiquidated: collateral,
		DebtRepaid:           debt,
		Timestamp:            now,
		Status:               models.LiquidationPending,
	}, true
}

func Settle(ev models.LiquidationEvent, r random.Source, successProbability float64) models.LiquidationEvent {
	if ev.Status.Terminal() {
		return ev
	}
	if random.Chance(r, successProbability) {
		ev.Status = models.LiquidationCompleted
	} else {
		ev.Status = models.LiquidationFailed
	}
	return ev
}

func RetireOldest(events []models.LiquidationEvent, capacity int) []models.LiquidationEvent {
	n := len(events)
	if capacity >= 0 && n > capacity {
		n = capacity
	}
	out := make([]models.LiquidationEvent, n)
	copy(out, events[:n])
	return out
}

func Push(events []models.LiquidationEvent, ev models.LiquidationEvent, capacity int) []models.LiquidationEvent {
	next := make([]models.LiquidationEvent, 0, len(events)+1)
	next = append(next, ev)
	next = append(next, events...)
	return RetireOldest(next, capacity)
}

var historyStatuses = []models.LiquidationStatus{
	models.LiquidationPending,
	models.LiquidationCompleted,
	models.LiquidationCompleted,
	models.LiquidationCompleted,
	models.LiquidationFailed,
}

func SeedHistory(r random.Source, now time.Time, vaultCount, size int) []models.LiquidationEvent {
	if vaultCount <= 0 {
		return nil
	}
	events := make([]models.LiquidationEvent, 0, size)
	for i := 0; i < size; i++ {
		collateral := random.Uniform(r, 50, 250)
		events = append(events, models.LiquidationEvent{
			ID:                   fmt.Sprintf("liquidation-%03d", i+1),
			VaultID:              fmt.Sprintf("vault-%03d", r.IntN(vaultCount)+1),
			Liquidator:           "0x" + random.Hex(r, 8),
			CollateralLiquidated: collateral,
			DebtRepaid:           collateral * 0.6,
			Timestamp:            now.Add(-time.Duration(r.Float64() * float64(48*time.Hour))),
			Status:               historyStatuses[r.IntN(len(historyStatuses))],
		})
	}
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.After(events[j].Timestamp)
	})
	return events
}

func newEventID(r random.Source) string {
	return "liquidation-" + strings.ReplaceAll(random.UUID(r).String(), "-", "")[:12]
}
