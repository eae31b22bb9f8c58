package liquidation

import (
	"math"

	"vaultsim/internal/models"
	"vaultsim/internal/random"
)

const (
	minSuccessRate = 95.0
	maxSuccessRate = 99.9
	minKeepers     = 20
	maxKeepers     = 50
)

func InitialKeeperStats() models.KeeperStats {
	return models.KeeperStats{
		TotalLiquidations:         1247,
		TotalCollateralLiquidated: 89420.5,
		AverageGasUsed:            145000,
		SuccessRate:               98.7,
		ActiveKeepers:             34,
	}
}

func DriftKeeperStats(prev models.KeeperStats, r random.Source) models.KeeperStats {
	next := prev
	next.TotalLiquidations += int64(r.IntN(3))
	next.TotalCollateralLiquidated += r.Float64() * 100
	next.SuccessRate = random.Clamp(prev.SuccessRate+(r.Float64()-0.5)*0.2, minSuccessRate, maxSuccessRate)
	keepers := prev.ActiveKeepers + int(math.Floor((r.Float64()-0.5)*4))
	next.ActiveKeepers = min(max(keepers, minKeepers), maxKeepers)
	return next
}

func CreditSettlement(stats models.KeeperStats, ev models.LiquidationEvent) models.KeeperStats {
	if ev.Status != models.LiquidationCompleted {
		return stats
	}
	stats.TotalLiquidations++
	stats.TotalCollateralLiquidated += ev.CollateralLiquidated
	return stats
}
