package market

import "vaultsim/internal/models"

// без долга коэффициент равен 0.
func RecomputeAggregates(vaults []models.Vault, price float64) models.ProtocolStats {
	stats := models.ProtocolStats{
		TotalVaults:          len(vaults),
		StabilityFee:         StabilityFee,
		LiquidationThreshold: LiquidationThreshold,
	}
	for _, v := range vaults {
		stats.TotalCollateral += v.CollateralAmount
		stats.TotalDebt += v.DebtAmount
	}
	if stats.TotalDebt > 0 {
		stats.CollateralizationRatio = stats.TotalCollateral * price / stats.TotalDebt
	}
	return stats
}
