package market

import (
	"fmt"
	"sort"
	"time"

	"vaultsim/internal/config"
	"vaultsim/internal/models"
	"vaultsim/internal/random"
)

const day = 24 * time.Hour

var ownerBook = []string{
	"0xa1b2c3d4", "0xe5f6g7h8", "0xi9j0k1l2", "0xm3n4o5p6",
	"0xq7r8s9t0", "0xu1v2w3x4", "0xy5z6a7b8", "0xc9d0e1f2",
}

func vaultID(n int) string {
	return fmt.Sprintf("vault-%03d", n)
}

func GenerateVaults(r random.Source, now time.Time, price float64, cfg config.MarketConfig) []models.Vault {
	vaults := make([]models.Vault, 0, cfg.VaultCount)
	for i := 0; i < cfg.VaultCount; i++ {
		collateral := random.Uniform(r, cfg.CollateralMin, cfg.CollateralMax)
		debt := random.Uniform(r, cfg.DebtMin, cfg.DebtMax)
		owner := ownerBook[r.IntN(len(ownerBook))]
		createdAt := now.Add(-time.Duration(r.Float64() * float64(60*day)))
		lastUpdated := now.Add(-time.Duration(r.Float64() * float64(7*day)))

		v := models.Vault{
			ID:               vaultID(i + 1),
			Owner:            owner,
			CollateralAmount: collateral,
			DebtAmount:       debt,
			CreatedAt:        createdAt,
			LastUpdated:      lastUpdated,
		}
		derive(&v, price)
		vaults = append(vaults, v)
	}

	sort.SliceStable(vaults, func(i, j int) bool {
		return vaults[i].CollateralAmount > vaults[j].CollateralAmount
	})
	return vaults
}

func Reprice(vaults []models.Vault, price float64) []models.Vault {
	out := make([]models.Vault, len(vaults))
	for i, v := range vaults {
		derive(&v, price)
		out[i] = v
	}
	return out
}

func derive(v *models.Vault, price float64) {
	v.CollateralRatio = CollateralRatio(v.CollateralAmount, v.DebtAmount, price)
	v.LiquidationPrice = LiquidationPrice(v.CollateralAmount, v.DebtAmount)
	v.IsLiquidatable = IsLiquidatable(v.CollateralRatio)
	v.Health = Health(v.CollateralRatio)
	v.HealthBar = HealthBar(v.CollateralRatio)
}
