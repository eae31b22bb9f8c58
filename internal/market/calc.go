package market

import (
	"errors"
	"math"

	"vaultsim/internal/models"
)

const (
	LiquidationThreshold = 150.0
	StabilityFee         = 2.5

	// цена ликвидации: ratio падает до порога при price = debt * 1.5 / collateral
	liquidationMultiplier = LiquidationThreshold / 100
)

// UnboundedRatio заменяет бесконечность, чтобы значение кодировалось в JSON.
const UnboundedRatio = math.MaxFloat64

var (
	ErrInvalidAmount       = errors.New("Некорректная сумма.")
	ErrUndercollateralized = errors.New("Коэффициент обеспечения ниже порога ликвидации.")
	ErrInsufficientBalance = errors.New("Недостаточно средств для залога.")
)

func CollateralRatio(collateral, debt, price float64) float64 {
	if debt <= 0 {
		return UnboundedRatio
	}
	return collateral * price / debt * 100
}

func LiquidationPrice(collateral, debt float64) float64 {
	if collateral <= 0 {
		if debt <= 0 {
			return 0
		}
		return UnboundedRatio
	}
	return debt * liquidationMultiplier / collateral
}

func IsLiquidatable(ratio float64) bool {
	return ratio < LiquidationThreshold
}

func HealthBar(ratio float64) float64 {
	return math.Min(ratio/3, 100)
}

func Health(ratio float64) models.HealthLevel {
	switch {
	case ratio < LiquidationThreshold:
		return models.HealthCritical
	case ratio < 200:
		return models.HealthWarning
	default:
		return models.HealthHealthy
	}
}

func ValidateOpening(collateral, debt, price, available float64) error {
	if !positive(collateral) || !positive(debt) || !positive(price) {
		return ErrInvalidAmount
	}
	if CollateralRatio(collateral, debt, price) < LiquidationThreshold {
		return ErrUndercollateralized
	}
	if collateral > available {
		return ErrInsufficientBalance
	}
	return nil
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
