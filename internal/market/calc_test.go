package market

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"vaultsim/internal/models"
)

func TestCollateralRatio(t *testing.T) {
	assert.InDelta(t, 2261.5, CollateralRatio(1000, 2000, 45.23), 1e-9)
	assert.InDelta(t, 150.0, CollateralRatio(100, 3000, 45), 1e-9)
	assert.Equal(t, UnboundedRatio, CollateralRatio(100, 0, 45))
}

func TestLiquidationPriceMatchesThreshold(t *testing.T) {
	collateral, debt := 1200.0, 600.0
	lp := LiquidationPrice(collateral, debt)
	assert.InDelta(t, 0.75, lp, 1e-12)
	assert.InDelta(t, LiquidationThreshold, CollateralRatio(collateral, debt, lp), 1e-9)

	assert.Equal(t, UnboundedRatio, LiquidationPrice(0, 10))
	assert.Zero(t, LiquidationPrice(0, 0))
}

func TestIsLiquidatable(t *testing.T) {
	assert.True(t, IsLiquidatable(149.999))
	assert.False(t, IsLiquidatable(150))
	assert.False(t, IsLiquidatable(UnboundedRatio))
}

func TestHealth(t *testing.T) {
	assert.Equal(t, models.HealthCritical, Health(120))
	assert.Equal(t, models.HealthWarning, Health(150))
	assert.Equal(t, models.HealthWarning, Health(199.9))
	assert.Equal(t, models.HealthHealthy, Health(200))

	assert.InDelta(t, 50.0, HealthBar(150), 1e-12)
	assert.Equal(t, 100.0, HealthBar(2261))
}

func TestValidateOpening(t *testing.T) {
	assert.NoError(t, ValidateOpening(100, 3000, 45, 500))
	assert.ErrorIs(t, ValidateOpening(100, 3100, 45, 500), ErrUndercollateralized)
	assert.ErrorIs(t, ValidateOpening(600, 1000, 45, 500), ErrInsufficientBalance)
	assert.ErrorIs(t, ValidateOpening(0, 1000, 45, 500), ErrInvalidAmount)
	assert.ErrorIs(t, ValidateOpening(100, -1, 45, 500), ErrInvalidAmount)
}
