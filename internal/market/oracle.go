package market

import (
	"time"

	"vaultsim/internal/config"
	"vaultsim/internal/models"
	"vaultsim/internal/random"
)

type Bounds struct {
	Min     float64
	Max     float64
	MaxStep float64
}

var DefaultBounds = Bounds{Min: 40, Max: 50, MaxStep: 0.4}

func BoundsFrom(cfg config.MarketConfig) Bounds {
	return Bounds{Min: cfg.MinPrice, Max: cfg.MaxPrice, MaxStep: cfg.MaxStep}
}

func Initialize(r random.Source, now time.Time, cfg config.MarketConfig) ([]models.Vault, models.OraclePrice) {
	oracle := models.OraclePrice{
		Pair:       cfg.Pair,
		Price:      cfg.InitialPrice,
		Timestamp:  now,
		Confidence: cfg.InitialConfidence,
	}
	return GenerateVaults(r, now, oracle.Price, cfg), oracle
}

func StepPrice(prev models.OraclePrice, r random.Source, now time.Time, b Bounds) models.OraclePrice {
	change := random.Uniform(r, -b.MaxStep, b.MaxStep)
	next := prev
	next.Price = random.Clamp(prev.Price+change, b.Min, b.Max)
	next.Timestamp = now
	next.Confidence = random.Uniform(r, 0.99, 0.999)
	return next
}
