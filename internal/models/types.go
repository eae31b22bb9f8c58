package models

import "time"

type TxType string
type TxStatus string
type LiquidationStatus string
type Asset string
type HealthLevel string

const (
	TxTypeDeposit   TxType = "deposit"
	TxTypeWithdraw  TxType = "withdraw"
	TxTypeMint      TxType = "mint"
	TxTypeRepay     TxType = "repay"
	TxTypeLiquidate TxType = "liquidate"

	TxStatusPending   TxStatus = "pending"
	TxStatusConfirmed TxStatus = "confirmed"
	TxStatusFailed    TxStatus = "failed"

	LiquidationPending   LiquidationStatus = "pending"
	LiquidationCompleted LiquidationStatus = "completed"
	LiquidationFailed    LiquidationStatus = "failed"

	AssetMAS   Asset = "MAS"
	AssetZMASD Asset = "zMASD"

	HealthCritical HealthLevel = "critical"
	HealthWarning  HealthLevel = "warning"
	HealthHealthy  HealthLevel = "healthy"
)

func (t TxType) Valid() bool {
	switch t {
	case TxTypeDeposit, TxTypeWithdraw, TxTypeMint, TxTypeRepay, TxTypeLiquidate:
		return true
	}
	return false
}

func (s TxStatus) Terminal() bool {
	return s == TxStatusConfirmed || s == TxStatusFailed
}

func (s LiquidationStatus) Terminal() bool {
	return s == LiquidationCompleted || s == LiquidationFailed
}

type Vault struct {
	ID               string      `json:"id"`
	Owner            string      `json:"owner"`
	CollateralAmount float64     `json:"collateralAmount"`
	DebtAmount       float64     `json:"debtAmount"`
	CollateralRatio  float64     `json:"collateralRatio"`
	LiquidationPrice float64     `json:"liquidationPrice"`
	IsLiquidatable   bool        `json:"isLiquidatable"`
	Health           HealthLevel `json:"health"`
	HealthBar        float64     `json:"healthBar"`
	CreatedAt        time.Time   `json:"createdAt"`
	LastUpdated      time.Time   `json:"lastUpdated"`
}

type OraclePrice struct {
	Pair       string    `json:"pair"`
	Price      float64   `json:"price"`
	Timestamp  time.Time `json:"timestamp"`
	Confidence float64   `json:"confidence"`
}

type LiquidationEvent struct {
	ID                   string            `json:"id"`
	VaultID              string            `json:"vaultId"`
	Liquidator           string            `json:"liquidator"`
	CollateralLiquidated float64           `json:"collateralLiquidated"`
	DebtRepaid           float64           `json:"debtRepaid"`
	Timestamp            time.Time         `json:"timestamp"`
	Status               LiquidationStatus `json:"status"`
}

type KeeperStats struct {
	TotalLiquidations         int64   `json:"totalLiquidations"`
	TotalCollateralLiquidated float64 `json:"totalCollateralLiquidated"`
	AverageGasUsed            float64 `json:"averageGasUsed"`
	SuccessRate               float64 `json:"successRate"`
	ActiveKeepers             int     `json:"activeKeepers"`
}

type ProtocolStats struct {
	TotalVaults            int     `json:"totalVaults"`
	TotalCollateral        float64 `json:"totalCollateral"`
	TotalDebt              float64 `json:"totalDebt"`
	CollateralizationRatio float64 `json:"collateralizationRatio"`
	StabilityFee           float64 `json:"stabilityFee"`
	LiquidationThreshold   float64 `json:"liquidationThreshold"`
}

// Address и Provider равны nil, пока кошелёк не подключён.
type WalletState struct {
	IsConnected   bool    `json:"isConnected"`
	Address       *string `json:"address"`
	Balance       float64 `json:"balance"`
	StableBalance float64 `json:"stableBalance"`
	Network       string  `json:"network"`
	Provider      *string `json:"provider"`
}

type Transaction struct {
	ID        string    `json:"id"`
	Type      TxType    `json:"type"`
	Amount    float64   `json:"amount"`
	Asset     Asset     `json:"asset"`
	Status    TxStatus  `json:"status"`
	Hash      string    `json:"hash"`
	Timestamp time.Time `json:"timestamp"`
	GasUsed   *int64    `json:"gasUsed,omitempty"`
}
