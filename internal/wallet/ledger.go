package wallet

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"vaultsim/internal/models"
	"vaultsim/internal/random"
)

const (
	baseGas          = 21000
	gasSpread        = 150000
	restoreGasSpread = 100000
)

var (
	liquidationBonus = decimal.NewFromFloat(0.05)
	allTxTypes       = []models.TxType{
		models.TxTypeDeposit,
		models.TxTypeWithdraw,
		models.TxTypeMint,
		models.TxTypeRepay,
		models.TxTypeLiquidate,
	}
	restoreTxTypes = []models.TxType{
		models.TxTypeDeposit,
		models.TxTypeMint,
		models.TxTypeRepay,
	}
)

func BalanceDelta(t models.TxType, amount float64) decimal.Decimal {
	a := decimal.NewFromFloat(amount)
	switch t {
	case models.TxTypeDeposit:
		return a.Neg()
	case models.TxTypeWithdraw:
		return a
	case models.TxTypeLiquidate:
		return a.Mul(liquidationBonus)
	}
	return decimal.Zero
}

func StableDelta(t models.TxType, amount float64) decimal.Decimal {
	a := decimal.NewFromFloat(amount)
	switch t {
	case models.TxTypeMint:
		return a
	case models.TxTypeRepay:
		return a.Neg()
	}
	return decimal.Zero
}

// оба баланса не опускаются ниже нуля.
func ApplyConfirmed(state models.WalletState, tx models.Transaction) models.WalletState {
	if tx.Status != models.TxStatusConfirmed {
		return state
	}
	state.Balance = addClamped(state.Balance, BalanceDelta(tx.Type, tx.Amount))
	state.StableBalance = addClamped(state.StableBalance, StableDelta(tx.Type, tx.Amount))
	return state
}

func addClamped(balance float64, delta decimal.Decimal) float64 {
	if delta.IsZero() {
		return balance
	}
	next := decimal.NewFromFloat(balance).Add(delta)
	if next.IsNegative() {
		return 0
	}
	return next.InexactFloat64()
}

func AssetFor(t models.TxType, r random.Source) models.Asset {
	switch t {
	case models.TxTypeDeposit, models.TxTypeWithdraw:
		return models.AssetMAS
	case models.TxTypeMint, models.TxTypeRepay:
		return models.AssetZMASD
	}
	if r != nil && r.IntN(2) == 1 {
		return models.AssetZMASD
	}
	return models.AssetMAS
}

func validAsset(a models.Asset) bool {
	return a == models.AssetMAS || a == models.AssetZMASD
}

func validAmount(amount float64) bool {
	return amount > 0 && !math.IsInf(amount, 0) && !math.IsNaN(amount)
}

func NewTransaction(r random.Source, now time.Time, t models.TxType, amount float64, asset models.Asset) models.Transaction {
	return models.Transaction{
		ID:        newTxID(r),
		Type:      t,
		Amount:    amount,
		Asset:     asset,
		Status:    models.TxStatusPending,
		Hash:      "0x" + random.Hex(r, 64),
		Timestamp: now,
	}
}

func SettleTransaction(tx models.Transaction, r random.Source, successProbability float64) models.Transaction {
	if tx.Status.Terminal() {
		return tx
	}
	if random.Chance(r, successProbability) {
		tx.Status = models.TxStatusConfirmed
	} else {
		tx.Status = models.TxStatusFailed
	}
	gas := int64(baseGas + r.IntN(gasSpread))
	tx.GasUsed = &gas
	return tx
}

// первые две записи остаются pending.
func SeedConnectHistory(r random.Source, now time.Time, n int, successProbability float64) []models.Transaction {
	txs := make([]models.Transaction, 0, n)
	for i := 0; i < n; i++ {
		t := allTxTypes[r.IntN(len(allTxTypes))]
		tx := NewTransaction(r, now.Add(-time.Duration(r.Float64()*float64(14*24*time.Hour))), t, random.Uniform(r, 50, 1050), AssetFor(t, r))
		if i >= 2 {
			tx = SettleTransaction(tx, r, successProbability)
		}
		txs = append(txs, tx)
	}
	sortNewestFirst(txs)
	return txs
}

func SeedRestoreHistory(r random.Source, now time.Time, n int) []models.Transaction {
	txs := make([]models.Transaction, 0, n)
	for i := 0; i < n; i++ {
		t := restoreTxTypes[r.IntN(len(restoreTxTypes))]
		tx := NewTransaction(r, now.Add(-time.Duration(r.Float64()*float64(7*24*time.Hour))), t, random.Uniform(r, 100, 600), AssetFor(t, r))
		tx.Status = models.TxStatusConfirmed
		gas := int64(baseGas + r.IntN(restoreGasSpread))
		tx.GasUsed = &gas
		txs = append(txs, tx)
	}
	sortNewestFirst(txs)
	return txs
}

func sortNewestFirst(txs []models.Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		return txs[i].Timestamp.After(txs[j].Timestamp)
	})
}

func copyTransactions(txs []models.Transaction) []models.Transaction {
	out := make([]models.Transaction, len(txs))
	copy(out, txs)
	return out
}

func newTxID(r random.Source) string {
	return "tx-" + strings.ReplaceAll(random.UUID(r).String(), "-", "")[:12]
}
