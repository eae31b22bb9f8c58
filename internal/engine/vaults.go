package engine

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"vaultsim/internal/market"
	"vaultsim/internal/models"
	"vaultsim/internal/wallet"
)

const (
	defaultVaultDeposit = 100.0
	repayFraction       = 0.1
)

var ErrNotOwner = errors.New("Хранилище принадлежит другому адресу.")

// хранилище открывается только после подтверждения депозита и минта.
func (e *Engine) CreateVault(collateral, mint float64) (string, error) {
	state := e.wallet.State()
	if !state.IsConnected || state.Address == nil {
		return "", wallet.ErrNotConnected
	}
	price := e.market.Oracle().Price
	if err := market.ValidateOpening(collateral, mint, price, state.Balance); err != nil {
		return "", err
	}
	owner := *state.Address

	entry := e.logEntry().WithFields(logrus.Fields{
		"owner":      owner,
		"collateral": collateral,
		"mint":       mint,
	})

	hash, err := e.wallet.Submit(models.TxTypeDeposit, collateral, models.AssetMAS, wallet.WithSettleHook(func(deposit models.Transaction) {
		if deposit.Status != models.TxStatusConfirmed {
			entry.WithField("tx_hash", deposit.Hash).Warn("Залог не внесён, хранилище не открыто.")
			return
		}
		_, err := e.wallet.Submit(models.TxTypeMint, mint, models.AssetZMASD, wallet.WithSettleHook(func(minted models.Transaction) {
			if minted.Status != models.TxStatusConfirmed {
				entry.WithField("tx_hash", minted.Hash).Warn("Выпуск zMASD не прошёл, хранилище не открыто.")
				return
			}
			if _, err := e.market.OpenVault(owner, collateral, mint); err != nil {
				entry.WithError(err).Error("Не удалось открыть хранилище.")
			}
		}))
		if err != nil {
			entry.WithError(err).Warn("Не удалось отправить транзакцию выпуска.")
		}
	}))
	if err != nil {
		return "", fmt.Errorf("Не удалось внести залог: %w", err)
	}
	return hash, nil
}

func (e *Engine) DepositVault(id string, amount float64) (string, error) {
	if amount <= 0 {
		amount = defaultVaultDeposit
	}
	if _, err := e.ownedVault(id); err != nil {
		return "", err
	}
	return e.wallet.Submit(models.TxTypeDeposit, amount, models.AssetMAS, wallet.WithSettleHook(func(tx models.Transaction) {
		if tx.Status != models.TxStatusConfirmed {
			return
		}
		if _, err := e.market.AdjustVault(id, amount, 0); err != nil {
			e.logEntry().WithError(err).WithField("vault_id", id).Warn("Не удалось пополнить хранилище.")
		}
	}))
}

func (e *Engine) RepayVault(id string) (string, error) {
	v, err := e.ownedVault(id)
	if err != nil {
		return "", err
	}
	amount := v.DebtAmount * repayFraction
	return e.wallet.Submit(models.TxTypeRepay, amount, models.AssetZMASD, wallet.WithSettleHook(func(tx models.Transaction) {
		if tx.Status != models.TxStatusConfirmed {
			return
		}
		if _, err := e.market.AdjustVault(id, 0, -amount); err != nil {
			e.logEntry().WithError(err).WithField("vault_id", id).Warn("Не удалось погасить долг хранилища.")
		}
	}))
}

func (e *Engine) ownedVault(id string) (models.Vault, error) {
	state := e.wallet.State()
	if !state.IsConnected || state.Address == nil {
		return models.Vault{}, wallet.ErrNotConnected
	}
	v, ok := e.market.Vault(id)
	if !ok {
		return models.Vault{}, fmt.Errorf("%w: %s", market.ErrVaultNotFound, id)
	}
	if v.Owner != *state.Address {
		return models.Vault{}, ErrNotOwner
	}
	return v, nil
}
