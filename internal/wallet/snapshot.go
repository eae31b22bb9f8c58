package wallet

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"vaultsim/internal/models"
)

const SnapshotVersion = 1

// блобы без version читаются как версия 0.
type snapshot struct {
	Version int `json:"version"`
	models.WalletState
}

func DefaultState(network string) models.WalletState {
	return models.WalletState{Network: network}
}

func EncodeSnapshot(state models.WalletState) ([]byte, error) {
	raw, err := json.Marshal(snapshot{Version: SnapshotVersion, WalletState: state})
	if err != nil {
		return nil, fmt.Errorf("Не удалось сериализовать снимок кошелька: %w", err)
	}
	return raw, nil
}

func DecodeSnapshot(raw []byte, network string) (models.WalletState, error) {
	var snap snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return DefaultState(network), fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}
	if snap.Version < 0 || snap.Version > SnapshotVersion {
		return DefaultState(network), fmt.Errorf("%w: неподдерживаемая версия %d", ErrCorruptSnapshot, snap.Version)
	}
	if !snap.IsConnected {
		return DefaultState(network), nil
	}

	state := snap.WalletState
	switch {
	case state.Address == nil || !strings.HasPrefix(*state.Address, "AS1"):
		return DefaultState(network), fmt.Errorf("%w: некорректный адрес", ErrCorruptSnapshot)
	case state.Provider == nil || *state.Provider == "":
		return DefaultState(network), fmt.Errorf("%w: не указан провайдер", ErrCorruptSnapshot)
	case !validBalance(state.Balance) || !validBalance(state.StableBalance):
		return DefaultState(network), fmt.Errorf("%w: некорректный баланс", ErrCorruptSnapshot)
	}
	if state.Network == "" {
		state.Network = network
	}
	return state, nil
}

func validBalance(v float64) bool {
	return v >= 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
