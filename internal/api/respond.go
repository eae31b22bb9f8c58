package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"vaultsim/internal/engine"
	"vaultsim/internal/market"
	"vaultsim/internal/wallet"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func statusFor(err error) int {
	var connErr *wallet.ConnectionError
	switch {
	case errors.As(err, &connErr),
		errors.Is(err, wallet.ErrInvalidTxType),
		errors.Is(err, wallet.ErrInvalidAmount),
		errors.Is(err, wallet.ErrInvalidAsset),
		errors.Is(err, market.ErrInvalidAmount),
		errors.Is(err, market.ErrUndercollateralized),
		errors.Is(err, market.ErrInsufficientBalance):
		return http.StatusBadRequest
	case errors.Is(err, wallet.ErrNotConnected),
		errors.Is(err, wallet.ErrAlreadyConnected),
		errors.Is(err, wallet.ErrConnectInProgress):
		return http.StatusConflict
	case errors.Is(err, engine.ErrNotOwner):
		return http.StatusForbidden
	case errors.Is(err, market.ErrVaultNotFound):
		return http.StatusNotFound
	case errors.Is(err, wallet.ErrStopped),
		errors.Is(err, market.ErrStopped):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
