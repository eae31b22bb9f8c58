package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"vaultsim/internal/engine"
	"vaultsim/internal/logger"
	"vaultsim/internal/models"
)

type Handler struct {
	engine *engine.Engine
	log    *logger.Logger
}

func NewHandler(e *engine.Engine, log *logger.Logger) *Handler {
	return &Handler{engine: e, log: log}
}

type connectRequest struct {
	Provider string `json:"provider"`
}

type submitRequest struct {
	Type   models.TxType `json:"type"`
	Amount float64       `json:"amount"`
	Asset  models.Asset  `json:"asset"`
}

type createVaultRequest struct {
	Collateral float64 `json:"collateral"`
	Mint       float64 `json:"mint"`
}

type depositRequest struct {
	Amount float64 `json:"amount"`
}

type txResponse struct {
	Hash string `json:"hash"`
}

func (h *Handler) Snapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Snapshot())
}

func (h *Handler) Vaults(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Market().Vaults())
}

func (h *Handler) Vault(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	v, ok := h.engine.Market().Vault(id)
	if !ok {
		writeError(w, http.StatusNotFound, "Хранилище не найдено.")
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *Handler) Oracle(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Market().Oracle())
}

func (h *Handler) Protocol(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Market().Stats())
}

func (h *Handler) Liquidations(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Liquidation().Events())
}

func (h *Handler) Keepers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Liquidation().Keepers())
}

func (h *Handler) Wallet(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Wallet().State())
}

func (h *Handler) Transactions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Wallet().Transactions())
}

func (h *Handler) Providers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Providers())
}

func (h *Handler) Connect(w http.ResponseWriter, r *http.Request) {
	var req connectRequest
	if !h.decode(w, r, &req, false) {
		return
	}
	if err := h.engine.Wallet().ConnectAsync(req.Provider, nil); err != nil {
		h.fail(w, err, "Не удалось начать подключение кошелька.")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"provider":   req.Provider,
		"connecting": true,
	})
}

func (h *Handler) Disconnect(w http.ResponseWriter, r *http.Request) {
	h.engine.Wallet().Disconnect()
	writeJSON(w, http.StatusOK, h.engine.Wallet().State())
}

func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if !h.decode(w, r, &req, false) {
		return
	}
	hash, err := h.engine.Wallet().Submit(req.Type, req.Amount, req.Asset)
	if err != nil {
		h.fail(w, err, "Не удалось отправить транзакцию.")
		return
	}
	writeJSON(w, http.StatusAccepted, txResponse{Hash: hash})
}

func (h *Handler) CreateVault(w http.ResponseWriter, r *http.Request) {
	var req createVaultRequest
	if !h.decode(w, r, &req, false) {
		return
	}
	hash, err := h.engine.CreateVault(req.Collateral, req.Mint)
	if err != nil {
		h.fail(w, err, "Не удалось создать хранилище.")
		return
	}
	writeJSON(w, http.StatusAccepted, txResponse{Hash: hash})
}

func (h *Handler) DepositVault(w http.ResponseWriter, r *http.Request) {
	var req depositRequest
	if !h.decode(w, r, &req, true) {
		return
	}
	hash, err := h.engine.DepositVault(mux.Vars(r)["id"], req.Amount)
	if err != nil {
		h.fail(w, err, "Не удалось пополнить хранилище.")
		return
	}
	writeJSON(w, http.StatusAccepted, txResponse{Hash: hash})
}

func (h *Handler) RepayVault(w http.ResponseWriter, r *http.Request) {
	hash, err := h.engine.RepayVault(mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, err, "Не удалось погасить долг.")
		return
	}
	writeJSON(w, http.StatusAccepted, txResponse{Hash: hash})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any, optional bool) bool {
	err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(v)
	if err == nil || (optional && errors.Is(err, io.EOF)) {
		return true
	}
	h.logEntry().WithError(err).Warn("Не удалось разобрать запрос.")
	writeError(w, http.StatusBadRequest, "Некорректное тело запроса.")
	return false
}

func (h *Handler) fail(w http.ResponseWriter, err error, msg string) {
	status := statusFor(err)
	entry := h.logEntry().WithError(err).WithField("status", status)
	if status >= http.StatusInternalServerError {
		entry.Error(msg)
	} else {
		entry.Warn(msg)
	}
	writeError(w, status, err.Error())
}

func (h *Handler) logEntry() *logrus.Entry {
	return h.log.WithComponent("api")
}
