package service

import (
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"rampart/core/types"
	"rampart/native/amm"
	"rampart/native/bidwall"
)

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorBody{Error: err.Error()})
}

// writeEngineError maps engine sentinels onto HTTP statuses so clients can
// distinguish authorization failures from transient contention.
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, bidwall.ErrNotTrustedCaller),
		errors.Is(err, bidwall.ErrNotOwner),
		errors.Is(err, bidwall.ErrNotCreator):
		writeError(w, http.StatusForbidden, err)
	case errors.Is(err, bidwall.ErrModulePaused):
		writeError(w, http.StatusServiceUnavailable, err)
	case errors.Is(err, bidwall.ErrPoolBusy):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, bidwall.ErrWallDisabled):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, amm.ErrPoolNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, bidwall.ErrInvalidAmount),
		errors.Is(err, bidwall.ErrInvalidThreshold),
		errors.Is(err, bidwall.ErrInvalidStaleWindow),
		errors.Is(err, bidwall.ErrNativeSideMismatch),
		errors.Is(err, bidwall.ErrNativeNotInPool),
		errors.Is(err, amm.ErrInvalidPoolID):
		writeError(w, http.StatusBadRequest, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, out any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("malformed request body"))
		return false
	}
	return true
}

func poolParam(w http.ResponseWriter, r *http.Request) (amm.PoolID, bool) {
	id, err := amm.ParsePoolID(chi.URLParam(r, "pool"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return amm.PoolID{}, false
	}
	return id, true
}

func parseCaller(w http.ResponseWriter, raw string) (types.Address, bool) {
	addr, err := types.ParseAddress(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid caller address"))
		return types.Address{}, false
	}
	return addr, true
}

func parseAmount(w http.ResponseWriter, raw string) (*big.Int, bool) {
	amount, ok := new(big.Int).SetString(strings.TrimSpace(raw), 10)
	if !ok {
		writeError(w, http.StatusBadRequest, errors.New("invalid decimal amount"))
		return nil, false
	}
	return amount, true
}

type wallResponse struct {
	Pool           string `json:"pool"`
	Disabled       bool   `json:"disabled"`
	Initialized    bool   `json:"initialized"`
	TickLower      int32  `json:"tickLower"`
	TickUpper      int32  `json:"tickUpper"`
	PendingFees    string `json:"pendingFees"`
	CumulativeFees string `json:"cumulativeFees"`
	LastDepositAt  int64  `json:"lastDepositAt"`
}

func (s *Server) handleWall(w http.ResponseWriter, r *http.Request) {
	pool, ok := poolParam(w, r)
	if !ok {
		return
	}
	s.respondWall(w, pool)
}

type positionResponse struct {
	Pool        string `json:"pool"`
	Amount0     string `json:"amount0"`
	Amount1     string `json:"amount1"`
	PendingFees string `json:"pendingFees"`
}

func (s *Server) handlePosition(w http.ResponseWriter, r *http.Request) {
	pool, ok := poolParam(w, r)
	if !ok {
		return
	}
	amount0, amount1, pending, err := s.engine.QueryPosition(pool)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, positionResponse{
		Pool:        pool.String(),
		Amount0:     amount0.String(),
		Amount1:     amount1.String(),
		PendingFees: pending.String(),
	})
}

type paramsResponse struct {
	SwapFeeThreshold   string `json:"swapFeeThreshold"`
	StaleWindowSeconds int64  `json:"staleWindowSeconds"`
}

func (s *Server) handleParams(w http.ResponseWriter, _ *http.Request) {
	s.respondParams(w)
}

type depositRequest struct {
	Caller         string `json:"caller"`
	Amount         string `json:"amount"`
	CurrentTick    int32  `json:"currentTick"`
	NativeIsToken0 bool   `json:"nativeIsToken0"`
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	pool, ok := poolParam(w, r)
	if !ok {
		return
	}
	var req depositRequest
	if !decodeBody(w, r, &req) {
		return
	}
	caller, ok := parseCaller(w, req.Caller)
	if !ok {
		return
	}
	amount, ok := parseAmount(w, req.Amount)
	if !ok {
		return
	}
	if err := s.engine.Deposit(caller, pool, amount, req.CurrentTick, req.NativeIsToken0); err != nil {
		writeEngineError(w, err)
		return
	}
	s.respondWall(w, pool)
}

type stalenessRequest struct {
	Caller         string `json:"caller"`
	CurrentTick    int32  `json:"currentTick"`
	NativeIsToken0 bool   `json:"nativeIsToken0"`
}

func (s *Server) handleStaleness(w http.ResponseWriter, r *http.Request) {
	pool, ok := poolParam(w, r)
	if !ok {
		return
	}
	var req stalenessRequest
	if !decodeBody(w, r, &req) {
		return
	}
	caller, ok := parseCaller(w, req.Caller)
	if !ok {
		return
	}
	if err := s.engine.CheckStaleness(caller, pool, req.CurrentTick, req.NativeIsToken0); err != nil {
		writeEngineError(w, err)
		return
	}
	s.respondWall(w, pool)
}

type callerRequest struct {
	Caller string `json:"caller"`
}

func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	pool, ok := poolParam(w, r)
	if !ok {
		return
	}
	var req callerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	caller, ok := parseCaller(w, req.Caller)
	if !ok {
		return
	}
	if err := s.engine.Close(caller, pool); err != nil {
		writeEngineError(w, err)
		return
	}
	s.respondWall(w, pool)
}

type disabledRequest struct {
	Caller   string `json:"caller"`
	Disabled bool   `json:"disabled"`
}

func (s *Server) handleDisabled(w http.ResponseWriter, r *http.Request) {
	pool, ok := poolParam(w, r)
	if !ok {
		return
	}
	var req disabledRequest
	if !decodeBody(w, r, &req) {
		return
	}
	caller, ok := parseCaller(w, req.Caller)
	if !ok {
		return
	}
	if err := s.engine.SetDisabled(caller, pool, req.Disabled); err != nil {
		writeEngineError(w, err)
		return
	}
	s.respondWall(w, pool)
}

type thresholdRequest struct {
	Caller string `json:"caller"`
	Amount string `json:"amount"`
}

func (s *Server) handleSetThreshold(w http.ResponseWriter, r *http.Request) {
	var req thresholdRequest
	if !decodeBody(w, r, &req) {
		return
	}
	caller, ok := parseCaller(w, req.Caller)
	if !ok {
		return
	}
	amount, ok := parseAmount(w, req.Amount)
	if !ok {
		return
	}
	if err := s.engine.SetSwapFeeThreshold(caller, amount); err != nil {
		writeEngineError(w, err)
		return
	}
	s.respondParams(w)
}

type staleWindowRequest struct {
	Caller  string `json:"caller"`
	Seconds int64  `json:"seconds"`
}

func (s *Server) handleSetStaleWindow(w http.ResponseWriter, r *http.Request) {
	var req staleWindowRequest
	if !decodeBody(w, r, &req) {
		return
	}
	caller, ok := parseCaller(w, req.Caller)
	if !ok {
		return
	}
	if err := s.engine.SetStaleWindow(caller, req.Seconds); err != nil {
		writeEngineError(w, err)
		return
	}
	s.respondParams(w)
}

func (s *Server) respondWall(w http.ResponseWriter, pool amm.PoolID) {
	wall, err := s.engine.Wall(pool)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wallResponse{
		Pool:           pool.String(),
		Disabled:       wall.Disabled,
		Initialized:    wall.Initialized,
		TickLower:      wall.TickLower,
		TickUpper:      wall.TickUpper,
		PendingFees:    wall.PendingFees.String(),
		CumulativeFees: wall.CumulativeFees.String(),
		LastDepositAt:  wall.LastDepositAt,
	})
}

func (s *Server) respondParams(w http.ResponseWriter) {
	params := s.engine.ParamsSnapshot()
	writeJSON(w, http.StatusOK, paramsResponse{
		SwapFeeThreshold:   params.SwapFeeThreshold.String(),
		StaleWindowSeconds: params.StaleWindowSeconds,
	})
}
