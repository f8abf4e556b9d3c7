package engine

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/optix/options-engine/internal/ledger"
	"github.com/optix/options-engine/internal/model"
	"github.com/optix/options-engine/internal/oracle"
	"github.com/optix/options-engine/internal/payoff"
	"github.com/optix/options-engine/internal/store"
	"github.com/optix/options-engine/internal/symbol"
)

// --- Request types ---

// InitStateRequest is the JSON body for POST /api/v1/state.
type InitStateRequest struct {
	Admin                   string `json:"admin"`
	SettlementWindowSeconds uint64 `json:"settlement_window_seconds"`
}

// InitUnderlyingRequest is the JSON body for POST /api/v1/underlyings.
type InitUnderlyingRequest struct {
	Caller    string `json:"caller"` // must be the admin
	AssetMint string `json:"asset_mint"`
	Oracle    string `json:"oracle"`
}

// CreateSeriesRequest is the JSON body for POST /api/v1/series.
type CreateSeriesRequest struct {
	Creator    string `json:"creator"`
	AssetMint  string `json:"asset_mint"`
	Collateral uint64 `json:"collateral"` // underlying base units
	Strike     uint64 `json:"strike"`     // fixed-scale quote units
	Expiry     int64  `json:"expiry"`     // unix seconds
}

// BurnRequest is the JSON body for POST /api/v1/series/{seriesID}/burn.
type BurnRequest struct {
	Holder string `json:"holder"`
	Amount uint64 `json:"amount"` // claim tokens
}

// OverrideRequest is the JSON body for POST /api/v1/series/{seriesID}/settle/override.
type OverrideRequest struct {
	Caller string `json:"caller"` // must be the admin
	Price  int64  `json:"price"`
	Expo   int32  `json:"expo"`
}

// CloseRequest is the JSON body for POST /api/v1/series/{seriesID}/close.
type CloseRequest struct {
	Caller string `json:"caller"` // must be the series creator
}

// --- HTTP Handlers ---

// HandleInitState handles POST /api/v1/state
func (s *Service) HandleInitState(w http.ResponseWriter, r *http.Request) {
	var req InitStateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Admin == "" {
		writeError(w, "admin is required", http.StatusBadRequest)
		return
	}
	if req.SettlementWindowSeconds == 0 {
		writeError(w, "settlement_window_seconds must be positive", http.StatusBadRequest)
		return
	}

	st, err := s.InitializeState(r.Context(), req.Admin, req.SettlementWindowSeconds)
	if err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, http.StatusCreated, st)
}

// HandleGetState handles GET /api/v1/state
func (s *Service) HandleGetState(w http.ResponseWriter, r *http.Request) {
	st, err := s.store.GetState(r.Context())
	if err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// HandleInitUnderlying handles POST /api/v1/underlyings
func (s *Service) HandleInitUnderlying(w http.ResponseWriter, r *http.Request) {
	var req InitUnderlyingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.AssetMint == "" || req.Oracle == "" {
		writeError(w, "asset_mint and oracle are required", http.StatusBadRequest)
		return
	}

	u, err := s.InitializeUnderlying(r.Context(), req.Caller, req.AssetMint, req.Oracle)
	if err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

// HandleListUnderlyings handles GET /api/v1/underlyings
func (s *Service) HandleListUnderlyings(w http.ResponseWriter, r *http.Request) {
	underlyings, err := s.store.ListUnderlyings(r.Context())
	if err != nil {
		writeError(w, "failed to list underlyings", http.StatusInternalServerError)
		return
	}
	if underlyings == nil {
		underlyings = []model.Underlying{}
	}
	writeJSON(w, http.StatusOK, underlyings)
}

// HandleCreateSeries handles POST /api/v1/series
func (s *Service) HandleCreateSeries(w http.ResponseWriter, r *http.Request) {
	var req CreateSeriesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Creator == "" {
		writeError(w, "creator is required", http.StatusBadRequest)
		return
	}
	if req.Collateral == 0 {
		writeError(w, "collateral must be positive", http.StatusBadRequest)
		return
	}

	series, err := s.CreateSeries(r.Context(), CreateSeriesParams{
		Creator:    req.Creator,
		AssetMint:  req.AssetMint,
		Collateral: req.Collateral,
		Strike:     req.Strike,
		Expiry:     req.Expiry,
	})
	if err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, http.StatusCreated, series)
}

// HandleGetSeries handles GET /api/v1/series/{seriesID}
// The id may be the derived series id or the display symbol.
func (s *Service) HandleGetSeries(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "seriesID")

	series, err := s.store.GetSeries(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		if _, symErr := symbol.Parse(id); symErr == nil {
			series, err = s.store.GetSeriesBySymbol(r.Context(), id)
		}
	}
	if err != nil {
		writeError(w, "series not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, series)
}

// HandleListSeries handles GET /api/v1/series
// Returns all series, optionally filtered by ?underlying=<id>.
func (s *Service) HandleListSeries(w http.ResponseWriter, r *http.Request) {
	var (
		series []model.OptionSeries
		err    error
	)
	if u := r.URL.Query().Get("underlying"); u != "" {
		series, err = s.store.ListSeriesByUnderlying(r.Context(), u)
	} else {
		series, err = s.store.ListSeries(r.Context())
	}
	if err != nil {
		writeError(w, "failed to list series", http.StatusInternalServerError)
		return
	}
	if series == nil {
		series = []model.OptionSeries{}
	}
	writeJSON(w, http.StatusOK, series)
}

// HandleBurn handles POST /api/v1/series/{seriesID}/burn
func (s *Service) HandleBurn(w http.ResponseWriter, r *http.Request) {
	seriesID := chi.URLParam(r, "seriesID")

	var req BurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Holder == "" {
		writeError(w, "holder is required", http.StatusBadRequest)
		return
	}
	if req.Amount == 0 {
		writeError(w, "amount must be positive", http.StatusBadRequest)
		return
	}

	redemption, err := s.BurnClaims(r.Context(), seriesID, req.Holder, req.Amount)
	if err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, redemption)
}

// HandleSettle handles POST /api/v1/series/{seriesID}/settle
func (s *Service) HandleSettle(w http.ResponseWriter, r *http.Request) {
	seriesID := chi.URLParam(r, "seriesID")

	settlement, err := s.FixSettlementPrice(r.Context(), seriesID)
	if err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, settlement)
}

// HandleOverrideSettle handles POST /api/v1/series/{seriesID}/settle/override
func (s *Service) HandleOverrideSettle(w http.ResponseWriter, r *http.Request) {
	seriesID := chi.URLParam(r, "seriesID")

	var req OverrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	settlement, err := s.OverrideSettlementPrice(r.Context(), seriesID, req.Caller, oracle.Quote{
		Price: req.Price,
		Expo:  req.Expo,
	})
	if err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, settlement)
}

// HandleClose handles POST /api/v1/series/{seriesID}/close
func (s *Service) HandleClose(w http.ResponseWriter, r *http.Request) {
	seriesID := chi.URLParam(r, "seriesID")

	var req CloseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	result, err := s.CloseSeries(r.Context(), seriesID, req.Caller)
	if err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// --- Error mapping ---

// statusFor maps the engine's error taxonomy onto HTTP status codes.
// All faults are caller-visible and non-retryable without changed inputs.
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUnauthorizedAdmin),
		errors.Is(err, ErrOnlyCreatorCanClose),
		errors.Is(err, ledger.ErrWrongAuthority):
		return http.StatusForbidden
	case errors.Is(err, ErrExpiryNotFuture),
		errors.Is(err, ErrInvalidStrike),
		errors.Is(err, payoff.ErrNotLotMultiple),
		errors.Is(err, payoff.ErrUnsupportedDecimals),
		errors.Is(err, payoff.ErrNonPositivePrice),
		errors.Is(err, payoff.ErrPriceOutOfRange):
		return http.StatusBadRequest
	case errors.Is(err, ErrBurnAfterExpiry),
		errors.Is(err, ErrBurnAfterSettlement),
		errors.Is(err, ErrBeforeWindow),
		errors.Is(err, ErrAfterWindow),
		errors.Is(err, ErrAlreadySet),
		errors.Is(err, ErrNotPastCloseTime),
		errors.Is(err, ErrInsufficientClaims),
		errors.Is(err, ledger.ErrInsufficientFunds),
		errors.Is(err, store.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, ErrNotInitialized):
		return http.StatusServiceUnavailable
	default:
		// Arithmetic and integrity faults included: they indicate a
		// logic or data error, not bad caller input.
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
