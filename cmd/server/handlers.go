package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gary-Shen/wert-sub000/internal/quote"
	"github.com/gary-Shen/wert-sub000/internal/resolver"
)

// searcher is the slice of the durable cache the HTTP surface needs for
// instrument lookups.
type searcher interface {
	Search(ctx context.Context, query string, limit int) ([]quote.Instrument, error)
}

type server struct {
	svc *resolver.Service
	dim searcher
	log *slog.Logger
}

func (s *server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/price", s.handlePrice)
	mux.HandleFunc("POST /api/v1/prices", s.handleBatch)
	mux.HandleFunc("GET /api/v1/sources", s.handleSources)
	mux.HandleFunc("POST /api/v1/sources/reset", s.handleSourcesReset)
	mux.HandleFunc("POST /api/v1/sync", s.handleSync)
	mux.HandleFunc("POST /api/v1/sync/catalogue", s.handleSyncCatalogue)
	mux.HandleFunc("GET /api/v1/cache/stats", s.handleCacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", s.handleInvalidate)
	mux.HandleFunc("GET /api/v1/dim/search", s.handleDimSearch)
	mux.HandleFunc("GET /api/v1/holdings", s.handleHoldingsList)
	mux.HandleFunc("POST /api/v1/holdings", s.handleHoldingsAdd)
	mux.HandleFunc("DELETE /api/v1/holdings", s.handleHoldingsRemove)
}

// statusFor maps resolution failures onto HTTP statuses: unknown symbols are
// the caller's problem, upstream trouble is a gateway problem.
func statusFor(err error) int {
	switch quote.ReasonOf(err) {
	case quote.ReasonNoMarket, quote.ReasonNotFound:
		return http.StatusNotFound
	case quote.ReasonTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

type errorBody struct {
	Error  string `json:"error"`
	Reason string `json:"reason"`
}

func writeError(w http.ResponseWriter, err error) {
	w.WriteHeader(statusFor(err))
	_ = json.NewEncoder(w).Encode(errorBody{Error: err.Error(), Reason: string(quote.ReasonOf(err))})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func (s *server) handlePrice(w http.ResponseWriter, r *http.Request) {
	symbol := strings.TrimSpace(r.URL.Query().Get("symbol"))
	if symbol == "" {
		http.Error(w, "missing symbol query param", http.StatusBadRequest)
		return
	}
	rec, err := s.svc.Resolve(r.Context(), symbol)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

type batchRequest struct {
	Symbols []string `json:"symbols"`
}

type batchResponse struct {
	Prices  map[string]quote.PriceRecord `json:"prices"`
	Errors  map[string]errorBody         `json:"errors,omitempty"`
	Success int                          `json:"success"`
	Failed  int                          `json:"failed"`
}

func (s *server) handleBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if len(req.Symbols) == 0 {
		http.Error(w, "symbols cannot be empty", http.StatusBadRequest)
		return
	}
	if len(req.Symbols) > 1000 {
		http.Error(w, "too many symbols (max 1000)", http.StatusBadRequest)
		return
	}

	resp := batchResponse{Prices: map[string]quote.PriceRecord{}}
	for raw, res := range s.svc.ResolveMany(r.Context(), req.Symbols) {
		if res.Err != nil {
			if resp.Errors == nil {
				resp.Errors = map[string]errorBody{}
			}
			resp.Errors[raw] = errorBody{Error: res.Err.Error(), Reason: string(quote.ReasonOf(res.Err))}
			resp.Failed++
			continue
		}
		resp.Prices[raw] = res.Record
		resp.Success++
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *server) handleSources(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"sources": s.svc.Health().Snapshot()})
}

func (s *server) handleSourcesReset(w http.ResponseWriter, r *http.Request) {
	if name := strings.TrimSpace(r.URL.Query().Get("name")); name != "" {
		s.svc.Health().Reset(name)
	} else {
		s.svc.Health().ResetAll()
	}
	writeJSON(w, http.StatusOK, map[string]any{"sources": s.svc.Health().Snapshot()})
}

func (s *server) handleSync(w http.ResponseWriter, r *http.Request) {
	report, err := s.svc.SyncHeldSymbols(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *server) handleSyncCatalogue(w http.ResponseWriter, r *http.Request) {
	report, err := s.svc.SyncCatalogue(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Cache().Stats(r.Context()))
}

func (s *server) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	symbol := strings.TrimSpace(r.URL.Query().Get("symbol"))
	if symbol == "" {
		http.Error(w, "missing symbol query param", http.StatusBadRequest)
		return
	}
	if err := s.svc.Invalidate(r.Context(), symbol); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"invalidated": symbol})
}

func (s *server) handleDimSearch(w http.ResponseWriter, r *http.Request) {
	if s.dim == nil {
		http.Error(w, "no durable store configured", http.StatusServiceUnavailable)
		return
	}
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		http.Error(w, "missing q query param", http.StatusBadRequest)
		return
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	rows, err := s.dim.Search(r.Context(), query, limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"instruments": rows})
}

func (s *server) handleHoldingsList(w http.ResponseWriter, r *http.Request) {
	h := s.svc.Holdings()
	if h == nil {
		http.Error(w, "no holdings store configured", http.StatusServiceUnavailable)
		return
	}
	symbols, err := h.HeldSymbols(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"symbols": symbols})
}

func (s *server) handleHoldingsAdd(w http.ResponseWriter, r *http.Request) {
	s.mutateHolding(w, r, func(h resolver.HoldingsStore, symbol string) error {
		return h.AddHolding(r.Context(), symbol)
	})
}

func (s *server) handleHoldingsRemove(w http.ResponseWriter, r *http.Request) {
	s.mutateHolding(w, r, func(h resolver.HoldingsStore, symbol string) error {
		return h.RemoveHolding(r.Context(), symbol)
	})
}

func (s *server) mutateHolding(w http.ResponseWriter, r *http.Request, op func(resolver.HoldingsStore, string) error) {
	h := s.svc.Holdings()
	if h == nil {
		http.Error(w, "no holdings store configured", http.StatusServiceUnavailable)
		return
	}
	raw := strings.TrimSpace(r.URL.Query().Get("symbol"))
	if raw == "" {
		http.Error(w, "missing symbol query param", http.StatusBadRequest)
		return
	}
	// Holdings are stored in raw form; routing validates the symbol first.
	if _, _, err := s.svc.Registry().Route(raw); err != nil {
		writeError(w, err)
		return
	}
	if err := op(h, raw); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"symbol": raw})
}
