package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"MarketLens/internal/analysis"
	"MarketLens/internal/model"
	"MarketLens/internal/strategy"
)

// ErrorResponse is the body of every non-2xx API reply.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, `{"error":"json_encoding_failed"}`, http.StatusInternalServerError)
	}
}

// statusClientClosed is the non-standard status logged when the caller goes away mid-request.
const statusClientClosed = 499

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	text := http.StatusText(status)
	if text == "" {
		text = code
	}
	writeJSON(w, status, ErrorResponse{
		Error:     text,
		Code:      code,
		Message:   message,
		RequestID: requestID(r.Context()),
	})
}

// fail maps a service error onto its HTTP status.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, analysis.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, analysis.ErrInvalidRequest):
		writeError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, analysis.ErrInsufficientHistory):
		writeError(w, r, http.StatusBadRequest, "insufficient_history", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, r, http.StatusGatewayTimeout, "timeout", "request timed out")
	case errors.Is(err, context.Canceled):
		s.logger.Debug().Err(err).Str("request_id", requestID(r.Context())).Str("path", r.URL.Path).Msg("request canceled")
		writeError(w, r, statusClientClosed, "client_closed", "request canceled")
	default:
		s.logger.Error().Err(err).Str("request_id", requestID(r.Context())).Str("path", r.URL.Path).Msg("request failed")
		writeError(w, r, http.StatusInternalServerError, "internal", "internal error")
	}
}

func badRequest(w http.ResponseWriter, r *http.Request, format string, args ...any) {
	writeError(w, r, http.StatusBadRequest, "invalid_request", fmt.Sprintf(format, args...))
}

// queryDate parses an optional YYYY-MM-DD query value.
func queryDate(r *http.Request, key string) (time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(model.DateLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s must be YYYY-MM-DD", key)
	}
	return t, nil
}

// queryInt parses an optional integer query value, returning def when absent.
func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", key)
	}
	return v, nil
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// deepRequest reads the deep-analysis parameters shared by the analysis and signal routes.
func deepRequest(r *http.Request) (analysis.DeepRequest, error) {
	req := analysis.DeepRequest{Ticker: mux.Vars(r)["ticker"]}
	var err error
	if req.Start, err = queryDate(r, "start"); err != nil {
		return req, err
	}
	if req.End, err = queryDate(r, "end"); err != nil {
		return req, err
	}
	if req.Lookback, err = queryInt(r, "lookback", 0); err != nil {
		return req, err
	}
	if req.Horizon, err = queryInt(r, "horizon", 0); err != nil {
		return req, err
	}
	if raw := r.URL.Query().Get("seed"); raw != "" {
		seed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return req, errors.New("seed must be a non-negative integer")
		}
		req.Seed = &seed
	}
	return req, nil
}

// deepAnalysis handles GET /api/deep-analysis/{ticker}.
func (s *Server) deepAnalysis(w http.ResponseWriter, r *http.Request) {
	req, err := deepRequest(r)
	if err != nil {
		badRequest(w, r, "%v", err)
		return
	}
	resp, err := s.deps.Analyzer.DeepAnalysis(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// signal handles GET /api/signal/{ticker}: the composite entry score of a deep analysis.
func (s *Server) signal(w http.ResponseWriter, r *http.Request) {
	req, err := deepRequest(r)
	if err != nil {
		badRequest(w, r, "%v", err)
		return
	}
	resp, err := s.deps.Analyzer.DeepAnalysis(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, strategy.Evaluate(resp))
}

func (s *Server) valuation(w http.ResponseWriter, r *http.Request) {
	v, err := s.deps.Market.Valuation(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) peHistory(w http.ResponseWriter, r *http.Request) {
	h, err := s.deps.Market.PEHistory(r.Context(), r.URL.Query().Get("period"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h)
}

// dca handles GET /api/dca?ticker=&start_date=&end_date=&amount=&frequency=.
func (s *Server) dca(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := analysis.DCARequest{Ticker: q.Get("ticker")}
	var err error
	if req.Start, err = queryDate(r, "start_date"); err != nil {
		badRequest(w, r, "%v", err)
		return
	}
	if req.End, err = queryDate(r, "end_date"); err != nil {
		badRequest(w, r, "%v", err)
		return
	}
	if req.Amount, err = decimal.NewFromString(strings.TrimSpace(q.Get("amount"))); err != nil {
		badRequest(w, r, "amount must be a number")
		return
	}
	req.Frequency = strategy.ParseFrequency(q.Get("frequency"))

	ledger, err := s.deps.Market.DCA(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ledger)
}

func (s *Server) riskReturn(w http.ResponseWriter, r *http.Request) {
	rr, err := s.deps.Market.RiskReturn(r.Context(), analysis.ParseTickers(r.URL.Query().Get("tickers")))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rr)
}

func (s *Server) history(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 20)
	if err != nil {
		badRequest(w, r, "%v", err)
		return
	}
	runs, err := s.deps.Analyzer.History(mux.Vars(r)["ticker"], limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) logs(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 100)
	if err != nil {
		badRequest(w, r, "%v", err)
		return
	}
	lines := []string{}
	if s.deps.Logs != nil {
		lines = append(lines, s.deps.Logs.Lines(limit)...)
	}
	writeJSON(w, http.StatusOK, map[string]any{"lines": lines})
}
