package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/onnwee/searchrank/internal/ranking"
	"github.com/onnwee/searchrank/internal/store"
	"github.com/onnwee/searchrank/internal/tracing"
	"github.com/onnwee/searchrank/internal/validate"
)

// Request limits for POST /v1/rank.
const (
	MaxCandidates = 1000
	MaxBodyBytes  = 4 << 20
)

// RankRequest is the body of POST /v1/rank.
type RankRequest struct {
	Candidates []ranking.Record `json:"candidates"`
}

// RankResult is one scored candidate. Index is its position in the request.
type RankResult struct {
	ID    string  `json:"id,omitempty"`
	Score float64 `json:"score"`
	Index int     `json:"index"`
	Debug string  `json:"debug,omitempty"`
}

// RankResponse lists the candidates best first.
type RankResponse struct {
	Results []RankResult `json:"results"`
}

// StoredInfoResponse is the body of GET /v1/stored/{id}.
type StoredInfoResponse struct {
	ID              string  `json:"id"`
	DistanceToPivot float64 `json:"distance_to_pivot"`
	ResultType      string  `json:"result_type"`
	PoiType         string  `json:"poi_type,omitempty"`
	StreetType      string  `json:"street_type,omitempty"`
}

// RankHandlers serves the ranking endpoints.
type RankHandlers struct {
	scorer     *ranking.Scorer
	classifier ranking.Classifier
	store      store.Store
	metrics    *ranking.Metrics
}

// RankHandlersConfig configures RankHandlers. Scorer defaults to
// ranking.DefaultScorer; Classifier, Store and Metrics are optional.
type RankHandlersConfig struct {
	Scorer     *ranking.Scorer
	Classifier ranking.Classifier
	Store      store.Store
	Metrics    *ranking.Metrics
}

// NewRankHandlers creates the ranking handlers.
func NewRankHandlers(config RankHandlersConfig) *RankHandlers {
	scorer := config.Scorer
	if scorer == nil {
		scorer = ranking.DefaultScorer()
	}
	return &RankHandlers{
		scorer:     scorer,
		classifier: config.Classifier,
		store:      config.Store,
		metrics:    config.Metrics,
	}
}

// Rank handles POST /v1/rank.
func (h *RankHandlers) Rank(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		fail(w, r, ErrCodeMethodNotAllowed, "Method not allowed")
		return
	}

	var req RankRequest
	body := http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			fail(w, r, ErrCodePayloadTooLarge, fmt.Sprintf("Request body exceeds %d bytes", MaxBodyBytes))
		case errors.Is(err, io.EOF):
			fail(w, r, ErrCodeBadRequest, "Request body is empty")
		default:
			fail(w, r, ErrCodeBadRequest, "Invalid JSON body")
		}
		return
	}

	if len(req.Candidates) == 0 {
		fail(w, r, ErrCodeValidation, "candidates must not be empty")
		return
	}
	if len(req.Candidates) > MaxCandidates {
		fail(w, r, ErrCodePayloadTooLarge, fmt.Sprintf("At most %d candidates per request", MaxCandidates))
		return
	}

	candidates := make([]ranking.Candidate, len(req.Candidates))
	categorial := 0
	for i := range req.Candidates {
		info, err := req.Candidates[i].Info(h.classifier)
		if err == nil && req.Candidates[i].ID != "" {
			_, err = validate.CandidateID(req.Candidates[i].ID)
			if err != nil {
				err = fmt.Errorf("invalid id: %w", err)
			}
		}
		if err != nil {
			if h.metrics != nil {
				h.metrics.IncInvalidRecords()
			}
			fail(w, r, ErrCodeInvalidRecord, fmt.Sprintf("candidate %d: %v", i, err))
			return
		}
		if info.CategorialRequest {
			categorial++
		}
		candidates[i] = ranking.Candidate{ID: req.Candidates[i].ID, Info: info, Index: i}
	}

	ctx, endSpan := tracing.StartRankSpan(r.Context(), len(candidates), categorial)
	start := time.Now()
	ranked := h.scorer.Rank(candidates)
	if h.metrics != nil {
		h.metrics.ObserveRank(ranked, time.Since(start))
	}
	endSpan(nil)

	if h.store != nil {
		for i := range ranked {
			if ranked[i].ID == "" {
				continue
			}
			if err := h.store.Put(ctx, ranked[i].ID, ranked[i].Info.StoredInfo); err != nil {
				slog.WarnContext(ctx, "failed to store ranking info", "id", ranked[i].ID, "error", err)
			}
		}
	}

	debug := wantDebug(r)
	resp := RankResponse{Results: make([]RankResult, len(ranked))}
	for i := range ranked {
		resp.Results[i] = RankResult{
			ID:    ranked[i].ID,
			Score: ranked[i].Score,
			Index: ranked[i].Index,
		}
		if debug {
			resp.Results[i].Debug = ranked[i].Info.String()
		}
	}

	writeJSON(w, ctx, http.StatusOK, resp)
}

// GetStored handles GET /v1/stored/{id}.
func (h *RankHandlers) GetStored(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		fail(w, r, ErrCodeMethodNotAllowed, "Method not allowed")
		return
	}

	id := r.PathValue("id")
	if id == "" {
		id = strings.TrimPrefix(r.URL.Path, "/v1/stored/")
	}
	if _, err := validate.CandidateID(id); err != nil {
		fail(w, r, ErrCodeBadRequest, "Invalid candidate id")
		return
	}
	if h.store == nil {
		fail(w, r, ErrCodeNotFound, "Stored info not found")
		return
	}

	info, err := h.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			fail(w, r, ErrCodeNotFound, "Stored info not found")
			return
		}
		slog.ErrorContext(r.Context(), "failed to read stored info", "id", id, "error", err)
		fail(w, r, ErrCodeUnavailable, "Stored info is temporarily unavailable")
		return
	}

	resp := StoredInfoResponse{
		ID:              id,
		DistanceToPivot: info.DistanceToPivot,
		ResultType:      info.Type.String(),
	}
	switch {
	case info.Classif.IsPoi():
		resp.PoiType = info.Classif.Poi().String()
	case info.Classif.IsStreet():
		resp.StreetType = info.Classif.Street().String()
	}
	writeJSON(w, r.Context(), http.StatusOK, resp)
}

// wantDebug reports whether the request asked for debug strings.
func wantDebug(r *http.Request) bool {
	switch r.URL.Query().Get("debug") {
	case "1", "true", "yes":
		return true
	}
	return false
}
