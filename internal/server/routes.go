package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/birchwood/mnemo/internal/engine"
	"github.com/birchwood/mnemo/internal/store"
)

func (s *Server) handleCreateMemory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content    string `json:"content"`
		Compressed string `json:"compressed"`
		Scope      string `json:"scope"`
		Project    string `json:"project"`
		Importance int    `json:"importance"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Content == "" {
		writeError(w, http.StatusBadRequest, "content required")
		return
	}
	if req.Importance == 0 {
		req.Importance = 5
	}

	m := &store.Memory{
		Content:    req.Content,
		Compressed: req.Compressed,
		Scope:      req.Scope,
		Project:    req.Project,
		Importance: req.Importance,
	}
	if err := s.db.CreateMemory(m); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, m)
}

func (s *Server) handleGetMemory(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "memoryID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid memory id")
		return
	}

	m, err := s.db.GetMemory(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if m == nil {
		writeError(w, http.StatusNotFound, "memory not found")
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleListMemories(w http.ResponseWriter, r *http.Request) {
	filter := store.MemoryFilter{
		Status: r.URL.Query().Get("status"),
		Scope:  r.URL.Query().Get("scope"),
	}
	if lv := r.URL.Query().Get("level"); lv != "" {
		level, err := strconv.Atoi(lv)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid level")
			return
		}
		filter.Level = level
	}
	if lim := r.URL.Query().Get("limit"); lim != "" {
		limit, err := strconv.Atoi(lim)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		filter.Limit = limit
	}

	memories, err := s.db.QueryMemories(filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"memories": memories, "count": len(memories)})
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "memoryID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid memory id")
		return
	}

	var req struct {
		Type    string `json:"type"`
		Context string `json:"context"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	event, err := s.engine.RecordFeedback(r.Context(), id, req.Type, req.Context)
	if err != nil {
		if errors.Is(err, engine.ErrNotFound) {
			writeError(w, http.StatusNotFound, "memory not found")
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, event)
}

func (s *Server) handleRestore(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "memoryID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid memory id")
		return
	}

	m, err := s.engine.Restore(r.Context(), id)
	if err != nil {
		if errors.Is(err, engine.ErrNotFound) {
			writeError(w, http.StatusNotFound, "memory not found")
			return
		}
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleAccess(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDs []int64 `json:"ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if len(req.IDs) == 0 {
		writeError(w, http.StatusBadRequest, "ids required")
		return
	}

	if err := s.engine.RecordRetrieval(r.Context(), req.IDs); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSuggest(w http.ResponseWriter, r *http.Request) {
	idsParam := r.URL.Query().Get("ids")
	if idsParam == "" {
		writeError(w, http.StatusBadRequest, "ids required")
		return
	}

	var ids []int64
	for _, part := range strings.Split(idsParam, ",") {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid id "+part)
			return
		}
		ids = append(ids, id)
	}

	limit := 5
	if lim := r.URL.Query().Get("limit"); lim != "" {
		n, err := strconv.Atoi(lim)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	suggestions, err := s.engine.SuggestMemories(r.Context(), ids, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"suggestions": suggestions})
}

func (s *Server) handleConsolidate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Threshold float64 `json:"threshold"`
		DryRun    bool    `json:"dry_run"`
		Levels    []int   `json:"levels"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json")
			return
		}
	}

	result, err := s.engine.Consolidate(r.Context(), engine.ConsolidateOptions{
		Threshold: req.Threshold,
		DryRun:    req.DryRun,
		Levels:    req.Levels,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handlePrune(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MinUsefulness float64 `json:"min_usefulness"`
		MaxAgeDays    int     `json:"max_age_days"`
		Permanent     bool    `json:"permanent"`
		DryRun        bool    `json:"dry_run"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json")
			return
		}
	}

	result, err := s.engine.Prune(r.Context(), engine.PruneOptions{
		MinUsefulness: req.MinUsefulness,
		MaxAgeDays:    req.MaxAgeDays,
		Permanent:     req.Permanent,
		DryRun:        req.DryRun,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleDecay(w http.ResponseWriter, r *http.Request) {
	scores, err := s.engine.DecayScores(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	// Relationship decay uses the configured factor and floor.
	updated, deleted, err := s.engine.DecayRelationshipsDefault(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"scores":        scores,
		"edges_updated": updated,
		"edges_deleted": deleted,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.db.CollectStats()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
