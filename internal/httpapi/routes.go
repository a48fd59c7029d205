package httpapi

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/danielpatrickdp/entity-dynamics/internal/catalog"
	"github.com/danielpatrickdp/entity-dynamics/internal/registry"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"uptime":   time.Since(s.started).Seconds(),
		"entities": len(s.reg.IDs()),
	})
}

func (s *Server) handleGlobalState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.reg.GlobalState())
}

func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	days := 30.0
	if v := r.URL.Query().Get("days"); v != "" {
		d, err := strconv.ParseFloat(v, 64)
		if err != nil || d < 0 || math.IsNaN(d) || math.IsInf(d, 0) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "days must be a non-negative number"})
			return
		}
		days = d
	}
	writeJSON(w, http.StatusOK, s.reg.SimulateFuture(days))
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"alerts": s.reg.Alerts(queryInt(r, "limit", 50))})
}

func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.reg.RunAllLoops())
}

func (s *Server) handleListEntities(w http.ResponseWriter, r *http.Request) {
	ids := s.reg.IDs()
	out := make([]registry.Snapshot, 0, len(ids))
	for _, id := range ids {
		snap, err := s.reg.Entity(id)
		if err != nil {
			writeError(w, err)
			return
		}
		out = append(out, snap)
	}
	writeJSON(w, http.StatusOK, map[string]any{"entities": out})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID       string `json:"id"`
		Name     string `json:"display_name"`
		Category string `json:"category"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	c, err := catalog.Parse(req.Category)
	if err != nil {
		writeError(w, err)
		return
	}
	h, err := s.reg.Register(req.ID, req.Name, c)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, h)
}

func (s *Server) handleEntity(w http.ResponseWriter, r *http.Request) {
	snap, err := s.reg.Entity(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	hist, err := s.reg.History(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": hist})
}

func (s *Server) handleLoops(w http.ResponseWriter, r *http.Request) {
	loops, err := s.reg.Loops(chi.URLParam(r, "id"), queryInt(r, "limit", 0))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"loops": loops})
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Value       *float64 `json:"value"`
		Interaction *float64 `json:"interaction"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Value == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "value required"})
		return
	}
	v, err := s.reg.Update(chi.URLParam(r, "id"), *req.Value, req.Interaction)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}
