package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/junghoon-woo/danta/internal/domain"
	"github.com/junghoon-woo/danta/internal/journal"
)

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("failed to encode response")
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, msg string) {
	s.respondJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleSystemHealth reports host and database vitals.
func (s *Server) handleSystemHealth(w http.ResponseWriter, r *http.Request) {
	out := map[string]any{"status": "ok"}

	if pct, err := cpu.PercentWithContext(r.Context(), 100*time.Millisecond, false); err == nil && len(pct) > 0 {
		out["cpu_percent"] = pct[0]
	}
	if vm, err := mem.VirtualMemoryWithContext(r.Context()); err == nil {
		out["mem_percent"] = vm.UsedPercent
	}
	if s.cfg.DB != nil {
		if stats, err := s.cfg.DB.GetStats(); err == nil {
			out["db_size_bytes"] = stats.SizeBytes
			out["db_wal_bytes"] = stats.WALSizeBytes
		}
		if err := s.cfg.DB.HealthCheck(r.Context()); err != nil {
			out["status"] = "degraded"
			out["db_error"] = err.Error()
		}
	}
	s.respondJSON(w, http.StatusOK, out)
}

// handleStatus reports the engine's trading posture for this instant.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	now := s.cfg.Clock.Now()
	out := map[string]any{
		"time":             now.In(domain.MarketLocation()).Format(time.RFC3339),
		"market_date":      domain.MarketDate(now),
		"trading_hours":    domain.IsTradingHours(now),
		"buy_window":       domain.IsBuyWindow(now),
		"scheduler_window": domain.IsSchedulerWindow(now),
	}

	if users, err := s.cfg.Users.ListEnabled(); err == nil {
		out["enabled_users"] = len(users)
	}
	if s.cfg.Snapshots != nil {
		if snap, err := s.cfg.Snapshots.Latest(now, s.cfg.SnapshotAge); err == nil {
			out["snapshot"] = map[string]any{
				"tick_ts":  snap.TickTS.Format(time.RFC3339),
				"age_sec":  int(snap.Age(now).Seconds()),
				"rows":     snap.Len(),
				"degraded": snap.Degraded,
			}
		} else {
			out["snapshot_error"] = err.Error()
		}
	}
	s.respondJSON(w, http.StatusOK, out)
}

// userView strips credentials from the user record. App keys never leave the
// process.
type userView struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	IsPaper bool   `json:"is_paper"`
	Mode    string `json:"mode"`
	Enabled bool   `json:"enabled"`
}

func (s *Server) handleUsers(w http.ResponseWriter, _ *http.Request) {
	users, err := s.cfg.Users.ListEnabled()
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]userView, 0, len(users))
	for _, u := range users {
		out = append(out, userView{
			ID: u.ID, Name: u.Name, IsPaper: u.IsPaper,
			Mode: string(u.Policy.Mode), Enabled: u.Policy.Enabled,
		})
	}
	s.respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	userID, err := queryInt64(r, "user_id")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	status := domain.SuggestionStatus(r.URL.Query().Get("status"))
	if status == "" {
		status = domain.SuggestionPending
	}
	suggestions, err := s.cfg.Suggestions.ListByUser(userID, status)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, suggestions)
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	s.transitionSuggestion(w, r, s.cfg.Suggestions.Approve, "approved")
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	s.transitionSuggestion(w, r, s.cfg.Suggestions.Reject, "rejected")
}

// handleExecuted records that the operator placed the order for an approved
// suggestion. The engine never executes approvals itself.
func (s *Server) handleExecuted(w http.ResponseWriter, r *http.Request) {
	s.transitionSuggestion(w, r, s.cfg.Suggestions.MarkExecuted, "executed")
}

func (s *Server) transitionSuggestion(w http.ResponseWriter, r *http.Request,
	apply func(string) error, verb string) {
	id := chi.URLParam(r, "id")
	if err := apply(id); err != nil {
		if errors.Is(err, journal.ErrSuggestionNotPending) || errors.Is(err, journal.ErrSuggestionNotApproved) {
			s.respondError(w, http.StatusConflict, err.Error())
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.log.Info().Str("suggestion_id", id).Str("action", verb).Msg("suggestion updated")
	s.respondJSON(w, http.StatusOK, map[string]string{"id": id, "status": verb})
}

func (s *Server) handleOrders(w http.ResponseWriter, r *http.Request) {
	userID, err := queryInt64(r, "user_id")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	limit := queryIntDefault(r, "limit", 50)
	orders, err := s.cfg.Orders.History(userID, limit)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, orders)
}

func (s *Server) handlePerformance(w http.ResponseWriter, r *http.Request) {
	userID, err := queryInt64(r, "user_id")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	to := r.URL.Query().Get("to")
	if to == "" {
		to = domain.MarketDate(s.cfg.Clock.Now())
	}
	from := r.URL.Query().Get("from")
	if from == "" {
		from = domain.MarketDate(s.cfg.Clock.Now().AddDate(0, -1, 0))
	}
	perf, err := s.cfg.Perf.Range(userID, from, to)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, perf)
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	limit := queryIntDefault(r, "limit", 50)
	alerts, err := s.cfg.Alerts.Recent(limit)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, alerts)
}

func (s *Server) handleSnapshotMeta(w http.ResponseWriter, _ *http.Request) {
	if s.cfg.Snapshots == nil {
		s.respondError(w, http.StatusNotFound, "snapshots unavailable")
		return
	}
	now := s.cfg.Clock.Now()
	snap, err := s.cfg.Snapshots.Latest(now, s.cfg.SnapshotAge)
	if err != nil {
		s.respondError(w, http.StatusNotFound, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{
		"tick_ts":  snap.TickTS.Format(time.RFC3339),
		"age_sec":  int(snap.Age(now).Seconds()),
		"rows":     snap.Len(),
		"degraded": snap.Degraded,
	})
}

func queryInt64(r *http.Request, key string) (int64, error) {
	return strconv.ParseInt(r.URL.Query().Get(key), 10, 64)
}

func queryIntDefault(r *http.Request, key string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || v <= 0 {
		return def
	}
	return v
}
