package server

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/teranos/warden/agent/tracker"
	"github.com/teranos/warden/logger"
)

// HandleReport handles requests to /api/report
// POST: record one scalar value reported by a running process
func (s *Server) HandleReport(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var req ReportRequest
	if err := readJSON(w, r, &req); err != nil {
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Missing scalar name")
		return
	}
	if req.Pid <= 0 {
		writeError(w, http.StatusBadRequest, "Missing pid")
		return
	}

	if err := s.scheduler.ReportScalar(req.Pid, req.Name, req.Value); err != nil {
		handleError(w, s.logger, err, "failed to report scalar")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok"})
}

// HandleConditions handles requests to /api/conditions
// POST: compile and register a notification condition on a job, addressed
// by job id or by owning pid
func (s *Server) HandleConditions(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var req ConditionRequest
	if err := readJSON(w, r, &req); err != nil {
		return
	}
	if req.Expr == "" {
		writeError(w, http.StatusBadRequest, "Missing condition expression")
		return
	}

	opts := tracker.ConditionOptions{
		Names:        req.Names,
		Title:        req.Title,
		Default:      req.Default,
		Cooldown:     time.Duration(req.CooldownSeconds * float64(time.Second)),
		OnlyRelevant: req.OnlyRelevant,
	}

	var err error
	switch {
	case req.ID != "":
		var id uuid.UUID
		if id, err = uuid.Parse(req.ID); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid job ID")
			return
		}
		err = s.scheduler.AddConditionByID(id, req.Expr, opts)
	case req.Pid > 0:
		err = s.scheduler.AddCondition(req.Pid, req.Expr, opts)
	default:
		writeError(w, http.StatusBadRequest, "Missing job reference: set id or pid")
		return
	}
	if err != nil {
		handleError(w, s.logger, err, "failed to register condition")
		return
	}

	logger.AddTrackSymbol(s.logger).Infow("Condition registered over API",
		logger.FieldCondition, req.Expr,
		"remote", r.RemoteAddr)
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok"})
}
