package server

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/teranos/warden/agent/job"
	"github.com/teranos/warden/logger"
	"github.com/teranos/warden/version"
)

// HandleFind handles requests to /api/find
// GET: resolve ?q= (uuid, job number, or name glob) to a registered job id
func (s *Server) HandleFind(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "Missing query parameter q")
		return
	}

	id, err := s.scheduler.FindJobID(query)
	if err != nil {
		handleError(w, s.logger, err, "failed to find job")
		return
	}
	writeJSON(w, http.StatusOK, FindResponse{ID: id.String()})
}

// HandleExternalJobs handles requests to /api/external
// POST: register an externally-owned process as an observed job
func (s *Server) HandleExternalJobs(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var req ExternalRequest
	if err := readJSON(w, r, &req); err != nil {
		return
	}
	if req.Pid <= 0 {
		writeError(w, http.StatusBadRequest, "Missing pid")
		return
	}

	opts := job.Options{
		Name:         req.Name,
		PollInterval: time.Duration(req.PollIntervalSeconds * float64(time.Second)),
	}
	j, err := s.scheduler.RegisterExternalJob(req.Pid, opts)
	if err != nil {
		handleError(w, s.logger, err, "failed to register external job")
		return
	}

	// The liveness watch is best effort: the registration stands even if the
	// watch cannot be established, the job just will not auto-finish.
	if s.procmon != nil {
		if err := s.procmon.Watch(j); err != nil {
			logger.AddWatchSymbol(s.logger).Warnw("Failed watching external process",
				logger.FieldJobID, shortID(j.ID.String()),
				logger.FieldPID, req.Pid,
				logger.FieldError, err)
		}
	}

	logger.AddWatchSymbol(s.logger).Infow("External job registered over API",
		logger.FieldJobID, shortID(j.ID.String()),
		logger.FieldPID, req.Pid,
		"remote", r.RemoteAddr)
	writeJSON(w, http.StatusCreated, j.Snapshot())
}

// HandleExternalJob handles requests to /api/external/{id}
// DELETE: end an external job's observed run
func (s *Server) HandleExternalJob(w http.ResponseWriter, r *http.Request) {
	pathParts := extractPathParts(r.URL.Path, "/api/external/")
	if len(pathParts) == 0 || pathParts[0] == "" {
		writeError(w, http.StatusBadRequest, "Missing job ID")
		return
	}
	id, err := uuid.Parse(pathParts[0])
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid job ID")
		return
	}

	if !requireMethod(w, r, http.MethodDelete) {
		return
	}

	if s.procmon != nil {
		s.procmon.Unwatch(id)
	}
	if err := s.scheduler.UnregisterExternalJob(id); err != nil {
		handleError(w, s.logger, err, "failed to unregister external job")
		return
	}

	logger.AddWatchSymbol(s.logger).Infow("External job unregistered over API",
		logger.FieldJobID, shortID(id.String()),
		"remote", r.RemoteAddr)
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "unregistered"})
}

// HandleStatus handles requests to /api/status
// GET: agent summary used by the CLI status command
func (s *Server) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	versionInfo := version.Get()
	resp := StatusResponse{
		Version:   versionInfo.Version,
		Commit:    versionInfo.Short(),
		State:     stateString(s.getState()),
		Notifiers: s.scheduler.Notifiers().Names(),
		Clients:   s.clientCount(),
	}
	if !s.startedAt.IsZero() {
		resp.UptimeSeconds = time.Since(s.startedAt).Seconds()
	}

	jobs := s.scheduler.Jobs()
	resp.Jobs = len(jobs)
	for _, j := range jobs {
		if j.Status() == job.StatusQueued {
			resp.QueuedJobs++
		}
	}
	if running := s.scheduler.RunningJob(); running != nil {
		snap := running.Snapshot()
		resp.RunningJob = &snap
	}
	if s.procmon != nil {
		resp.WatchedProcesses = s.procmon.Watched()
	}
	if s.store != nil {
		auditedJobs, auditedNotifications, err := s.store.Totals()
		if err != nil {
			s.logger.Warnw("Failed reading audit totals", logger.FieldError, err)
		} else {
			resp.AuditedJobs = auditedJobs
			resp.AuditedNotifications = auditedNotifications
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// HandleStop handles requests to /api/stop
// POST: ask the daemon to shut down gracefully
func (s *Server) HandleStop(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	logger.AddCloseSymbol(s.logger).Infow("Shutdown requested over API",
		"remote", r.RemoteAddr)
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "stopping"})
	s.requestStop()
}

// HandleHealth serves health check endpoint with version info
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	versionInfo := version.Get()

	health := map[string]interface{}{
		"status":     "ok",
		"version":    versionInfo.Version,
		"commit":     versionInfo.CommitHash,
		"build_time": versionInfo.BuildTime,
		"clients":    s.clientCount(),
		"state":      stateString(s.getState()),
	}

	writeJSON(w, http.StatusOK, health)
}
