package server

import (
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/teranos/warden/agent/job"
	"github.com/teranos/warden/agent/monitor"
	"github.com/teranos/warden/logger"
)

const (
	// Default and max limits for audit listing queries
	defaultJobLimit = 50
	maxJobLimit     = 200

	// Max lines a single output tail may request
	maxTailLines = 100000
)

// HandleJobs handles requests to /api/jobs
// GET: list registered jobs (live registry, or the audit trail with ?all=true)
// POST: submit a new job
func (s *Server) HandleJobs(w http.ResponseWriter, r *http.Request) {
	if !requireMethods(w, r, http.MethodGet, http.MethodPost) {
		return
	}

	if r.Method == http.MethodPost {
		s.handleSubmitJob(w, r)
		return
	}
	s.handleListJobs(w, r)
}

// handleSubmitJob builds a job from the submitted command line and queues it.
func (s *Server) handleSubmitJob(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if err := readJSON(w, r, &req); err != nil {
		return
	}
	if len(req.Args) == 0 {
		writeError(w, http.StatusBadRequest, "Missing command arguments")
		return
	}

	opts := job.Options{
		Name:         req.Name,
		Description:  req.Description,
		PollInterval: time.Duration(req.PollIntervalSeconds * float64(time.Second)),
		OutputPath:   req.OutputPath,
	}
	j, err := s.scheduler.CreateJob(req.Args, req.Cwd, opts)
	if err != nil {
		handleError(w, s.logger, err, "failed to create job")
		return
	}
	if err := s.scheduler.SubmitJob(j); err != nil {
		handleError(w, s.logger, err, "failed to submit job")
		return
	}

	logger.AddJobSymbol(s.logger).Infow("Job submitted over API",
		logger.FieldJobID, shortID(j.ID.String()),
		logger.FieldJobName, j.Name,
		"remote", r.RemoteAddr)
	writeJSON(w, http.StatusCreated, j.Snapshot())
}

// handleListJobs lists jobs. The live registry is the default view; all=true
// switches to the audit trail, which survives restarts and carries exit
// codes.
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	if parseBoolQueryParam(r, "all") {
		if s.store == nil {
			writeError(w, http.StatusServiceUnavailable, "Audit store not available")
			return
		}
		limit := parseIntQueryParam(r, "limit", defaultJobLimit, 1, maxJobLimit)
		records, err := s.store.Jobs(limit)
		if err != nil {
			handleError(w, s.logger, err, "failed to list audited jobs")
			return
		}
		writeJSON(w, http.StatusOK, AuditListResponse{Jobs: records, Count: len(records)})
		return
	}

	jobs := s.scheduler.Jobs()
	snapshots := make([]job.Snapshot, len(jobs))
	for i, j := range jobs {
		snapshots[i] = j.Snapshot()
	}
	writeJSON(w, http.StatusOK, JobListResponse{Jobs: snapshots, Count: len(snapshots)})
}

// HandleJob handles requests to /api/jobs/{id}
// GET: job details with live process stats
// Sub-resources: POST {id}/cancel, GET {id}/output, GET {id}/updates,
// GET {id}/notifications
func (s *Server) HandleJob(w http.ResponseWriter, r *http.Request) {
	pathParts := extractPathParts(r.URL.Path, "/api/jobs/")
	if len(pathParts) == 0 || pathParts[0] == "" {
		writeError(w, http.StatusBadRequest, "Missing job ID")
		return
	}
	id, err := uuid.Parse(pathParts[0])
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid job ID")
		return
	}

	if len(pathParts) > 1 && pathParts[1] == "cancel" {
		if !requireMethod(w, r, http.MethodPost) {
			return
		}
		s.handleCancelJob(w, r, id)
		return
	}

	if len(pathParts) > 1 && pathParts[1] == "output" {
		if !requireMethod(w, r, http.MethodGet) {
			return
		}
		s.handleJobOutput(w, r, id)
		return
	}

	if len(pathParts) > 1 && pathParts[1] == "updates" {
		if !requireMethod(w, r, http.MethodGet) {
			return
		}
		s.handleJobUpdates(w, r, id)
		return
	}

	if len(pathParts) > 1 && pathParts[1] == "notifications" {
		if !requireMethod(w, r, http.MethodGet) {
			return
		}
		s.handleJobNotifications(w, r, id)
		return
	}

	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	s.handleGetJob(w, r, id)
}

// handleGetJob returns one job's snapshot, with live cpu/rss when the job
// has a running process to sample.
func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	j, err := s.scheduler.Job(id)
	if err != nil {
		handleError(w, s.logger, err, "failed to get job")
		return
	}

	detail := JobDetailResponse{Job: j.Snapshot()}
	if pid := j.Pid(); pid > 0 && j.Status().IsRunning() {
		sample, err := monitor.SampleProcess(pid)
		if err != nil {
			s.logger.Debugw("Failed sampling job process",
				logger.FieldJobID, shortID(id.String()),
				logger.FieldPID, pid,
				logger.FieldError, err)
		} else {
			detail.Process = &sample
		}
	}
	writeJSON(w, http.StatusOK, detail)
}

// handleCancelJob stops the identified job. The lookup distinguishes an
// unknown id (404) from the stop itself, which is fire-and-forget.
func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	j, err := s.scheduler.Job(id)
	if err != nil {
		handleError(w, s.logger, err, "failed to cancel job")
		return
	}

	s.scheduler.StopJob(id)
	logger.AddJobSymbol(s.logger).Infow("Job cancel requested over API",
		logger.FieldJobID, shortID(id.String()),
		"remote", r.RemoteAddr)
	writeJSON(w, http.StatusOK, j.Snapshot())
}

// handleJobOutput reports where the job's output is captured, tailing the
// capture files when ?tail=N asks for content.
func (s *Server) handleJobOutput(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	j, err := s.scheduler.Job(id)
	if err != nil {
		handleError(w, s.logger, err, "failed to get job output")
		return
	}

	resp := OutputResponse{
		OutputPath: j.OutputPath(),
		StdoutPath: j.StdoutPath(),
		StderrPath: j.StderrPath(),
	}

	tail := parseIntQueryParam(r, "tail", 0, 0, maxTailLines)
	if tail > 0 {
		if resp.Stdout, err = tailLines(j.StdoutPath(), tail); err != nil {
			handleError(w, s.logger, err, "failed to read stdout capture")
			return
		}
		if resp.Stderr, err = tailLines(j.StderrPath(), tail); err != nil {
			handleError(w, s.logger, err, "failed to read stderr capture")
			return
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleJobUpdates returns tracked scalar history. recent_only trims to
// entries since the previous query; img renders the history to a chart on
// the daemon host and returns its path.
func (s *Server) handleJobUpdates(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	var names []string
	if raw := r.URL.Query().Get("names"); raw != "" {
		for _, name := range strings.Split(raw, ",") {
			if name = strings.TrimSpace(name); name != "" {
				names = append(names, name)
			}
		}
	}
	recentOnly := parseBoolQueryParam(r, "recent_only")
	plot := parseBoolQueryParam(r, "img")

	history, imgPath, err := s.scheduler.QueryScalars(id, names, recentOnly, plot)
	if err != nil {
		handleError(w, s.logger, err, "failed to query scalar updates")
		return
	}
	writeJSON(w, http.StatusOK, UpdatesResponse{Updates: history, ImagePath: imgPath})
}

// handleJobNotifications returns the job's notification history: the live
// collection by default, the audit trail with all=true.
func (s *Server) handleJobNotifications(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	if parseBoolQueryParam(r, "all") {
		if s.store == nil {
			writeError(w, http.StatusServiceUnavailable, "Audit store not available")
			return
		}
		records, err := s.store.Notifications(id.String())
		if err != nil {
			handleError(w, s.logger, err, "failed to list audited notifications")
			return
		}
		writeJSON(w, http.StatusOK, NotificationsResponse{Notifications: records, Count: len(records)})
		return
	}

	if _, err := s.scheduler.Job(id); err != nil {
		handleError(w, s.logger, err, "failed to list notifications")
		return
	}
	records := s.scheduler.Notifiers().History(id)
	writeJSON(w, http.StatusOK, NotificationsResponse{Notifications: records, Count: len(records)})
}

// tailLines returns the last n lines of the file at path. A missing or
// never-written capture file reads as empty.
func tailLines(path string, n int) ([]string, error) {
	if path == "" || n <= 0 {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	if len(lines) == 1 && lines[0] == "" {
		return nil, nil
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines, nil
}
