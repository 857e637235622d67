// Package store persists the agent's job audit trail and notification
// history in sqlite.
//
// Writes flow one way: the scheduler mirrors registrations and status
// transitions here, and the notifier collection streams its records through
// a sink. Nothing is ever read back into the live registry; a restarted
// agent starts empty and the store keeps the past for history queries.
package store

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teranos/warden/agent/job"
	"github.com/teranos/warden/agent/notify"
	"github.com/teranos/warden/agent/scheduler"
	"github.com/teranos/warden/errors"
	"github.com/teranos/warden/logger"
	"github.com/teranos/warden/sym"
)

// Store writes job and notification rows to the agent database. The schema
// must already be migrated, see db.OpenWithMigrations.
type Store struct {
	db  *sql.DB
	log *zap.SugaredLogger
}

var _ scheduler.Store = (*Store)(nil)

// New wraps an open database handle.
func New(db *sql.DB, log *zap.SugaredLogger) *Store {
	if log == nil {
		log = logger.ComponentLogger("agent.store")
	}
	return &Store{db: db, log: log}
}

// InsertJob records a freshly registered job.
func (s *Store) InsertJob(snap job.Snapshot) error {
	query := `
		INSERT INTO jobs (
			id, number, name, description, command, output_path,
			status, external, pid, poll_interval_seconds,
			repo_remote, repo_commit, repo_dirty,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	pid := sql.NullInt64{Int64: int64(snap.Pid), Valid: snap.Pid != 0}
	var remote, commit sql.NullString
	var dirty sql.NullBool
	if snap.Provenance != nil {
		remote = sql.NullString{String: snap.Provenance.Remote, Valid: snap.Provenance.Remote != ""}
		commit = sql.NullString{String: snap.Provenance.Commit, Valid: snap.Provenance.Commit != ""}
		dirty = sql.NullBool{Bool: snap.Provenance.Dirty, Valid: true}
	}

	created := snap.CreatedAt.UTC()
	_, err := s.db.Exec(query,
		snap.ID,
		snap.Number,
		snap.Name,
		snap.Description,
		snap.Command,
		snap.OutputPath,
		string(snap.Status),
		snap.External,
		pid,
		snap.PollIntervalSeconds,
		remote,
		commit,
		dirty,
		created,
		created,
	)
	if err != nil {
		return errors.Wrap(err, "failed to insert job")
	}
	return nil
}

// UpdateJobStatus records a status transition.
func (s *Store) UpdateJobStatus(id string, status job.Status) error {
	query := `
		UPDATE jobs
		SET status = ?, updated_at = ?
		WHERE id = ?
	`

	res, err := s.db.Exec(query, string(status), time.Now().UTC(), id)
	if err != nil {
		return errors.Wrap(err, "failed to update job status")
	}
	return requireRow(res, id)
}

// UpdateJobExit records a terminal transition together with the process
// exit code.
func (s *Store) UpdateJobExit(id string, status job.Status, exitCode int) error {
	query := `
		UPDATE jobs
		SET status = ?, exit_code = ?, updated_at = ?
		WHERE id = ?
	`

	res, err := s.db.Exec(query, string(status), exitCode, time.Now().UTC(), id)
	if err != nil {
		return errors.Wrap(err, "failed to update job exit")
	}
	return requireRow(res, id)
}

func requireRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to check affected rows")
	}
	if n == 0 {
		return errors.Wrapf(errors.ErrJobNotFound, "job %s has no audit row", id)
	}
	return nil
}

// RecordNotification appends one notification outcome. It matches the
// notify.Sink signature so it can be installed with Collection.SetSink;
// sinks cannot report failure, so a broken write only logs.
func (s *Store) RecordNotification(jobID uuid.UUID, rec notify.Record) {
	query := `
		INSERT INTO notifications (job_id, notifier, event, outcome, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	errText := sql.NullString{String: rec.Error, Valid: rec.Error != ""}
	_, err := s.db.Exec(query,
		jobID.String(),
		rec.Notifier,
		string(rec.Event),
		string(rec.Outcome),
		errText,
		rec.Timestamp.UTC(),
	)
	if err != nil {
		s.log.Warnw("Failed writing notification audit",
			logger.FieldSymbol, sym.DB,
			logger.FieldJobID, jobID,
			logger.FieldNotifier, rec.Notifier,
			logger.FieldError, err)
	}
}
