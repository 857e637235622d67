package store

import (
	"database/sql"
	"time"

	"github.com/teranos/warden/agent/job"
	"github.com/teranos/warden/agent/notify"
	"github.com/teranos/warden/errors"
)

// JobRecord is one row of the job audit trail.
type JobRecord struct {
	ID                  string          `json:"id"`
	Number              int             `json:"number"`
	Name                string          `json:"name"`
	Description         string          `json:"description,omitempty"`
	Command             string          `json:"command,omitempty"`
	OutputPath          string          `json:"output_path,omitempty"`
	Status              job.Status      `json:"status"`
	External            bool            `json:"external,omitempty"`
	Pid                 int             `json:"pid,omitempty"`
	ExitCode            *int            `json:"exit_code,omitempty"`
	PollIntervalSeconds float64         `json:"poll_interval_seconds,omitempty"`
	Provenance          *job.Provenance `json:"provenance,omitempty"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

const jobColumns = `id, number, name, description, command, output_path,
		status, external, pid, exit_code, poll_interval_seconds,
		repo_remote, repo_commit, repo_dirty, created_at, updated_at`

// Jobs returns the audit trail, newest first. A positive limit bounds the
// result; zero or negative returns everything.
func (s *Store) Jobs(limit int) ([]JobRecord, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM jobs
		ORDER BY created_at DESC, number DESC
	`
	var args []interface{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list jobs")
	}
	defer rows.Close()

	var records []JobRecord
	for rows.Next() {
		rec, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate jobs")
	}
	return records, nil
}

// Job returns a single audit row by id.
func (s *Store) Job(id string) (JobRecord, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM jobs
		WHERE id = ?
	`

	rec, err := scanJob(s.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return JobRecord{}, errors.Wrapf(errors.ErrJobNotFound, "job %s has no audit row", id)
	}
	return rec, err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row rowScanner) (JobRecord, error) {
	var rec JobRecord
	var pid, exit sql.NullInt64
	var poll sql.NullFloat64
	var remote, commit sql.NullString
	var dirty sql.NullBool

	err := row.Scan(
		&rec.ID, &rec.Number, &rec.Name, &rec.Description, &rec.Command, &rec.OutputPath,
		&rec.Status, &rec.External, &pid, &exit, &poll,
		&remote, &commit, &dirty, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return JobRecord{}, err
		}
		return JobRecord{}, errors.Wrap(err, "failed to scan job row")
	}

	rec.Pid = int(pid.Int64)
	if exit.Valid {
		code := int(exit.Int64)
		rec.ExitCode = &code
	}
	rec.PollIntervalSeconds = poll.Float64
	if remote.Valid || commit.Valid || dirty.Valid {
		rec.Provenance = &job.Provenance{
			Remote: remote.String,
			Commit: commit.String,
			Dirty:  dirty.Bool,
		}
	}
	return rec, nil
}

// Notifications returns the job's notification history in the order it was
// recorded. An unknown job yields an empty history.
func (s *Store) Notifications(jobID string) ([]notify.Record, error) {
	query := `
		SELECT notifier, event, outcome, error, created_at
		FROM notifications
		WHERE job_id = ?
		ORDER BY id
	`

	rows, err := s.db.Query(query, jobID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list notifications")
	}
	defer rows.Close()

	var records []notify.Record
	for rows.Next() {
		var rec notify.Record
		var errText sql.NullString
		if err := rows.Scan(&rec.Notifier, &rec.Event, &rec.Outcome, &errText, &rec.Timestamp); err != nil {
			return nil, errors.Wrap(err, "failed to scan notification row")
		}
		rec.Error = errText.String
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate notifications")
	}
	return records, nil
}

// Totals reports lifetime row counts for the status display.
func (s *Store) Totals() (jobs, notifications int, err error) {
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM jobs`).Scan(&jobs); err != nil {
		return 0, 0, errors.Wrap(err, "failed to count jobs")
	}
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM notifications`).Scan(&notifications); err != nil {
		return 0, 0, errors.Wrap(err, "failed to count notifications")
	}
	return jobs, notifications, nil
}

// Clear wipes the audit trail and compacts the database file. The live
// registry is untouched.
func (s *Store) Clear() error {
	if _, err := s.db.Exec(`DELETE FROM notifications`); err != nil {
		return errors.Wrap(err, "failed to clear notifications")
	}
	if _, err := s.db.Exec(`DELETE FROM jobs`); err != nil {
		return errors.Wrap(err, "failed to clear jobs")
	}
	if _, err := s.db.Exec(`VACUUM`); err != nil {
		return errors.Wrap(err, "failed to vacuum database")
	}
	return nil
}
