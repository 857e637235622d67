package db

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/warden/errors"
)

func TestOpenWithMigrations(t *testing.T) {
	t.Run("opens database and creates schema", func(t *testing.T) {
		tmpDir := t.TempDir()
		dbPath := filepath.Join(tmpDir, "test.db")

		db, err := OpenWithMigrations(dbPath, nil)
		require.NoError(t, err)
		require.NotNil(t, db)
		defer db.Close()

		for _, table := range []string{"schema_migrations", "jobs", "notifications"} {
			var count int
			err = db.QueryRow(
				"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table,
			).Scan(&count)
			require.NoError(t, err)
			assert.Equal(t, 1, count, "table %s should exist after migrations", table)
		}
	})

	t.Run("schema accepts job and notification rows", func(t *testing.T) {
		tmpDir := t.TempDir()
		dbPath := filepath.Join(tmpDir, "test.db")

		db, err := OpenWithMigrations(dbPath, nil)
		require.NoError(t, err)
		defer db.Close()

		_, err = db.Exec(
			`INSERT INTO jobs (id, number, name, status) VALUES (?, ?, ?, ?)`,
			"b94c1de2-0000-4000-8000-000000000000", 1, "train.sh", "QUEUED",
		)
		require.NoError(t, err)

		_, err = db.Exec(
			`INSERT INTO notifications (job_id, notifier, event, outcome) VALUES (?, ?, ?, ?)`,
			"b94c1de2-0000-4000-8000-000000000000", "logging", "START", "SUCCESS",
		)
		require.NoError(t, err)

		// Foreign keys are on: a notification for an unknown job is rejected
		_, err = db.Exec(
			`INSERT INTO notifications (job_id, notifier, event, outcome) VALUES (?, ?, ?, ?)`,
			"ffffffff-0000-4000-8000-000000000000", "logging", "START", "SUCCESS",
		)
		require.Error(t, err)
	})

	t.Run("wraps migration errors with context", func(t *testing.T) {
		tmpDir := t.TempDir()
		dbPath := filepath.Join(tmpDir, "test.db")

		// Create a conflicting schema_migrations table first
		db, err := Open(dbPath, nil)
		require.NoError(t, err)
		_, err = db.Exec("CREATE TABLE schema_migrations (bad_schema TEXT)")
		require.NoError(t, err)
		db.Close()

		// Recording migration 000 fails against the bad schema
		db, err = OpenWithMigrations(dbPath, nil)
		require.Error(t, err)
		if db != nil {
			db.Close()
		}

		detailed := fmt.Sprintf("%+v", err)
		assert.Contains(t, detailed, "connection.go", "error should have stack trace")
	})

	t.Run("migration errors include stack traces", func(t *testing.T) {
		// A file as the parent "directory" makes Open fail for any user
		tmpDir := t.TempDir()
		blocker := filepath.Join(tmpDir, "blocker")
		require.NoError(t, os.WriteFile(blocker, []byte("not a directory"), 0644))

		db, err := OpenWithMigrations(filepath.Join(blocker, "test.db"), nil)
		require.Error(t, err)
		assert.Nil(t, db)

		stackTrace := errors.GetReportableStackTrace(err)
		assert.NotNil(t, stackTrace, "migration errors should have stack traces")

		detailed := fmt.Sprintf("%+v", err)
		assert.Contains(t, detailed, "connection.go", "stack should reference source file")
		assert.Contains(t, detailed, "stack trace:", "error should include stack trace")
	})
}

func TestMigrate(t *testing.T) {
	t.Run("creates schema_migrations table", func(t *testing.T) {
		tmpDir := t.TempDir()
		dbPath := filepath.Join(tmpDir, "test.db")

		db, err := Open(dbPath, nil)
		require.NoError(t, err)
		defer db.Close()

		err = Migrate(db, nil)
		require.NoError(t, err)

		var count int
		err = db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, count, 1, "applied migrations should be recorded")
	})

	t.Run("is idempotent", func(t *testing.T) {
		tmpDir := t.TempDir()
		dbPath := filepath.Join(tmpDir, "test.db")

		db, err := Open(dbPath, nil)
		require.NoError(t, err)
		defer db.Close()

		err = Migrate(db, nil)
		require.NoError(t, err)

		var countAfterFirst int
		require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&countAfterFirst))

		err = Migrate(db, nil)
		require.NoError(t, err, "running migrations multiple times should be safe")

		var countAfterSecond int
		require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&countAfterSecond))
		assert.Equal(t, countAfterFirst, countAfterSecond)
	})

	t.Run("fails on closed database", func(t *testing.T) {
		tmpDir := t.TempDir()
		dbPath := filepath.Join(tmpDir, "test.db")

		db, err := Open(dbPath, nil)
		require.NoError(t, err)
		db.Close()

		err = Migrate(db, nil)
		require.Error(t, err)
	})
}
