package db

import (
	"io/fs"
	"path/filepath"
	"strings"
	"testing"
)

func openTestDB(t *testing.T, path string) *DB {
	t.Helper()
	database, err := New(path, nil)
	if err != nil {
		t.Fatalf("New(%s) error = %v", path, err)
	}
	return database
}

func TestNew_Schema(t *testing.T) {
	database := openTestDB(t, filepath.Join(t.TempDir(), "nested", "dreamboard.db"))
	defer database.Close()

	objects := map[string]string{
		"stories":         "table",
		"jobs":            "table",
		"config":          "table",
		"_migrations":     "table",
		"idx_jobs_status": "index",
		"idx_jobs_story":  "index",
	}
	for name, kind := range objects {
		var got string
		err := database.Conn().QueryRow(`SELECT type FROM sqlite_master WHERE name = ?`, name).Scan(&got)
		if err != nil {
			t.Errorf("%s %s not found: %v", kind, name, err)
			continue
		}
		if got != kind {
			t.Errorf("%s type = %s, want %s", name, got, kind)
		}
	}
}

func TestNew_Pragmas(t *testing.T) {
	database := openTestDB(t, filepath.Join(t.TempDir(), "dreamboard.db"))
	defer database.Close()

	var journal string
	var foreignKeys, busy int
	conn := database.Conn()
	if err := conn.QueryRow(`PRAGMA journal_mode`).Scan(&journal); err != nil {
		t.Fatalf("journal_mode: %v", err)
	}
	if err := conn.QueryRow(`PRAGMA foreign_keys`).Scan(&foreignKeys); err != nil {
		t.Fatalf("foreign_keys: %v", err)
	}
	if err := conn.QueryRow(`PRAGMA busy_timeout`).Scan(&busy); err != nil {
		t.Fatalf("busy_timeout: %v", err)
	}
	if journal != "wal" || foreignKeys != 1 || busy != busyTimeoutMS {
		t.Errorf("pragmas = journal %s, foreign_keys %d, busy_timeout %d", journal, foreignKeys, busy)
	}
}

func TestDSN(t *testing.T) {
	got := dsn("/data/dreamboard.db")
	if !strings.HasPrefix(got, "file:/data/dreamboard.db?") {
		t.Fatalf("dsn = %s", got)
	}
	for _, want := range []string{"_txlock=immediate", "journal_mode%28WAL%29", "foreign_keys%281%29"} {
		if !strings.Contains(got, want) {
			t.Errorf("dsn %s missing %s", got, want)
		}
	}
}

func TestMigrate_RunsOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dreamboard.db")
	files, _ := fs.Glob(migrationsFS, "migrations/*.sql")

	openTestDB(t, path).Close()
	database := openTestDB(t, path)
	defer database.Close()

	var count int
	if err := database.Conn().QueryRow(`SELECT COUNT(*) FROM _migrations`).Scan(&count); err != nil {
		t.Fatalf("count migrations: %v", err)
	}
	if count != len(files) {
		t.Errorf("recorded migrations = %d, want %d", count, len(files))
	}

	n, err := database.migrate(t.Context())
	if err != nil || n != 0 {
		t.Errorf("migrate() on current schema = %d, %v, want 0, nil", n, err)
	}
}

func TestNew_FailsInterruptedJobs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dreamboard.db")

	first := openTestDB(t, path)
	mustExec(t, first, `INSERT INTO stories (id, title, document, created_at, updated_at)
		VALUES ('story-1', 'Lighthouse', '{}', datetime('now'), datetime('now'))`)
	mustExec(t, first, `INSERT INTO jobs (id, type, status, story_id, created_at, updated_at) VALUES
		('running-job', 'generate', 'running', 'story-1', datetime('now'), datetime('now')),
		('queued-job', 'merge', 'pending', 'story-1', datetime('now'), datetime('now'))`)
	first.Close()

	second := openTestDB(t, path)
	defer second.Close()

	tests := []struct {
		id, status, errMsg string
	}{
		{"running-job", "failed", "interrupted by restart"},
		{"queued-job", "pending", ""},
	}
	for _, tt := range tests {
		var status, errMsg string
		err := second.Conn().QueryRow(`SELECT status, COALESCE(error, '') FROM jobs WHERE id = ?`, tt.id).Scan(&status, &errMsg)
		if err != nil {
			t.Fatalf("query %s: %v", tt.id, err)
		}
		if status != tt.status || errMsg != tt.errMsg {
			t.Errorf("%s = (%s, %q), want (%s, %q)", tt.id, status, errMsg, tt.status, tt.errMsg)
		}
	}
}

func TestDeleteStory_CascadesJobs(t *testing.T) {
	database := openTestDB(t, filepath.Join(t.TempDir(), "dreamboard.db"))
	defer database.Close()

	mustExec(t, database, `INSERT INTO stories (id, title, document, created_at, updated_at) VALUES ('s', 't', '{}', 'x', 'x')`)
	mustExec(t, database, `INSERT INTO jobs (id, type, status, story_id, created_at, updated_at) VALUES ('j', 'merge', 'pending', 's', 'x', 'x')`)
	mustExec(t, database, `DELETE FROM stories WHERE id = 's'`)

	var count int
	if err := database.Conn().QueryRow(`SELECT COUNT(*) FROM jobs`).Scan(&count); err != nil {
		t.Fatalf("count jobs: %v", err)
	}
	if count != 0 {
		t.Errorf("jobs after story delete = %d, want 0", count)
	}
}

func mustExec(t *testing.T, d *DB, query string) {
	t.Helper()
	if _, err := d.Conn().Exec(query); err != nil {
		t.Fatalf("exec %q: %v", query, err)
	}
}
