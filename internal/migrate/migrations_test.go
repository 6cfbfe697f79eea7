package migrate

import (
	"testing"

	"screenline/internal/db"
)

func TestMigrateIsIdempotent(t *testing.T) {
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer conn.Close()

	if err := Migrate(conn); err != nil {
		t.Fatalf("first migrate: %v", err)
	}
	if err := Migrate(conn); err != nil {
		t.Fatalf("second migrate: %v", err)
	}

	var version int
	if err := conn.QueryRow(`PRAGMA user_version`).Scan(&version); err != nil {
		t.Fatalf("read version: %v", err)
	}
	if version != 1 {
		t.Fatalf("user_version = %d, want 1", version)
	}

	// the drafts table exists and accepts the (scope,name) upsert shape
	if _, err := conn.Exec(
		`INSERT INTO drafts(scope,name,value_json,updated_at) VALUES ('s','k','{}','2024-06-01T12:00:00Z')
		 ON CONFLICT(scope,name) DO UPDATE SET value_json=excluded.value_json`); err != nil {
		t.Fatalf("insert draft: %v", err)
	}
}
