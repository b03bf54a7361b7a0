package db

import (
	"path/filepath"
	"testing"
)

func setupTestDB(t *testing.T) (*Database, func()) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "nested", "test.db")
	db, err := New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}

	cleanup := func() {
		db.Close()
	}

	return db, cleanup
}

func TestDatabaseCreation(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	if db == nil {
		t.Fatal("Database should not be nil")
	}
}

func TestVersionOperations(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	v, err := db.CreateVersion("S", "First", "initial import", "print(1)", "hash-1", "User 1234", false)
	if err != nil {
		t.Fatalf("Failed to create version: %v", err)
	}
	if v.ID == 0 || v.SessionID != "S" || v.Content != "print(1)" || v.IsAuto {
		t.Errorf("Unexpected version: %+v", v)
	}
	if v.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}

	got, err := db.GetVersion(v.ID)
	if err != nil {
		t.Fatalf("Failed to get version: %v", err)
	}
	if got == nil || got.Name != "First" || got.CreatedBy != "User 1234" {
		t.Errorf("Unexpected fetched version: %+v", got)
	}

	missing, err := db.GetVersion(9999)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if missing != nil {
		t.Error("Non-existent version should return nil")
	}

	if err := db.DeleteVersion(v.ID); err != nil {
		t.Fatalf("Failed to delete version: %v", err)
	}
	got, err = db.GetVersion(v.ID)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got != nil {
		t.Error("Deleted version should not exist")
	}
}

func TestListVersions(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	for i := 0; i < 5; i++ {
		name := "v" + string(rune('a'+i))
		if _, err := db.CreateVersion("S", name, "", "content "+name, name, "", false); err != nil {
			t.Fatalf("Failed to create version: %v", err)
		}
	}
	if _, err := db.CreateVersion("other", "x", "", "x", "x", "", false); err != nil {
		t.Fatalf("Failed to create version: %v", err)
	}

	versions, err := db.ListVersions("S", 10, 0)
	if err != nil {
		t.Fatalf("Failed to list versions: %v", err)
	}
	if len(versions) != 5 {
		t.Fatalf("Expected 5 versions, got %d", len(versions))
	}
	if versions[0].Name != "ve" {
		t.Errorf("Expected newest version first, got %s", versions[0].Name)
	}

	versions, err = db.ListVersions("S", 2, 3)
	if err != nil {
		t.Fatalf("Failed to list versions: %v", err)
	}
	if len(versions) != 2 {
		t.Errorf("Expected 2 versions with offset, got %d", len(versions))
	}

	count, err := db.GetVersionCount("S")
	if err != nil {
		t.Fatalf("Failed to count versions: %v", err)
	}
	if count != 5 {
		t.Errorf("Expected count 5, got %d", count)
	}

	latest, err := db.GetLatestVersion("S")
	if err != nil {
		t.Fatalf("Failed to get latest version: %v", err)
	}
	if latest == nil || latest.Name != "ve" {
		t.Errorf("Expected latest version ve, got %+v", latest)
	}

	none, err := db.GetLatestVersion("empty")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if none != nil {
		t.Error("Session without versions should have no latest version")
	}
}

func TestDeleteOldAutoVersions(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	manual, err := db.CreateVersion("S", "manual", "", "m", "m", "", false)
	if err != nil {
		t.Fatalf("Failed to create version: %v", err)
	}
	for i := 0; i < 6; i++ {
		if _, err := db.CreateVersion("S", "auto", "", "a", "a", "", true); err != nil {
			t.Fatalf("Failed to create version: %v", err)
		}
	}

	removed, err := db.DeleteOldAutoVersions("S", 2)
	if err != nil {
		t.Fatalf("Failed to prune versions: %v", err)
	}
	if removed != 4 {
		t.Errorf("Expected 4 pruned versions, got %d", removed)
	}

	count, _ := db.GetVersionCount("S")
	if count != 3 {
		t.Errorf("Expected 3 remaining versions, got %d", count)
	}

	kept, _ := db.GetVersion(manual.ID)
	if kept == nil {
		t.Error("Manual versions must never be pruned")
	}
}

func TestListSessionIDs(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	for _, id := range []string{"a", "b", "a", "c"} {
		if _, err := db.CreateVersion(id, "v", "", "x", "x", "", true); err != nil {
			t.Fatalf("Failed to create version: %v", err)
		}
	}

	ids, err := db.ListSessionIDs(10)
	if err != nil {
		t.Fatalf("Failed to list sessions: %v", err)
	}
	if len(ids) != 3 || ids[0] != "c" {
		t.Errorf("Expected [c a b], got %v", ids)
	}
}

func TestStats(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	for i := 0; i < 5; i++ {
		session := "stats-" + string(rune('a'+i%3))
		if _, err := db.CreateVersion(session, "v", "", "x", "x", "", false); err != nil {
			t.Fatalf("Failed to create version: %v", err)
		}
	}

	stats, err := db.GetStats()
	if err != nil {
		t.Fatalf("Failed to get stats: %v", err)
	}

	if stats["version_count"].(int) != 5 {
		t.Errorf("Expected 5 versions, got %v", stats["version_count"])
	}
	if stats["session_count"].(int) != 3 {
		t.Errorf("Expected 3 sessions, got %v", stats["session_count"])
	}
}
