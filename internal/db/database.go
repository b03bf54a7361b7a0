package db

import (
	"database/sql"
	"log"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

type Database struct {
	db *sql.DB
}

// A named snapshot of a session's document, saved on request
type Version struct {
	ID          int       `json:"id"`
	SessionID   string    `json:"session_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Content     string    `json:"content"`
	ContentHash string    `json:"content_hash"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	IsAuto      bool      `json:"is_auto"` // Auto-saved vs manual
}

func New(dbPath string) (*Database, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}

	log.Printf("Database initialized at %s", dbPath)
	return &Database{db: db}, nil
}

func createTables(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS document_versions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		name TEXT NOT NULL,
		description TEXT DEFAULT '',
		content TEXT NOT NULL,
		content_hash TEXT NOT NULL,
		created_by TEXT DEFAULT '',
		is_auto BOOLEAN DEFAULT FALSE,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_document_versions_session_id ON document_versions(session_id);
	CREATE INDEX IF NOT EXISTS idx_document_versions_created_at ON document_versions(session_id, created_at DESC);
	`

	_, err := db.Exec(schema)
	return err
}

func (d *Database) Close() error {
	return d.db.Close()
}

const versionColumns = `id, session_id, name, description, content, content_hash, created_by, is_auto, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanVersion(row scanner) (*Version, error) {
	var v Version
	err := row.Scan(&v.ID, &v.SessionID, &v.Name, &v.Description, &v.Content, &v.ContentHash, &v.CreatedBy, &v.IsAuto, &v.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// CreateVersion saves a new version of a session document
func (d *Database) CreateVersion(sessionID, name, description, content, contentHash, createdBy string, isAuto bool) (*Version, error) {
	result, err := d.db.Exec(`
		INSERT INTO document_versions (session_id, name, description, content, content_hash, created_by, is_auto)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, sessionID, name, description, content, contentHash, createdBy, isAuto)
	if err != nil {
		return nil, err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}

	return d.GetVersion(int(id))
}

// GetVersion returns nil without error when the version does not exist
func (d *Database) GetVersion(id int) (*Version, error) {
	row := d.db.QueryRow(`SELECT `+versionColumns+` FROM document_versions WHERE id = ?`, id)

	v, err := scanVersion(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return v, err
}

// ListVersions returns a session's versions, newest first
func (d *Database) ListVersions(sessionID string, limit, offset int) ([]Version, error) {
	rows, err := d.db.Query(`
		SELECT `+versionColumns+`
		FROM document_versions
		WHERE session_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, sessionID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []Version
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		versions = append(versions, *v)
	}
	return versions, rows.Err()
}

func (d *Database) GetVersionCount(sessionID string) (int, error) {
	var count int
	err := d.db.QueryRow("SELECT COUNT(*) FROM document_versions WHERE session_id = ?", sessionID).Scan(&count)
	return count, err
}

func (d *Database) GetLatestVersion(sessionID string) (*Version, error) {
	row := d.db.QueryRow(`
		SELECT `+versionColumns+`
		FROM document_versions
		WHERE session_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, sessionID)

	v, err := scanVersion(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return v, err
}

func (d *Database) DeleteVersion(id int) error {
	_, err := d.db.Exec("DELETE FROM document_versions WHERE id = ?", id)
	return err
}

// DeleteOldAutoVersions removes a session's auto-saved versions beyond the
// newest keepCount and reports how many rows went away.
func (d *Database) DeleteOldAutoVersions(sessionID string, keepCount int) (int, error) {
	result, err := d.db.Exec(`
		DELETE FROM document_versions
		WHERE session_id = ? AND is_auto = TRUE AND id NOT IN (
			SELECT id FROM document_versions
			WHERE session_id = ? AND is_auto = TRUE
			ORDER BY created_at DESC, id DESC
			LIMIT ?
		)
	`, sessionID, sessionID, keepCount)
	if err != nil {
		return 0, err
	}
	n, err := result.RowsAffected()
	return int(n), err
}

// Returns sessions that have stored versions, most recently saved first
func (d *Database) ListSessionIDs(limit int) ([]string, error) {
	rows, err := d.db.Query(`
		SELECT session_id FROM document_versions
		GROUP BY session_id
		ORDER BY MAX(id) DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Stats

func (d *Database) GetStats() (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	var versionCount int
	if err := d.db.QueryRow("SELECT COUNT(*) FROM document_versions").Scan(&versionCount); err != nil {
		return nil, err
	}
	stats["version_count"] = versionCount

	var sessionCount int
	if err := d.db.QueryRow("SELECT COUNT(DISTINCT session_id) FROM document_versions").Scan(&sessionCount); err != nil {
		return nil, err
	}
	stats["session_count"] = sessionCount

	return stats, nil
}
