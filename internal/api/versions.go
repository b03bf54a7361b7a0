package api

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	diffpatch "github.com/sergi/go-diff/diffmatchpatch"

	"github.com/chaitanya5469/CodePilot/internal/db"
)

type CreateVersionRequest struct {
	SessionID   string `json:"session_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Content     string `json:"content"`
	CreatedBy   string `json:"created_by"`
	IsAuto      bool   `json:"is_auto"`
}

type VersionResponse struct {
	ID          int       `json:"id"`
	SessionID   string    `json:"session_id,omitempty"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Content     string    `json:"content,omitempty"` // Omit in list view
	ContentHash string    `json:"content_hash"`
	CreatedBy   string    `json:"created_by,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	IsAuto      bool      `json:"is_auto"`
}

func versionResponse(v *db.Version, withContent bool) VersionResponse {
	resp := VersionResponse{
		ID:          v.ID,
		SessionID:   v.SessionID,
		Name:        v.Name,
		Description: v.Description,
		ContentHash: v.ContentHash,
		CreatedBy:   v.CreatedBy,
		CreatedAt:   v.CreatedAt,
		IsAuto:      v.IsAuto,
	}
	if withContent {
		resp.Content = v.Content
	}
	return resp
}

func hashContent(content string) string {
	h := sha256.Sum256([]byte(content))
	return hex.EncodeToString(h[:8])
}

func versionID(r *http.Request) (int, error) {
	return strconv.Atoi(mux.Vars(r)["id"])
}

func (a *API) ListVersionsHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		errorResponse(w, http.StatusBadRequest, "session_id is required")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if offset < 0 {
		offset = 0
	}

	versions, err := a.database.ListVersions(sessionID, limit, offset)
	if err != nil {
		errorResponse(w, http.StatusInternalServerError, "Failed to list versions")
		return
	}

	response := make([]VersionResponse, len(versions))
	for i := range versions {
		response[i] = versionResponse(&versions[i], false)
	}

	total, _ := a.database.GetVersionCount(sessionID)

	jsonResponse(w, http.StatusOK, map[string]interface{}{
		"versions": response,
		"total":    total,
		"limit":    limit,
		"offset":   offset,
	})
}

// CreateVersionHandler stores a named snapshot. Without explicit content the
// current live document of the session is captured.
func (a *API) CreateVersionHandler(w http.ResponseWriter, r *http.Request) {
	var req CreateVersionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.SessionID == "" {
		errorResponse(w, http.StatusBadRequest, "session_id is required")
		return
	}

	if req.Content == "" {
		if doc, ok := a.sessions.Document(req.SessionID); ok {
			req.Content = doc
		}
	}
	if req.Content == "" {
		errorResponse(w, http.StatusBadRequest, "content is required")
		return
	}

	if req.Name == "" {
		if req.IsAuto {
			req.Name = fmt.Sprintf("Auto-save %s", time.Now().Format("Jan 2, 3:04 PM"))
		} else {
			req.Name = fmt.Sprintf("Version %s", time.Now().Format("Jan 2, 3:04 PM"))
		}
	}

	contentHash := hashContent(req.Content)

	// Skip duplicate auto-saves
	if req.IsAuto {
		latest, err := a.database.GetLatestVersion(req.SessionID)
		if err == nil && latest != nil && latest.ContentHash == contentHash {
			jsonResponse(w, http.StatusOK, versionResponse(latest, false))
			return
		}
	}

	version, err := a.database.CreateVersion(
		req.SessionID, req.Name, req.Description, req.Content, contentHash, req.CreatedBy, req.IsAuto,
	)
	if err != nil {
		errorResponse(w, http.StatusInternalServerError, "Failed to create version")
		return
	}

	if req.IsAuto && a.keepAutoSaves > 0 {
		if _, err := a.database.DeleteOldAutoVersions(req.SessionID, a.keepAutoSaves); err != nil {
			log.Printf("Failed to clean up old auto versions: %v", err)
		}
	}

	jsonResponse(w, http.StatusCreated, versionResponse(version, false))
}

func (a *API) GetVersionHandler(w http.ResponseWriter, r *http.Request) {
	id, err := versionID(r)
	if err != nil {
		errorResponse(w, http.StatusBadRequest, "Invalid version ID")
		return
	}

	version, err := a.database.GetVersion(id)
	if err != nil {
		errorResponse(w, http.StatusInternalServerError, "Failed to get version")
		return
	}
	if version == nil {
		errorResponse(w, http.StatusNotFound, "Version not found")
		return
	}

	jsonResponse(w, http.StatusOK, versionResponse(version, true))
}

func (a *API) DeleteVersionHandler(w http.ResponseWriter, r *http.Request) {
	id, err := versionID(r)
	if err != nil {
		errorResponse(w, http.StatusBadRequest, "Invalid version ID")
		return
	}

	if err := a.database.DeleteVersion(id); err != nil {
		errorResponse(w, http.StatusInternalServerError, "Failed to delete version")
		return
	}

	jsonResponse(w, http.StatusOK, map[string]string{"message": "Version deleted"})
}

// RestoreVersionHandler records a copy of an old version as the newest one
// and returns its content. Live sessions are not modified; clients apply the
// content through the realtime channel.
func (a *API) RestoreVersionHandler(w http.ResponseWriter, r *http.Request) {
	id, err := versionID(r)
	if err != nil {
		errorResponse(w, http.StatusBadRequest, "Invalid version ID")
		return
	}

	version, err := a.database.GetVersion(id)
	if err != nil {
		errorResponse(w, http.StatusInternalServerError, "Failed to get version")
		return
	}
	if version == nil {
		errorResponse(w, http.StatusNotFound, "Version not found")
		return
	}

	restored, err := a.database.CreateVersion(
		version.SessionID,
		fmt.Sprintf("Restored from: %s", version.Name),
		fmt.Sprintf("Restored to version %d (%s)", version.ID, version.Name),
		version.Content,
		version.ContentHash,
		"",
		false,
	)
	if err != nil {
		errorResponse(w, http.StatusInternalServerError, "Failed to create restore version")
		return
	}

	jsonResponse(w, http.StatusOK, map[string]interface{}{
		"message":       "Version restored",
		"restored_from": version.ID,
		"new_version":   restored.ID,
		"session_id":    version.SessionID,
		"content":       version.Content,
	})
}

func (a *API) DiffVersionsHandler(w http.ResponseWriter, r *http.Request) {
	fromID, err := strconv.Atoi(r.URL.Query().Get("from"))
	if err != nil {
		errorResponse(w, http.StatusBadRequest, "Invalid 'from' version ID")
		return
	}

	toID, err := strconv.Atoi(r.URL.Query().Get("to"))
	if err != nil {
		errorResponse(w, http.StatusBadRequest, "Invalid 'to' version ID")
		return
	}

	fromVersion, err := a.database.GetVersion(fromID)
	if err != nil || fromVersion == nil {
		errorResponse(w, http.StatusNotFound, "From version not found")
		return
	}

	toVersion, err := a.database.GetVersion(toID)
	if err != nil || toVersion == nil {
		errorResponse(w, http.StatusNotFound, "To version not found")
		return
	}

	jsonResponse(w, http.StatusOK, map[string]interface{}{
		"from": versionResponse(fromVersion, false),
		"to":   versionResponse(toVersion, false),
		"diff": computeDiff(fromVersion.Content, toVersion.Content),
	})
}

// A single line in a diff
type DiffLine struct {
	Type    string `json:"type"` // "added", "removed", "unchanged"
	Content string `json:"content"`
	OldLine int    `json:"old_line,omitempty"`
	NewLine int    `json:"new_line,omitempty"`
}

// computeDiff produces a line-level diff with 1-based line numbers
func computeDiff(oldContent, newContent string) []DiffLine {
	dmp := diffpatch.New()
	a, b, lines := dmp.DiffLinesToChars(oldContent, newContent)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	result := make([]DiffLine, 0)
	oldLine, newLine := 1, 1
	for _, d := range diffs {
		for _, line := range splitLines(d.Text) {
			switch d.Type {
			case diffpatch.DiffEqual:
				result = append(result, DiffLine{Type: "unchanged", Content: line, OldLine: oldLine, NewLine: newLine})
				oldLine++
				newLine++
			case diffpatch.DiffInsert:
				result = append(result, DiffLine{Type: "added", Content: line, NewLine: newLine})
				newLine++
			case diffpatch.DiffDelete:
				result = append(result, DiffLine{Type: "removed", Content: line, OldLine: oldLine})
				oldLine++
			}
		}
	}
	return result
}

func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(text, "\n"), "\n")
}
