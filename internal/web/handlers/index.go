package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// IndexHandler handles identity index maintenance
type IndexHandler struct {
	rebuilder func() database.IndexRebuilder
}

// NewIndexHandler creates a new index handler backed by the registered rebuilder
func NewIndexHandler() *IndexHandler {
	return &IndexHandler{rebuilder: database.GetIndexRebuilder}
}

// RebuildIndexResponse represents the response from rebuilding the identity index
type RebuildIndexResponse struct {
	Success       bool  `json:"success"`
	IdentityCount int   `json:"identity_count"`
	DurationMs    int64 `json:"duration_ms"`
}

// Rebuild reloads the in-memory identity index from the database
func (h *IndexHandler) Rebuild(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()

	rebuilder := h.rebuilder()
	if rebuilder == nil || !rebuilder.IsIndexEnabled() {
		respondError(w, http.StatusServiceUnavailable, "identity index is not enabled")
		return
	}

	if err := rebuilder.RebuildIndex(r.Context()); err != nil {
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("failed to rebuild identity index: %v", err))
		return
	}

	// Save index to disk if path is configured
	if err := rebuilder.SaveIndex(); err != nil {
		// Log warning but don't fail - index is usable in memory
		fmt.Printf("Warning: failed to save identity index to disk: %v\n", err)
	}

	respondJSON(w, http.StatusOK, RebuildIndexResponse{
		Success:       true,
		IdentityCount: rebuilder.IndexCount(),
		DurationMs:    time.Since(startTime).Milliseconds(),
	})
}
