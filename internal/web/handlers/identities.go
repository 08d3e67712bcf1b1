package handlers

import (
	"log"
	"net/http"
	"strings"

	"github.com/kozaktomas/face-attendance/internal/apperror"
	"github.com/kozaktomas/face-attendance/internal/database"
)

type identityStore interface {
	database.IdentityWriter
	database.ShiftReader
}

// IdentitiesHandler handles employee identity endpoints
type IdentitiesHandler struct {
	store identityStore
}

// NewIdentitiesHandler creates a new identities handler
func NewIdentitiesHandler(store identityStore) *IdentitiesHandler {
	return &IdentitiesHandler{store: store}
}

// List returns identities, only active ones unless ?all=true. ?q= keeps names
// containing the query, ignoring case and diacritics.
func (h *IdentitiesHandler) List(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("all") != "true"
	query := database.NormalizeName(r.URL.Query().Get("q"))
	identities, err := h.store.ListIdentities(r.Context(), activeOnly)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	out := make([]IdentityResponse, 0, len(identities))
	for i := range identities {
		if query != "" && !strings.Contains(database.NormalizeName(identities[i].Name), query) {
			continue
		}
		out = append(out, newIdentityResponse(&identities[i]))
	}
	respondJSON(w, http.StatusOK, out)
}

// Get returns one identity
func (h *IdentitiesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	identity, err := h.store.GetIdentity(r.Context(), id)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	if identity == nil {
		respondAppError(w, r, apperror.NotFound("identity %d not found", id))
		return
	}
	respondJSON(w, http.StatusOK, newIdentityResponse(identity))
}

// CreateIdentityRequest registers an employee. Enrollment adds the face later.
type CreateIdentityRequest struct {
	Name       string  `json:"name"`
	ShiftID    *int64  `json:"shift_id,omitempty"`
	BaseSalary float64 `json:"base_salary"`
}

// Create registers a new, not yet enrolled identity
func (h *IdentitiesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateIdentityRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondAppError(w, r, err)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.BaseSalary < 0 {
		respondError(w, http.StatusBadRequest, "base_salary must not be negative")
		return
	}
	if req.ShiftID != nil {
		s, err := h.store.GetShift(r.Context(), *req.ShiftID)
		if err != nil {
			respondAppError(w, r, err)
			return
		}
		if s == nil {
			respondAppError(w, r, apperror.NotFound("shift %d not found", *req.ShiftID))
			return
		}
	}

	identity := &database.Identity{Name: req.Name, ShiftID: req.ShiftID, BaseSalary: req.BaseSalary, Active: true}
	if err := h.store.CreateIdentity(r.Context(), identity); err != nil {
		respondAppError(w, r, err)
		return
	}
	log.Printf("Created identity %d (%s)", identity.ID, sanitizeForLog(identity.Name))
	respondJSON(w, http.StatusCreated, newIdentityResponse(identity))
}

// SetActiveRequest soft-deletes or restores an identity.
type SetActiveRequest struct {
	Active bool `json:"active"`
}

// SetActive deactivates or reactivates an identity. Inactive identities are never matched.
func (h *IdentitiesHandler) SetActive(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	var req SetActiveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondAppError(w, r, err)
		return
	}
	if !h.exists(w, r, id) {
		return
	}
	if err := h.store.SetActive(r.Context(), id, req.Active); err != nil {
		respondAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Delete removes an identity together with its attendance history
func (h *IdentitiesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	if !h.exists(w, r, id) {
		return
	}
	if err := h.store.DeleteIdentity(r.Context(), id); err != nil {
		respondAppError(w, r, err)
		return
	}
	log.Printf("Deleted identity %d", id)
	w.WriteHeader(http.StatusNoContent)
}

func (h *IdentitiesHandler) exists(w http.ResponseWriter, r *http.Request, id int64) bool {
	identity, err := h.store.GetIdentity(r.Context(), id)
	if err != nil {
		respondAppError(w, r, err)
		return false
	}
	if identity == nil {
		respondAppError(w, r, apperror.NotFound("identity %d not found", id))
		return false
	}
	return true
}
