package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/face-attendance/internal/enrollment"
	"github.com/kozaktomas/face-attendance/internal/facematch"
)

// EnrollmentHandler handles multi-angle face enrollment endpoints
type EnrollmentHandler struct {
	svc *enrollment.Service
}

// NewEnrollmentHandler creates a new enrollment handler
func NewEnrollmentHandler(svc *enrollment.Service) *EnrollmentHandler {
	return &EnrollmentHandler{svc: svc}
}

// StartEnrollmentRequest opens an enrollment session.
type StartEnrollmentRequest struct {
	IdentityID int64 `json:"identity_id"`
}

// Start opens a session for an identity
func (h *EnrollmentHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req StartEnrollmentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondAppError(w, r, err)
		return
	}
	p, err := h.svc.Start(r.Context(), req.IdentityID)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, p)
}

// Status returns the captured and remaining steps of a session
func (h *EnrollmentHandler) Status(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Status(chi.URLParam(r, "sessionId"))
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// Capture accepts the image for one pose step
func (h *EnrollmentHandler) Capture(w http.ResponseWriter, r *http.Request) {
	step, err := facematch.ParsePose(chi.URLParam(r, "step"))
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	image, err := readImage(w, r)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	c, err := h.svc.Capture(r.Context(), chi.URLParam(r, "sessionId"), step, image)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

// Finish stores the averaged reference vector and closes the session
func (h *EnrollmentHandler) Finish(w http.ResponseWriter, r *http.Request) {
	identity, err := h.svc.Finish(r.Context(), chi.URLParam(r, "sessionId"))
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, newIdentityResponse(identity))
}

// Cancel drops a session
func (h *EnrollmentHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.svc.Cancel(chi.URLParam(r, "sessionId"))
	w.WriteHeader(http.StatusNoContent)
}
