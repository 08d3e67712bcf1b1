package handlers

import (
	"net/http"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/leave"
)

// LeaveHandler handles leave request endpoints
type LeaveHandler struct {
	svc *leave.Service
	loc *time.Location
}

// NewLeaveHandler creates a new leave handler. Dates on the wire are calendar days in loc.
func NewLeaveHandler(svc *leave.Service, loc *time.Location) *LeaveHandler {
	return &LeaveHandler{svc: svc, loc: loc}
}

// SubmitLeaveRequest is a leave submission with YYYY-MM-DD dates.
type SubmitLeaveRequest struct {
	IdentityID int64  `json:"identity_id"`
	Type       string `json:"type"`
	StartDate  string `json:"start_date"`
	EndDate    string `json:"end_date"`
	Reason     string `json:"reason"`
}

// Submit stores a pending leave request
func (h *LeaveHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req SubmitLeaveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondAppError(w, r, err)
		return
	}
	start, err := parseDay(req.StartDate, h.loc)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	end, err := parseDay(req.EndDate, h.loc)
	if err != nil {
		respondAppError(w, r, err)
		return
	}

	l, err := h.svc.Submit(r.Context(), leave.Request{
		IdentityID: req.IdentityID,
		Type:       req.Type,
		StartDate:  start,
		EndDate:    end,
		Reason:     req.Reason,
	})
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, newLeaveResponse(l))
}

// List returns leave requests (?identity_id=&status=)
func (h *LeaveHandler) List(w http.ResponseWriter, r *http.Request) {
	identityID, err := queryInt(r, "identity_id")
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	filter := database.LeaveFilter{IdentityID: int64(identityID)}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status, err := database.ParseLeaveStatus(raw)
		if err != nil {
			respondAppError(w, r, err)
			return
		}
		filter.Status = status
	}

	leaves, err := h.svc.List(r.Context(), filter)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	out := make([]LeaveResponse, 0, len(leaves))
	for i := range leaves {
		out = append(out, newLeaveResponse(&leaves[i]))
	}
	respondJSON(w, http.StatusOK, out)
}

// Approve approves a pending request and marks its days on leave
func (h *LeaveHandler) Approve(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	admin, err := actorID(r)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	l, err := h.svc.Approve(r.Context(), id, admin)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, newLeaveResponse(l))
}

// RejectLeaveRequest carries the optional admin comment.
type RejectLeaveRequest struct {
	Comment string `json:"comment"`
}

// Reject rejects a pending request
func (h *LeaveHandler) Reject(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	admin, err := actorID(r)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	var req RejectLeaveRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			respondAppError(w, r, err)
			return
		}
	}
	l, err := h.svc.Reject(r.Context(), id, admin, req.Comment)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, newLeaveResponse(l))
}
