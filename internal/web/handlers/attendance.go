package handlers

import (
	"net/http"
	"time"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/database"
)

// AttendanceHandler handles scan and attendance report endpoints
type AttendanceHandler struct {
	svc *attendance.Service
	now func() time.Time
}

// NewAttendanceHandler creates a new attendance handler
func NewAttendanceHandler(svc *attendance.Service) *AttendanceHandler {
	return &AttendanceHandler{svc: svc, now: time.Now}
}

// MatchedIdentity names the person a scan was attributed to.
type MatchedIdentity struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// ScanResponse is the decision for one scan.
type ScanResponse struct {
	Action   attendance.Action         `json:"action"`
	Status   database.AttendanceStatus `json:"status,omitempty"`
	Reason   string                    `json:"reason,omitempty"`
	Record   *RecordResponse           `json:"record,omitempty"`
	Identity *MatchedIdentity          `json:"identity,omitempty"`
	Distance float64                   `json:"distance,omitempty"`
}

func newScanResponse(res *attendance.Result) ScanResponse {
	out := ScanResponse{
		Action:   res.Action,
		Status:   res.Status,
		Reason:   res.Reason,
		Record:   newRecordResponse(res.Record),
		Distance: res.Distance,
	}
	if res.Identity != nil {
		out.Identity = &MatchedIdentity{ID: res.Identity.ID, Name: res.Identity.Name}
	}
	return out
}

// Scan recognizes the face in the uploaded image and records attendance
func (h *AttendanceHandler) Scan(w http.ResponseWriter, r *http.Request) {
	image, err := readImage(w, r)
	if err != nil {
		respondAppError(w, r, err)
		return
	}

	res, err := h.svc.Scan(r.Context(), image)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, newScanResponse(res))
}

// TransitionRequest records attendance for a known identity without a scan.
type TransitionRequest struct {
	IdentityID int64      `json:"identity_id"`
	At         *time.Time `json:"at,omitempty"`
}

// Transition applies a manual scan for an identity, used when recognition is unavailable
func (h *AttendanceHandler) Transition(w http.ResponseWriter, r *http.Request) {
	var req TransitionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondAppError(w, r, err)
		return
	}
	if req.IdentityID <= 0 {
		respondError(w, http.StatusBadRequest, "identity_id is required")
		return
	}
	at := h.now()
	if req.At != nil {
		at = *req.At
	}

	res, err := h.svc.Transition(r.Context(), req.IdentityID, at)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, newScanResponse(res))
}

// Summary returns per-status counts for a period (?from=YYYY-MM-DD&to=YYYY-MM-DD)
func (h *AttendanceHandler) Summary(w http.ResponseWriter, r *http.Request) {
	from, to, err := queryPeriod(r, h.svc.Location(), h.now())
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	sum, err := h.svc.Summary(r.Context(), from, to)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, sum)
}

// History lists one identity's records for a period
func (h *AttendanceHandler) History(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	from, to, err := queryPeriod(r, h.svc.Location(), h.now())
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	records, err := h.svc.History(r.Context(), id, from, to)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, newRecordResponses(records))
}
