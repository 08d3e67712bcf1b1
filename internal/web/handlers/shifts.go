package handlers

import (
	"net/http"
	"time"

	"github.com/kozaktomas/face-attendance/internal/apperror"
	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/database"
)

// ShiftsHandler handles shift endpoints
type ShiftsHandler struct {
	store      database.ShiftReader
	attendance *attendance.Service
	now        func() time.Time
}

// NewShiftsHandler creates a new shifts handler
func NewShiftsHandler(store database.ShiftReader, svc *attendance.Service) *ShiftsHandler {
	return &ShiftsHandler{store: store, attendance: svc, now: time.Now}
}

// List returns all shifts in declaration order
func (h *ShiftsHandler) List(w http.ResponseWriter, r *http.Request) {
	shifts, err := h.store.ListShifts(r.Context())
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	out := make([]ShiftResponse, 0, len(shifts))
	for i := range shifts {
		out = append(out, *newShiftResponse(&shifts[i]))
	}
	respondJSON(w, http.StatusOK, out)
}

// CurrentShiftResponse is the shift whose window contains At, if any.
type CurrentShiftResponse struct {
	At    time.Time      `json:"at"`
	Shift *ShiftResponse `json:"shift"`
}

// Current resolves the shift for now or for ?at=<RFC3339>
func (h *ShiftsHandler) Current(w http.ResponseWriter, r *http.Request) {
	at := h.now()
	if raw := r.URL.Query().Get("at"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respondAppError(w, r, apperror.Input("invalid time %q, want RFC 3339", raw))
			return
		}
		at = t
	}

	s, err := h.attendance.ResolveShift(r.Context(), at)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, CurrentShiftResponse{At: at.In(h.attendance.Location()), Shift: newShiftResponse(s)})
}
