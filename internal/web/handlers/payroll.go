package handlers

import (
	"net/http"

	"github.com/kozaktomas/face-attendance/internal/apperror"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/payroll"
)

// PayrollHandler handles payroll endpoints
type PayrollHandler struct {
	calc *payroll.Calculator
}

// NewPayrollHandler creates a new payroll handler
func NewPayrollHandler(calc *payroll.Calculator) *PayrollHandler {
	return &PayrollHandler{calc: calc}
}

// Compute returns unconfirmed breakdowns (?month=&year=[&identity_id=]).
// Without identity_id every active identity is computed.
func (h *PayrollHandler) Compute(w http.ResponseWriter, r *http.Request) {
	month, err := queryInt(r, "month")
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	year, err := queryInt(r, "year")
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	identityID, err := queryInt(r, "identity_id")
	if err != nil {
		respondAppError(w, r, err)
		return
	}

	if identityID > 0 {
		b, err := h.calc.Compute(r.Context(), int64(identityID), month, year)
		if err != nil {
			respondAppError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, []payroll.Breakdown{*b})
		return
	}

	all, err := h.calc.ComputeAll(r.Context(), month, year, nil)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, all)
}

// ConfirmPayrollRequest is a breakdown plus the administrator's adjustments.
type ConfirmPayrollRequest struct {
	Breakdown payroll.Breakdown `json:"breakdown"`
	Overrides payroll.Overrides `json:"overrides"`
}

// Confirm recomputes and stores a breakdown
func (h *PayrollHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	admin, err := actorID(r)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	var req ConfirmPayrollRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondAppError(w, r, err)
		return
	}
	if req.Breakdown.IdentityID <= 0 {
		respondAppError(w, r, apperror.Input("breakdown.identity_id is required"))
		return
	}

	rec, err := h.calc.Confirm(r.Context(), req.Breakdown, req.Overrides, admin)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, newPayrollResponse(rec))
}

// History lists confirmed payroll (?identity_id=&month=&year=)
func (h *PayrollHandler) History(w http.ResponseWriter, r *http.Request) {
	var filter database.PayrollFilter
	for name, dst := range map[string]*int{"month": &filter.Month, "year": &filter.Year} {
		n, err := queryInt(r, name)
		if err != nil {
			respondAppError(w, r, err)
			return
		}
		*dst = n
	}
	identityID, err := queryInt(r, "identity_id")
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	filter.IdentityID = int64(identityID)

	records, err := h.calc.History(r.Context(), filter)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	out := make([]PayrollResponse, 0, len(records))
	for i := range records {
		out = append(out, newPayrollResponse(&records[i]))
	}
	respondJSON(w, http.StatusOK, out)
}
