// Package attendance decides check-in and check-out for recognized identities.
package attendance

import (
	"github.com/kozaktomas/face-attendance/internal/apperror"
	"github.com/kozaktomas/face-attendance/internal/database"
)

// Action is the outcome of a scan.
type Action string

const (
	ActionCheckIn   Action = "check_in"
	ActionCheckOut  Action = "check_out"
	ActionDuplicate Action = "duplicate"
	ActionRejected  Action = "rejected"
)

// Reasons attached to duplicate and rejected results.
const (
	ReasonCooldown    = "cooldown"
	ReasonDayComplete = "day_complete"
	ReasonOnLeave     = "on_leave"
)

// AfterCheckoutPolicy decides what a scan after the day's check-out does
// once the cooldown has passed.
type AfterCheckoutPolicy string

const (
	// AfterCheckoutIgnore reports the scan as a duplicate of the finished day.
	AfterCheckoutIgnore AfterCheckoutPolicy = "ignore"
	// AfterCheckoutReject reports the scan as rejected with ReasonDayComplete.
	AfterCheckoutReject AfterCheckoutPolicy = "reject"
)

// ParseAfterCheckoutPolicy parses a policy name. Empty selects ignore.
func ParseAfterCheckoutPolicy(s string) (AfterCheckoutPolicy, error) {
	switch p := AfterCheckoutPolicy(database.NormalizeToken(s)); p {
	case "":
		return AfterCheckoutIgnore, nil
	case AfterCheckoutIgnore, AfterCheckoutReject:
		return p, nil
	}
	return "", apperror.Input("unknown after-checkout policy %q, want ignore or reject", s)
}

// Result is the decision for one scan. Record is the day's record after the
// decision, nil only when nothing exists for the day.
type Result struct {
	Action   Action                     `json:"action"`
	Status   database.AttendanceStatus  `json:"status,omitempty"`
	Reason   string                     `json:"reason,omitempty"`
	Record   *database.AttendanceRecord `json:"record,omitempty"`
	Identity *database.Identity         `json:"-"`
	Distance float64                    `json:"distance,omitempty"`
}

// Wrote reports whether the decision persisted anything.
func (r *Result) Wrote() bool {
	return r.Action == ActionCheckIn || r.Action == ActionCheckOut
}
