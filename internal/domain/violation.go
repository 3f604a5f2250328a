package domain

import "github.com/google/uuid"

// ViolationKind names an advisory finding of the tour scheduler.
type ViolationKind string

const (
	ViolationInsufficientTravelBuffer ViolationKind = "insufficient_travel_buffer"
	ViolationMaxTravelExceeded        ViolationKind = "max_travel_exceeded"
	ViolationRestDay                  ViolationKind = "rest_day"
	ViolationWeeklyUnderload          ViolationKind = "weekly_underload"
	ViolationWeeklyOverload           ViolationKind = "weekly_overload"
	ViolationBelowProfitTarget        ViolationKind = "below_profit_target"

	// NoticeDistanceUnknown is informational: the travel check for a pair of
	// stops was skipped because the distance provider could not answer.
	NoticeDistanceUnknown ViolationKind = "distance_unknown"
)

// Violation is one warning attached to a tour's read model. StopID points at
// the stop the warning is about; tour-wide findings leave it nil.
type Violation struct {
	Kind    ViolationKind `json:"kind"`
	StopID  *uuid.UUID    `json:"stop_id,omitempty"`
	Week    string        `json:"week,omitempty"`
	Message string        `json:"message"`
}

// CountsAgainstScore reports whether the warning is a constraint violation
// rather than a notice.
func (v Violation) CountsAgainstScore() bool {
	return v.Kind != NoticeDistanceUnknown
}
