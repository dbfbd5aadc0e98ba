package store

import "cliniq/internal/models"

const (
	ActionCallNext = "call_next"
	ActionComplete = "complete"
)

// Each action applies to visits in exactly one status. Completion keeps the
// visit in "called" and only stamps service_end.
var transitionMap = map[string]string{
	ActionCallNext: models.StatusWaiting,
	ActionComplete: models.StatusCalled,
}

// FromStatus returns the status a visit must hold for action to apply.
// Stores use it as the status predicate of the guarded UPDATE.
func FromStatus(action string) (string, bool) {
	from, ok := transitionMap[action]
	return from, ok
}

// ValidTransition reports whether action may be applied to a visit in
// fromStatus.
func ValidTransition(action, fromStatus string) bool {
	from, ok := transitionMap[action]
	return ok && from == fromStatus
}
