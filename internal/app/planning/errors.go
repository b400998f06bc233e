package planning

import (
	"strings"

	"github.com/pkg/errors"
)

// Kind discriminates planning failures so the UI can offer a targeted remedy
// instead of a generic retry prompt.
type Kind string

const (
	// KindTransport means the request never reached the server or no
	// response was received.
	KindTransport Kind = "transport"
	// KindBudget means the server rejected the preference because the
	// budget cannot cover the requested trip.
	KindBudget Kind = "budget"
	// KindValidation covers every other server-side rejection.
	KindValidation Kind = "validation"
)

// Error is a classified planning failure. Message is already user-facing.
type Error struct {
	Kind    Kind
	Status  int
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// KindOf extracts the classification from an error chain. The second return
// is false for errors that did not originate from the planning client.
func KindOf(err error) (Kind, bool) {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind, true
	}
	return "", false
}

// budgetMarkers are the known budget-shortfall signatures in server error
// bodies. The upstream planner emits both English and French wordings.
var budgetMarkers = []string{
	"insufficient budget",
	"budget insuffisant",
}

func isBudgetShortfall(message string) bool {
	lower := strings.ToLower(message)
	for _, marker := range budgetMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
