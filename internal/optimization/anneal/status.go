package anneal

import "fmt"

// Status reports why a run stopped.
type Status int

const (
	// StatusCooled means the best objective stopped changing over the last
	// four cooling steps.
	StatusCooled Status = iota
	// StatusFinalTemperature means the temperature fell below Tf.
	StatusFinalTemperature
	// StatusMaxEval means the evaluation budget was spent.
	StatusMaxEval
	// StatusMaxIter means the cooling-step budget was spent.
	StatusMaxIter
	// StatusMaxAccept means the acceptance budget was spent.
	StatusMaxAccept
	// StatusNotMinimum overrides any of the codes above when the final
	// current point is worse than the best point encountered.
	StatusNotMinimum
	// StatusCancelled means the caller's context was done.
	StatusCancelled
)

var statusNames = map[Status]string{
	StatusCooled:           "cooled",
	StatusFinalTemperature: "final_temperature",
	StatusMaxEval:          "max_eval",
	StatusMaxIter:          "max_iter",
	StatusMaxAccept:        "max_accept",
	StatusNotMinimum:       "not_minimum",
	StatusCancelled:        "cancelled",
}

var statusMessages = map[Status]string{
	StatusCooled:           "Points no longer changing",
	StatusFinalTemperature: "Cooled to final temperature",
	StatusMaxEval:          "Maximum function evaluations",
	StatusMaxIter:          "Maximum cooling iterations reached",
	StatusMaxAccept:        "Maximum accepted query locations reached",
	StatusNotMinimum:       "Final point not the minimum amongst encountered points",
	StatusCancelled:        "Cancelled by caller",
}

// String returns a short machine-friendly name.
func (s Status) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Message returns the human-readable cause.
func (s Status) Message() string {
	if m, ok := statusMessages[s]; ok {
		return m
	}
	return "Unknown status"
}

// Success reports whether the run stopped by cooling rather than a budget.
func (s Status) Success() bool {
	return s == StatusCooled || s == StatusFinalTemperature
}

// isCap reports whether s is one of the budget predicates.
func (s Status) isCap() bool {
	return s == StatusMaxEval || s == StatusMaxIter || s == StatusMaxAccept
}
