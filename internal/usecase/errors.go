package usecase

import (
	"errors"
	"strings"
)

// ValidationErrors is returned by Execute when the lead is rejected before any
// sink is contacted.
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	return "validation failed: " + strings.Join(v.Messages(), ", ")
}

// Messages returns the human readable form of each error, in order.
func (v ValidationErrors) Messages() []string {
	out := make([]string, 0, len(v))
	for _, e := range v {
		out = append(out, e.Message)
	}
	return out
}

func IsValidationError(err error) bool {
	var ve ValidationErrors
	return errors.As(err, &ve)
}
