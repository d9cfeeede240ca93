package group

import (
	"fmt"
	"strings"
)

// AggregateError wraps multiple errors (for CollectAll mode), in the order
// their tasks were submitted.
type AggregateError struct {
	Errors []error
}

func (a *AggregateError) Error() string {
	switch len(a.Errors) {
	case 0:
		return "no errors"
	case 1:
		return a.Errors[0].Error()
	}

	msgs := make([]string, len(a.Errors))
	for i, err := range a.Errors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("%d errors: [%s]", len(a.Errors), strings.Join(msgs, "; "))
}

func (a *AggregateError) Unwrap() []error {
	return a.Errors
}
