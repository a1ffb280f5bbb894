package query

import "fmt"

// NotFoundError reports that a single-record lookup found nothing.
type NotFoundError struct {
	Entity string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found", e.Entity)
}

// BadParamsError reports a caller-supplied filter combination that can
// never match anything (spec.md §4.4's "strict validator" filters).
type BadParamsError struct {
	Message string
}

func (e *BadParamsError) Error() string {
	return e.Message
}
