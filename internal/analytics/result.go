package analytics

import (
	"fmt"
)

// Result is either an analyzed value or a degraded outcome. Value is nil
// whenever Status is StatusInsufficientData.
type Result[T any] struct {
	Status Status `json:"status"`
	Value  *T     `json:"value,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// Analyzed wraps a computed value.
func Analyzed[T any](v T) Result[T] {
	return Result[T]{Status: StatusAnalyzed, Value: &v}
}

// Insufficient builds a degraded result.
func Insufficient[T any](reason string) Result[T] {
	return Result[T]{Status: StatusInsufficientData, Reason: reason}
}

// Get returns the value and whether the analysis produced one.
func (r Result[T]) Get() (T, bool) {
	if r.Status != StatusAnalyzed || r.Value == nil {
		var zero T
		return zero, false
	}
	return *r.Value, true
}

// OK reports whether the result carries a value.
func (r Result[T]) OK() bool {
	_, ok := r.Get()
	return ok
}

// Guard runs fn and turns a panic, an error or a malformed result into
// insufficient_data so one analyzer cannot take down its siblings.
func Guard[T any](fn func() (Result[T], error)) (res Result[T]) {
	defer func() {
		if rec := recover(); rec != nil {
			res = Insufficient[T](fmt.Sprintf("analyzer failed: %v", rec))
		}
	}()

	out, err := fn()
	if err != nil {
		return Insufficient[T](err.Error())
	}
	if out.Status == StatusAnalyzed && out.Value == nil {
		return Insufficient[T]("analyzer returned no value")
	}
	if out.Status != StatusAnalyzed && out.Status != StatusInsufficientData {
		return Insufficient[T](fmt.Sprintf("unknown status %q", out.Status))
	}
	return out
}
