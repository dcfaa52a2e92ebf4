package discovery

import (
	"fmt"

	"github.com/alanyoungcy/optiprice/internal/domain"
)

// ErrorKind classifies why the live path could not produce an outcome.
type ErrorKind string

const (
	// KindUnavailable means the connectivity probe did not report the
	// matching service as connected.
	KindUnavailable ErrorKind = "connectivity_unavailable"
	// KindRequestFailed covers network errors, non-2xx answers and bodies
	// that could not be decoded.
	KindRequestFailed ErrorKind = "discovery_request_failed"
)

// Error is a recoverable discovery failure. It never escapes the controller:
// every Error is turned into the simulated path.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Outcome is the result of the live path: either a (possibly absent) match or
// an Error. A nil Match with a nil Err is the "no match found" outcome.
type Outcome struct {
	Match *domain.MatchResult
	Err   *Error
}

// Matched wraps a service answer. m may be nil when nothing matched.
func Matched(m *domain.MatchResult) Outcome {
	return Outcome{Match: m}
}

// Failed wraps a discovery error.
func Failed(kind ErrorKind, err error) Outcome {
	return Outcome{Err: &Error{Kind: kind, Err: err}}
}

// OrElse hands a failed outcome to fallback and reports whether it did.
// Successful outcomes pass through untouched.
func (o Outcome) OrElse(fallback func(*Error)) bool {
	if o.Err == nil {
		return false
	}
	fallback(o.Err)
	return true
}
