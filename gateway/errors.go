package gateway

import (
	"errors"
	"fmt"
)

// ErrNoSession is returned when a call is attempted before any session is installed.
var ErrNoSession = errors.New("no active session")

// NetworkError is any failed remote call: transport failure, timeout, non-2xx status or
// an undecodable body.
type NetworkError struct {
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: backend returned %d: %s", e.Op, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// IsNetwork reports whether err came from a failed remote call.
func IsNetwork(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne) || errors.Is(err, ErrNoSession)
}
