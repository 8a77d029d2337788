package collector

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidState - returns when a lifecycle operation is called in a
	// state which does not allow it, for example Restart before Shutdown.
	ErrInvalidState = errors.New("collector.Server: operation is not allowed in current state")
)

// BindError - failure to create the listening socket or to bind it to
// the configured port. The current bind attempt is fatal, the caller
// decides whether to retry with Bind or Restart.
type BindError struct {
	Port uint
	Err  error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("collector.Server: bind port %d: %v", e.Port, e.Err)
}

func (e *BindError) Unwrap() error {
	return e.Err
}

// ListenError - failure to bring a bound server into the listening
// state.
type ListenError struct {
	Err error
}

func (e *ListenError) Error() string {
	return fmt.Sprintf("collector.Server: listen: %v", e.Err)
}

func (e *ListenError) Unwrap() error {
	return e.Err
}
