package mechanism

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrProtocolParse        = errors.New("mechanism: malformed server message")
	ErrServerRejected       = errors.New("mechanism: server rejected authentication")
	ErrOutOfSequence        = errors.New("mechanism: message out of sequence")
	ErrMissingUsername      = errors.New("mechanism: username required")
	ErrUnsupportedMechanism = errors.New("mechanism: unsupported mechanism")
)

// ParseError reports a server reply that is not well formed for the round
// it arrived in. It always matches ErrProtocolParse.
type ParseError struct {
	Round  Round
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("mechanism: parse %s: %s: %v", e.Round, e.Reason, e.Err)
	}
	return fmt.Sprintf("mechanism: parse %s: %s", e.Round, e.Reason)
}

func (e *ParseError) Unwrap() error { return e.Err }

func (e *ParseError) Is(target error) bool { return target == ErrProtocolParse }

func parseErr(round Round, reason string, err error) error {
	return &ParseError{Round: round, Reason: reason, Err: err}
}
