package handshake

// State is one step of the two-round SCRAM exchange.
type State int

const (
	StateStart State = iota
	StateSentFirst
	StateGotFirstReply
	StateSentFinal
	StateGotFinalReply
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "START"
	case StateSentFirst:
		return "SENT_FIRST"
	case StateGotFirstReply:
		return "GOT_FIRST_REPLY"
	case StateSentFinal:
		return "SENT_FINAL"
	case StateGotFinalReply:
		return "GOT_FINAL_REPLY"
	case StateSucceeded:
		return "SUCCEEDED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// FailureKind classifies why an attempt failed.
type FailureKind int

const (
	FailureNone FailureKind = iota
	// FailureTransport is a send/receive error below the protocol.
	FailureTransport
	// FailureNoReply is a receive that completed with no bytes at all.
	FailureNoReply
	// FailureProtocol is a malformed or refused server message, or a
	// credential the mechanism could not normalize.
	FailureProtocol
	// FailureVerification is a well-formed server-final whose signature
	// does not match.
	FailureVerification
	// FailureCanceled is a context cancellation mid-attempt.
	FailureCanceled
)

func (k FailureKind) String() string {
	switch k {
	case FailureNone:
		return "none"
	case FailureTransport:
		return "transport"
	case FailureNoReply:
		return "no_reply"
	case FailureProtocol:
		return "protocol"
	case FailureVerification:
		return "verification"
	case FailureCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}
