package mechanism

// Engine produces outgoing message bodies and validates incoming ones.
// Implementations must not retain a Session between calls.
type Engine interface {
	// Normalize canonicalizes a credential. It is idempotent.
	Normalize(text string) (string, error)
	// BuildFirstMessage fills s.ClientFirst.
	BuildFirstMessage(s *Session) error
	// ParseServerMessage merges the reply for the current round into s.
	// Malformed input yields an error matching ErrProtocolParse.
	ParseServerMessage(raw []byte, s *Session) error
	// BuildFinalMessage fills s.ClientFinal; the first reply must be merged.
	BuildFinalMessage(s *Session) error
	// VerifyServerSignature reports whether the server proved knowledge of
	// the password. It does not modify s.
	VerifyServerSignature(s *Session) bool
}

// Round names which server reply a Session is waiting for.
type Round int

const (
	RoundIdle Round = iota
	RoundServerFirst
	RoundServerFinal
	RoundDone
)

func (r Round) String() string {
	switch r {
	case RoundIdle:
		return "idle"
	case RoundServerFirst:
		return "server-first"
	case RoundServerFinal:
		return "server-final"
	case RoundDone:
		return "done"
	default:
		return "unknown"
	}
}
