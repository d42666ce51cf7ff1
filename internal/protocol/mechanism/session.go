package mechanism

import "github.com/xdg-go/scram"

// Session is the per-attempt handshake record. A fresh Session is created
// for every attempt and discarded afterwards.
type Session struct {
	Username string
	Password string

	ClientNonce string
	ClientFirst []byte

	ServerFirst   []byte
	CombinedNonce string
	Salt          []byte
	Iterations    int

	ClientFinal []byte

	ServerFinal     []byte
	ServerSignature []byte
	// ServerError holds the e= value when the server refused.
	ServerError string

	client *scram.Client
	conv   *scram.ClientConversation
}

func NewSession(username, password string) *Session {
	return &Session{Username: username, Password: password}
}

// Round reports which server reply is expected next.
func (s *Session) Round() Round {
	switch {
	case s.ClientFirst == nil:
		return RoundIdle
	case s.ServerFirst == nil:
		return RoundServerFirst
	case s.ClientFinal == nil:
		return RoundIdle
	case s.ServerFinal == nil:
		return RoundServerFinal
	default:
		return RoundDone
	}
}
