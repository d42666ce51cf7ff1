package mechanism

import (
	"crypto/hmac"
	"encoding/base64"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/xdg-go/scram"
	"github.com/xdg-go/stringprep"
)

const (
	SHA1   = "SCRAM-SHA-1"
	SHA256 = "SCRAM-SHA-256"
	SHA512 = "SCRAM-SHA-512"
)

var hashes = map[string]scram.HashGeneratorFcn{
	SHA1:   scram.SHA1,
	SHA256: scram.SHA256,
	SHA512: scram.SHA512,
}

// SCRAM is the RFC 5802 / RFC 7677 client engine.
type SCRAM struct {
	name    string
	hash    scram.HashGeneratorFcn
	authzID string
	nonce   scram.NonceGeneratorFcn
}

type Option func(*SCRAM)

func WithAuthzID(id string) Option {
	return func(m *SCRAM) { m.authzID = id }
}

// WithNonceGenerator replaces the random client nonce source.
func WithNonceGenerator(fn scram.NonceGeneratorFcn) Option {
	return func(m *SCRAM) { m.nonce = fn }
}

// NewSCRAM returns an engine for the named mechanism; "" selects SCRAM-SHA-256.
func NewSCRAM(name string, opts ...Option) (*SCRAM, error) {
	name = strings.ToUpper(strings.TrimSpace(name))
	if name == "" {
		name = SHA256
	}
	hash, ok := hashes[name]
	if !ok {
		return nil, errors.Wrapf(ErrUnsupportedMechanism, "%q", name)
	}
	m := &SCRAM{name: name, hash: hash}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

func (m *SCRAM) Name() string { return m.name }

func (m *SCRAM) Normalize(text string) (string, error) {
	out, err := stringprep.SASLprep.Prepare(text)
	if err != nil {
		return "", errors.Wrap(err, "mechanism: saslprep")
	}
	return out, nil
}

func (m *SCRAM) BuildFirstMessage(s *Session) error {
	if s.Username == "" {
		return ErrMissingUsername
	}
	if s.ClientFirst != nil {
		return errors.Wrap(ErrOutOfSequence, "client-first already built")
	}
	client, err := m.hash.NewClientUnprepped(s.Username, s.Password, m.authzID)
	if err != nil {
		return errors.Wrap(err, "mechanism: new client")
	}
	if m.nonce != nil {
		client = client.WithNonceGenerator(m.nonce)
	}
	conv := client.NewConversation()
	first, err := conv.Step("")
	if err != nil {
		return errors.Wrap(err, "mechanism: client-first")
	}

	_, bare, err := splitGS2(first)
	if err != nil {
		return err
	}
	attrs, err := parseAttributes(bare)
	if err != nil {
		return errors.Wrap(err, "mechanism: client-first")
	}
	nonce, ok := attrs.get('r')
	if !ok {
		return errors.New("mechanism: client-first without nonce")
	}

	s.client = client
	s.conv = conv
	s.ClientNonce = nonce
	s.ClientFirst = []byte(first)
	return nil
}

func (m *SCRAM) ParseServerMessage(raw []byte, s *Session) error {
	round := s.Round()
	switch round {
	case RoundServerFirst:
		return m.parseServerFirst(raw, s)
	case RoundServerFinal:
		return m.parseServerFinal(raw, s)
	default:
		return parseErr(round, "no server reply expected", ErrOutOfSequence)
	}
}

func (m *SCRAM) parseServerFirst(raw []byte, s *Session) error {
	attrs, err := parseAttributes(string(raw))
	if err != nil {
		return parseErr(RoundServerFirst, "attributes", err)
	}
	if e, ok := attrs.get('e'); ok {
		s.ServerError = e
		return parseErr(RoundServerFirst, "server error "+e, ErrServerRejected)
	}
	if attrs[0].key == 'm' {
		return parseErr(RoundServerFirst, "mandatory extension not supported", nil)
	}

	nonce, ok := attrs.get('r')
	if !ok {
		return parseErr(RoundServerFirst, "missing nonce", nil)
	}
	if !strings.HasPrefix(nonce, s.ClientNonce) || len(nonce) == len(s.ClientNonce) {
		return parseErr(RoundServerFirst, "server nonce does not extend client nonce", nil)
	}
	saltB64, ok := attrs.get('s')
	if !ok {
		return parseErr(RoundServerFirst, "missing salt", nil)
	}
	salt, err := base64.StdEncoding.DecodeString(saltB64)
	if err != nil || len(salt) == 0 {
		return parseErr(RoundServerFirst, "invalid salt", err)
	}
	itersRaw, ok := attrs.get('i')
	if !ok {
		return parseErr(RoundServerFirst, "missing iteration count", nil)
	}
	iters, err := strconv.Atoi(itersRaw)
	if err != nil || iters <= 0 {
		return parseErr(RoundServerFirst, "invalid iteration count "+strconv.Quote(itersRaw), err)
	}

	s.ServerFirst = append([]byte(nil), raw...)
	s.CombinedNonce = nonce
	s.Salt = salt
	s.Iterations = iters
	return nil
}

func (m *SCRAM) parseServerFinal(raw []byte, s *Session) error {
	attrs, err := parseAttributes(string(raw))
	if err != nil {
		return parseErr(RoundServerFinal, "attributes", err)
	}
	if e, ok := attrs.get('e'); ok {
		s.ServerError = e
		return parseErr(RoundServerFinal, "server error "+e, ErrServerRejected)
	}
	v, ok := attrs.get('v')
	if !ok {
		return parseErr(RoundServerFinal, "missing verifier", nil)
	}
	sig, err := base64.StdEncoding.DecodeString(v)
	if err != nil || len(sig) == 0 {
		return parseErr(RoundServerFinal, "invalid verifier", err)
	}

	s.ServerFinal = append([]byte(nil), raw...)
	s.ServerSignature = sig
	return nil
}

func (m *SCRAM) BuildFinalMessage(s *Session) error {
	if s.conv == nil || s.ServerFirst == nil || s.ClientFinal != nil {
		return errors.Wrap(ErrOutOfSequence, "client-final requires a merged server-first")
	}
	final, err := s.conv.Step(string(s.ServerFirst))
	if err != nil {
		return parseErr(RoundServerFirst, "rejected by client conversation", err)
	}
	s.ClientFinal = []byte(final)
	return nil
}

// VerifyServerSignature recomputes ServerSignature = HMAC(ServerKey, AuthMessage).
func (m *SCRAM) VerifyServerSignature(s *Session) bool {
	if s.client == nil || s.ClientFinal == nil || len(s.ServerSignature) == 0 {
		return false
	}
	_, bare, err := splitGS2(string(s.ClientFirst))
	if err != nil {
		return false
	}
	finalNoProof, err := withoutProof(string(s.ClientFinal))
	if err != nil {
		return false
	}
	authMessage := bare + "," + string(s.ServerFirst) + "," + finalNoProof

	creds := s.client.GetStoredCredentials(scram.KeyFactors{Salt: string(s.Salt), Iters: s.Iterations})
	mac := hmac.New(m.hash, creds.ServerKey)
	mac.Write([]byte(authMessage))
	return hmac.Equal(mac.Sum(nil), s.ServerSignature)
}
