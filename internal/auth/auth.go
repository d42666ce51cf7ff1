// Package auth holds the client credentials presented during SCRAM.
//
// It intentionally avoids normalization; that belongs to the mechanism.
package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"os"
	"strings"
)

var (
	ErrUsernameRequired = errors.New("auth: username required")
	ErrPasswordRequired = errors.New("auth: password required")
	ErrPasswordSource   = errors.New("auth: password source unreadable")
)

// Credentials is a username/password pair as typed by the operator.
type Credentials struct {
	Username string
	Password string
}

func (c Credentials) Validate() error {
	if strings.TrimSpace(c.Username) == "" {
		return ErrUsernameRequired
	}
	if c.Password == "" {
		return ErrPasswordRequired
	}
	return nil
}

// Equal compares in constant time with respect to the password.
func (c Credentials) Equal(other Credentials) bool {
	userEq := subtle.ConstantTimeCompare([]byte(c.Username), []byte(other.Username))
	passEq := subtle.ConstantTimeCompare([]byte(c.Password), []byte(other.Password))
	return userEq&passEq == 1
}

func (c Credentials) String() string {
	return fmt.Sprintf("user=%q password=<redacted>", c.Username)
}

// PasswordSource resolves a password from, in order: Value, Env, File.
type PasswordSource struct {
	Value string
	Env   string
	File  string
}

func (p PasswordSource) Resolve() (string, error) {
	if p.Value != "" {
		return p.Value, nil
	}
	if name := strings.TrimSpace(p.Env); name != "" {
		if v, ok := os.LookupEnv(name); ok && v != "" {
			return v, nil
		}
	}
	if path := strings.TrimSpace(p.File); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrPasswordSource, err)
		}
		v := strings.TrimRight(string(raw), "\r\n")
		if v != "" {
			return v, nil
		}
	}
	return "", ErrPasswordRequired
}
