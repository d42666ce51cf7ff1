package mechanism

import (
	"strings"

	"github.com/pkg/errors"
)

type attribute struct {
	key   byte
	value string
}

type attributes []attribute

func (a attributes) get(key byte) (string, bool) {
	for _, attr := range a {
		if attr.key == key {
			return attr.value, true
		}
	}
	return "", false
}

// parseAttributes splits "k=v,k=v" into ordered single-letter attributes.
// Values may contain '=' (base64 padding) but never ','.
func parseAttributes(s string) (attributes, error) {
	if s == "" {
		return nil, errors.New("empty message")
	}
	parts := strings.Split(s, ",")
	out := make(attributes, 0, len(parts))
	for i, part := range parts {
		eq := strings.IndexByte(part, '=')
		if eq != 1 {
			return nil, errors.Errorf("attribute %d: expected k=value, got %q", i, part)
		}
		key := part[0]
		if !(key >= 'a' && key <= 'z' || key >= 'A' && key <= 'Z') {
			return nil, errors.Errorf("attribute %d: invalid name %q", i, key)
		}
		out = append(out, attribute{key: key, value: part[eq+1:]})
	}
	return out, nil
}

// splitGS2 separates "n,a=authz,n=user,r=nonce" into header and bare message.
func splitGS2(clientFirst string) (header, bare string, err error) {
	first := strings.IndexByte(clientFirst, ',')
	if first < 0 {
		return "", "", errors.New("client-first without gs2 header")
	}
	second := strings.IndexByte(clientFirst[first+1:], ',')
	if second < 0 {
		return "", "", errors.New("client-first without gs2 header")
	}
	cut := first + 1 + second + 1
	return clientFirst[:cut], clientFirst[cut:], nil
}

// withoutProof trims the trailing ",p=..." from a client-final message.
func withoutProof(clientFinal string) (string, error) {
	idx := strings.LastIndex(clientFinal, ",p=")
	if idx < 0 {
		return "", errors.New("client-final without proof")
	}
	return clientFinal[:idx], nil
}
