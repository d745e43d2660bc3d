package canon

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed ids.
// The version suffix allows a later change of encoding.
const (
	DomainPass  = "vcore/pass/v1"
	DomainTrace = "vcore/trace/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null separator keeps domain and data from running together.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Hash returns the hex SHA-256 of v's canonical JSON under domain.
func Hash(domain string, v any) (string, error) {
	data, err := Marshal(v)
	if err != nil {
		return "", fmt.Errorf("hash %s: %w", domain, err)
	}
	return hashWithDomain(domain, data), nil
}

// MustHash is like Hash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustHash(domain string, v any) string {
	id, err := Hash(domain, v)
	if err != nil {
		panic(err)
	}
	return id
}
