package service

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"sort"
	"strings"
)

// SHA256TokenService implements ports.TokenService.
//
// The merchant request token is SHA-256 over the values of the signed root
// parameters plus the team password, with values concatenated in ascending
// ASCII order of their parameter names. The password participates under the
// key "Password". Lowercase hex output.
type SHA256TokenService struct{}

// NewSHA256TokenService creates a new token service.
func NewSHA256TokenService() *SHA256TokenService {
	return &SHA256TokenService{}
}

// Build computes the token for the given parameter set and password.
func (s *SHA256TokenService) Build(params map[string]string, password string) string {
	keys := make([]string, 0, len(params)+1)
	for k := range params {
		if k == "Password" {
			continue
		}
		keys = append(keys, k)
	}
	keys = append(keys, "Password")
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		if k == "Password" {
			b.WriteString(password)
			continue
		}
		b.WriteString(params[k])
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// Verify compares the expected token against the presented one in constant
// time.
func (s *SHA256TokenService) Verify(params map[string]string, password, token string) bool {
	expected := s.Build(params, password)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(strings.ToLower(token))) == 1
}
