package handlers

import (
	"errors"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// ══════════════════════════════════════════════════════════════════════════════
// OPERATOR AUTHENTICATION
// ══════════════════════════════════════════════════════════════════════════════

// OperatorTokenHeader carries the plain operator token on mutating requests.
const OperatorTokenHeader = "X-Operator-Token"

// ErrInvalidTokenHash is returned for a hash bcrypt cannot parse.
var ErrInvalidTokenHash = errors.New("operator token hash is not a bcrypt hash")

// OperatorAuth checks the operator token against a bcrypt hash.
// A nil OperatorAuth lets every request through.
type OperatorAuth struct {
	hash []byte
}

// NewOperatorAuth returns nil when hash is empty, which disables the check.
func NewOperatorAuth(hash string) (*OperatorAuth, error) {
	hash = strings.TrimSpace(hash)
	if hash == "" {
		return nil, nil
	}
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return nil, ErrInvalidTokenHash
	}
	return &OperatorAuth{hash: []byte(hash)}, nil
}

// HashToken produces the value for SECURITY_OPERATOR_TOKEN_HASH.
func HashToken(token string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// Verify reports whether token matches the configured hash.
func (a *OperatorAuth) Verify(token string) bool {
	if a == nil {
		return true
	}
	if token == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword(a.hash, []byte(token)) == nil
}

// Wrap guards next. Rejections are passed to deny so the caller controls the body.
func (a *OperatorAuth) Wrap(next http.HandlerFunc, deny func(w http.ResponseWriter, r *http.Request, reason string)) http.HandlerFunc {
	if a == nil {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get(OperatorTokenHeader)
		if token == "" {
			deny(w, r, "operator token is required")
			return
		}
		if !a.Verify(token) {
			deny(w, r, "invalid operator token")
			return
		}
		next(w, r)
	}
}
