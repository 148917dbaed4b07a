package auth

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/core/domain"
	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/core/ports/driven"
)

// Ensure AdminAuth implements driven.AdminAuth
var _ driven.AdminAuth = (*AdminAuth)(nil)

// AdminAuth verifies the operator bearer token against a bcrypt hash.
// Only the hash is kept in memory.
type AdminAuth struct {
	hash []byte
}

// NewAdminAuth accepts either a bcrypt hash ("$2a$..."/"$2b$...") or a plain
// token, which is hashed once with cost.
func NewAdminAuth(tokenOrHash string, cost int) (*AdminAuth, error) {
	if tokenOrHash == "" {
		return nil, fmt.Errorf("%w: admin token is required", domain.ErrInvalidInput)
	}
	if isBcryptHash(tokenOrHash) {
		if _, err := bcrypt.Cost([]byte(tokenOrHash)); err != nil {
			return nil, fmt.Errorf("%w: admin token hash: %v", domain.ErrInvalidInput, err)
		}
		return &AdminAuth{hash: []byte(tokenOrHash)}, nil
	}

	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(tokenOrHash), cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash admin token: %w", err)
	}
	return &AdminAuth{hash: hash}, nil
}

// Verify reports domain.ErrUnauthorized unless token matches
func (a *AdminAuth) Verify(token string) error {
	if token == "" {
		return domain.ErrUnauthorized
	}
	err := bcrypt.CompareHashAndPassword(a.hash, []byte(token))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return domain.ErrUnauthorized
	}
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	return nil
}

func isBcryptHash(s string) bool {
	return strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$")
}
