package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/core/domain"
	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/core/ports/driven"
)

// Ensure CallbackTokens implements driven.CallbackTokens
var _ driven.CallbackTokens = (*CallbackTokens)(nil)

const callbackAudience = "search-callback"

// callbackClaims binds a token to one search session
type callbackClaims struct {
	SessionID string `json:"session_id"`
	jwt.RegisteredClaims
}

// CallbackTokens mints HS256 JWTs handed to the workflow with each dispatch.
// The workflow presents the token on its callback; it only authorizes
// results for the session it was issued for.
type CallbackTokens struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewCallbackTokens creates a token minter with the given HMAC secret
func NewCallbackTokens(secret, issuer string) (*CallbackTokens, error) {
	if len(secret) < 16 {
		return nil, fmt.Errorf("%w: callback secret must be at least 16 bytes", domain.ErrInvalidInput)
	}
	return &CallbackTokens{secret: []byte(secret), issuer: issuer, now: time.Now}, nil
}

// Issue returns a signed token for sessionID that expires after ttl
func (c *CallbackTokens) Issue(sessionID string, ttl time.Duration) (string, error) {
	now := c.now()
	claims := callbackClaims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   sessionID,
			Audience:  jwt.ClaimStrings{callbackAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign callback token: %w", err)
	}
	return signed, nil
}

// Verify validates the token and returns its session id.
// Expired tokens return domain.ErrTokenExpired; anything else malformed returns domain.ErrTokenInvalid.
func (c *CallbackTokens) Verify(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &callbackClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return c.secret, nil
	},
		jwt.WithAudience(callbackAudience),
		jwt.WithIssuer(c.issuer),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", domain.ErrTokenExpired
		}
		return "", fmt.Errorf("%w: %v", domain.ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*callbackClaims)
	if !ok || !token.Valid || claims.SessionID == "" || claims.SessionID != claims.Subject {
		return "", domain.ErrTokenInvalid
	}
	return claims.SessionID, nil
}
