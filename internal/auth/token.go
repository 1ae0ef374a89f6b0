package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const defaultTokenTTL = time.Hour

var ErrInvalidToken = errors.New("invalid token")

// TokenService issues and validates HS256 bearer tokens. Issuance is
// stateless; the denylist is the one piece of shared state, consulted on
// verify so logout takes effect before natural expiry.
type TokenService struct {
	secret   []byte
	ttl      time.Duration
	denylist Denylist
}

func NewTokenService(secret []byte, ttl time.Duration, denylist Denylist) *TokenService {
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return &TokenService{secret: secret, ttl: ttl, denylist: denylist}
}

func (s *TokenService) Issue(userID string) (string, error) {
	tokenID, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate token id: %w", err)
	}

	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"sub": userID,
		"jti": tokenID.String(),
		"iat": now.Unix(),
		"exp": now.Add(s.ttl).Unix(),
		"typ": "access",
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	encoded, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign jwt: %w", err)
	}

	return encoded, nil
}

// Verify returns the subject user id. Malformed encoding, bad signature,
// expiry and revocation all collapse to ErrInvalidToken; the caller maps
// that to 401 without distinguishing the cause.
func (s *TokenService) Verify(ctx context.Context, encoded string) (string, error) {
	claims, err := s.parse(encoded)
	if err != nil {
		return "", ErrInvalidToken
	}

	tokenID, _ := claims["jti"].(string)
	if tokenID == "" {
		return "", ErrInvalidToken
	}
	revoked, err := s.denylist.IsRevoked(ctx, tokenID)
	if err != nil {
		return "", fmt.Errorf("check revocation: %w", err)
	}
	if revoked {
		return "", ErrInvalidToken
	}

	userID, _ := claims["sub"].(string)
	if userID == "" {
		return "", ErrInvalidToken
	}

	return userID, nil
}

// Invalidate records the token id in the denylist until the token's own
// expiry. Tokens that are already expired or unparsable are a no-op:
// the signature check would reject them anyway, and logout is documented
// as idempotent-success.
func (s *TokenService) Invalidate(ctx context.Context, encoded string) error {
	claims, err := s.parse(encoded)
	if err != nil {
		return nil
	}

	tokenID, _ := claims["jti"].(string)
	if tokenID == "" {
		return nil
	}

	expiresAt := time.Now().UTC().Add(s.ttl)
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		expiresAt = exp.Time.UTC()
	}

	if err := s.denylist.Revoke(ctx, tokenID, expiresAt); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}

	return nil
}

func (s *TokenService) parse(encoded string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(encoded, claims, func(token *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if tokenType, _ := claims["typ"].(string); tokenType != "access" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
