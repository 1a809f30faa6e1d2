package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/cloud-wave-best-zizon/marketplace-service/internal/domain"
)

const DefaultTokenTTL = 24 * time.Hour

// Identity is the caller as asserted by a verified session token.
type Identity struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	TokenID   string    `json:"-"`
	ExpiresAt time.Time `json:"-"`
}

type Claims struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// TokenManager issues and verifies HS256 session tokens. Validity is a
// function of signature and expiry, plus the denylist when one is set.
type TokenManager struct {
	secret   []byte
	ttl      time.Duration
	denylist Denylist
	now      func() time.Time
}

func NewTokenManager(secret string, ttl time.Duration, denylist Denylist) *TokenManager {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenManager{
		secret:   []byte(secret),
		ttl:      ttl,
		denylist: denylist,
		now:      time.Now,
	}
}

func (m *TokenManager) Issue(accountID, email string) (string, error) {
	now := m.now()
	claims := Claims{
		ID:    accountID,
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   accountID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (m *TokenManager) Verify(ctx context.Context, token string) (*Identity, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, &domain.Error{Kind: domain.KindInvalidToken, Message: "invalid token", Err: err}
	}
	if claims.ID == "" {
		return nil, &domain.Error{Kind: domain.KindInvalidToken, Message: "invalid token", Err: errors.New("missing account id")}
	}

	if m.denylist != nil && claims.RegisteredClaims.ID != "" {
		revoked, err := m.denylist.Contains(ctx, claims.RegisteredClaims.ID)
		if err != nil {
			return nil, fmt.Errorf("check denylist: %w", err)
		}
		if revoked {
			return nil, &domain.Error{Kind: domain.KindInvalidToken, Message: "invalid token", Err: errors.New("token revoked")}
		}
	}

	return &Identity{
		ID:        claims.ID,
		Email:     claims.Email,
		TokenID:   claims.RegisteredClaims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Revoke denylists the token behind id until it would have expired anyway.
func (m *TokenManager) Revoke(ctx context.Context, id *Identity) error {
	if m.denylist == nil || id == nil || id.TokenID == "" {
		return nil
	}
	return m.denylist.Add(ctx, id.TokenID, id.ExpiresAt)
}
