package auth

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/cloud-wave-best-zizon/marketplace-service/internal/domain"
)

func TestPasswordHasher_HashAndCompare(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)

	hash1, err := h.Hash("s3cret!")
	require.NoError(t, err)
	hash2, err := h.Hash("s3cret!")
	require.NoError(t, err)

	assert.NotEqual(t, "s3cret!", hash1)
	assert.NotEqual(t, hash1, hash2, "each hash must use a fresh salt")

	ok, err := h.Compare(hash1, "s3cret!")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.Compare(hash1, "wrong")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPasswordHasher_RejectsOverlongPassword(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)

	_, err := h.Hash(strings.Repeat("x", MaxPasswordBytes+1))
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.EqualError(t, err, "password must be at most 72 bytes")

	_, err = h.Hash(strings.Repeat("x", MaxPasswordBytes))
	assert.NoError(t, err)
}

func TestPasswordHasher_CompareMissing(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost + 1)

	assert.False(t, h.CompareMissing("no-such-account"))
	assert.False(t, h.CompareMissing("anything"))

	cost, err := bcrypt.Cost(h.dummy)
	require.NoError(t, err)
	assert.Equal(t, h.cost, cost, "the dummy hash must cost as much as a real one")
}

func TestNewPasswordHasher_OutOfRangeCost(t *testing.T) {
	assert.Equal(t, DefaultBcryptCost, NewPasswordHasher(0).cost)
	assert.Equal(t, DefaultBcryptCost, NewPasswordHasher(99).cost)
	assert.Equal(t, bcrypt.MinCost, NewPasswordHasher(bcrypt.MinCost).cost)
}

func TestGenerateOTP(t *testing.T) {
	pattern := regexp.MustCompile(`^[0-9]{6}$`)
	seen := make(map[string]struct{})
	for i := 0; i < 50; i++ {
		otp, err := GenerateOTP()
		require.NoError(t, err)
		assert.Regexp(t, pattern, otp)
		seen[otp] = struct{}{}
	}
	assert.Greater(t, len(seen), 1, "codes must not be a shared constant")
}

func TestVerifyOTP(t *testing.T) {
	hash := HashOTP("482913")

	assert.Len(t, hash, 64)
	assert.True(t, VerifyOTP("482913", hash))
	assert.False(t, VerifyOTP("000000", hash))
	assert.False(t, VerifyOTP("", hash))
	assert.False(t, VerifyOTP("482913", ""))
}

func TestTokenManager_IssueVerify(t *testing.T) {
	m := NewTokenManager("test-secret", time.Hour, nil)

	token, err := m.Issue("acc-1", "buyer@example.com")
	require.NoError(t, err)

	id, err := m.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "acc-1", id.ID)
	assert.Equal(t, "buyer@example.com", id.Email)
	assert.NotEmpty(t, id.TokenID)
	assert.WithinDuration(t, time.Now().Add(time.Hour), id.ExpiresAt, 5*time.Second)
}

func TestTokenManager_Verify_Rejects(t *testing.T) {
	m := NewTokenManager("test-secret", time.Hour, nil)
	good, err := m.Issue("acc-1", "a@example.com")
	require.NoError(t, err)

	other := NewTokenManager("other-secret", time.Hour, nil)
	forged, err := other.Issue("acc-1", "a@example.com")
	require.NoError(t, err)

	expiredMgr := NewTokenManager("test-secret", time.Hour, nil)
	expiredMgr.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, err := expiredMgr.Issue("acc-1", "a@example.com")
	require.NoError(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{ID: "acc-1"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"malformed", "not-a-token"},
		{"tampered", good + "x"},
		{"wrong secret", forged},
		{"expired", expired},
		{"alg none", none},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Verify(context.Background(), tt.token)
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrInvalidToken))
		})
	}
}

func TestTokenManager_Revoke(t *testing.T) {
	ctx := context.Background()
	m := NewTokenManager("test-secret", time.Hour, NewMemoryDenylist())

	token, err := m.Issue("acc-1", "a@example.com")
	require.NoError(t, err)
	id, err := m.Verify(ctx, token)
	require.NoError(t, err)

	require.NoError(t, m.Revoke(ctx, id))

	_, err = m.Verify(ctx, token)
	assert.ErrorIs(t, err, domain.ErrInvalidToken)

	fresh, err := m.Issue("acc-1", "a@example.com")
	require.NoError(t, err)
	_, err = m.Verify(ctx, fresh)
	assert.NoError(t, err)
}

func TestMemoryDenylist_Expiry(t *testing.T) {
	ctx := context.Background()
	d := NewMemoryDenylist()
	now := time.Now()
	d.now = func() time.Time { return now }

	require.NoError(t, d.Add(ctx, "jti-1", now.Add(time.Minute)))
	ok, err := d.Contains(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	ok, err = d.Contains(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, ok)
}
