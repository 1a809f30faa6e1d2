package service

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloud-wave-best-zizon/marketplace-service/internal/domain"
)

func TestAccountService_Register_Uniqueness(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.register(t, "Alice@Example.com", "555-0100")

	tests := []struct {
		name  string
		email string
		phone string
	}{
		{"same email", "alice@example.com", "555-0101"},
		{"email differs only in case", "ALICE@EXAMPLE.COM", "555-0102"},
		{"same phone", "other@example.com", "555-0100"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.accounts.Register(ctx, domain.RegisterRequest{
				FirstName: "Bob", LastName: "B", Email: tt.email, Password: "password123", Phone: tt.phone,
			})
			assert.ErrorIs(t, err, domain.ErrConflict)
		})
	}

	all, err := f.accounts.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1, "failed registrations must not create accounts")
}

func TestAccountService_Register_Validation(t *testing.T) {
	f := newFixture(t)

	_, err := f.accounts.Register(context.Background(), domain.RegisterRequest{
		FirstName: "A", LastName: "B", Email: "a@example.com", Password: "123", Phone: "1",
	})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.accounts.Register(context.Background(), domain.RegisterRequest{
		FirstName: "A", LastName: "B", Email: "a@example.com", Password: strings.Repeat("p", 73), Phone: "1",
	})
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.EqualError(t, err, "password must be at most 72 bytes")

	_, err = f.store.GetAccountByEmail(context.Background(), "a@example.com")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAccountService_PasswordNeverReturned(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	acc := f.register(t, "carol@example.com", "555-0200")

	assert.Empty(t, acc.PasswordHash)

	got, err := f.accounts.Get(ctx, acc.ID)
	require.NoError(t, err)
	assert.Empty(t, got.PasswordHash)

	list, err := f.accounts.List(ctx)
	require.NoError(t, err)
	for _, a := range list {
		assert.Empty(t, a.PasswordHash)
	}

	login, err := f.accounts.Authenticate(ctx, "carol@example.com", "password123")
	require.NoError(t, err)
	assert.Empty(t, login.User.PasswordHash)

	stored, err := f.store.GetAccount(ctx, acc.ID)
	require.NoError(t, err)
	require.NotEmpty(t, stored.PasswordHash)

	data, err := json.Marshal(stored)
	require.NoError(t, err)
	assert.NotContains(t, string(data), stored.PasswordHash)
	assert.NotContains(t, string(data), "password")
}

func TestAccountService_Authenticate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	acc := f.register(t, "dave@example.com", "555-0300")

	login, err := f.accounts.Authenticate(ctx, " DAVE@example.com ", "password123")
	require.NoError(t, err)
	assert.Equal(t, acc.ID, login.User.ID)
	assert.NotEmpty(t, login.Token)

	_, errUnknown := f.accounts.Authenticate(ctx, "nobody@example.com", "password123")
	_, errWrong := f.accounts.Authenticate(ctx, "dave@example.com", "wrong-password")

	assert.ErrorIs(t, errUnknown, domain.ErrUnauthorized)
	assert.ErrorIs(t, errWrong, domain.ErrUnauthorized)
	assert.Equal(t, errUnknown.Error(), errWrong.Error(), "unknown email and bad password must be indistinguishable")
}

func TestAccountService_Update(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	acc := f.register(t, "erin@example.com", "555-0400")
	f.register(t, "frank@example.com", "555-0401")

	newPass := "new-password"
	age := 30
	updated, err := f.accounts.Update(ctx, acc.ID, acc.ID, domain.AccountPatch{Password: &newPass, Age: &age})
	require.NoError(t, err)
	assert.Equal(t, 30, *updated.Age)
	assert.Empty(t, updated.PasswordHash)

	_, err = f.accounts.Authenticate(ctx, "erin@example.com", "password123")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	_, err = f.accounts.Authenticate(ctx, "erin@example.com", newPass)
	assert.NoError(t, err)

	taken := "FRANK@example.com"
	_, err = f.accounts.Update(ctx, acc.ID, acc.ID, domain.AccountPatch{Email: &taken})
	assert.ErrorIs(t, err, domain.ErrConflict)

	tooLong := strings.Repeat("p", 73)
	_, err = f.accounts.Update(ctx, acc.ID, acc.ID, domain.AccountPatch{Password: &tooLong})
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = f.accounts.Authenticate(ctx, "erin@example.com", newPass)
	assert.NoError(t, err, "a rejected password change leaves the old one in place")

	_, err = f.accounts.Update(ctx, "someone-else", acc.ID, domain.AccountPatch{Age: &age})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = f.accounts.Update(ctx, "ghost", "ghost", domain.AccountPatch{Age: &age})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAccountService_Delete(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	acc := f.register(t, "gina@example.com", "555-0500")

	assert.ErrorIs(t, f.accounts.Delete(ctx, "other", acc.ID), domain.ErrForbidden)
	require.NoError(t, f.accounts.Delete(ctx, acc.ID, acc.ID))
	assert.ErrorIs(t, f.accounts.Delete(ctx, acc.ID, acc.ID), domain.ErrNotFound)

	_, err := f.accounts.Get(ctx, acc.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
