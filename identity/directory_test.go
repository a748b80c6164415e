/*
directory_test.go - Registration, authentication, and role resolution
*/
package identity_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nsarob/Save-a-penny/identity"
	"github.com/Nsarob/Save-a-penny/procure"
)

func newDirectory(t *testing.T) *identity.Directory {
	t.Helper()
	return identity.NewDirectory(identity.NewMemoryStore())
}

func register(t *testing.T, d *identity.Directory, email string, role procure.Role) *identity.User {
	t.Helper()
	u, err := d.Register(context.Background(), identity.Registration{
		Email:    email,
		Name:     "Test User",
		Password: "password123",
		Role:     string(role),
	})
	require.NoError(t, err)
	return u
}

func TestRegisterHashesPasswordAndNormalizesEmail(t *testing.T) {
	// GIVEN: A registration with mixed-case, padded email
	d := newDirectory(t)
	u, err := d.Register(context.Background(), identity.Registration{
		Email:    "  Alice@SaveAPenny.dev ",
		Name:     "Alice Uwase",
		Password: "password123",
		Role:     "staff",
	})
	require.NoError(t, err)

	// THEN: Email is normalized and the plaintext never stored
	assert.Equal(t, "alice@saveapenny.dev", u.Email)
	assert.NotEqual(t, "password123", u.PasswordHash)
	assert.NotEmpty(t, u.PasswordHash)
	assert.Equal(t, procure.RoleStaff, u.Role)
	assert.NotEmpty(t, u.ID)
}

func TestRegisterValidation(t *testing.T) {
	d := newDirectory(t)
	ctx := context.Background()

	cases := []struct {
		name string
		in   identity.Registration
	}{
		{"empty email", identity.Registration{Name: "X", Password: "password123", Role: "staff"}},
		{"malformed email", identity.Registration{Email: "not-an-email", Name: "X", Password: "password123", Role: "staff"}},
		{"empty name", identity.Registration{Email: "a@b.dev", Password: "password123", Role: "staff"}},
		{"short password", identity.Registration{Email: "a@b.dev", Name: "X", Password: "short", Role: "staff"}},
		{"unknown role", identity.Registration{Email: "a@b.dev", Name: "X", Password: "password123", Role: "superuser"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := d.Register(ctx, tc.in)
			assert.ErrorIs(t, err, procure.ErrValidation)
		})
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	d := newDirectory(t)
	register(t, d, "alice@saveapenny.dev", procure.RoleStaff)

	_, err := d.Register(context.Background(), identity.Registration{
		Email:    "ALICE@saveapenny.dev", // normalizes to the same address
		Name:     "Other Alice",
		Password: "password123",
		Role:     "staff",
	})
	assert.ErrorIs(t, err, identity.ErrEmailTaken)
}

func TestAuthenticate(t *testing.T) {
	d := newDirectory(t)
	u := register(t, d, "alice@saveapenny.dev", procure.RoleStaff)
	ctx := context.Background()

	// Correct credentials
	got, err := d.Authenticate(ctx, "alice@saveapenny.dev", "password123")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	// Wrong password and unknown email are indistinguishable
	_, err = d.Authenticate(ctx, "alice@saveapenny.dev", "wrongpassword")
	assert.ErrorIs(t, err, identity.ErrInvalidCredentials)
	_, err = d.Authenticate(ctx, "nobody@saveapenny.dev", "password123")
	assert.ErrorIs(t, err, identity.ErrInvalidCredentials)
}

func TestResolveRole(t *testing.T) {
	d := newDirectory(t)
	u := register(t, d, "dana@saveapenny.dev", procure.RoleFinance)
	ctx := context.Background()

	role, err := d.ResolveRole(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, procure.RoleFinance, role)

	// An identity without an account is a permission failure, so a stale
	// token stops working at the next authorization check
	_, err = d.ResolveRole(ctx, "deleted-user")
	assert.ErrorIs(t, err, procure.ErrPermissionDenied)
}

func TestProfile(t *testing.T) {
	d := newDirectory(t)
	u := register(t, d, "alice@saveapenny.dev", procure.RoleStaff)

	got, err := d.Profile(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, u.Email, got.Email)

	_, err = d.Profile(context.Background(), "missing")
	assert.ErrorIs(t, err, identity.ErrUserNotFound)
}
