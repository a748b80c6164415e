/*
token_test.go - Access token issuance and validation
*/
package identity_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nsarob/Save-a-penny/identity"
	"github.com/Nsarob/Save-a-penny/procure"
)

func testUser() *identity.User {
	return &identity.User{
		ID:    procure.NewUserID(),
		Email: "alice@saveapenny.dev",
		Role:  procure.RoleStaff,
	}
}

func TestTokenRoundTrip(t *testing.T) {
	svc := identity.NewTokenService("test-signing-key", "save-a-penny", time.Hour)
	u := testUser()

	token, err := svc.Issue(u)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, string(u.ID), claims.UserID)
	assert.Equal(t, u.Email, claims.Email)
	assert.Equal(t, "staff", claims.Role)
	assert.Equal(t, "save-a-penny", claims.Issuer)
}

func TestTokenWrongKeyRejected(t *testing.T) {
	issuer := identity.NewTokenService("key-one", "save-a-penny", time.Hour)
	verifier := identity.NewTokenService("key-two", "save-a-penny", time.Hour)

	token, err := issuer.Issue(testUser())
	require.NoError(t, err)

	_, err = verifier.Validate(token)
	assert.ErrorIs(t, err, identity.ErrInvalidToken)
}

func TestTokenExpiry(t *testing.T) {
	// A token issued with a negative TTL is already expired
	svc := identity.NewTokenService("test-signing-key", "save-a-penny", -time.Minute)

	token, err := svc.Issue(testUser())
	require.NoError(t, err)

	_, err = svc.Validate(token)
	assert.ErrorIs(t, err, identity.ErrTokenExpired)
}

func TestTokenGarbageRejected(t *testing.T) {
	svc := identity.NewTokenService("test-signing-key", "save-a-penny", time.Hour)

	for _, bad := range []string{"", "garbage", "a.b.c"} {
		_, err := svc.Validate(bad)
		assert.ErrorIs(t, err, identity.ErrInvalidToken, "input %q", bad)
	}
}
