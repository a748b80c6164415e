/*
Package identity provides the user directory around the procurement workflow.

PURPOSE:
  Accounts, credentials, and role assignments live here. The workflow core
  never sees passwords or tokens; it consumes this package only through the
  procure.RoleResolver interface that Directory implements.

KEY COMPONENTS:
  User:         An account with its bcrypt password hash and workflow role
  Store:        Persistence interface (sqlite and in-memory implementations)
  Directory:    Registration, authentication, role resolution
  TokenService: Signed bearer tokens for the HTTP API

SEE ALSO:
  - directory.go: Registration and authentication
  - token.go: JWT issuance and validation
  - store/sqlite/sqlite.go: Production Store implementation
*/
package identity

import (
	"context"
	"errors"
	"time"

	"github.com/Nsarob/Save-a-penny/procure"
)

// User is an account in the directory. PasswordHash is a bcrypt hash; the
// plaintext never leaves the registration or login call.
type User struct {
	ID           procure.UserID
	Email        string
	Name         string
	PasswordHash string
	Role         procure.Role
	Department   string
	Phone        string
	CreatedAt    time.Time
}

var (
	// ErrEmailTaken is returned when registering an email that exists.
	ErrEmailTaken = errors.New("email already registered")

	// ErrInvalidCredentials is returned for a failed login. Deliberately the
	// same for unknown email and wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrUserNotFound is returned when a looked-up account does not exist.
	ErrUserNotFound = errors.New("user not found")
)

// Store persists accounts.
type Store interface {
	// CreateUser inserts an account. Returns ErrEmailTaken on a duplicate
	// email.
	CreateUser(ctx context.Context, u *User) error

	// GetUser returns the account with the given ID, or ErrUserNotFound.
	GetUser(ctx context.Context, id procure.UserID) (*User, error)

	// GetUserByEmail returns the account with the given email, or
	// ErrUserNotFound.
	GetUserByEmail(ctx context.Context, email string) (*User, error)

	// ListUsers returns all accounts.
	ListUsers(ctx context.Context) ([]*User, error)
}
