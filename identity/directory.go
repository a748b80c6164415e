/*
directory.go - Registration, authentication, and role resolution

PURPOSE:
  The Directory is the one place accounts are created and credentials are
  checked. It also implements procure.RoleResolver, which is how the
  workflow core learns what an identity may do.

PASSWORDS:
  bcrypt with the default cost. Login compares hashes; a missing account
  and a wrong password are indistinguishable to the caller.

ROLE RESOLUTION:
  An identity without an account resolves to a permission error, so a
  deleted user's token stops working at the next authorization check.
*/
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/Nsarob/Save-a-penny/procure"
)

// Registration is the input to Directory.Register.
type Registration struct {
	Email      string
	Name       string
	Password   string
	Role       string
	Department string
	Phone      string
}

// Directory manages accounts on top of a Store.
type Directory struct {
	store Store
}

func NewDirectory(store Store) *Directory {
	return &Directory{store: store}
}

// Register creates an account with a hashed password and a validated role.
func (d *Directory) Register(ctx context.Context, in Registration) (*User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, &procure.ValidationError{Field: "email", Reason: "must be a valid email address"}
	}
	if in.Name == "" {
		return nil, &procure.ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if len(in.Password) < 8 {
		return nil, &procure.ValidationError{Field: "password", Reason: "must be at least 8 characters"}
	}
	role, err := procure.ParseRole(in.Role)
	if err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	u := &User{
		ID:           procure.NewUserID(),
		Email:        email,
		Name:         in.Name,
		PasswordHash: string(hash),
		Role:         role,
		Department:   in.Department,
		Phone:        in.Phone,
		CreatedAt:    time.Now().UTC(),
	}
	if err := d.store.CreateUser(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Authenticate checks email and password and returns the account.
func (d *Directory) Authenticate(ctx context.Context, email, password string) (*User, error) {
	u, err := d.store.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// Profile returns the account for an identity.
func (d *Directory) Profile(ctx context.Context, id procure.UserID) (*User, error) {
	return d.store.GetUser(ctx, id)
}

// ResolveRole implements procure.RoleResolver. Unknown identities are a
// permission failure, not a lookup failure: nobody without an account acts.
func (d *Directory) ResolveRole(ctx context.Context, id procure.UserID) (procure.Role, error) {
	u, err := d.store.GetUser(ctx, id)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return "", fmt.Errorf("unknown identity %s: %w", id, procure.ErrPermissionDenied)
		}
		return "", err
	}
	return u.Role, nil
}
