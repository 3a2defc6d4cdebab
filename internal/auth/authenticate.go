package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// dummyHash is verified against when the username is unknown so that a
// failed login costs the same whether or not the account exists.
var (
	dummyHashOnce sync.Once
	dummyHash     string
)

func getDummyHash() string {
	dummyHashOnce.Do(func() {
		h, err := HashPassword("devicehub-dummy-password")
		if err == nil {
			dummyHash = h
		}
	})
	return dummyHash
}

// Register creates a new account. The username is trimmed of surrounding
// whitespace before it is stored.
func Register(ctx context.Context, repo UserRepository, creds Credentials) (*User, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}

	hash, err := HashPassword(creds.Password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user := &User{
		Username:     strings.TrimSpace(creds.Username),
		PasswordHash: hash,
	}
	if err := repo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Authenticate checks credentials and returns the matching user.
// Unknown usernames and wrong passwords both yield ErrInvalidCredentials.
func Authenticate(ctx context.Context, repo UserRepository, creds Credentials) (*User, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}

	user, err := repo.GetByUsername(ctx, strings.TrimSpace(creds.Username))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			if h := getDummyHash(); h != "" {
				_, _ = VerifyPassword(creds.Password, h) //nolint:errcheck // timing only
			}
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("looking up user: %w", err)
	}

	ok, err := VerifyPassword(creds.Password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verifying password: %w", err)
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}
