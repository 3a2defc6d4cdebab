package auth

import (
	"errors"
	"strings"
)

// User is a registered account.
//
// JSON field names match the public API; the password hash is never
// serialised. Devices holds the IDs of the devices the user currently
// holds, in the order they were taken.
type User struct {
	ID           string   `json:"_id" bson:"_id"`
	Username     string   `json:"username" bson:"username"`
	PasswordHash string   `json:"-" bson:"password"`
	Devices      []string `json:"devices" bson:"devices"`
}

// Credentials is the register/login request body.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Validate checks that both fields are present. Surrounding whitespace in
// the username does not count as content.
func (c Credentials) Validate() error {
	if strings.TrimSpace(c.Username) == "" || c.Password == "" {
		return ErrMissingCredentials
	}
	return nil
}

// Domain errors.
var (
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrMissingCredentials = errors.New("auth: username and password are required")
	ErrUserNotFound       = errors.New("auth: user not found")
	ErrUsernameExists     = errors.New("auth: username already exists")
	ErrInvalidHash        = errors.New("auth: invalid password hash")
)
