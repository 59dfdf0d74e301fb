package auth

import (
	"crypto/subtle"
	"errors"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrEmptyPassword      = errors.New("empty password")
	ErrPasswordTooLong    = errors.New("password longer than 72 bytes")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// bcrypt silently ignores input past 72 bytes.
const maxPasswordBytes = 72

// HashPassword produces the value stored in ADMIN_PASSWORD_HASH.
func HashPassword(password string) (string, error) {
	switch {
	case password == "":
		return "", ErrEmptyPassword
	case len(password) > maxPasswordBytes:
		return "", ErrPasswordTooLong
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// ComparePassword returns ErrInvalidCredentials for a wrong password or an
// unset hash.
func ComparePassword(hash, password string) error {
	if hash == "" || password == "" {
		return ErrInvalidCredentials
	}
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrInvalidCredentials
	}
	return err
}

// VerifyAdmin checks a login against the single configured admin account.
// The password is always compared so both failure paths cost one bcrypt run.
func VerifyAdmin(wantUser, hash, user, password string) error {
	userOK := subtle.ConstantTimeCompare([]byte(wantUser), []byte(user)) == 1
	if err := ComparePassword(hash, password); err != nil {
		return err
	}
	if !userOK {
		return ErrInvalidCredentials
	}
	return nil
}
