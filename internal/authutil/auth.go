// Package authutil checks the shared secrets guarding the HTTP surface.
package authutil

import (
	"crypto/subtle"
	"errors"

	"golang.org/x/crypto/bcrypt"
)

var ErrBadCredentials = errors.New("bad credentials")

// CheckPassword compares a plaintext admin password with its bcrypt hash.
// An empty hash never matches.
func CheckPassword(hash, password string) error {
	if hash == "" || password == "" {
		return ErrBadCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrBadCredentials
	}
	return nil
}

// CheckWebhookSecret compares the secret token header sent with webhook
// updates. An empty expected secret disables the check.
func CheckWebhookSecret(expected, got string) error {
	if expected == "" {
		return nil
	}
	if subtle.ConstantTimeCompare([]byte(expected), []byte(got)) != 1 {
		return ErrBadCredentials
	}
	return nil
}
