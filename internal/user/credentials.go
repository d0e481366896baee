package user

import (
	"errors"
	"fmt"
	"strings"

	"github.com/badoux/checkmail"
)

const (
	maxEmailLength    = 254
	minEmailLength    = 3
	maxUsernameLength = 30
	minUsernameLength = 3
	MinPasswordLength = 8
	maxPasswordLength = 72
)

var (
	ErrEmailRequired        = errors.New("email is required")
	ErrInvalidEmail         = errors.New("email address is not valid")
	ErrEmailLength          = fmt.Errorf("email address is too long or too short, max length: %d, min length: %d", maxEmailLength, minEmailLength)
	ErrUsernameRequired     = errors.New("username is required")
	ErrUsernameLength       = fmt.Errorf("username must be between %d and %d characters", minUsernameLength, maxUsernameLength)
	ErrPasswordRequired     = errors.New("password is required")
	ErrPasswordLength       = fmt.Errorf("password must be between %d and %d characters", MinPasswordLength, maxPasswordLength)
	ErrPasswordMismatch     = errors.New("passwords do not match")
	ErrPasswordUnchanged    = errors.New("new password must differ from the current one")
	ErrCurrentPasswordEmpty = errors.New("current password is required")
)

// ValidateEmail checks presence, length and format without touching the network.
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return ErrEmailRequired
	}
	if len(email) < minEmailLength || len(email) > maxEmailLength {
		return ErrEmailLength
	}
	if err := checkmail.ValidateFormat(email); err != nil {
		return ErrInvalidEmail
	}
	return nil
}

func ValidateUsername(username string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return ErrUsernameRequired
	}
	if len(username) < minUsernameLength || len(username) > maxUsernameLength {
		return ErrUsernameLength
	}
	return nil
}

// ValidateNewPassword checks a password being set together with its confirmation.
func ValidateNewPassword(password, confirm string) error {
	if password == "" {
		return ErrPasswordRequired
	}
	if len(password) < MinPasswordLength || len(password) > maxPasswordLength {
		return ErrPasswordLength
	}
	if password != confirm {
		return ErrPasswordMismatch
	}
	return nil
}

// ValidatePasswordChange checks a change-password form before it is sent.
func ValidatePasswordChange(current, next, confirm string) error {
	if current == "" {
		return ErrCurrentPasswordEmpty
	}
	if err := ValidateNewPassword(next, confirm); err != nil {
		return err
	}
	if current == next {
		return ErrPasswordUnchanged
	}
	return nil
}
