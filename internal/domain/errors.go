package domain

import "errors"

var (
	ErrUserNotFound          = errors.New("user not found")
	ErrExternalLoginNotFound = errors.New("external login not found")
	ErrKeyNotFound           = errors.New("api key not found")
	ErrOtpNotFound           = errors.New("no code has been sent to this identifier")
	ErrDuplicatePartner      = errors.New("partner slug is already taken")

	ErrDuplicateEmail        = errors.New("email is already registered")
	ErrDuplicatePhone        = errors.New("phone number is already registered")
	ErrProviderTaken         = errors.New("external identity is already linked to an account")
	ErrAlreadyLinkedProvider = errors.New("account already has a login for this provider")
	ErrAlreadyHasCredential  = errors.New("account already has this credential type")

	// ErrInvalidCredentials deliberately covers both "no such account" and
	// "wrong password" so login failures cannot be used for enumeration.
	ErrInvalidCredentials = errors.New("invalid email or password")

	ErrRateLimited     = errors.New("too many requests, try again later")
	ErrCodeExpired     = errors.New("code has expired")
	ErrCodeAlreadyUsed = errors.New("code has already been used")
	ErrCodeMismatch    = errors.New("code is incorrect")
	ErrTooManyAttempts = errors.New("too many verification attempts")

	// ErrLastCredential blocks any unlink that would leave the account with
	// zero ways to authenticate.
	ErrLastCredential = errors.New("cannot remove the last login method")

	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// ErrMisconfigured indicates a deployment fault (missing signing key,
	// shared secret unset or still the placeholder). Always fails closed.
	ErrMisconfigured = errors.New("service is misconfigured")
)
