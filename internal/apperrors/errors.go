package apperrors

import (
	"errors"
)

var (
	// ErrAuthRejected is the single outcome for every failed authentication
	// attempt: unknown email, wrong password, inactive user, bad signature,
	// expired or wrong-type token, spent one-time code.
	// Callers must not learn which condition failed.
	ErrAuthRejected = errors.New("authentication rejected")

	ErrPermissionDenied = errors.New("permission denied")

	ErrUserAlreadyExists = errors.New("user already exists")
	ErrUserNotFound      = errors.New("user not found")

	ErrRefreshTokenExists   = errors.New("refresh token already exists")
	ErrRefreshTokenNotFound = errors.New("refresh token not found")

	ErrAuthCodeNotFound = errors.New("auth code not found")

	ErrItemNotFound = errors.New("item not found")

	ErrUnknownProvider = errors.New("unknown oauth provider")

	// ErrUpstreamRejected covers any non-success answer or timeout from the
	// oauth provider. Provider details stay in logs, never in responses.
	ErrUpstreamRejected = errors.New("oauth provider rejected the request")

	// ErrProviderEmailMissing: the provider answered fine but the profile
	// carries no usable mail field.
	ErrProviderEmailMissing = errors.New("oauth profile contains no email")
)
