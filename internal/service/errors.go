package service

import "errors"

var (
	// Conflict
	ErrUsernameTaken  = errors.New("username already taken")
	ErrGroupNameTaken = errors.New("group name already taken")

	// PolicyViolation
	ErrDefaultGroupProtected = errors.New("default group cannot be deleted or require totp")
	ErrTOTPRequiredByPolicy  = errors.New("a group policy mandates multi-factor authentication")

	// Preconditions
	ErrTOTPAlreadyEnabled = errors.New("totp already enabled")
	ErrTOTPNotEnabled     = errors.New("totp not enabled")
	ErrInvalidRole        = errors.New("invalid role")

	// AuthenticationFailure. Deliberately uninformative: bad username, bad
	// password, bad code, and expired/rotated/stolen refresh tokens all
	// collapse into these.
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")

	ErrLoginThrottled = errors.New("too many failed attempts")
)
