// Package common defines shared constants and sentinel errors used across
// the keepsync worker. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Job payload errors.
	ErrorValidation         = errors.New("validation error")
	ErrorUnrecognizedAction = errors.New("unrecognized action")

	// The user has no stored master credential.
	ErrorNotConnected = errors.New("user not connected to Google Keep")
)
