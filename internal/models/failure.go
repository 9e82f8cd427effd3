package models

import (
	"errors"
	"fmt"
)

// FailureKind classifies an error raised while handling a login-flow request
type FailureKind string

const (
	FailureOAuth2         FailureKind = "oauth2"
	FailureManagement     FailureKind = "management"
	FailureAuthentication FailureKind = "authentication"
	FailurePolicy         FailureKind = "policy"
)

// FailureError tags an error with the layer that rejected the request
type FailureError struct {
	Kind FailureKind
	Err  error
}

func (e *FailureError) Error() string {
	if e.Err == nil {
		return string(e.Kind) + " failure"
	}
	return fmt.Sprintf("%s failure: %v", e.Kind, e.Err)
}

func (e *FailureError) Unwrap() error {
	return e.Err
}

// NewAuthenticationError tags err as an authentication failure
func NewAuthenticationError(err error) error {
	return &FailureError{Kind: FailureAuthentication, Err: err}
}

// NewOAuth2Error tags err as an OAuth2 protocol failure
func NewOAuth2Error(err error) error {
	return &FailureError{Kind: FailureOAuth2, Err: err}
}

// NewManagementError tags err as a domain management failure
func NewManagementError(err error) error {
	return &FailureError{Kind: FailureManagement, Err: err}
}

// NewPolicyError tags err as a policy evaluation failure
func NewPolicyError(err error) error {
	return &FailureError{Kind: FailurePolicy, Err: err}
}

// KindOf returns the failure kind carried by err, if any
func KindOf(err error) (FailureKind, bool) {
	var fe *FailureError
	if errors.As(err, &fe) {
		return fe.Kind, true
	}
	return "", false
}

// StatusError carries an HTTP status already chosen upstream
type StatusError struct {
	Code int
	Err  error
}

func (e *StatusError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

// StatusOf returns the status code carried by err, if any
func StatusOf(err error) (int, bool) {
	var se *StatusError
	if errors.As(err, &se) && se.Code > 0 {
		return se.Code, true
	}
	return 0, false
}
