package service

import "errors"

// ErrNotFound indicates the requested resource was not found, or exists
// but the principal may not view it. The two cases are deliberately
// indistinguishable so callers cannot probe for hidden resources.
var ErrNotFound = errors.New("not found")

// ValidationError represents a malformed request (HTTP 422).
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// ConflictError represents a uniqueness conflict (HTTP 409).
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

// ForbiddenError represents a visible resource the principal may not act
// on in the requested way (HTTP 403).
type ForbiddenError struct {
	Message string
}

func (e *ForbiddenError) Error() string { return e.Message }
