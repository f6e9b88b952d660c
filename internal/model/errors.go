package model

import (
	"errors"

	"RifasCuba/internal/money"
)

var (
	ErrInsufficientFunds = money.ErrInsufficientFunds
	ErrNotFound          = errors.New("not found")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrAlreadyResolved   = errors.New("transaction already resolved")
	ErrTransient         = errors.New("store temporarily unavailable")
)

// ValidationError carries a user-facing reason for rejected input.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "validation: " + e.Reason }

func Invalid(reason string) error { return &ValidationError{Reason: reason} }

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
