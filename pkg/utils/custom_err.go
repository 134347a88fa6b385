package utils

import "errors"

var (
	ErrValidation    = errors.New("validation error")
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrGateway       = errors.New("payment gateway error")
	ErrConfiguration = errors.New("configuration error")
	ErrSignature     = errors.New("invalid signature")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrForbidden     = errors.New("forbidden")
	ErrDatabaseError = errors.New("database error")
)
