// Package services defines the business logic for moderation decisions and
// the vouch ledger. This file centralizes common service-level error values
// so that they can be consistently returned by service methods and checked
// by callers.
//
// These errors are intended for internal use by the service layer;
// translation into user-facing messages or HTTP status codes should be
// performed at the handler layer.
package services

import "errors"

var (
	// ErrVouchNotFound indicates that the requested vouch does not exist.
	ErrVouchNotFound = errors.New("vouch not found")

	// ErrDuplicateVouch is returned when the same author has already
	// vouched for the same target with the same polarity inside the
	// duplicate-suppression window.
	ErrDuplicateVouch = errors.New("duplicate vouch")

	// ErrForbidden is returned when a caller attempts an operation on a
	// vouch they neither authored nor have admin rights over.
	ErrForbidden = errors.New("not allowed to modify this vouch")

	// ErrNoTarget is returned when a vouch submission names no target
	// other than the author themselves.
	ErrNoTarget = errors.New("vouch has no target")

	// ErrEmptyNote is returned when a command-path vouch submission has
	// no usable note text.
	ErrEmptyNote = errors.New("vouch note is empty")

	// ErrInvalidPolarity is returned when a polarity value is outside
	// the allowed set.
	ErrInvalidPolarity = errors.New("polarity must be pos or neg")
)
