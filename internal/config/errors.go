// Package config provides the Profile/TestSettings static configuration
// types, the per-video VPC record, and process-wide run configuration.
package config

import "errors"

// Sentinel errors for configuration validation.
var (
	// ErrInvalidCQValues indicates the CQ_calculation.cq_values list does
	// not contain exactly four entries.
	ErrInvalidCQValues = errors.New("cq_values must contain exactly 4 entries")

	// ErrInvalidResDecode indicates a profile's res_decode table is empty
	// or malformed.
	ErrInvalidResDecode = errors.New("res_decode table is invalid")

	// ErrInvalidEncoder indicates an unknown encoder identity in the
	// profile's "function" field.
	ErrInvalidEncoder = errors.New("unknown encoder function")

	// ErrMissingProfileField indicates a required profile field was left
	// at its zero value.
	ErrMissingProfileField = errors.New("missing required profile field")

	// ErrWorkersBelowOne indicates a run configuration requested fewer
	// than one worker.
	ErrWorkersBelowOne = errors.New("workers must be at least 1")
)
