package bist

import "errors"

var (
	// ErrInvalidConfiguration reports a rejected constructor or fit argument.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrDatasetNotFound reports a corpus or model path that does not exist.
	ErrDatasetNotFound = errors.New("dataset not found")

	// ErrModelNotReady is returned when no parser has been fitted or loaded.
	ErrModelNotReady = errors.New("model not ready")

	// ErrPersistence reports a failure reading or writing params.json, model
	// weights or prediction files.
	ErrPersistence = errors.New("persistence failure")
)
