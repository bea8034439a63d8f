package dto

import "errors"

var (
	ErrInvalidSavePolicy = errors.New("invalid save policy")
	ErrPartialSave       = errors.New("flow saved with previous values for invalid config")
	ErrInvalidInput      = errors.New("invalid input provided")
)
