package settings

import "errors"

var (
	ErrInvalidSettings   = errors.New("settings patch must be a JSON object")
	ErrAgentTypeRequired = errors.New("agent type is required")
)
