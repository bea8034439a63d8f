package events

import "errors"

var (
	ErrInvalidKind    = errors.New("invalid event kind")
	ErrInvalidAgentID = errors.New("invalid agent ID")
	ErrInvalidKey     = errors.New("display event requires a key")
	ErrRegistryClosed = errors.New("registry is closed")
)
