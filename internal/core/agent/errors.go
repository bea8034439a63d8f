package agent

import "errors"

var (
	// Definition errors
	ErrInvalidDefinitionName = errors.New("invalid agent definition name")
	ErrDefinitionNotFound    = errors.New("agent definition not found")

	// Schema errors
	ErrMalformedSchemaPair = errors.New("schema entry must be a [key, entry] pair")
	ErrEmptySchemaKey      = errors.New("schema key cannot be empty")
	ErrDuplicateSchemaKey  = errors.New("duplicate schema key")
	ErrInvalidConfigType   = errors.New("invalid config type")
	ErrInvalidDisplayType  = errors.New("invalid display type")
)
