package coerce

import (
	"errors"
	"fmt"
	"strings"

	"github.com/stn/agent-stream-app/internal/core/agent"
	"github.com/stn/agent-stream-app/internal/core/jsonnum"
)

var (
	// ErrCoercion matches every *Error.
	ErrCoercion = errors.New("config value coercion failed")

	ErrNotText      = errors.New("value has no editable text")
	ErrNonFinite    = errors.New("number must be finite")
	ErrTrailingData = jsonnum.ErrTrailingData
	ErrWrongType    = errors.New("value does not match declared type")
	ErrNotIntegral  = errors.New("number is not an integer")
)

// Error reports a config value that could not be converted to its declared type.
type Error struct {
	NodeID   string           `json:"node_id"`
	Key      string           `json:"key"`
	Expected agent.ConfigType `json:"expected"`
	Raw      any              `json:"raw"`
	Err      error            `json:"-"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("node %q config %q: expected %s, got %#v: %v", e.NodeID, e.Key, e.Expected, e.Raw, e.Err)
}

func (e *Error) Unwrap() []error {
	return []error{ErrCoercion, e.Err}
}

// Errors collects every coercion failure of a save.
type Errors []*Error

func (e Errors) Error() string {
	if len(e) == 0 {
		return "no coercion errors"
	}
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

func (e Errors) Unwrap() []error {
	out := make([]error, len(e))
	for i, err := range e {
		out[i] = err
	}
	return out
}

// AsErrors extracts coercion errors from err, if any.
func AsErrors(err error) (Errors, bool) {
	var errs Errors
	if errors.As(err, &errs) {
		return errs, true
	}
	var single *Error
	if errors.As(err, &single) {
		return Errors{single}, true
	}
	return nil, false
}
