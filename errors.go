package stapler

import (
	"fmt"

	"github.com/tekikaito/stapler/merge"
)

// ErrInsufficientInputs is returned before any I/O when fewer than two
// sources are given.
var ErrInsufficientInputs = merge.ErrInsufficientInputs

// LoadError reports a source that could not be opened or parsed.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// WriteError reports an output that could not be serialized or stored.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }
