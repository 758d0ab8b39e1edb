package merge

import (
	"errors"
	"fmt"

	"github.com/tekikaito/stapler/ir/raw"
)

var (
	ErrInsufficientInputs      = errors.New("at least two documents are required to merge")
	ErrPagesRootNotFound       = errors.New("pages root not found")
	ErrCatalogRootNotFound     = errors.New("catalog root not found")
	ErrStructuralInconsistency = errors.New("structural inconsistency")
)

// StructuralError reports an object that must be a dictionary but is not.
type StructuralError struct {
	Ref  raw.ObjectRef
	Kind raw.Kind
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("%s object %s is not a dictionary", e.Kind, e.Ref)
}

func (e *StructuralError) Unwrap() error { return ErrStructuralInconsistency }
