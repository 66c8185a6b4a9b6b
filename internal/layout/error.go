package layout

import (
	"fmt"
	"strings"

	"constvm/internal/types"
)

// LayoutErrorKind enumerates types of layout calculation errors.
type LayoutErrorKind uint8

const (
	// LayoutErrRecursive indicates a recursive type with no fixed size.
	LayoutErrRecursive LayoutErrorKind = iota + 1
	// LayoutErrUnknown indicates a type kind with no computable layout
	// (trait objects, closures, unresolved generics).
	LayoutErrUnknown
	// LayoutErrTooLarge indicates a size computation overflow.
	LayoutErrTooLarge
)

// LayoutError represents an error during memory layout calculation.
type LayoutError struct {
	Kind  LayoutErrorKind
	Type  types.TypeID
	Cycle []types.TypeID // for LayoutErrRecursive
	What  string         // for LayoutErrUnknown
}

func (e *LayoutError) Error() string {
	if e == nil {
		return "<nil>"
	}
	switch e.Kind {
	case LayoutErrRecursive:
		if len(e.Cycle) == 0 {
			return fmt.Sprintf("recursive type has infinite size (type#%d)", e.Type)
		}
		parts := make([]string, 0, len(e.Cycle))
		for _, id := range e.Cycle {
			parts = append(parts, fmt.Sprintf("type#%d", id))
		}
		return fmt.Sprintf("recursive type has infinite size (cycle: %s)", strings.Join(parts, " -> "))
	case LayoutErrUnknown:
		return fmt.Sprintf("no layout for %s (type#%d)", e.What, e.Type)
	case LayoutErrTooLarge:
		return fmt.Sprintf("type size overflows target pointer width (type#%d)", e.Type)
	default:
		return fmt.Sprintf("layout error kind=%d type#%d", e.Kind, e.Type)
	}
}
