package htmlinclude

import (
	"errors"
	"fmt"
)

// Sentinel errors for the htmlinclude package
var (
	// ErrIncludeNotFound indicates an include target does not exist
	ErrIncludeNotFound = errors.New("include target not found")

	// ErrIncludeCycle indicates a file includes itself directly or transitively
	ErrIncludeCycle = errors.New("include cycle")

	// ErrMaxDepth indicates includes are nested too deeply
	ErrMaxDepth = errors.New("include nesting too deep")

	// ErrInvalidParams indicates the parameters of a directive are not a JSON object
	ErrInvalidParams = errors.New("include parameters must be a JSON object")

	// ErrNoEntries indicates no entry file matched the configured patterns
	ErrNoEntries = errors.New("no html entries matched")
)

// IncludeError locates a failed directive
type IncludeError struct {
	File   string // file containing the directive
	Target string // path named by the directive
	Err    error
}

func (e *IncludeError) Error() string {
	return fmt.Sprintf("%s: @@include(%q): %v", e.File, e.Target, e.Err)
}

func (e *IncludeError) Unwrap() error {
	return e.Err
}
