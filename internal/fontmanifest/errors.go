package fontmanifest

import (
	"errors"
	"fmt"

	"github.com/quantmind-br/assetforge/internal/domain"
)

// ErrWriteFailed indicates the manifest could not be truncated or written.
// It matches domain.ErrWriteFailed as well.
var ErrWriteFailed = fmt.Errorf("font manifest: %w", domain.ErrWriteFailed)

// GenerationError describes a failed manifest operation
type GenerationError struct {
	Op   string
	Path string
	Err  error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("font manifest %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// Is reports every GenerationError as a write failure.
func (e *GenerationError) Is(target error) bool {
	return target == ErrWriteFailed || errors.Is(ErrWriteFailed, target)
}

func writeFailed(op, path string, err error) error {
	return &GenerationError{Op: op, Path: path, Err: err}
}
