package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors
var (
	// ErrCacheMiss indicates a cache miss
	ErrCacheMiss = errors.New("cache miss")

	// ErrUnknownTask indicates no task is registered under the requested name
	ErrUnknownTask = errors.New("unknown task")

	// ErrCompilerNotFound indicates the external style compiler is not installed
	ErrCompilerNotFound = errors.New("style compiler not found")

	// ErrWriteFailed indicates writing output failed
	ErrWriteFailed = errors.New("write failed")
)

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for %s: %s", e.Field, e.Message)
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// TaskError represents a failure of a named pipeline task
type TaskError struct {
	Task string
	Err  error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("task %s failed: %v", e.Task, e.Err)
}

func (e *TaskError) Unwrap() error {
	return e.Err
}

// NewTaskError creates a new TaskError
func NewTaskError(task string, err error) *TaskError {
	return &TaskError{
		Task: task,
		Err:  err,
	}
}

// FailedTask returns the name of the innermost task that failed, if any
func FailedTask(err error) (string, bool) {
	var name string
	found := false
	for err != nil {
		var taskErr *TaskError
		if !errors.As(err, &taskErr) {
			break
		}
		name = taskErr.Task
		found = true
		err = taskErr.Err
	}
	return name, found
}
