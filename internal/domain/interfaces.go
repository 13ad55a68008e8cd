package domain

import (
	"context"
	"time"
)

// Cache defines the interface for build artifact caching
type Cache interface {
	// Get retrieves a value from cache
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores a value in cache with TTL
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Has checks if a key exists in cache
	Has(ctx context.Context, key string) bool
	// Delete removes a key from cache
	Delete(ctx context.Context, key string) error
	// Close releases cache resources
	Close() error
}

// Task is a named unit of pipeline work
type Task interface {
	// Name returns the task name used for registration and logging
	Name() string
	// Run executes the task
	Run(ctx context.Context) error
}
