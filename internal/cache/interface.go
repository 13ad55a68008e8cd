package cache

import (
	"path/filepath"

	"github.com/quantmind-br/assetforge/internal/domain"
)

// Ensure BadgerCache implements domain.Cache
var _ domain.Cache = (*BadgerCache)(nil)

// DefaultDirectory is the on-disk cache location relative to the project
var DefaultDirectory = filepath.Join(".assetforge", "cache")

// Options contains cache configuration options
type Options struct {
	Directory string
	InMemory  bool
	Logger    bool
}

// DefaultOptions returns default cache options
func DefaultOptions() Options {
	return Options{
		Directory: "",
		InMemory:  false,
		Logger:    false,
	}
}
