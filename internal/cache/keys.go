package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
)

// GenerateKey generates a cache key from a file path
// The key is a SHA256 hash of the cleaned, slash-separated path
func GenerateKey(path string) string {
	normalized := normalizeForKey(path)
	hash := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(hash[:])
}

// GenerateKeyWithPrefix generates a cache key with a prefix
func GenerateKeyWithPrefix(prefix, path string) string {
	key := GenerateKey(path)
	return prefix + ":" + key
}

// normalizeForKey makes equivalent spellings of a path produce the same key
func normalizeForKey(path string) string {
	if path == "" {
		return ""
	}
	return filepath.ToSlash(filepath.Clean(path))
}

// KeyPrefix constants for different cache types
const (
	PrefixStyle = "style"
)

// StyleKey generates a cache key for a style entry fingerprint
func StyleKey(entry string) string {
	return GenerateKeyWithPrefix(PrefixStyle, entry)
}
