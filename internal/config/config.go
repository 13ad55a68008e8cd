package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/quantmind-br/assetforge/internal/domain"
)

// Config represents the application configuration
type Config struct {
	Paths   PathsConfig   `mapstructure:"paths" yaml:"paths"`
	Styles  StylesConfig  `mapstructure:"styles" yaml:"styles"`
	HTML    HTMLConfig    `mapstructure:"html" yaml:"html"`
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
	Watch   WatchConfig   `mapstructure:"watch" yaml:"watch"`
	Cache   CacheConfig   `mapstructure:"cache" yaml:"cache"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// PathsConfig locates sources and outputs
type PathsConfig struct {
	Src          string   `mapstructure:"src" yaml:"src"`
	Dest         string   `mapstructure:"dest" yaml:"dest"`
	HTMLEntries  []string `mapstructure:"html_entries" yaml:"html_entries"`
	Styles       string   `mapstructure:"styles" yaml:"styles"`
	CSSDir       string   `mapstructure:"css_dir" yaml:"css_dir"`
	FontsDir     string   `mapstructure:"fonts_dir" yaml:"fonts_dir"`
	FontManifest string   `mapstructure:"font_manifest" yaml:"font_manifest"`
}

// StylesConfig contains style compiler settings
type StylesConfig struct {
	Compiler  string        `mapstructure:"compiler" yaml:"compiler"`
	LoadPaths []string      `mapstructure:"load_paths" yaml:"load_paths"`
	Minify    bool          `mapstructure:"minify" yaml:"minify"`
	SourceMap bool          `mapstructure:"source_map" yaml:"source_map"`
	Workers   int           `mapstructure:"workers" yaml:"workers"`
	Timeout   time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// HTMLConfig contains markup assembly settings
type HTMLConfig struct {
	MaxDepth int            `mapstructure:"max_depth" yaml:"max_depth"`
	Context  map[string]any `mapstructure:"context" yaml:"context,omitempty"`
}

// ServerConfig contains development server settings
type ServerConfig struct {
	Addr            string        `mapstructure:"addr" yaml:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// WatchConfig contains file watching settings
type WatchConfig struct {
	Debounce time.Duration `mapstructure:"debounce" yaml:"debounce"`
}

// CacheConfig contains build cache settings
type CacheConfig struct {
	Enabled   bool   `mapstructure:"enabled" yaml:"enabled"`
	Directory string `mapstructure:"directory" yaml:"directory"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Paths.Src == "" {
		return domain.NewValidationError("paths.src", "source directory must not be empty")
	}
	if c.Paths.Dest == "" {
		return domain.NewValidationError("paths.dest", "output directory must not be empty")
	}
	if c.Paths.FontManifest == "" {
		return domain.NewValidationError("paths.font_manifest", "font manifest path must not be empty")
	}

	if len(c.Paths.HTMLEntries) == 0 {
		c.Paths.HTMLEntries = []string{DefaultHTMLEntry}
	}
	if c.Paths.Styles == "" {
		c.Paths.Styles = DefaultStylesGlob
	}
	if c.Paths.CSSDir == "" {
		c.Paths.CSSDir = DefaultCSSDir
	}
	if c.Paths.FontsDir == "" {
		c.Paths.FontsDir = DefaultFontsDir
	}
	if c.Styles.Compiler == "" {
		c.Styles.Compiler = DefaultCompiler
	}
	if c.Styles.Workers < 1 {
		c.Styles.Workers = DefaultStyleWorkers
	}
	if c.Styles.Timeout < time.Second {
		c.Styles.Timeout = DefaultStyleTimeout
	}
	if c.HTML.MaxDepth < 1 {
		c.HTML.MaxDepth = DefaultHTMLMaxDepth
	}
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultServerAddr
	}
	if c.Server.ShutdownTimeout < 100*time.Millisecond {
		c.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if c.Watch.Debounce <= 0 {
		c.Watch.Debounce = DefaultDebounce
	}
	if c.Cache.Directory == "" {
		c.Cache.Directory = DefaultCacheDir
	}
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
	return nil
}

// Relocate moves the source and output roots. Paths configured beneath the
// previous roots move along with them.
func (c *Config) Relocate(src, dest string) {
	if src != "" && src != c.Paths.Src {
		old := c.Paths.Src
		for i, entry := range c.Paths.HTMLEntries {
			c.Paths.HTMLEntries[i] = rebase(entry, old, src)
		}
		c.Paths.Styles = rebase(c.Paths.Styles, old, src)
		c.Paths.FontManifest = rebase(c.Paths.FontManifest, old, src)
		c.Paths.Src = src
	}
	if dest != "" && dest != c.Paths.Dest {
		old := c.Paths.Dest
		c.Paths.CSSDir = rebase(c.Paths.CSSDir, old, dest)
		c.Paths.FontsDir = rebase(c.Paths.FontsDir, old, dest)
		c.Paths.Dest = dest
	}
}

func rebase(path, from, to string) string {
	rel, err := filepath.Rel(from, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return path
	}
	return filepath.Join(to, rel)
}
