package config

import (
	"path/filepath"
	"time"
)

// Default values
const (
	// Path defaults
	DefaultSrcDir       = "src"
	DefaultDestDir      = "app"
	DefaultHTMLEntry    = "src/index.html"
	DefaultStylesGlob   = "src/scss/**/*.scss"
	DefaultCSSDir       = "app/css"
	DefaultFontsDir     = "app/fonts"
	DefaultFontManifest = "src/scss/_fonts.scss"

	// Style defaults
	DefaultCompiler     = "sass"
	DefaultMinify       = true
	DefaultStyleWorkers = 4
	DefaultStyleTimeout = 60 * time.Second

	// HTML defaults
	DefaultHTMLMaxDepth = 32

	// Server defaults
	DefaultServerAddr      = "localhost:3000"
	DefaultShutdownTimeout = 5 * time.Second

	// Watch defaults
	DefaultDebounce = 100 * time.Millisecond

	// Cache defaults
	DefaultCacheEnabled = true

	// Logging defaults
	DefaultLogLevel  = "info"
	DefaultLogFormat = "auto"
)

// ConfigFileName is the project configuration file looked up in the working directory
const ConfigFileName = "assetforge.yaml"

// EnvPrefix prefixes environment overrides (ASSETFORGE_PATHS_DEST, ...)
const EnvPrefix = "ASSETFORGE"

// DefaultCacheDir is the build cache location
var DefaultCacheDir = filepath.Join(".assetforge", "cache")

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Paths: PathsConfig{
			Src:          DefaultSrcDir,
			Dest:         DefaultDestDir,
			HTMLEntries:  []string{DefaultHTMLEntry},
			Styles:       DefaultStylesGlob,
			CSSDir:       DefaultCSSDir,
			FontsDir:     DefaultFontsDir,
			FontManifest: DefaultFontManifest,
		},
		Styles: StylesConfig{
			Compiler: DefaultCompiler,
			Minify:   DefaultMinify,
			Workers:  DefaultStyleWorkers,
			Timeout:  DefaultStyleTimeout,
		},
		HTML: HTMLConfig{
			MaxDepth: DefaultHTMLMaxDepth,
		},
		Server: ServerConfig{
			Addr:            DefaultServerAddr,
			ShutdownTimeout: DefaultShutdownTimeout,
		},
		Watch: WatchConfig{
			Debounce: DefaultDebounce,
		},
		Cache: CacheConfig{
			Enabled:   DefaultCacheEnabled,
			Directory: DefaultCacheDir,
		},
		Logging: LoggingConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
