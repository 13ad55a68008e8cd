package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// ErrConfigExists indicates a configuration file would be overwritten
var ErrConfigExists = errors.New("config file already exists")

// Load loads configuration from file, environment, and defaults into a fresh
// viper instance. flags maps configuration keys to command line flags; a flag
// only takes effect when it was set explicitly.
func Load(configFile string, flags map[string]*pflag.Flag) (*Config, error) {
	v := viper.New()
	for key, flag := range flags {
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return nil, fmt.Errorf("bind flag %s: %w", key, err)
		}
	}
	return load(v, configFile)
}

func load(v *viper.Viper, configFile string) (*Config, error) {
	setDefaults(v)

	if configFile != "" {
		if _, err := os.Stat(configFile); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(strings.TrimSuffix(ConfigFileName, ".yaml"))
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	// A missing project file is fine
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	// Environment variables (ASSETFORGE_*)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults sets default values in viper
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("paths.src", d.Paths.Src)
	v.SetDefault("paths.dest", d.Paths.Dest)
	v.SetDefault("paths.html_entries", d.Paths.HTMLEntries)
	v.SetDefault("paths.styles", d.Paths.Styles)
	v.SetDefault("paths.css_dir", d.Paths.CSSDir)
	v.SetDefault("paths.fonts_dir", d.Paths.FontsDir)
	v.SetDefault("paths.font_manifest", d.Paths.FontManifest)

	v.SetDefault("styles.compiler", d.Styles.Compiler)
	v.SetDefault("styles.load_paths", []string{})
	v.SetDefault("styles.minify", d.Styles.Minify)
	v.SetDefault("styles.source_map", false)
	v.SetDefault("styles.workers", d.Styles.Workers)
	v.SetDefault("styles.timeout", d.Styles.Timeout)

	v.SetDefault("html.max_depth", d.HTML.MaxDepth)

	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)

	v.SetDefault("watch.debounce", d.Watch.Debounce)

	v.SetDefault("cache.enabled", d.Cache.Enabled)
	v.SetDefault("cache.directory", d.Cache.Directory)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
}

// Marshal renders cfg as YAML
func Marshal(cfg *Config) ([]byte, error) {
	return yaml.Marshal(cfg)
}

// WriteDefault writes the default configuration to path. An existing file is
// only replaced when force is set.
func WriteDefault(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%w: %s", ErrConfigExists, path)
		}
	}
	data, err := Marshal(Default())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
