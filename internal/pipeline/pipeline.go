package pipeline

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"sync"
	"time"

	"github.com/quantmind-br/assetforge/internal/cache"
	"github.com/quantmind-br/assetforge/internal/config"
	"github.com/quantmind-br/assetforge/internal/devserver"
	"github.com/quantmind-br/assetforge/internal/domain"
	"github.com/quantmind-br/assetforge/internal/fontmanifest"
	"github.com/quantmind-br/assetforge/internal/htmlinclude"
	"github.com/quantmind-br/assetforge/internal/styles"
	"github.com/quantmind-br/assetforge/internal/utils"
	"github.com/quantmind-br/assetforge/internal/watcher"
)

// Task names
const (
	TaskFonts  = "fonts"
	TaskHTML   = "html"
	TaskStyles = "styles"
	TaskBuild  = "build"
	TaskWatch  = "watch"
	TaskServe  = "serve"
	TaskDev    = "dev"
)

// BuildSteps is the number of tasks run by the build task
const BuildSteps = 3

// Pipeline coordinates the asset build
type Pipeline struct {
	config    *config.Config
	logger    *utils.Logger
	fonts     *fontmanifest.Generator
	html      *htmlinclude.Processor
	styles    *styles.Builder
	cache     domain.Cache
	ownsCache bool
	registry  *Registry

	// manifestMu keeps style compilation off the font manifest while it is
	// being rewritten
	manifestMu sync.Mutex
}

// Options contains options for creating a pipeline
type Options struct {
	domain.CommonOptions
	Config *config.Config
	// Compiler overrides the sass command line compiler
	Compiler styles.Compiler
	// Cache overrides the on-disk build cache
	Cache domain.Cache
	// Observer is told about every finished build step
	Observer Observer
	Logger   *utils.Logger
}

// New creates a pipeline from the given configuration
func New(opts Options) (*Pipeline, error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	logger := opts.Logger
	if logger == nil {
		logLevel := cfg.Logging.Level
		if opts.Verbose {
			logLevel = "debug"
		}
		logger = utils.NewLogger(utils.LoggerOptions{
			Level:   logLevel,
			Format:  cfg.Logging.Format,
			Verbose: opts.Verbose,
		})
	}

	p := &Pipeline{
		config: cfg,
		logger: logger,
	}

	// Build cache
	switch {
	case opts.Cache != nil:
		p.cache = opts.Cache
	case cfg.Cache.Enabled && !opts.NoCache:
		c, err := cache.NewBadgerCache(cache.Options{
			Directory: utils.ExpandPath(cfg.Cache.Directory),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open build cache: %w", err)
		}
		p.cache = c
		p.ownsCache = true
	}

	// Force discards every stored fingerprint
	if opts.Force && p.cache != nil {
		if c, ok := p.cache.(interface{ Clear() error }); ok {
			if err := c.Clear(); err != nil {
				logger.Warn().Err(err).Msg("Failed to clear build cache")
			}
		}
	}

	compiler := opts.Compiler
	if compiler == nil {
		sass := styles.NewSassCLI(cfg.Styles.Compiler, nil)
		sass.LoadPaths = cfg.Styles.LoadPaths
		sass.SourceMap = cfg.Styles.SourceMap
		compiler = sass
	}

	builder, err := styles.NewBuilder(styles.BuilderOptions{
		SourceGlob: cfg.Paths.Styles,
		LoadPaths:  cfg.Styles.LoadPaths,
		OutputDir:  cfg.Paths.CSSDir,
		Minify:     cfg.Styles.Minify,
		SourceMap:  cfg.Styles.SourceMap,
		Workers:    cfg.Styles.Workers,
		Compiler:   compiler,
		Cache:      p.cache,
		Logger:     logger,
	})
	if err != nil {
		_ = p.Close()
		return nil, err
	}
	p.styles = builder

	p.fonts = fontmanifest.NewGenerator(fontmanifest.Options{Logger: logger})
	p.html = htmlinclude.NewProcessor(htmlinclude.Options{
		MaxDepth: cfg.HTML.MaxDepth,
		Context:  cfg.HTML.Context,
		Logger:   logger,
	})

	fonts := Observe(NewTask(TaskFonts, p.runFonts), opts.Observer)
	html := Observe(NewTask(TaskHTML, p.runHTML), opts.Observer)
	style := Observe(NewTask(TaskStyles, p.runStyles), opts.Observer)
	build := Series(TaskBuild, fonts, html, style)
	watch := NewTask(TaskWatch, p.runWatch)
	serve := NewTask(TaskServe, p.runServe)

	p.registry = NewRegistry(
		fonts, html, style, build, watch, serve,
		Series(TaskDev, build, Parallel("live", watch, serve)),
	)

	return p, nil
}

// Registry returns the named tasks of the pipeline
func (p *Pipeline) Registry() *Registry {
	return p.registry
}

// Run executes the task registered under name
func (p *Pipeline) Run(ctx context.Context, name string) error {
	startTime := time.Now()

	t, err := p.registry.Get(name)
	if err != nil {
		return err
	}

	p.logger.Debug().Str("task", name).Msg("Starting task")
	if err := t.Run(ctx); err != nil {
		if ctx.Err() != nil {
			p.logger.Warn().Str("task", name).Msg("Task cancelled")
			return ctx.Err()
		}
		return err
	}

	p.logger.Info().
		Str("task", name).
		Dur("duration", time.Since(startTime)).
		Msg("Task completed")
	return nil
}

// Close releases all resources held by the pipeline
func (p *Pipeline) Close() error {
	if p.ownsCache && p.cache != nil {
		return p.cache.Close()
	}
	return nil
}

func (p *Pipeline) runFonts(ctx context.Context) error {
	return p.fonts.Generate(p.config.Paths.FontsDir, p.config.Paths.FontManifest)
}

func (p *Pipeline) runHTML(ctx context.Context) error {
	written, err := p.html.Process(ctx, p.config.Paths.HTMLEntries, p.config.Paths.Dest)
	if err != nil {
		return err
	}
	p.logger.Info().Int("pages", len(written)).Str("dest", p.config.Paths.Dest).Msg("Pages assembled")
	return nil
}

func (p *Pipeline) runStyles(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, p.config.Styles.Timeout)
	defer cancel()

	results, err := p.styles.Build(ctx)
	if err != nil {
		return err
	}

	compiled, skipped := 0, 0
	for _, r := range results {
		if r.Skipped {
			skipped++
		} else {
			compiled++
		}
	}
	p.logger.Info().
		Int("compiled", compiled).
		Int("skipped", skipped).
		Str("dest", p.config.Paths.CSSDir).
		Msg("Styles built")
	return nil
}

func (p *Pipeline) runWatch(ctx context.Context) error {
	w, err := p.NewWatcher()
	if err != nil {
		return err
	}
	return w.Run(ctx)
}

func (p *Pipeline) runServe(ctx context.Context) error {
	srv, err := devserver.New(devserver.Options{
		Addr:            p.config.Server.Addr,
		Root:            p.config.Paths.Dest,
		ShutdownTimeout: p.config.Server.ShutdownTimeout,
		Logger:          p.logger,
	})
	if err != nil {
		return err
	}
	return srv.Start(ctx)
}

// NewWatcher creates a watcher that re-runs the build steps affected by a
// change. Compile errors are logged and watching continues.
func (p *Pipeline) NewWatcher() (*watcher.Watcher, error) {
	return watcher.New(watcher.Options{
		Roots:    []string{p.config.Paths.Src, p.config.Paths.FontsDir},
		Debounce: p.config.Watch.Debounce,
		Logger:   p.logger,
	}, p.WatchRules()...)
}

// WatchRules returns the rebuild rules used in watch mode
func (p *Pipeline) WatchRules() []watcher.Rule {
	paths := p.config.Paths
	htmlPatterns := append(slashAll(paths.HTMLEntries), path.Join(filepath.ToSlash(paths.Src), "**", "*.html"))

	return []watcher.Rule{
		{
			Name:     TaskFonts,
			Patterns: []string{path.Join(filepath.ToSlash(paths.FontsDir), "*")},
			Handler:  p.handler(TaskFonts),
		},
		{
			Name:     TaskHTML,
			Patterns: htmlPatterns,
			Handler:  p.handler(TaskHTML),
		},
		{
			Name:     TaskStyles,
			Patterns: []string{filepath.ToSlash(paths.Styles)},
			Handler:  p.handler(TaskStyles),
		},
	}
}

func (p *Pipeline) handler(name string) watcher.Handler {
	return func(ctx context.Context) error {
		if name == TaskFonts || name == TaskStyles {
			p.manifestMu.Lock()
			defer p.manifestMu.Unlock()
		}
		return p.registry.Run(ctx, name)
	}
}

func slashAll(paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = filepath.ToSlash(p)
	}
	return out
}
