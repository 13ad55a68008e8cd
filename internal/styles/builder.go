// Package styles compiles style sheet entries through an external compiler
// and writes minified CSS into the output tree.
//
// Every non-partial file matched by the source glob is an entry. The
// compiled output of src/scss/main.scss is written as main.min.css.
package styles

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/quantmind-br/assetforge/internal/cache"
	"github.com/quantmind-br/assetforge/internal/domain"
	"github.com/quantmind-br/assetforge/internal/utils"
	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"golang.org/x/sync/errgroup"
)

// DefaultWorkers bounds concurrent compilations
const DefaultWorkers = 4

// Builder compiles all style entries
type Builder struct {
	sourceGlob string
	sourceRoot string
	loadPaths  []string
	outputDir  string
	minify     bool
	sourceMap  bool
	workers    int
	compiler   Compiler
	cache      domain.Cache
	minifier   *minify.M
	logger     *utils.Logger
}

// BuilderOptions contains options for the builder
type BuilderOptions struct {
	// SourceGlob selects entries, e.g. "src/scss/**/*.scss"
	SourceGlob string
	// SourceRoot is hashed to detect changes; defaults to the glob base
	SourceRoot string
	// LoadPaths are extra import directories; they are hashed with the sources
	LoadPaths []string
	OutputDir string
	Minify    bool
	SourceMap bool
	Workers   int
	Compiler  Compiler
	// Cache is optional; nil disables change detection
	Cache  domain.Cache
	Logger *utils.Logger
}

// Result describes one processed entry
type Result struct {
	Entry   string
	Output  string
	Skipped bool
	Size    int
}

// NewBuilder creates a new style builder
func NewBuilder(opts BuilderOptions) (*Builder, error) {
	if opts.SourceGlob == "" {
		return nil, domain.NewValidationError("styles.source", "source glob is required")
	}
	if opts.OutputDir == "" {
		return nil, domain.NewValidationError("styles.output", "output directory is required")
	}
	if opts.Compiler == nil {
		return nil, domain.NewValidationError("styles.compiler", "compiler is required")
	}
	if opts.SourceRoot == "" {
		base, _ := doublestar.SplitPattern(filepath.ToSlash(opts.SourceGlob))
		opts.SourceRoot = filepath.FromSlash(base)
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.Logger == nil {
		opts.Logger = utils.NewNopLogger()
	}

	m := minify.New()
	m.AddFunc("text/css", css.Minify)

	return &Builder{
		sourceGlob: opts.SourceGlob,
		sourceRoot: opts.SourceRoot,
		loadPaths:  opts.LoadPaths,
		outputDir:  opts.OutputDir,
		minify:     opts.Minify,
		sourceMap:  opts.SourceMap,
		workers:    opts.Workers,
		compiler:   opts.Compiler,
		cache:      opts.Cache,
		minifier:   m,
		logger:     opts.Logger.WithComponent("styles"),
	}, nil
}

// Entries returns the sorted non-partial files matched by the source glob
func (b *Builder) Entries() ([]string, error) {
	matches, err := doublestar.FilepathGlob(b.sourceGlob, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("invalid style glob %q: %w", b.sourceGlob, err)
	}
	entries := matches[:0]
	for _, m := range matches {
		if !utils.IsPartial(m) {
			entries = append(entries, m)
		}
	}
	sort.Strings(entries)
	return entries, nil
}

// OutputPath returns where an entry is written
func (b *Builder) OutputPath(entry string) string {
	return filepath.Join(b.outputDir, utils.OutputName(entry, utils.MinSuffix, ".css"))
}

// Build compiles every entry. Compilation stops at the first failure.
func (b *Builder) Build(ctx context.Context) ([]Result, error) {
	entries, err := b.Entries()
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		b.logger.Warn().Str("glob", b.sourceGlob).Msg("No style entries found")
		return nil, nil
	}

	if err := os.MkdirAll(b.outputDir, 0755); err != nil {
		return nil, err
	}

	fingerprint := ""
	if b.cache != nil {
		fingerprint, err = b.Fingerprint()
		if err != nil {
			return nil, err
		}
	}

	results := make([]Result, len(entries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)
	for i, entry := range entries {
		i, entry := i, entry
		g.Go(func() error {
			res, err := b.buildEntry(gctx, entry, fingerprint)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (b *Builder) buildEntry(ctx context.Context, entry, fingerprint string) (Result, error) {
	out := b.OutputPath(entry)
	key := cache.StyleKey(entry)

	if fingerprint != "" && b.upToDate(ctx, key, fingerprint, out) {
		b.logger.Debug().Str("entry", entry).Msg("Style unchanged, skipping")
		return Result{Entry: entry, Output: out, Skipped: true}, nil
	}

	compiled, err := b.compiler.Compile(ctx, entry)
	if err != nil {
		return Result{}, err
	}

	if b.minify && !b.sourceMap {
		compiled, err = b.minifier.Bytes("text/css", compiled)
		if err != nil {
			return Result{}, fmt.Errorf("minify %s: %w", entry, err)
		}
	}

	if err := os.WriteFile(out, compiled, 0644); err != nil {
		return Result{}, fmt.Errorf("%w: %s: %v", domain.ErrWriteFailed, out, err)
	}

	if fingerprint != "" {
		if err := b.cache.Set(ctx, key, []byte(fingerprint), 0); err != nil {
			b.logger.Warn().Err(err).Str("entry", entry).Msg("Failed to store style fingerprint")
		}
	}

	b.logger.Debug().Str("entry", entry).Str("output", out).Int("bytes", len(compiled)).Msg("Style compiled")
	return Result{Entry: entry, Output: out, Size: len(compiled)}, nil
}

func (b *Builder) upToDate(ctx context.Context, key, fingerprint, out string) bool {
	cached, err := b.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, domain.ErrCacheMiss) {
			b.logger.Warn().Err(err).Msg("Style cache lookup failed")
		}
		return false
	}
	if string(cached) != fingerprint {
		return false
	}
	_, err = os.Stat(out)
	return err == nil
}

// Fingerprint hashes every file under the source root and the load paths
// together with the options that influence the output. Any change to a
// partial therefore invalidates every entry. Load paths that do not exist
// are skipped.
func (b *Builder) Fingerprint() (string, error) {
	files, err := listFiles(b.sourceRoot)
	if err != nil {
		return "", err
	}
	for _, dir := range b.loadPaths {
		if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		found, err := listFiles(dir)
		if err != nil {
			return "", err
		}
		files = append(files, found...)
	}
	sort.Strings(files)
	files = slices.Compact(files)

	h := sha256.New()
	fmt.Fprintf(h, "minify=%t sourcemap=%t loadpaths=%q\n", b.minify, b.sourceMap, b.loadPaths)
	for _, path := range files {
		fmt.Fprintf(h, "%s\n", filepath.ToSlash(path))
		f, err := os.Open(path)
		if err != nil {
			return "", err
		}
		_, err = io.Copy(h, f)
		f.Close()
		if err != nil {
			return "", err
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// listFiles returns the cleaned paths of all regular files below dir
func listFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			files = append(files, filepath.Clean(path))
		}
		return nil
	})
	return files, err
}
