// Package htmlinclude assembles HTML pages from partials.
//
// Entry files may contain include directives that are replaced by the
// content of the named file, resolved relative to the including file:
//
//	@@include('partials/header.html')
//	@@include('partials/card.html', {"title": "Pricing", "price": 12})
//
// Parameters are exposed inside the included file as @@title, @@price and
// are inherited by nested includes. Unknown variables are left as they are.
package htmlinclude

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/quantmind-br/assetforge/internal/utils"
)

// DefaultMaxDepth bounds include nesting
const DefaultMaxDepth = 32

var (
	includeRegex  = regexp.MustCompile(`@@include\(\s*(['"])(.+?)(?:['"])\s*(?:,\s*(\{[\s\S]*?\}))?\s*\)`)
	variableRegex = regexp.MustCompile(`@@([A-Za-z_][A-Za-z0-9_]*(?:\.[A-Za-z_][A-Za-z0-9_]*)*)`)
)

// Processor expands include directives
type Processor struct {
	maxDepth int
	context  map[string]any
	logger   *utils.Logger
}

// Options contains options for the processor
type Options struct {
	MaxDepth int
	// Context holds variables visible to every entry
	Context map[string]any
	Logger  *utils.Logger
}

// NewProcessor creates a new include processor
func NewProcessor(opts Options) *Processor {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	if opts.Logger == nil {
		opts.Logger = utils.NewNopLogger()
	}
	return &Processor{
		maxDepth: opts.MaxDepth,
		context:  opts.Context,
		logger:   opts.Logger.WithComponent("htmlinclude"),
	}
}

// Process renders every file matched by entries into destDir, keeping the
// base name. It returns the written paths.
func (p *Processor) Process(ctx context.Context, entries []string, destDir string) ([]string, error) {
	files, err := ResolveEntries(entries)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoEntries, strings.Join(entries, ", "))
	}

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return nil, err
	}

	written := make([]string, 0, len(files))
	for _, file := range files {
		select {
		case <-ctx.Done():
			return written, ctx.Err()
		default:
		}

		out, err := p.Render(file)
		if err != nil {
			return written, err
		}

		dest := filepath.Join(destDir, filepath.Base(file))
		if err := os.WriteFile(dest, out, 0644); err != nil {
			return written, err
		}
		written = append(written, dest)
		p.logger.WithPath(dest).Debug().Str("entry", file).Msg("Page assembled")
	}
	return written, nil
}

// Render expands the includes of a single file
func (p *Processor) Render(path string) ([]byte, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, err
	}
	content := substitute(string(data), p.context)
	out, err := p.expand(content, abs, p.context, []string{abs})
	if err != nil {
		return nil, err
	}
	return []byte(out), nil
}

// expand replaces the directives of content, which was read from file.
// stack holds the chain of files currently being expanded.
func (p *Processor) expand(content, file string, vars map[string]any, stack []string) (string, error) {
	if len(stack) > p.maxDepth {
		return "", fmt.Errorf("%w: %d levels at %s", ErrMaxDepth, len(stack), file)
	}

	matches := includeRegex.FindAllStringSubmatchIndex(content, -1)
	if len(matches) == 0 {
		return content, nil
	}

	var b strings.Builder
	last := 0
	for _, m := range matches {
		b.WriteString(content[last:m[0]])
		last = m[1]

		target := content[m[4]:m[5]]
		rawParams := ""
		if m[6] >= 0 {
			rawParams = content[m[6]:m[7]]
		}

		included, err := p.include(file, target, rawParams, vars, stack)
		if err != nil {
			return "", err
		}
		b.WriteString(included)
	}
	b.WriteString(content[last:])
	return b.String(), nil
}

func (p *Processor) include(file, target, rawParams string, vars map[string]any, stack []string) (string, error) {
	fail := func(err error) error {
		return &IncludeError{File: file, Target: target, Err: err}
	}

	params := map[string]any{}
	if rawParams != "" {
		if err := json.Unmarshal([]byte(rawParams), &params); err != nil {
			return "", fail(fmt.Errorf("%w: %v", ErrInvalidParams, err))
		}
	}

	path := filepath.Clean(filepath.Join(filepath.Dir(file), target))
	for _, open := range stack {
		if open == path {
			return "", fail(ErrIncludeCycle)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fail(ErrIncludeNotFound)
		}
		return "", fail(err)
	}

	scope := mergeVars(vars, params)
	content := substitute(string(data), scope)

	next := append(append([]string(nil), stack...), path)
	return p.expand(content, path, scope, next)
}

// ResolveEntries expands doublestar patterns into a sorted, de-duplicated
// list of files. Literal paths are kept even if they do not exist so the
// caller reports them.
func ResolveEntries(patterns []string) ([]string, error) {
	seen := make(map[string]struct{})
	var files []string
	for _, pattern := range patterns {
		if !hasMeta(pattern) {
			if _, ok := seen[pattern]; !ok {
				seen[pattern] = struct{}{}
				files = append(files, pattern)
			}
			continue
		}
		matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("invalid entry pattern %q: %w", pattern, err)
		}
		sort.Strings(matches)
		for _, m := range matches {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			files = append(files, m)
		}
	}
	return files, nil
}

func hasMeta(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[{")
}
