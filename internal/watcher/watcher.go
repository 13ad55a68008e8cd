// Package watcher re-runs build tasks when source files change.
//
// A Watcher watches directory trees recursively and dispatches debounced
// filesystem events to rules whose doublestar patterns match the changed
// path. A rule's handler never runs concurrently with itself: changes that
// arrive while it runs are coalesced into a single follow-up run.
package watcher

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	"github.com/quantmind-br/assetforge/internal/utils"
)

// DefaultDebounce groups bursts of events into one run
const DefaultDebounce = 100 * time.Millisecond

// ErrNoRules indicates a watcher was created without rules
var ErrNoRules = errors.New("watcher needs at least one rule")

// Handler is invoked when a rule matches; it receives no event payload
type Handler func(ctx context.Context) error

// Rule binds path patterns to a handler
type Rule struct {
	Name string
	// Patterns are doublestar globs, relative to the watcher base unless absolute
	Patterns []string
	Handler  Handler
}

// Matches reports whether rel (slash separated, relative to the base) or abs
// matches one of the rule patterns
func (r Rule) Matches(rel, abs string) bool {
	for _, p := range r.Patterns {
		target := rel
		if filepath.IsAbs(p) {
			target = filepath.ToSlash(abs)
			p = filepath.ToSlash(p)
		}
		if ok, _ := doublestar.Match(p, target); ok {
			return true
		}
	}
	return false
}

// Options contains options for the watcher
type Options struct {
	// Roots are directories watched recursively. A root that does not exist
	// yet is picked up once it is created.
	Roots []string
	// Base is the directory relative patterns are resolved against
	Base     string
	Debounce time.Duration
	Logger   *utils.Logger
}

// Watcher dispatches filesystem changes to rules
type Watcher struct {
	fsw      *fsnotify.Watcher
	base     string
	debounce time.Duration
	runners  []*ruleRunner
	logger   *utils.Logger

	// roots are watched trees; missing roots wait for their creation
	roots   []string
	missing []string
}

// New creates a watcher over opts.Roots
func New(opts Options, rules ...Rule) (*Watcher, error) {
	if len(rules) == 0 {
		return nil, ErrNoRules
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Logger == nil {
		opts.Logger = utils.NewNopLogger()
	}
	if opts.Base == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		opts.Base = wd
	}
	base, err := filepath.Abs(opts.Base)
	if err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	logger := opts.Logger.WithComponent("watcher")
	w := &Watcher{
		fsw:      fsw,
		base:     base,
		debounce: opts.Debounce,
		logger:   logger,
	}
	for _, r := range rules {
		w.runners = append(w.runners, newRuleRunner(r, logger))
	}

	for _, root := range opts.Roots {
		if !filepath.IsAbs(root) {
			root = filepath.Join(base, root)
		}
		if err := w.watchRoot(root); err != nil {
			_ = fsw.Close()
			return nil, err
		}
	}
	return w, nil
}

// watchRoot watches root recursively. While root does not exist its nearest
// existing ancestor is watched instead.
func (w *Watcher) watchRoot(root string) error {
	if utils.IsDir(root) {
		w.roots = append(w.roots, root)
		_, err := w.addTree(root)
		return err
	}
	w.missing = append(w.missing, root)
	return w.watchAncestor(root)
}

func (w *Watcher) watchAncestor(root string) error {
	dir := filepath.Dir(root)
	for {
		if utils.IsDir(dir) {
			w.logger.Debug().Str("root", root).Str("dir", dir).Msg("Watch root does not exist yet, watching parent")
			return w.fsw.Add(dir)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return nil
		}
		dir = parent
	}
}

// addTree watches dir and all of its sub-directories. It returns the files
// found, which may have been written before the watch was in place.
func (w *Watcher) addTree(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir && errors.Is(err, fs.ErrNotExist) {
				return filepath.SkipDir
			}
			return err
		}
		if !d.IsDir() {
			files = append(files, path)
			return nil
		}
		return w.fsw.Add(path)
	})
	if errors.Is(err, filepath.SkipDir) {
		return files, nil
	}
	return files, err
}

// attachCreated handles a new directory: missing roots that now exist are
// watched, directories on the way to a missing root are followed, and new
// directories inside a watched root are added. It returns the files found.
func (w *Watcher) attachCreated(dir string) []string {
	var files []string

	still := w.missing[:0]
	for _, root := range w.missing {
		switch {
		case utils.IsDir(root):
			found, err := w.addTree(root)
			if err != nil {
				w.logger.Warn().Err(err).Str("root", root).Msg("Failed to watch root")
				still = append(still, root)
				continue
			}
			w.logger.Debug().Str("root", root).Msg("Watch root created")
			w.roots = append(w.roots, root)
			files = append(files, found...)
		case within(root, dir):
			if err := w.fsw.Add(dir); err != nil {
				w.logger.Warn().Err(err).Str("dir", dir).Msg("Failed to watch new directory")
			}
			still = append(still, root)
		default:
			still = append(still, root)
		}
	}
	w.missing = still

	for _, root := range w.roots {
		if within(dir, root) {
			found, err := w.addTree(dir)
			if err != nil {
				w.logger.Warn().Err(err).Str("dir", dir).Msg("Failed to watch new directory")
			}
			files = append(files, found...)
			break
		}
	}
	return files
}

// detachRemoved returns watched roots at or below path to the missing set
func (w *Watcher) detachRemoved(path string) {
	kept := w.roots[:0]
	for _, root := range w.roots {
		if !within(root, path) {
			kept = append(kept, root)
			continue
		}
		w.logger.Debug().Str("root", root).Msg("Watch root removed")
		w.missing = append(w.missing, root)
		if err := w.watchAncestor(root); err != nil {
			w.logger.Warn().Err(err).Str("root", root).Msg("Failed to watch parent of removed root")
		}
	}
	w.roots = kept
}

// within reports whether path is dir or lies below it
func within(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// WatchList returns the directories currently watched
func (w *Watcher) WatchList() []string {
	return w.fsw.WatchList()
}

// Run dispatches events until ctx is cancelled
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()

	var wg sync.WaitGroup
	for _, r := range w.runners {
		r := r
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.run(ctx)
		}()
	}
	defer wg.Wait()

	pending := make(map[*ruleRunner]struct{})
	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	w.logger.Info().Int("dirs", len(w.fsw.WatchList())).Msg("Watching for changes")
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if matched := w.handleEvent(event); len(matched) > 0 {
				for _, r := range matched {
					pending[r] = struct{}{}
				}
				if timer == nil {
					timer = time.NewTimer(w.debounce)
				} else {
					timer.Reset(w.debounce)
				}
				fire = timer.C
			}

		case <-fire:
			fire = nil
			for r := range pending {
				r.notify()
				delete(pending, r)
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn().Err(err).Msg("Watch error")
		}
	}
}

// handleEvent returns the runners interested in event and keeps the watch
// set in step with created and removed directories
func (w *Watcher) handleEvent(event fsnotify.Event) []*ruleRunner {
	if event.Op == fsnotify.Chmod {
		return nil
	}

	matched := w.match(event.Name)

	switch {
	case event.Has(fsnotify.Create) && utils.IsDir(event.Name):
		for _, file := range w.attachCreated(event.Name) {
			matched = append(matched, w.match(file)...)
		}
	case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
		w.detachRemoved(event.Name)
	}
	return matched
}

func (w *Watcher) match(path string) []*ruleRunner {
	abs := path
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(w.base, abs)
	}
	rel := utils.RelSlash(w.base, abs)

	var matched []*ruleRunner
	for _, r := range w.runners {
		if r.rule.Matches(rel, abs) {
			matched = append(matched, r)
		}
	}
	return matched
}
