package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/quantmind-br/assetforge/internal/config"
	"github.com/quantmind-br/assetforge/internal/domain"
	"github.com/quantmind-br/assetforge/internal/fontmanifest"
	"github.com/quantmind-br/assetforge/internal/htmlinclude"
	"github.com/quantmind-br/assetforge/internal/styles"
	"github.com/quantmind-br/assetforge/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCompiler struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (c *stubCompiler) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func (c *stubCompiler) Compile(ctx context.Context, entry string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.err != nil {
		return nil, &styles.CompileError{Entry: entry, Stderr: "Error: expected \";\"", Err: c.err}
	}
	return []byte("body {\n  color: red;\n}\n"), nil
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

// newProject lays out a small project in a temp dir and returns its config
func newProject(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()
	src := filepath.Join(root, "src")
	dest := filepath.Join(root, "app")

	writeFile(t, filepath.Join(src, "index.html"), "<body>@@include('partials/header.html', {\"title\": \"Home\"})</body>")
	writeFile(t, filepath.Join(src, "partials", "header.html"), "<h1>@@title</h1>")
	writeFile(t, filepath.Join(src, "scss", "main.scss"), "@import 'fonts';\nbody { color: red; }\n")
	writeFile(t, filepath.Join(dest, "fonts", "Lato-Bold.woff"), "")
	writeFile(t, filepath.Join(dest, "fonts", "Lato-Bold.woff2"), "")

	cfg := config.Default()
	cfg.Paths.Src = src
	cfg.Paths.Dest = dest
	cfg.Paths.HTMLEntries = []string{filepath.Join(src, "index.html")}
	cfg.Paths.Styles = filepath.Join(src, "scss", "**", "*.scss")
	cfg.Paths.CSSDir = filepath.Join(dest, "css")
	cfg.Paths.FontsDir = filepath.Join(dest, "fonts")
	cfg.Paths.FontManifest = filepath.Join(src, "scss", "_fonts.scss")
	cfg.Watch.Debounce = 20 * time.Millisecond
	require.NoError(t, cfg.Validate())
	return cfg
}

func newPipeline(t *testing.T, cfg *config.Config, compiler styles.Compiler, obs Observer) *Pipeline {
	t.Helper()
	p, err := New(Options{
		CommonOptions: domain.CommonOptions{NoCache: true},
		Config:        cfg,
		Compiler:      compiler,
		Observer:      obs,
		Logger:        utils.NewNopLogger(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestNew_RequiresConfig(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
}

func TestNew_InvalidStyles(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.Styles = ""
	_, err := New(Options{
		CommonOptions: domain.CommonOptions{NoCache: true},
		Config:        cfg,
		Compiler:      &stubCompiler{},
		Logger:        utils.NewNopLogger(),
	})

	var verr *domain.ValidationError
	assert.True(t, errors.As(err, &verr))
}

func TestPipeline_RegisteredTasks(t *testing.T) {
	p := newPipeline(t, newProject(t), &stubCompiler{}, nil)

	assert.Equal(t,
		[]string{TaskBuild, TaskDev, TaskFonts, TaskHTML, TaskServe, TaskStyles, TaskWatch},
		p.Registry().Names(),
	)
}

func TestPipeline_UnknownTask(t *testing.T) {
	p := newPipeline(t, newProject(t), &stubCompiler{}, nil)

	err := p.Run(context.Background(), "deploy")
	assert.ErrorIs(t, err, domain.ErrUnknownTask)
}

func TestPipeline_Build(t *testing.T) {
	cfg := newProject(t)

	var mu sync.Mutex
	var done []string
	obs := ObserverFunc(func(name string, elapsed time.Duration, err error) {
		mu.Lock()
		defer mu.Unlock()
		done = append(done, name)
	})

	compiler := &stubCompiler{}
	p := newPipeline(t, cfg, compiler, obs)

	require.NoError(t, p.Run(context.Background(), TaskBuild))

	manifest, err := os.ReadFile(cfg.Paths.FontManifest)
	require.NoError(t, err)
	assert.Equal(t, "@include font-face(\"Lato-Bold\", \"Lato-Bold\", 400);\n", string(manifest))

	page, err := os.ReadFile(filepath.Join(cfg.Paths.Dest, "index.html"))
	require.NoError(t, err)
	assert.Equal(t, "<body><h1>Home</h1></body>", string(page))

	css, err := os.ReadFile(filepath.Join(cfg.Paths.CSSDir, "main.min.css"))
	require.NoError(t, err)
	assert.Equal(t, "body{color:red}", string(css))

	assert.Equal(t, 1, compiler.count())
	assert.Equal(t, []string{TaskFonts, TaskHTML, TaskStyles}, done)
	assert.Len(t, done, BuildSteps)
}

func TestPipeline_BuildStopsOnCompileError(t *testing.T) {
	cfg := newProject(t)
	compiler := &stubCompiler{err: errors.New("exit status 65")}
	p := newPipeline(t, cfg, compiler, nil)

	err := p.Run(context.Background(), TaskBuild)
	require.Error(t, err)

	var compileErr *styles.CompileError
	assert.True(t, errors.As(err, &compileErr))

	name, ok := domain.FailedTask(err)
	assert.True(t, ok)
	assert.Equal(t, TaskStyles, name)

	// Earlier steps still ran
	assert.FileExists(t, cfg.Paths.FontManifest)
	assert.FileExists(t, filepath.Join(cfg.Paths.Dest, "index.html"))
}

func TestPipeline_FontsWriteFailure(t *testing.T) {
	cfg := newProject(t)
	cfg.Paths.FontManifest = filepath.Join(cfg.Paths.Src, "missing", "_fonts.scss")
	p := newPipeline(t, cfg, &stubCompiler{}, nil)

	err := p.Run(context.Background(), TaskFonts)
	assert.ErrorIs(t, err, fontmanifest.ErrWriteFailed)
	assert.ErrorIs(t, err, domain.ErrWriteFailed)
}

func TestPipeline_HTMLIncludeMissing(t *testing.T) {
	cfg := newProject(t)
	writeFile(t, cfg.Paths.HTMLEntries[0], "@@include('nope.html')")
	p := newPipeline(t, cfg, &stubCompiler{}, nil)

	err := p.Run(context.Background(), TaskHTML)
	assert.ErrorIs(t, err, htmlinclude.ErrIncludeNotFound)
}

func TestPipeline_BuildWithCache(t *testing.T) {
	cfg := newProject(t)
	cfg.Cache.Directory = filepath.Join(t.TempDir(), "cache")
	compiler := &stubCompiler{}

	p, err := New(Options{Config: cfg, Compiler: compiler, Logger: utils.NewNopLogger()})
	require.NoError(t, err)

	require.NoError(t, p.Run(context.Background(), TaskBuild))
	require.NoError(t, p.Run(context.Background(), TaskBuild))
	require.NoError(t, p.Close())

	assert.Equal(t, 1, compiler.count())
	assert.DirExists(t, cfg.Cache.Directory)

	forced, err := New(Options{
		CommonOptions: domain.CommonOptions{Force: true},
		Config:        cfg,
		Compiler:      compiler,
		Logger:        utils.NewNopLogger(),
	})
	require.NoError(t, err)
	defer forced.Close()

	require.NoError(t, forced.Run(context.Background(), TaskStyles))
	assert.Equal(t, 2, compiler.count())
}

func TestPipeline_WatchRules(t *testing.T) {
	cfg := newProject(t)
	p := newPipeline(t, cfg, &stubCompiler{}, nil)

	rules := p.WatchRules()
	require.Len(t, rules, 3)

	byName := make(map[string]bool)
	for _, r := range rules {
		byName[r.Name] = true
	}
	assert.True(t, byName[TaskFonts])
	assert.True(t, byName[TaskHTML])
	assert.True(t, byName[TaskStyles])

	tests := []struct {
		path string
		rule string
		want bool
	}{
		{filepath.Join(cfg.Paths.FontsDir, "Roboto.woff2"), TaskFonts, true},
		{filepath.Join(cfg.Paths.Src, "partials", "footer.html"), TaskHTML, true},
		{filepath.Join(cfg.Paths.Src, "scss", "base", "_reset.scss"), TaskStyles, true},
		{filepath.Join(cfg.Paths.Src, "scss", "base", "_reset.scss"), TaskHTML, false},
		{filepath.Join(cfg.Paths.Dest, "index.html"), TaskHTML, false},
	}

	for _, tt := range tests {
		t.Run(tt.rule+" "+filepath.Base(tt.path), func(t *testing.T) {
			for _, r := range rules {
				if r.Name == tt.rule {
					assert.Equal(t, tt.want, r.Matches("", tt.path))
				}
			}
		})
	}
}

func TestPipeline_WatchRegeneratesManifest(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping watcher test in short mode")
	}

	cfg := newProject(t)
	p := newPipeline(t, cfg, &stubCompiler{}, nil)
	require.NoError(t, p.Run(context.Background(), TaskFonts))

	w, err := p.NewWatcher()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	writeFile(t, filepath.Join(cfg.Paths.FontsDir, "Roboto.woff2"), "")

	assert.Eventually(t, func() bool {
		data, err := os.ReadFile(cfg.Paths.FontManifest)
		return err == nil && string(data) ==
			"@include font-face(\"Lato-Bold\", \"Lato-Bold\", 400);\n"+
				"@include font-face(\"Roboto\", \"Roboto\", 400);\n"
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestPipeline_WatchHandlersShareManifestLock(t *testing.T) {
	cfg := newProject(t)
	compiler := &stubCompiler{}
	p := newPipeline(t, cfg, compiler, nil)

	handlers := make(map[string]func(context.Context) error)
	for _, r := range p.WatchRules() {
		handlers[r.Name] = r.Handler
	}

	// Hold the lock the way a running fonts handler does
	p.manifestMu.Lock()

	errs := make(chan error, 3)
	go func() { errs <- handlers[TaskStyles](context.Background()) }()
	go func() { errs <- handlers[TaskFonts](context.Background()) }()
	go func() { errs <- handlers[TaskHTML](context.Background()) }()

	// html does not touch the manifest and is not held back
	require.NoError(t, <-errs)
	assert.FileExists(t, filepath.Join(cfg.Paths.Dest, "index.html"))

	assert.Never(t, func() bool {
		_, err := os.Stat(cfg.Paths.FontManifest)
		return compiler.count() > 0 || err == nil
	}, 150*time.Millisecond, 10*time.Millisecond)

	p.manifestMu.Unlock()
	require.NoError(t, <-errs)
	require.NoError(t, <-errs)

	assert.Equal(t, 1, compiler.count())
	assert.FileExists(t, cfg.Paths.FontManifest)
}

func TestPipeline_WatchHandlersDoNotOverlap(t *testing.T) {
	cfg := newProject(t)
	p := newPipeline(t, cfg, &stubCompiler{}, nil)

	var fontsHandler, stylesHandler func(context.Context) error
	for _, r := range p.WatchRules() {
		switch r.Name {
		case TaskFonts:
			fontsHandler = r.Handler
		case TaskStyles:
			stylesHandler = r.Handler
		}
	}

	// Every compile must see a complete manifest
	want := "@include font-face(\"Lato-Bold\", \"Lato-Bold\", 400);\n"
	require.NoError(t, fontsHandler(context.Background()))

	var wg sync.WaitGroup
	var mu sync.Mutex
	var seen []string
	checking := &readingCompiler{path: cfg.Paths.FontManifest, seen: func(s string) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
	}}
	p.styles = mustBuilder(t, cfg, checking)

	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() { defer wg.Done(); assert.NoError(t, fontsHandler(context.Background())) }()
		go func() { defer wg.Done(); assert.NoError(t, stylesHandler(context.Background())) }()
	}
	wg.Wait()

	require.Len(t, seen, 20)
	for _, s := range seen {
		assert.Equal(t, want, s)
	}
}

// readingCompiler reads the font manifest while compiling
type readingCompiler struct {
	path string
	seen func(string)
}

func (c *readingCompiler) Compile(ctx context.Context, entry string) ([]byte, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return nil, err
	}
	c.seen(string(data))
	return []byte("a{}"), nil
}

func mustBuilder(t *testing.T, cfg *config.Config, compiler styles.Compiler) *styles.Builder {
	t.Helper()
	b, err := styles.NewBuilder(styles.BuilderOptions{
		SourceGlob: cfg.Paths.Styles,
		OutputDir:  cfg.Paths.CSSDir,
		Compiler:   compiler,
		Logger:     utils.NewNopLogger(),
	})
	require.NoError(t, err)
	return b
}
