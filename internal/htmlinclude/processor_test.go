package htmlinclude

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTree creates files under a temp dir and returns its path
func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	return dir
}

func TestProcessor_Render(t *testing.T) {
	tests := []struct {
		name     string
		files    map[string]string
		expected string
	}{
		{
			name: "no directives",
			files: map[string]string{
				"index.html": "<p>plain</p>",
			},
			expected: "<p>plain</p>",
		},
		{
			name: "single include",
			files: map[string]string{
				"index.html":         "<body>@@include('partials/head.html')</body>",
				"partials/head.html": "<header>hi</header>",
			},
			expected: "<body><header>hi</header></body>",
		},
		{
			name: "double quoted path",
			files: map[string]string{
				"index.html": `@@include("a.html")`,
				"a.html":     "A",
			},
			expected: "A",
		},
		{
			name: "nested include resolved relative to including file",
			files: map[string]string{
				"index.html":                "[@@include('partials/card.html')]",
				"partials/card.html":        "<div>@@include('parts/title.html')</div>",
				"partials/parts/title.html": "<h2>T</h2>",
			},
			expected: "[<div><h2>T</h2></div>]",
		},
		{
			name: "parameters substituted",
			files: map[string]string{
				"index.html": `@@include('card.html', {"title": "Pricing", "price": 12, "featured": true})`,
				"card.html":  "<h2>@@title</h2><b>@@price</b><i>@@featured</i>",
			},
			expected: "<h2>Pricing</h2><b>12</b><i>true</i>",
		},
		{
			name: "nested parameter objects",
			files: map[string]string{
				"index.html": `@@include('card.html', {"site": {"name": "forge"}})`,
				"card.html":  "<title>@@site.name</title>",
			},
			expected: "<title>forge</title>",
		},
		{
			name: "parameters inherited by nested includes",
			files: map[string]string{
				"index.html": `@@include('outer.html', {"title": "Home"})`,
				"outer.html": `<main>@@include('inner.html')</main>`,
				"inner.html": `<h1>@@title</h1>`,
			},
			expected: "<main><h1>Home</h1></main>",
		},
		{
			name: "unknown variables left untouched",
			files: map[string]string{
				"index.html": `@@include('card.html', {"title": "x"})`,
				"card.html":  "@@title @@missing",
			},
			expected: "x @@missing",
		},
		{
			name: "same partial included twice",
			files: map[string]string{
				"index.html": "@@include('li.html', {\"n\": 1})@@include('li.html', {\"n\": 2})",
				"li.html":    "<li>@@n</li>",
			},
			expected: "<li>1</li><li>2</li>",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := writeTree(t, tt.files)
			p := NewProcessor(Options{})

			out, err := p.Render(filepath.Join(dir, "index.html"))

			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(out))
		})
	}
}

func TestProcessor_GlobalContext(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"index.html": "<title>@@title</title>@@include('foot.html')",
		"foot.html":  "<footer>@@title</footer>",
	})
	p := NewProcessor(Options{Context: map[string]any{"title": "Site"}})

	out, err := p.Render(filepath.Join(dir, "index.html"))

	require.NoError(t, err)
	assert.Equal(t, "<title>Site</title><footer>Site</footer>", string(out))
}

func TestProcessor_Errors(t *testing.T) {
	tests := []struct {
		name    string
		files   map[string]string
		wantErr error
	}{
		{
			name: "missing include",
			files: map[string]string{
				"index.html": "@@include('nope.html')",
			},
			wantErr: ErrIncludeNotFound,
		},
		{
			name: "direct cycle",
			files: map[string]string{
				"index.html": "@@include('index.html')",
			},
			wantErr: ErrIncludeCycle,
		},
		{
			name: "transitive cycle",
			files: map[string]string{
				"index.html": "@@include('a.html')",
				"a.html":     "@@include('b.html')",
				"b.html":     "@@include('a.html')",
			},
			wantErr: ErrIncludeCycle,
		},
		{
			name: "invalid parameters",
			files: map[string]string{
				"index.html": `@@include('a.html', {not json})`,
				"a.html":     "A",
			},
			wantErr: ErrInvalidParams,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := writeTree(t, tt.files)
			p := NewProcessor(Options{})

			_, err := p.Render(filepath.Join(dir, "index.html"))

			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			var incErr *IncludeError
			assert.True(t, errors.As(err, &incErr))
		})
	}
}

func TestProcessor_MaxDepth(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"index.html": "@@include('a.html')",
		"a.html":     "@@include('b.html')",
		"b.html":     "@@include('c.html')",
		"c.html":     "C",
	})
	p := NewProcessor(Options{MaxDepth: 2})

	_, err := p.Render(filepath.Join(dir, "index.html"))

	assert.ErrorIs(t, err, ErrMaxDepth)
}

func TestProcessor_Process(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"src/index.html":        "@@include('partials/nav.html')",
		"src/about.html":        "about",
		"src/partials/nav.html": "<nav/>",
	})
	dest := filepath.Join(dir, "app")
	p := NewProcessor(Options{})

	written, err := p.Process(context.Background(), []string{filepath.Join(dir, "src", "*.html")}, dest)

	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dest, "about.html"), filepath.Join(dest, "index.html")}, written)

	data, err := os.ReadFile(filepath.Join(dest, "index.html"))
	require.NoError(t, err)
	assert.Equal(t, "<nav/>", string(data))
}

func TestProcessor_ProcessNoEntries(t *testing.T) {
	dir := t.TempDir()
	p := NewProcessor(Options{})

	_, err := p.Process(context.Background(), []string{filepath.Join(dir, "*.html")}, filepath.Join(dir, "app"))

	assert.ErrorIs(t, err, ErrNoEntries)
}

func TestProcessor_ProcessCancelled(t *testing.T) {
	dir := writeTree(t, map[string]string{"index.html": "x"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := NewProcessor(Options{})

	_, err := p.Process(ctx, []string{filepath.Join(dir, "index.html")}, filepath.Join(dir, "app"))

	assert.ErrorIs(t, err, context.Canceled)
}

func TestResolveEntries(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"src/b.html":        "",
		"src/a.html":        "",
		"src/nested/c.html": "",
	})

	files, err := ResolveEntries([]string{
		filepath.Join(dir, "src", "**", "*.html"),
		filepath.Join(dir, "src", "a.html"),
	})

	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "src", "a.html"),
		filepath.Join(dir, "src", "b.html"),
		filepath.Join(dir, "src", "nested", "c.html"),
	}, files)
}
