package fontmanifest

import (
	"bufio"
	"os"

	"github.com/quantmind-br/assetforge/internal/utils"
	"github.com/spf13/afero"
)

// Generator writes font manifests
type Generator struct {
	fs     afero.Fs
	logger *utils.Logger
}

// Options contains options for the generator
type Options struct {
	Fs     afero.Fs
	Logger *utils.Logger
}

// NewGenerator creates a new generator. A nil Fs means the OS filesystem.
func NewGenerator(opts Options) *Generator {
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.Logger == nil {
		opts.Logger = utils.NewNopLogger()
	}
	return &Generator{
		fs:     opts.Fs,
		logger: opts.Logger.WithComponent("fontmanifest"),
	}
}

// Generate rewrites manifestFile with one declaration per font family found
// in fontsDir.
func (g *Generator) Generate(fontsDir, manifestFile string) error {
	f, err := g.fs.OpenFile(manifestFile, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return writeFailed("truncate", manifestFile, err)
	}

	decls := Declarations(g.listEntries(fontsDir))

	w := bufio.NewWriter(f)
	for _, d := range decls {
		if _, err := w.WriteString(d.String() + "\n"); err != nil {
			_ = f.Close()
			return writeFailed("write", manifestFile, err)
		}
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return writeFailed("write", manifestFile, err)
	}
	if err := f.Close(); err != nil {
		return writeFailed("close", manifestFile, err)
	}

	g.logger.Debug().
		Str("fonts_dir", fontsDir).
		Str("manifest", manifestFile).
		Int("families", len(decls)).
		Msg("Font manifest written")
	return nil
}

// listEntries returns the names of the regular entries in dir. A missing or
// unreadable directory yields no entries.
func (g *Generator) listEntries(dir string) []string {
	infos, err := afero.ReadDir(g.fs, dir)
	if err != nil {
		g.logger.Debug().Err(err).Str("fonts_dir", dir).Msg("Fonts directory not readable, writing empty manifest")
		return nil
	}
	names := make([]string, 0, len(infos))
	for _, info := range infos {
		if info.IsDir() {
			continue
		}
		names = append(names, info.Name())
	}
	return names
}

// Generate rewrites manifestFile using the OS filesystem.
func Generate(fontsDir, manifestFile string) error {
	return NewGenerator(Options{}).Generate(fontsDir, manifestFile)
}
