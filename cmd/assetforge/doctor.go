package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/quantmind-br/assetforge/internal/cache"
	"github.com/quantmind-br/assetforge/internal/config"
	"github.com/quantmind-br/assetforge/internal/fontmanifest"
	"github.com/quantmind-br/assetforge/internal/styles"
	"github.com/quantmind-br/assetforge/internal/utils"
	"github.com/spf13/cobra"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the project and system dependencies",
	Long:  "Verifies that the style compiler is installed and the project directories are usable.",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "Checking project...")
		allPassed := true

		// Check 1: Config file
		fmt.Fprint(out, "  Config file: ")
		cfg, err := loadConfig(cmd)
		if err != nil {
			fmt.Fprintf(out, "FAILED (%v)\n", err)
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Some checks failed. Please resolve the issues above.")
			return nil
		}
		fmt.Fprintln(out, "OK")

		// Check 2: Style compiler
		fmt.Fprint(out, "  Style compiler: ")
		if path, err := checkCompiler(cfg); err == nil {
			fmt.Fprintf(out, "OK (%s)\n", path)
		} else {
			fmt.Fprintf(out, "NOT FOUND (%v)\n", err)
			allPassed = false
		}

		// Check 3: Source directory
		fmt.Fprint(out, "  Source directory: ")
		if checkDir(cfg.Paths.Src) {
			fmt.Fprintf(out, "OK (%s)\n", cfg.Paths.Src)
		} else {
			fmt.Fprintf(out, "FAILED (%s does not exist)\n", cfg.Paths.Src)
			allPassed = false
		}

		// Check 4: Write permissions for output dir
		fmt.Fprint(out, "  Output directory: ")
		if !checkDir(cfg.Paths.Dest) {
			fmt.Fprintln(out, "WARN (will be created on first build)")
		} else if checkWritePermissions(cfg.Paths.Dest) {
			fmt.Fprintf(out, "OK (%s)\n", cfg.Paths.Dest)
		} else {
			fmt.Fprintln(out, "FAILED (not writable)")
			allPassed = false
		}

		// Check 5: Fonts
		fmt.Fprint(out, "  Fonts: ")
		reportFonts(out, cfg.Paths.FontsDir)

		// Check 6: Cache directory
		fmt.Fprint(out, "  Cache directory: ")
		cacheDir := utils.ExpandPath(cfg.Cache.Directory)
		switch {
		case !cfg.Cache.Enabled:
			fmt.Fprintln(out, "DISABLED")
		case checkDir(cacheDir):
			if n, err := cacheEntries(cacheDir); err != nil {
				fmt.Fprintf(out, "WARN (%s: %v)\n", cacheDir, err)
			} else {
				fmt.Fprintf(out, "OK (%s, %d entries)\n", cacheDir, n)
			}
		default:
			fmt.Fprintln(out, "WARN (will be created on first use)")
		}

		fmt.Fprintln(out)
		if allPassed {
			fmt.Fprintln(out, "All critical checks passed!")
		} else {
			fmt.Fprintln(out, "Some checks failed. Please resolve the issues above.")
		}
		return nil
	},
}

// checkCompiler locates the configured style compiler
func checkCompiler(cfg *config.Config) (string, error) {
	return styles.NewSassCLI(cfg.Styles.Compiler, execRunner).Check()
}

// cacheEntries counts the entries of the build cache in dir. It fails while
// another process holds the cache open.
func cacheEntries(dir string) (int64, error) {
	c, err := cache.NewBadgerCache(cache.Options{Directory: dir})
	if err != nil {
		return 0, err
	}
	defer c.Close()
	return c.Size(), nil
}

// checkDir reports whether path is an existing directory
func checkDir(path string) bool {
	info, err := osStat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// checkWritePermissions checks if we can write to dir
func checkWritePermissions(dir string) bool {
	f, err := os.CreateTemp(dir, ".assetforge_test_write")
	if err != nil {
		return false
	}
	name := f.Name()
	f.Close()
	os.Remove(name)
	return true
}

// reportFonts prints the font families the manifest would declare
func reportFonts(out io.Writer, dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		fmt.Fprintf(out, "WARN (%s not found, manifest will be empty)\n", dir)
		return
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	families := fontmanifest.Declarations(names)
	fmt.Fprintf(out, "OK (%d families in %s)\n", len(families), filepath.Clean(dir))
}
