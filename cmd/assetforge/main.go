package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/quantmind-br/assetforge/internal/config"
	"github.com/quantmind-br/assetforge/internal/domain"
	"github.com/quantmind-br/assetforge/internal/pipeline"
	"github.com/quantmind-br/assetforge/internal/styles"
	"github.com/quantmind-br/assetforge/internal/utils"
	"github.com/quantmind-br/assetforge/pkg/version"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	cfgFile string
	verbose bool
	log     = utils.NewDefaultLogger()

	// Dependencies for testing
	osStat                     = os.Stat
	execRunner   styles.Runner = styles.ExecRunner{}
	newCompiler                = func(cfg *config.Config) styles.Compiler { return nil }
	progressOut  io.Writer     = os.Stderr
	notifySignal               = signal.Notify
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   version.Name,
	Short: "Build, watch and serve front-end assets",
	Long: `AssetForge assembles HTML pages from partials, compiles style sheets with
the sass compiler, generates the font manifest for converted web fonts and
serves the output directory while watching sources for changes.

Running assetforge without a sub-command builds everything, then watches
and serves until interrupted.`,
	Version:       version.Short(),
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          taskRunner(pipeline.TaskDev),
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./assetforge.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().String("src", "", "Source directory")
	rootCmd.PersistentFlags().String("dest", "", "Output directory")
	rootCmd.PersistentFlags().String("addr", config.DefaultServerAddr, "Development server address")
	rootCmd.PersistentFlags().Bool("no-cache", false, "Disable the build cache")
	rootCmd.PersistentFlags().Bool("force", false, "Rebuild everything / overwrite existing files")

	// Add subcommands
	for _, c := range []struct{ name, short string }{
		{pipeline.TaskBuild, "Generate the font manifest, assemble pages and compile styles"},
		{pipeline.TaskFonts, "Regenerate the font manifest"},
		{pipeline.TaskHTML, "Assemble HTML pages from partials"},
		{pipeline.TaskStyles, "Compile style sheets"},
		{pipeline.TaskWatch, "Watch sources and rebuild on change"},
		{pipeline.TaskServe, "Serve the output directory"},
	} {
		rootCmd.AddCommand(&cobra.Command{
			Use:   c.name,
			Short: c.short,
			Args:  cobra.NoArgs,
			RunE:  taskRunner(c.name),
		})
	}
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig loads the configuration and applies the directory flags
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	flags := cmd.Flags()
	cfg, err := config.Load(cfgFile, map[string]*pflag.Flag{
		"server.addr": flags.Lookup("addr"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	src, _ := flags.GetString("src")
	dest, _ := flags.GetString("dest")
	cfg.Relocate(src, dest)
	return cfg, nil
}

func newLogger(cfg *config.Config) *utils.Logger {
	logLevel := cfg.Logging.Level
	if verbose {
		logLevel = "debug"
	}
	return utils.NewLogger(utils.LoggerOptions{
		Level:   logLevel,
		Format:  cfg.Logging.Format,
		Verbose: verbose,
	})
}

// signalContext returns a context cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	notifySignal(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case <-sigCh:
			log.Info().Msg("Shutting down gracefully...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}

func taskRunner(name string) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		log = newLogger(cfg)

		ctx, cancel := signalContext()
		defer cancel()

		noCache, _ := cmd.Flags().GetBool("no-cache")
		force, _ := cmd.Flags().GetBool("force")

		var observer pipeline.Observer
		switch name {
		case pipeline.TaskBuild:
			bar := utils.NewProgressBar(pipeline.BuildSteps, utils.DescBuilding, progressOut)
			defer bar.Finish()
			observer = pipeline.ObserverFunc(func(string, time.Duration, error) { _ = bar.Add(1) })
		case pipeline.TaskStyles:
			bar := utils.NewProgressBar(-1, utils.DescCompiling, progressOut)
			defer bar.Finish()
			observer = pipeline.ObserverFunc(func(string, time.Duration, error) { _ = bar.Add(1) })
		}

		p, err := pipeline.New(pipeline.Options{
			CommonOptions: domain.CommonOptions{
				Verbose: verbose,
				NoCache: noCache,
				Force:   force,
			},
			Config:   cfg,
			Compiler: newCompiler(cfg),
			Observer: observer,
			Logger:   log,
		})
		if err != nil {
			return fmt.Errorf("failed to create pipeline: %w", err)
		}
		defer p.Close()

		err = p.Run(ctx, name)
		var compileErr *styles.CompileError
		if errors.As(err, &compileErr) {
			log.Error().Str("entry", compileErr.Entry).Msg(compileErr.Stderr)
		}
		return err
	}
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the project configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write the default configuration",
	Long:  "Writes the default configuration as YAML to ./assetforge.yaml or the given path.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.ConfigFileName
		if len(args) == 1 {
			path = args[0]
		}
		force, _ := cmd.Flags().GetBool("force")

		if err := utils.EnsureDir(path); err != nil {
			return err
		}
		if err := config.WriteDefault(path, force); err != nil {
			if errors.Is(err, config.ErrConfigExists) {
				return fmt.Errorf("%w (use --force to overwrite)", err)
			}
			return err
		}
		abs, _ := filepath.Abs(path)
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", abs)
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version.Full())
	},
}
