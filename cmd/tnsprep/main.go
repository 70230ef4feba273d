package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/recera/tnsprep/cmd/tnsprep/internal/cache"
	"github.com/recera/tnsprep/cmd/tnsprep/internal/config"
	"github.com/recera/tnsprep/pkg/preprocess"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	version = "0.1.0"
	commit  = "dev"
	date    = "unknown"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// globalFlags are shared by every command
type globalFlags struct {
	configPath string
	namespace  string
	parallel   int
	verbose    bool
}

func newRootCommand() *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "tnsprep",
		Short: "tnsprep - native markup preprocessor for Svelte templates",
		Long: `tnsprep rewrites Svelte component templates for a native UI runtime.
Root elements receive the runtime's xmlns attribute and two-way bind:
directives on native elements are expanded into a property plus a change
event handler.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", "", "Path to config file (default ./"+config.FileName+")")
	pf.StringVar(&flags.namespace, "namespace", "", "Namespace URI added to root elements")
	pf.IntVarP(&flags.parallel, "parallel", "p", 0, "Number of files processed in parallel")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "Verbose output")

	rootCmd.AddCommand(newRunCommand(flags))
	rootCmd.AddCommand(newCheckCommand(flags))
	rootCmd.AddCommand(newWatchCommand(flags))
	rootCmd.AddCommand(newCacheCommand(flags))

	return rootCmd
}

// env is the state a command works with once flags and config are resolved
type env struct {
	cfg *config.Config
	log zerolog.Logger
	pre *preprocess.Preprocessor
}

func (f *globalFlags) setup(cmd *cobra.Command) (*env, error) {
	cfg, err := f.loadConfig()
	if err != nil {
		return nil, err
	}

	if f.namespace != "" {
		cfg.NamespaceURI = f.namespace
	}
	if f.parallel > 0 {
		cfg.Parallel = f.parallel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	log := newLogger(cmd.ErrOrStderr(), cfg.Logging.Level, f.verbose)
	log.Debug().
		Str("namespace", cfg.NamespaceURI).
		Int("parallel", cfg.Parallel).
		Bool("cache", cfg.Cache.Enabled).
		Msg("configuration loaded")

	pre := preprocess.New(preprocess.Options{
		NamespaceURI:       cfg.NamespaceURI,
		ReservedNamespaces: cfg.ReservedNamespaces,
		Logger:             &log,
	})

	return &env{cfg: cfg, log: log, pre: pre}, nil
}

func (f *globalFlags) loadConfig() (*config.Config, error) {
	if f.configPath != "" {
		return config.LoadFromPath(f.configPath)
	}
	return config.Load(".")
}

// openCache returns nil when caching is off
func (e *env) openCache(disabled bool) (*cache.Cache, error) {
	if disabled || !e.cfg.Cache.Enabled {
		return nil, nil
	}
	c, err := cache.New(cache.Config{
		Dir:           e.cfg.Cache.Dir,
		MaxSize:       e.cfg.Cache.MaxSize,
		MaxAge:        e.cfg.Cache.MaxAge,
		MemoryEntries: e.cfg.Cache.MemoryEntries,
		Logger:        &e.log,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}
	return c, nil
}

// cacheKey covers every option that changes transform output
func (e *env) cacheKey() string {
	return e.cfg.NamespaceURI + "\x00" + strings.Join(e.cfg.ReservedNamespaces, ",")
}

func newLogger(w io.Writer, level string, verbose bool) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	if verbose {
		lvl = zerolog.DebugLevel
	}

	out := zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger()
}
