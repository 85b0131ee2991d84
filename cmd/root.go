package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/agentic-research/spotreach/internal/config"
	"github.com/agentic-research/spotreach/internal/graph"
	"github.com/agentic-research/spotreach/internal/ledger"
	"github.com/agentic-research/spotreach/internal/store"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// defaultConfigFile is picked up from the working directory when
// --config is not given.
const defaultConfigFile = "spotreach.hcl"

var (
	configPath string
	logLevel   string
	logFormat  string

	cfg config.Config
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to HCL config (default ./"+defaultConfigFile+" if present)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "console", "Log format: console or json")
}

var rootCmd = &cobra.Command{
	Use:           "spotreach",
	Short:         "Crawl a solver's preflop tree and compute reach probabilities",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger, err := newLogger(cmd.ErrOrStderr(), logLevel, logFormat)
		if err != nil {
			return err
		}
		log.Logger = logger

		path := configPath
		if path == "" {
			if _, err := os.Stat(defaultConfigFile); err == nil {
				path = defaultConfigFile
			}
		}
		cfg, err = config.Load(path)
		if err != nil {
			return err
		}
		if path != "" {
			log.Debug().Str("path", path).Msg("loaded config")
		}
		return nil
	},
}

func newLogger(w io.Writer, level, format string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("--log-level: %w", err)
	}
	switch format {
	case "console":
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}
	case "json":
	default:
		return zerolog.Nop(), fmt.Errorf("--log-format: unknown format %q", format)
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger(), nil
}

// workspace is the cache directory: documents plus the explored ledger.
type workspace struct {
	store  *store.Store
	ledger *ledger.Ledger
}

func openWorkspace() (*workspace, error) {
	st, err := store.Open(cfg.Crawl.CacheDir)
	if err != nil {
		return nil, err
	}
	led, err := ledger.Open(st.Filesystem(), cfg.Crawl.Ledger, graph.NewIndex())
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	log.Debug().
		Str("cache_dir", cfg.Crawl.CacheDir).
		Str("ledger", led.Path()).
		Int("explored", led.Len()).
		Msg("opened workspace")
	if root := (graph.History{}); led.Contains(root) && !st.Exists(root) {
		log.Warn().
			Str("ledger", led.Path()).
			Msg("root is explored but its spot is not cached; reach cannot be computed")
	}
	return &workspace{store: st, ledger: led}, nil
}

// readFrontier reads a frontier list from a host path, or from the
// configured frontier file inside the cache directory when path is empty.
func readFrontier(ws *workspace, path string) ([]graph.History, string, error) {
	if path == "" {
		hs, err := ledger.ReadList(ws.store.Filesystem(), cfg.Output.Frontier)
		if errors.Is(err, os.ErrNotExist) {
			return nil, "", fmt.Errorf("no frontier file %s in %s; run `spotreach frontier` first",
				cfg.Output.Frontier, cfg.Crawl.CacheDir)
		}
		return hs, cfg.Output.Frontier, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, "", err
	}
	hs, err := ledger.ReadList(osfs.New(filepath.Dir(abs)), filepath.Base(abs))
	return hs, filepath.Base(abs), err
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
