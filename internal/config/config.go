// Package config loads the spotreach HCL configuration file.
//
//	solver {
//	  game_type     = "Cash6m50zGeneral25Open"
//	  refresh_token = "..."
//	  max_backoff   = "10s"
//	}
//	crawl {
//	  cache_dir = "out/spots"
//	}
//	output {
//	  database = "out/reach.db"
//	}
//
// Every attribute is optional; omitted ones take the defaults below.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/agentic-research/spotreach/internal/fetch"
	"github.com/hashicorp/hcl/v2/hclsimple"
)

// RefreshTokenEnv overrides solver.refresh_token when set.
const RefreshTokenEnv = "SPOTREACH_REFRESH_TOKEN"

const (
	DefaultSpotURL    = "https://api.gtowizard.com/v4/solutions/spot-solution"
	DefaultRefreshURL = "https://api.gtowizard.com/v1/token/refresh/"
	DefaultGameType   = "Cash6m50zGeneral25Open"
	DefaultCacheDir   = "out/spots"
	DefaultLedger     = "explored.txt"
	DefaultFrontier   = "frontier.txt"
)

type Config struct {
	Solver Solver
	Crawl  Crawl
	Output Output
}

type Solver struct {
	SpotURL           string
	RefreshURL        string
	GameType          string
	Depth             int
	RefreshToken      string
	MaxAttempts       int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	RequestsPerSecond float64
	Timeout           time.Duration
}

type Crawl struct {
	// CacheDir holds one document per node plus the ledger.
	CacheDir string
	// Ledger is the explored ledger file name, relative to CacheDir.
	Ledger        string
	ProgressEvery int
	MaxNodes      int
}

type Output struct {
	// Frontier is the frontier list file name, relative to CacheDir.
	Frontier string
	// Database is the SQLite report path; empty disables it.
	Database string
	// Top limits rendered tables; 0 prints every row.
	Top int
}

// Default returns the configuration used when no file is given.
func Default() Config {
	f := fetch.DefaultConfig()
	return Config{
		Solver: Solver{
			SpotURL:        DefaultSpotURL,
			RefreshURL:     DefaultRefreshURL,
			GameType:       DefaultGameType,
			Depth:          f.Depth,
			MaxAttempts:    f.MaxAttempts,
			InitialBackoff: f.InitialBackoff,
			MaxBackoff:     f.MaxBackoff,
			Timeout:        f.Timeout,
		},
		Crawl: Crawl{
			CacheDir:      DefaultCacheDir,
			Ledger:        DefaultLedger,
			ProgressEvery: 100,
		},
		Output: Output{
			Frontier: DefaultFrontier,
			Top:      25,
		},
	}
}

// file mirrors the HCL layout. Pointers tell omitted attributes apart.
type file struct {
	Solver *solverBlock `hcl:"solver,block"`
	Crawl  *crawlBlock  `hcl:"crawl,block"`
	Output *outputBlock `hcl:"output,block"`
}

type solverBlock struct {
	SpotURL           *string  `hcl:"spot_url,optional"`
	RefreshURL        *string  `hcl:"refresh_url,optional"`
	GameType          *string  `hcl:"game_type,optional"`
	Depth             *int     `hcl:"depth,optional"`
	RefreshToken      *string  `hcl:"refresh_token,optional"`
	MaxAttempts       *int     `hcl:"max_attempts,optional"`
	InitialBackoff    *string  `hcl:"initial_backoff,optional"`
	MaxBackoff        *string  `hcl:"max_backoff,optional"`
	RequestsPerSecond *float64 `hcl:"requests_per_second,optional"`
	Timeout           *string  `hcl:"timeout,optional"`
}

type crawlBlock struct {
	CacheDir      *string `hcl:"cache_dir,optional"`
	Ledger        *string `hcl:"ledger,optional"`
	ProgressEvery *int    `hcl:"progress_every,optional"`
	MaxNodes      *int    `hcl:"max_nodes,optional"`
}

type outputBlock struct {
	Frontier *string `hcl:"frontier,optional"`
	Database *string `hcl:"database,optional"`
	Top      *int    `hcl:"top,optional"`
}

// Load reads path. An empty path yields the defaults. The refresh token
// environment override applies in both cases.
func Load(path string) (Config, error) {
	if path == "" {
		cfg := Default()
		cfg.applyEnv()
		return cfg, cfg.Validate()
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Decode(filepath.Base(path), src)
}

// Decode parses HCL source. filename is used in diagnostics and must end
// in .hcl.
func Decode(filename string, src []byte) (Config, error) {
	var f file
	if err := hclsimple.Decode(filename, src, nil, &f); err != nil {
		return Config{}, fmt.Errorf("decode %s: %w", filename, err)
	}
	cfg := Default()
	if err := f.apply(&cfg); err != nil {
		return Config{}, fmt.Errorf("%s: %w", filename, err)
	}
	cfg.applyEnv()
	return cfg, cfg.Validate()
}

func (f *file) apply(cfg *Config) error {
	if b := f.Solver; b != nil {
		s := &cfg.Solver
		setString(&s.SpotURL, b.SpotURL)
		setString(&s.RefreshURL, b.RefreshURL)
		setString(&s.GameType, b.GameType)
		setInt(&s.Depth, b.Depth)
		setString(&s.RefreshToken, b.RefreshToken)
		setInt(&s.MaxAttempts, b.MaxAttempts)
		if b.RequestsPerSecond != nil {
			s.RequestsPerSecond = *b.RequestsPerSecond
		}
		for _, d := range []struct {
			name string
			src  *string
			dst  *time.Duration
		}{
			{"solver.initial_backoff", b.InitialBackoff, &s.InitialBackoff},
			{"solver.max_backoff", b.MaxBackoff, &s.MaxBackoff},
			{"solver.timeout", b.Timeout, &s.Timeout},
		} {
			if d.src == nil {
				continue
			}
			v, err := time.ParseDuration(*d.src)
			if err != nil {
				return fmt.Errorf("%s: %w", d.name, err)
			}
			*d.dst = v
		}
	}
	if b := f.Crawl; b != nil {
		setString(&cfg.Crawl.CacheDir, b.CacheDir)
		setString(&cfg.Crawl.Ledger, b.Ledger)
		setInt(&cfg.Crawl.ProgressEvery, b.ProgressEvery)
		setInt(&cfg.Crawl.MaxNodes, b.MaxNodes)
	}
	if b := f.Output; b != nil {
		setString(&cfg.Output.Frontier, b.Frontier)
		setString(&cfg.Output.Database, b.Database)
		setInt(&cfg.Output.Top, b.Top)
	}
	return nil
}

func (c *Config) applyEnv() {
	if tok := os.Getenv(RefreshTokenEnv); tok != "" {
		c.Solver.RefreshToken = tok
	}
}

// Validate checks the values that no command can run without.
func (c Config) Validate() error {
	if err := c.Fetch().Validate(); err != nil {
		return fmt.Errorf("solver: %w", err)
	}
	if c.Solver.GameType == "" {
		return errors.New("solver: game_type is required")
	}
	if c.Crawl.CacheDir == "" || c.Crawl.Ledger == "" {
		return errors.New("crawl: cache_dir and ledger are required")
	}
	if c.Crawl.ProgressEvery < 0 || c.Crawl.MaxNodes < 0 || c.Output.Top < 0 {
		return errors.New("crawl.progress_every, crawl.max_nodes and output.top must be >= 0")
	}
	return nil
}

// Fetch converts the solver block into the client configuration.
func (c Config) Fetch() fetch.Config {
	s := c.Solver
	return fetch.Config{
		SpotURL:           s.SpotURL,
		RefreshURL:        s.RefreshURL,
		GameType:          s.GameType,
		Depth:             s.Depth,
		RefreshToken:      s.RefreshToken,
		MaxAttempts:       s.MaxAttempts,
		InitialBackoff:    s.InitialBackoff,
		MaxBackoff:        s.MaxBackoff,
		RequestsPerSecond: s.RequestsPerSecond,
		Timeout:           s.Timeout,
	}
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func setInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}
