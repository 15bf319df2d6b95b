// Package cli implements the stanza command-line interface.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/stanza/internal/config"
	"github.com/matzehuels/stanza/internal/metrics"
	"github.com/matzehuels/stanza/pkg/cache"
	"github.com/matzehuels/stanza/pkg/installer"
	"github.com/matzehuels/stanza/pkg/integrations/pypi"
	"github.com/matzehuels/stanza/pkg/lock"
	"github.com/matzehuels/stanza/pkg/pyenv"
	"github.com/matzehuels/stanza/pkg/registry"
	"github.com/matzehuels/stanza/pkg/resolve"
	"github.com/matzehuels/stanza/pkg/vcs"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = "stanza"

	// memoryEntries sizes the in-process front tier of the index cache.
	memoryEntries = 2048
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
	Out    io.Writer // Command output and installer progress
	Err    io.Writer // Spinner

	// Collaborators, replaced in tests. Nil values select the package
	// index from the configuration, pip, the configured interpreter and git.
	Index   registry.Index
	Pip     installer.Pip
	Python  installer.Interpreter
	Fetcher vcs.Fetcher

	cfg     *config.Config
	flags   globalFlags
	metrics *metrics.Recorder
}

type globalFlags struct {
	manifest   string
	noCache    bool
	noProgress bool
	jobs       int
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: newLogger(w, level),
		Out:    os.Stdout,
		Err:    w,

		metrics: metrics.New(),
	}
}

// Flush writes the metrics of the run to the configured metrics file. It
// does nothing when no file is configured or no command ran.
func (c *CLI) Flush() error {
	if c.cfg == nil || c.cfg.MetricsFile == "" {
		return nil
	}
	if err := c.metrics.WriteFile(c.cfg.MetricsFile); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	c.Logger.Debug("metrics written", "file", c.cfg.MetricsFile)
	return nil
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// =============================================================================
// Workspace Factory
// =============================================================================

// workspace bundles the project of the current directory with the
// installer driving it.
type workspace struct {
	project   installer.Project
	installer *installer.Installer
	engine    *resolve.Engine
	backend   cache.Cache
}

func (w *workspace) Close() error {
	if w.backend == nil {
		return nil
	}
	return w.backend.Close()
}

// open loads the project and wires resolution and installation for it.
func (c *CLI) open(ctx context.Context) (*workspace, error) {
	cfg, err := c.config()
	if err != nil {
		return nil, err
	}
	project, err := openProject(c.flags.manifest)
	if err != nil {
		return nil, err
	}

	ws := &workspace{project: project}
	index := c.Index
	if index == nil {
		backend, err := c.newCache(ctx)
		if err != nil {
			return nil, err
		}
		ws.backend = backend
		index = pypi.NewClient(backend, cfg.IndexURL, cfg.CacheTTL)
	}
	fetcher := c.Fetcher
	if fetcher == nil {
		fetcher = vcs.NewGit(c.Logger)
	}

	reg := registry.New(index, registry.Options{Logger: c.Logger})
	ws.engine = resolve.New(reg, fetcher, c.Logger)

	pip, python := c.Pip, c.Python
	if pip == nil {
		pip = pyenv.NewPip(cfg.Pip, c.Logger)
	}
	if python == nil {
		python = pyenv.NewPython(cfg.Python, c.Logger)
	}

	inst := installer.New(project, ws.engine, pip, python)
	inst.Out = c.Out
	inst.Logger = c.Logger
	inst.Verbose = c.Logger.GetLevel() <= log.DebugLevel
	inst.Jobs = cfg.Jobs
	if c.flags.jobs > 0 {
		inst.Jobs = c.flags.jobs
	}
	if !c.flags.noProgress {
		inst.Spin = func(msg string) func() {
			s := newSpinnerWithContext(ctx, c.Err, msg)
			s.Start()
			return s.Stop
		}
	}
	ws.installer = inst
	return ws, nil
}

// guard serializes mutating commands within the project directory.
func (c *CLI) guard(ctx context.Context, ws *workspace) (*lock.Guard, error) {
	dir := projectDir(ws.project)
	g, err := lock.Acquire(ctx, dir)
	if err != nil {
		return nil, fmt.Errorf("another %s process is working in %s: %w", appName, dir, err)
	}
	return g, nil
}

func (c *CLI) config() (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	c.cfg = cfg
	return cfg, nil
}

// newCache builds the index response cache: an in-memory tier in front of
// redis when configured, the cache directory otherwise.
func (c *CLI) newCache(ctx context.Context) (cache.Cache, error) {
	if c.flags.noCache {
		return cache.NewNullCache(), nil
	}
	front, err := cache.NewMemoryCache(memoryEntries)
	if err != nil {
		return nil, err
	}
	if c.cfg.RedisURL != "" {
		back, err := cache.NewRedisCache(ctx, c.cfg.RedisURL, appName+":")
		if err != nil {
			return nil, err
		}
		return cache.NewTiered(front, back, c.cfg.CacheTTL), nil
	}
	back, err := cache.NewFileCache(c.cfg.CacheDir)
	if err != nil {
		c.Logger.Warn("cache directory unavailable, caching in memory", "dir", c.cfg.CacheDir, "error", err)
		return front, nil
	}
	return cache.NewTiered(front, back, c.cfg.CacheTTL), nil
}
