package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jward/isg"
	"github.com/jward/isg/internal/config"
	"github.com/jward/isg/internal/logging"
)

func main() {
	app := &cli{stdout: os.Stdout, stderr: os.Stderr}
	if err := app.rootCmd().ExecuteContext(context.Background()); err != nil {
		if !app.errorHandled {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		os.Exit(1)
	}
}

// cli holds the global flags and the state PersistentPreRunE derives from
// them. Every command closes over one cli so tests can run the tree
// in-process with fresh flags.
type cli struct {
	flagDB       string
	flagFormat   string
	flagConfig   string
	flagLogLevel string

	cfg    config.Config
	logger *slog.Logger

	stdout io.Writer
	stderr io.Writer

	// errorHandled is set by outputError so main() doesn't double-print.
	errorHandled bool
}

func (c *cli) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "isg",
		Short:         "Interface Signature Graph for Go and Rust codebases",
		Long:          "isg indexes source code with tree-sitter into a graph of functions, structs and traits, then answers caller, implementor, blast-radius and cycle queries against it.",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup()
		},
	}
	root.SetOut(c.stdout)
	root.SetErr(c.stderr)

	root.PersistentFlags().StringVar(&c.flagDB, "db", "", "database path (default: .isg/isg.db relative to repo root)")
	root.PersistentFlags().StringVar(&c.flagFormat, "format", "json", "output format: json|text")
	root.PersistentFlags().StringVar(&c.flagConfig, "config", "", "config file (default: .isg/config.yaml relative to repo root)")
	root.PersistentFlags().StringVar(&c.flagLogLevel, "log-level", "", "log level: debug|info|warn|error")

	root.AddCommand(c.indexCmd())
	root.AddCommand(c.watchCmd())
	root.AddCommand(c.queryCmd())
	root.AddCommand(c.exportCmd())
	root.AddCommand(c.scriptCmd())
	root.AddCommand(c.checkCmd())
	return root
}

// setup resolves configuration in precedence order: defaults, config file,
// environment, flags.
func (c *cli) setup() error {
	if err := validateFormat(c.flagFormat); err != nil {
		return err
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting cwd: %w", err)
	}
	cfgPath := c.flagConfig
	if cfgPath == "" {
		cfgPath = filepath.Join(findRepoRoot(cwd), config.DefaultPath)
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if c.flagLogLevel != "" {
		cfg.Log.Level = c.flagLogLevel
	}
	c.cfg = cfg

	logger, err := logging.FromConfig(cfg.Log.Level, cfg.Log.Format, c.stderr)
	if err != nil {
		return err
	}
	c.logger = logger
	return nil
}

// graphOptions turns the configured cycle kinds into graph options.
func (c *cli) graphOptions() ([]isg.GraphOption, error) {
	kinds := make([]isg.RelationKind, 0, len(c.cfg.CycleKinds))
	for _, s := range c.cfg.CycleKinds {
		k, err := isg.ParseRelationKind(strings.TrimSpace(s))
		if err != nil {
			return nil, fmt.Errorf("cycle kinds: %w", err)
		}
		kinds = append(kinds, k)
	}
	opts := []isg.GraphOption{isg.WithLogger(c.logger)}
	if len(kinds) > 0 {
		opts = append(opts, isg.WithCycleKinds(kinds...))
	}
	return opts, nil
}

// engineOptions builds engine options from config; flags on the calling
// command are applied on top by the caller.
func (c *cli) engineOptions() []isg.Option {
	opts := []isg.Option{isg.WithEngineLogger(c.logger)}
	if len(c.cfg.Languages) > 0 {
		opts = append(opts, isg.WithLanguages(c.cfg.Languages...))
	}
	if c.cfg.Workers > 0 {
		opts = append(opts, isg.WithWorkers(c.cfg.Workers))
	}
	if len(c.cfg.Ignore) > 0 {
		opts = append(opts, isg.WithIgnore(c.cfg.Ignore...))
	}
	return opts
}

func (c *cli) indexCmd() *cobra.Command {
	var (
		languages string
		workers   int
		serial    bool
	)
	cmd := &cobra.Command{
		Use:   "index [path]",
		Short: "Index a repository into the graph database",
		Long:  "Parses source files with tree-sitter, resolves calls, uses and implements relations, and writes the graph snapshot to the SQLite database.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := c.engineOptions()
			if languages != "" {
				opts = append(opts, isg.WithLanguages(splitComma(languages)...))
			}
			if workers > 0 {
				opts = append(opts, isg.WithWorkers(workers))
			}
			if serial {
				opts = append(opts, isg.WithParallel(false))
			}
			return c.runIndex(cmd.Context(), args, opts)
		},
	}
	cmd.Flags().StringVar(&languages, "languages", "", "comma-separated language filter (e.g. go,rust)")
	cmd.Flags().IntVar(&workers, "workers", 0, "extraction workers (default: config or one per CPU)")
	cmd.Flags().BoolVar(&serial, "serial", false, "extract files one at a time")
	return cmd
}

func (c *cli) runIndex(ctx context.Context, args []string, opts []isg.Option) error {
	start := time.Now()

	targetDir, err := resolveTargetDir(args)
	if err != nil {
		return c.outputError("index", err)
	}
	repoRoot := findRepoRoot(targetDir)
	dbPath := c.resolveDBPath(repoRoot)

	gopts, err := c.graphOptions()
	if err != nil {
		return c.outputError("index", err)
	}
	g := isg.New(gopts...)
	engine := isg.NewEngine(g, opts...)

	stats, indexErr := engine.IndexDirectory(ctx, targetDir)
	if indexErr != nil && stats.Indexed == 0 && stats.Unchanged == 0 {
		return c.outputError("index", fmt.Errorf("indexing: %w", indexErr))
	}

	if err := saveGraph(ctx, dbPath, g, targetDir); err != nil {
		return c.outputError("index", err)
	}

	fmt.Fprintf(c.stderr, "Indexed %s in %s (%d files, %d nodes, %d edges)\n",
		targetDir, time.Since(start).Round(time.Millisecond), stats.Indexed, stats.Nodes, stats.Edges)
	fmt.Fprintf(c.stderr, "Database: %s\n", dbPath)

	if indexErr != nil {
		c.logger.Warn("index completed with errors", "failed", stats.Failed, "error", indexErr)
	}
	return c.outputResult(CLIResult{Command: "index", Results: statsToCLI(stats, dbPath)})
}

// resolveTargetDir returns the absolute path of the directory to index.
func resolveTargetDir(args []string) (string, error) {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving path %q: %w", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("directory not found: %s", abs)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("not a directory: %s", abs)
	}
	return abs, nil
}

// findRepoRoot walks up from startDir looking for a .git directory.
// Returns the directory containing .git, or startDir if not found.
func findRepoRoot(startDir string) string {
	dir := startDir
	for {
		if info, err := os.Stat(filepath.Join(dir, ".git")); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return startDir
		}
		dir = parent
	}
}

// resolveDBPath picks the database path: --db, then config, then default.
// Relative paths are taken from repoRoot.
func (c *cli) resolveDBPath(repoRoot string) string {
	path := c.flagDB
	if path == "" {
		path = c.cfg.Database
	}
	if path == "" {
		path = config.Default().Database
	}
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(repoRoot, path)
}

func splitComma(s string) []string {
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
