package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gnana997/mtag/pkg/parser"
	"github.com/gnana997/mtag/pkg/rewriter"
	"github.com/gnana997/mtag/pkg/util"
	"github.com/gnana997/mtag/pkg/workspace"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "0.1.0-dev"

// errSilent marks failures whose details were already printed.
var errSilent = errors.New("command failed")

// app carries the I/O streams and the loaded configuration shared by every
// subcommand.
type app struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	configPath string
	logLevel   string
	logFormat  string
	noColor    bool

	config *ProjectConfig
	logger *slog.Logger
}

func main() {
	a := &app{stdin: os.Stdin, stdout: os.Stdout, stderr: os.Stderr}
	if err := newRootCmd(a).Execute(); err != nil {
		if !errors.Is(err, errSilent) {
			fmt.Fprintf(os.Stderr, "mtag: %v\n", err)
		}
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "mtag",
		Short: "Tag hyperscript factory calls with the component that produced them",
		Long: `mtag rewrites JavaScript and TypeScript sources so every m(tag, ...) call
carries a data-component attribute naming its source-level component.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error { return a.setup() },
	}

	root.SetIn(a.stdin)
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "config file (default .mtag.yaml in the working directory or $HOME)")
	flags.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.StringVar(&a.logFormat, "log-format", "", "log format: text, json")
	flags.BoolVar(&a.noColor, "no-color", false, "disable colored output")

	root.AddCommand(
		newRewriteCmd(a),
		newCheckCmd(a),
		newRunCmd(a),
		newWatchCmd(a),
		newServeCmd(a),
		newInitCmd(a),
		newSetupCmd(a),
		newVersionCmd(a),
	)

	return root
}

// setup loads the configuration and builds the logger. Flags win over the
// config file, which wins over defaults.
func (a *app) setup() error {
	cfg, err := loadProjectConfig(viper.New(), a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if a.logFormat != "" {
		cfg.Log.Format = a.logFormat
	}

	level, err := util.ParseLogLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	format, err := util.ParseLogFormat(cfg.Log.Format)
	if err != nil {
		return err
	}

	if a.noColor {
		color.NoColor = true
	}

	a.config = cfg
	a.logger = util.NewLogger(util.LoggerConfig{Level: level, Format: format, Output: a.stderr})
	util.SetDefault(a.logger)
	return nil
}

// engine bundles the long-lived pieces a command needs.
type engine struct {
	parsers  *parser.ParserManager
	rewriter *rewriter.Rewriter
	cache    *util.SourceCache
	runner   *workspace.Runner
}

func (a *app) newEngine() (*engine, error) {
	size := util.GetOptimalPoolSizeWithOverride(a.config.Workers)
	parsers := parser.NewParserManagerWithSize(a.logger, size)

	cache, err := util.NewSourceCache(util.SourceCacheConfig{Logger: a.logger})
	if err != nil {
		parsers.Close()
		return nil, err
	}

	index, err := workspace.NewTagIndex(workspace.DefaultIndexFiles, a.logger)
	if err != nil {
		cache.Close()
		parsers.Close()
		return nil, err
	}

	rw := rewriter.New(parsers, a.config.RewriterConfig(), a.logger)
	return &engine{
		parsers:  parsers,
		rewriter: rw,
		cache:    cache,
		runner:   workspace.NewRunner(rw, cache, index, a.logger),
	}, nil
}

func (e *engine) Close() {
	e.cache.Close()
	e.parsers.Close()
}

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the mtag version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(a.stdout, "mtag %s\n", version)
		},
	}
}
