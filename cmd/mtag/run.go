package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/gnana997/mtag/pkg/rewriter"
	"github.com/gnana997/mtag/pkg/workspace"
)

type runOptions struct {
	dryRun  bool
	outDir  string
	workers int
	report  string
}

func newRunCmd(a *app) *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run [dir]",
		Short: "Tag every source file under a directory",
		Long: `Run discovers the source files under dir (default ".") using the include and
exclude patterns from the config, rewrites them in parallel and writes the
results in place, or under --out-dir mirroring the tree.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := "."
			if len(args) == 1 {
				root = args[0]
			}
			return a.runWorkspace(cmd.Context(), root, opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.dryRun, "dry-run", "n", false, "report what would change without writing")
	cmd.Flags().StringVarP(&opts.outDir, "out-dir", "o", "", "write results under this directory instead of in place")
	cmd.Flags().IntVarP(&opts.workers, "workers", "j", 0, "worker count (default: config or CPU count)")
	cmd.Flags().StringVar(&opts.report, "report", "table", "summary format: table, json or yaml")

	return cmd
}

func (a *app) runWorkspace(ctx context.Context, root string, opts runOptions) error {
	switch opts.report {
	case "table", "json", "yaml":
	default:
		return fmt.Errorf("unknown report format %q", opts.report)
	}

	if opts.workers > 0 {
		a.config.Workers = opts.workers
	}

	e, err := a.newEngine()
	if err != nil {
		return err
	}
	defer e.Close()

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	wsOpts := a.config.WorkspaceOptions()
	wsOpts.DryRun = opts.dryRun
	if opts.outDir != "" {
		wsOpts.OutDir = opts.outDir
	}

	stats, err := e.runner.Run(ctx, root, wsOpts, nil)
	if err != nil {
		return err
	}

	switch opts.report {
	case "json":
		enc := json.NewEncoder(a.stdout)
		enc.SetIndent("", "  ")
		err = enc.Encode(stats)
	case "yaml":
		enc := yaml.NewEncoder(a.stdout)
		enc.SetIndent(2)
		err = enc.Encode(stats)
		if err == nil {
			err = enc.Close()
		}
	default:
		writeRunSummary(a.stdout, stats, wsOpts)
	}
	if err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	if stats.FilesFailed > 0 || stats.Cancelled {
		return errSilent
	}
	return nil
}

// writeRunSummary renders the changed files and the run totals as tables.
func writeRunSummary(w io.Writer, stats *workspace.RunStats, opts workspace.Options) {
	changed := table.NewWriter()
	changed.SetOutputMirror(w)
	changed.SetStyle(table.StyleLight)
	changed.AppendHeader(table.Row{"File", "Tagged", "Merged", "Size"})
	for _, file := range stats.Files {
		if !file.Changed {
			continue
		}
		changed.AppendRow(table.Row{
			file.Path,
			file.Mutated(),
			countStrategy(file.Tags, rewriter.StrategyMergeExpression),
			humanize.Bytes(uint64(file.Bytes)),
		})
	}
	if changed.Length() > 0 {
		changed.Render()
	}

	action := "written"
	switch {
	case opts.DryRun:
		action = "would change"
	case opts.OutDir != "":
		action = "written to " + opts.OutDir
	}

	totals := table.NewWriter()
	totals.SetOutputMirror(w)
	totals.SetStyle(table.StyleLight)
	totals.SetTitle("mtag run " + stats.Root)
	totals.AppendRows([]table.Row{
		{"Files discovered", humanize.Comma(int64(stats.FilesDiscovered))},
		{"Files processed", humanize.Comma(int64(stats.FilesProcessed))},
		{"Files changed", humanize.Comma(int64(stats.FilesChanged))},
		{"Files " + action, humanize.Comma(int64(writtenOrChanged(stats, opts)))},
		{"Files failed", humanize.Comma(int64(stats.FilesFailed))},
		{"Calls tagged", humanize.Comma(int64(stats.CallsTagged))},
		{"Source read", humanize.Bytes(uint64(stats.BytesRead))},
		{"Workers", stats.WorkerCount},
		{"Elapsed", stats.TotalTime.Round(time.Millisecond).String()},
		{"Throughput", fmt.Sprintf("%s files/s", humanize.FormatFloat("#,###.#", stats.FilesPerSecond()))},
	})
	totals.Render()

	if len(stats.Errors) > 0 {
		fail := color.New(color.FgRed).SprintFunc()
		for _, fileErr := range stats.Errors {
			fmt.Fprintf(w, "%s %s: %s\n", fail("error"), fileErr.FilePath, fileErr.Message)
		}
	}
	if stats.Cancelled {
		fmt.Fprintln(w, color.YellowString("run cancelled before all files were processed"))
	}
}

func writtenOrChanged(stats *workspace.RunStats, opts workspace.Options) int {
	if opts.DryRun {
		return stats.FilesChanged
	}
	return stats.FilesWritten
}

func countStrategy(tags []rewriter.Tag, s rewriter.Strategy) int {
	n := 0
	for _, tag := range tags {
		if tag.Strategy == s {
			n++
		}
	}
	return n
}

func newWatchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch [dir]",
		Short: "Tag source files as they are saved",
		Long: `Watch rewrites matching files under dir (default ".") in place whenever they
change. Saves within the configured debounce window are grouped into one
rewrite. Stop with Ctrl-C.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := "."
			if len(args) == 1 {
				root = args[0]
			}
			return a.runWatch(cmd.Context(), root)
		},
	}
}

func (a *app) runWatch(ctx context.Context, root string) error {
	e, err := a.newEngine()
	if err != nil {
		return err
	}
	defer e.Close()

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	tagged := color.New(color.FgGreen).SprintFunc()
	fail := color.New(color.FgRed).SprintFunc()

	watchOpts := a.config.WatchOptions()
	watchOpts.OnRewrite = func(outcome *workspace.FileOutcome, err error) {
		switch {
		case err != nil:
			fmt.Fprintf(a.stderr, "%s %v\n", fail("error"), err)
		case outcome.Written:
			fmt.Fprintf(a.stderr, "%s %s (%d)\n", tagged("tagged"), outcome.Path, outcome.Mutated())
		}
	}

	watcher, err := workspace.NewWatcher(e.runner, a.config.WorkspaceOptions(), watchOpts, a.logger)
	if err != nil {
		return err
	}
	if err := watcher.Start(root); err != nil {
		return err
	}

	fmt.Fprintf(a.stderr, "watching %s\n", root)
	<-ctx.Done()

	if err := watcher.Stop(); err != nil {
		return err
	}

	ws := watcher.GetStats()
	fmt.Fprintf(a.stderr, "stopped after %d rewrites, %d failures\n", ws.Rewrites, ws.Failures)
	return nil
}
