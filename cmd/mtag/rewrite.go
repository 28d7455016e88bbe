package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/spf13/cobra"

	"github.com/gnana997/mtag/pkg/parser"
	"github.com/gnana997/mtag/pkg/rewriter"
	"github.com/gnana997/mtag/pkg/workspace"
)

type rewriteOptions struct {
	filename string
	language string
	write    bool
}

func newRewriteCmd(a *app) *cobra.Command {
	var opts rewriteOptions

	cmd := &cobra.Command{
		Use:   "rewrite [file|-]",
		Short: "Tag one source and print the result",
		Long: `Rewrite a single file, or standard input when the argument is "-" or
missing, and print the tagged source on stdout. With --write the file is
updated in place instead.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "-"
			if len(args) == 1 {
				path = args[0]
			}
			return a.runRewrite(path, opts)
		},
	}

	cmd.Flags().StringVar(&opts.filename, "filename", "", "file name used for naming when reading stdin")
	cmd.Flags().StringVar(&opts.language, "language", "", "grammar: javascript, typescript or tsx (default: from the file name)")
	cmd.Flags().BoolVarP(&opts.write, "write", "w", false, "rewrite the file in place")

	return cmd
}

func (a *app) runRewrite(path string, opts rewriteOptions) error {
	e, err := a.newEngine()
	if err != nil {
		return err
	}
	defer e.Close()

	if opts.write {
		if path == "-" {
			return fmt.Errorf("--write needs a file argument")
		}
		outcome, err := e.runner.RewriteFile(path, workspace.FileOptions{Write: true})
		if err != nil {
			return err
		}
		a.logger.Info("rewrote file", "file", path, "written", outcome.Written, "tags", len(outcome.Tags))
		return nil
	}

	var source []byte
	rwOpts := rewriter.Options{Filename: opts.filename}
	if path == "-" {
		source, err = io.ReadAll(a.stdin)
	} else {
		source, err = os.ReadFile(path)
		if rwOpts.Filename == "" {
			rwOpts.Filename = path
		}
	}
	if err != nil {
		return fmt.Errorf("read source: %w", err)
	}

	if opts.language != "" {
		rwOpts.Language = parser.ParseLanguageString(opts.language)
		rwOpts.TSX = parser.IsTSXDialect(opts.language)
		if rwOpts.Language == parser.LanguageUnknown {
			return fmt.Errorf("unsupported language %q", opts.language)
		}
	}

	result, err := e.rewriter.Rewrite(source, rwOpts)
	if err != nil {
		return err
	}

	code := result.Code
	if code == nil {
		code = source
	}
	_, err = a.stdout.Write(code)
	return err
}

func newCheckCmd(a *app) *cobra.Command {
	var showDiff bool

	cmd := &cobra.Command{
		Use:   "check <path>...",
		Short: "Report files whose factory calls are not tagged",
		Long: `Check rewrites files and directories in memory and lists every file the
rewrite would change. It exits non-zero when any file would change or fails
to parse, which makes it usable as a CI gate.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runCheck(args, showDiff)
		},
	}

	cmd.Flags().BoolVar(&showDiff, "diff", false, "print a line diff for each file that would change")

	return cmd
}

func (a *app) runCheck(paths []string, showDiff bool) error {
	e, err := a.newEngine()
	if err != nil {
		return err
	}
	defer e.Close()

	files, err := a.expandPaths(paths)
	if err != nil {
		return err
	}

	warn := color.New(color.FgYellow).SprintFunc()
	fail := color.New(color.FgRed).SprintFunc()
	ok := color.New(color.FgGreen).SprintFunc()

	var pending, failed int
	for _, file := range files {
		outcome, err := e.runner.RewriteFile(file, workspace.FileOptions{})
		if err != nil {
			failed++
			fmt.Fprintf(a.stdout, "%s %s: %v\n", fail("error"), file, err)
			continue
		}
		if !outcome.Changed {
			continue
		}

		pending++
		fmt.Fprintf(a.stdout, "%s %s (%d untagged)\n", warn("would tag"), file, outcome.Mutated())
		if showDiff {
			source, err := e.cache.Read(file)
			if err != nil {
				return err
			}
			writeDiff(a.stdout, string(source), string(outcome.Code))
		}
	}

	switch {
	case pending == 0 && failed == 0:
		fmt.Fprintf(a.stdout, "%s %d files checked\n", ok("ok"), len(files))
		return nil
	default:
		fmt.Fprintf(a.stdout, "%d of %d files would change, %d failed\n", pending, len(files), failed)
		return errSilent
	}
}

// expandPaths turns directories into their discovered source files.
func (a *app) expandPaths(paths []string) ([]string, error) {
	var files []string
	opts := a.config.WorkspaceOptions()

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, path)
			continue
		}

		found, err := workspace.DiscoverFiles(path, opts, a.logger)
		if err != nil {
			return nil, err
		}
		files = append(files, found...)
	}

	return files, nil
}

// writeDiff prints the changed lines between before and after, each hunk
// headed by the line number it starts at in before.
func writeDiff(w io.Writer, before, after string) {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	removed := color.New(color.FgRed).SprintFunc()
	added := color.New(color.FgGreen).SprintFunc()
	header := color.New(color.FgCyan).SprintFunc()

	line := 1
	inHunk := false
	for _, d := range diffs {
		chunk := splitLines(d.Text)

		switch d.Type {
		case diffmatchpatch.DiffEqual:
			line += len(chunk)
			inHunk = false
			continue
		case diffmatchpatch.DiffDelete:
			if !inHunk {
				fmt.Fprintln(w, header(fmt.Sprintf("@@ line %d @@", line)))
				inHunk = true
			}
			for _, l := range chunk {
				fmt.Fprintln(w, removed("-"+l))
			}
			line += len(chunk)
		case diffmatchpatch.DiffInsert:
			if !inHunk {
				fmt.Fprintln(w, header(fmt.Sprintf("@@ line %d @@", line)))
				inHunk = true
			}
			for _, l := range chunk {
				fmt.Fprintln(w, added("+"+l))
			}
		}
	}
}

func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(text, "\n"), "\n")
}
