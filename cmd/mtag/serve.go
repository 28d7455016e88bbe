package main

import (
	"fmt"

	"github.com/spf13/cobra"

	mcpserver "github.com/gnana997/mtag/pkg/mcp"
	"github.com/gnana997/mtag/pkg/mcplog"
)

func newServeCmd(a *app) *cobra.Command {
	var callLogPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server on stdio",
		Long: `Serve exposes tag_source, tag_file, describe_path, index_workspace and
find_component to MCP clients over stdin/stdout. Logs go to stderr.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if callLogPath == "" {
				callLogPath = a.config.MCPLog
			}
			return a.runServe(callLogPath)
		},
	}

	cmd.Flags().StringVar(&callLogPath, "call-log", "", "append one JSON line per tool call to this file")

	return cmd
}

func (a *app) runServe(callLogPath string) error {
	e, err := a.newEngine()
	if err != nil {
		return err
	}
	defer e.Close()

	callLog, err := mcplog.NewLogger(callLogPath)
	if err != nil {
		return err
	}
	if callLog != nil {
		defer callLog.Close()
	}

	mcpserver.Version = version
	srv := mcpserver.NewServer(e.rewriter, e.runner, callLog)

	a.logger.Info("mcp server starting", "version", version, "call_log", callLogPath)
	if err := srv.ServeStdio(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

func newInitCmd(a *app) *cobra.Command {
	var (
		path  string
		force bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default " + configFileName,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := writeProjectConfig(path, defaultProjectConfig(), force); err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "wrote %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVar(&path, "path", configFileName, "where to write the config")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file")

	return cmd
}
