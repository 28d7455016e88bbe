package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/gnana997/mtag/pkg/naming"
	"github.com/gnana997/mtag/pkg/parser"
	"github.com/gnana997/mtag/pkg/rewriter"
	"github.com/gnana997/mtag/pkg/workspace"
)

type tagSourceResult struct {
	Code    string         `json:"code"`
	Changed bool           `json:"changed"`
	Tags    []rewriter.Tag `json:"tags"`
}

type tagFileResult struct {
	Path    string         `json:"path"`
	Changed bool           `json:"changed"`
	Written bool           `json:"written"`
	Tags    []rewriter.Tag `json:"tags"`
	Code    string         `json:"code,omitempty"`
}

type describePathResult struct {
	Path          string `json:"path"`
	Directory     string `json:"directory"`
	Stem          string `json:"stem"`
	Resolved      bool   `json:"resolved"`
	ComponentName string `json:"component_name"`
}

type indexWorkspaceResult struct {
	Root            string   `json:"root"`
	FilesDiscovered int      `json:"files_discovered"`
	FilesProcessed  int      `json:"files_processed"`
	FilesFailed     int      `json:"files_failed"`
	CallsTagged     int      `json:"calls_tagged"`
	Components      []string `json:"components"`
	Errors          []string `json:"errors,omitempty"`
}

func (s *Server) handleTagSource(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	code, err := req.RequireString("code")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	opts := rewriter.Options{Filename: req.GetString("filename", "")}
	if lang := req.GetString("language", ""); lang != "" {
		opts.Language = parser.ParseLanguageString(lang)
		opts.TSX = parser.IsTSXDialect(lang)
		if opts.Language == parser.LanguageUnknown {
			return mcp.NewToolResultError(fmt.Sprintf("unsupported language %q", lang)), nil
		}
	}

	result, err := s.rewriter.Rewrite([]byte(code), opts)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return jsonResult(tagSourceResult{
		Code:    string(result.Code),
		Changed: result.Changed,
		Tags:    nonNilTags(result.Tags),
	})
}

func (s *Server) handleTagFile(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	write := req.GetBool("write", false)

	outcome, err := s.runner.RewriteFile(path, workspace.FileOptions{Write: write})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	res := tagFileResult{
		Path:    outcome.Path,
		Changed: outcome.Changed,
		Written: outcome.Written,
		Tags:    nonNilTags(outcome.Tags),
	}
	if !write {
		res.Code = string(outcome.Code)
	}
	return jsonResult(res)
}

func (s *Server) handleDescribePath(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	desc := naming.Describe(path)
	return jsonResult(describePathResult{
		Path:          path,
		Directory:     desc.Directory,
		Stem:          desc.Stem,
		Resolved:      desc.Resolved(),
		ComponentName: desc.ComponentName(),
	})
}

func (s *Server) handleIndexWorkspace(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	root, err := req.RequireString("root")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	opts := workspace.DefaultOptions()
	opts.DryRun = true

	stats, err := s.runner.Run(ctx, root, opts, nil)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	res := indexWorkspaceResult{
		Root:            root,
		FilesDiscovered: stats.FilesDiscovered,
		FilesProcessed:  stats.FilesProcessed,
		FilesFailed:     stats.FilesFailed,
		CallsTagged:     stats.CallsTagged,
		Components:      s.runner.Index().Names(),
	}
	for _, fileErr := range stats.Errors {
		res.Errors = append(res.Errors, fileErr.Message)
	}
	return jsonResult(res)
}

func (s *Server) handleFindComponent(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	locations := s.runner.Index().Lookup(name)
	if locations == nil {
		locations = []workspace.Location{}
	}
	return jsonResult(locations)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

func nonNilTags(tags []rewriter.Tag) []rewriter.Tag {
	if tags == nil {
		return []rewriter.Tag{}
	}
	return tags
}
