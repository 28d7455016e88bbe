package mcp

import "github.com/mark3labs/mcp-go/mcp"

func tagSourceTool() mcp.Tool {
	return mcp.NewTool("tag_source",
		mcp.WithDescription("Inject data-component attributes into hyperscript m() calls in a JavaScript or TypeScript source string. Returns the rewritten code and one entry per tagged call."),
		mcp.WithString("code",
			mcp.Required(),
			mcp.Description("Source text to rewrite"),
		),
		mcp.WithString("filename",
			mcp.Description("File name used for grammar detection and as the fallback component name, e.g. src/Nav/index.js"),
		),
		mcp.WithString("language",
			mcp.Description("Grammar override"),
			mcp.Enum("javascript", "typescript", "tsx"),
		),
	)
}

func tagFileTool() mcp.Tool {
	return mcp.NewTool("tag_file",
		mcp.WithDescription("Rewrite a file on disk. By default only reports what would change; set write to update the file in place."),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Path of the source file"),
		),
		mcp.WithBoolean("write",
			mcp.Description("Write the rewritten file back (default false)"),
		),
	)
}

func describePathTool() mcp.Tool {
	return mcp.NewTool("describe_path",
		mcp.WithDescription("Show the component name a file path resolves to when no declaration supplies one."),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("File path"),
		),
	)
}

func indexWorkspaceTool() mcp.Tool {
	return mcp.NewTool("index_workspace",
		mcp.WithDescription("Rewrite every source file under a directory in memory and index the component names found. Nothing is written. Run before find_component."),
		mcp.WithString("root",
			mcp.Required(),
			mcp.Description("Directory to scan"),
		),
	)
}

func findComponentTool() mcp.Tool {
	return mcp.NewTool("find_component",
		mcp.WithDescription("List the source locations whose markup carries data-component=<name>, from the index built by index_workspace or tag_file."),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Value of the data-component attribute, e.g. Nav or Page->header"),
		),
	)
}
