package mcp

import "github.com/mark3labs/mcp-go/mcp"

func extractRequiresTool() mcp.Tool {
	return mcp.NewTool(
		"extract_requires",
		mcp.WithDescription("List the module specifiers a JavaScript or TypeScript source references through import declarations, export-from declarations, dynamic import() and require()/require.resolve() calls with literal arguments, in source order. Also reports whether the source uses module syntax."),
		mcp.WithString("code",
			mcp.Required(),
			mcp.Description("Source text to analyze")),
		mcp.WithString("language",
			mcp.Description("Grammar to parse with: javascript (default), typescript or tsx"),
			mcp.Enum("javascript", "typescript", "tsx")),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)
}

func scanWorkspaceTool() mcp.Tool {
	return mcp.NewTool(
		"scan_workspace",
		mcp.WithDescription("Extract every JavaScript/TypeScript file under a directory and index the results. Returns scan statistics, per-file failures and the most used packages."),
		mcp.WithString("root",
			mcp.Required(),
			mcp.Description("Workspace directory to scan")),
		mcp.WithArray("include",
			mcp.Description("Glob patterns relative to root (default: all JS/TS sources)"),
			mcp.WithStringItems()),
		mcp.WithArray("exclude",
			mcp.Description("Glob patterns relative to root to skip (default: node_modules, .git, build output)"),
			mcp.WithStringItems()),
		mcp.WithReadOnlyHintAnnotation(true),
	)
}

func getFileDependenciesTool() mcp.Tool {
	return mcp.NewTool(
		"get_file_dependencies",
		mcp.WithDescription("Return the indexed extraction result of one file. Run scan_workspace first."),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("File path, absolute or relative to the server's working directory")),
		mcp.WithReadOnlyHintAnnotation(true),
	)
}

func findDependentsTool() mcp.Tool {
	return mcp.NewTool(
		"find_dependents",
		mcp.WithDescription("List the indexed files that reference a module specifier verbatim."),
		mcp.WithString("specifier",
			mcp.Required(),
			mcp.Description("Module specifier exactly as written in source, e.g. 'react' or './utils'")),
		mcp.WithReadOnlyHintAnnotation(true),
	)
}

func parseDependenciesTool() mcp.Tool {
	return mcp.NewTool(
		"parse_dependencies",
		mcp.WithDescription("Parse a dependency combination string such as 'react@18.2.0+@scope/pkg@1.0.0' into a name to version map."),
		mcp.WithString("combination",
			mcp.Required(),
			mcp.Description("name@version pairs joined with '+'")),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)
}
