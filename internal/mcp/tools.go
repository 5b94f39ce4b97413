package mcp

import "github.com/mark3labs/mcp-go/mcp"

var getToolDef = mcp.NewTool("hive_get",
	mcp.WithDescription("Read one node of the archive. Slots return their value, length and storage layout; groups return the names of their children."),
	mcp.WithString("path", mcp.Required(), mcp.Description("Absolute node path, e.g. /0000000001/name")),
)

var setToolDef = mcp.NewTool("hive_set",
	mcp.WithDescription("Write a value into an existing slot. The record counter /records cannot be set."),
	mcp.WithString("path", mcp.Required(), mcp.Description("Absolute slot path")),
	mcp.WithString("value", mcp.Required(), mcp.Description("New value. Integer slots accept decimal text.")),
)

var addCellToolDef = mcp.NewTool("hive_add_cell",
	mcp.WithDescription("Append new cells built from the archive template. Labels are zero-padded ten digit record numbers."),
	mcp.WithNumber("count", mcp.Description("Number of cells to add (default 1, max 1000)")),
	mcp.WithObject("values", mcp.Description("Optional nested document loaded into every new cell")),
)

var cellsToolDef = mcp.NewTool("hive_cells",
	mcp.WithDescription("List the cells recorded by the archive counter."),
	mcp.WithBoolean("include_values", mcp.Description("Include each cell's document")),
)

var documentToolDef = mcp.NewTool("hive_document",
	mcp.WithDescription("Render the tree under a base group as a JSON document. Groups become objects and slots become strings."),
	mcp.WithString("base", mcp.Description("Base group (default /)")),
	mcp.WithBoolean("flat", mcp.Description("Use slash-joined paths as keys")),
	mcp.WithBoolean("envelope", mcp.Description("Wrap the document under the ARChive key")),
)

var treeToolDef = mcp.NewTool("hive_tree",
	mcp.WithDescription("Describe the hierarchy under a base group."),
	mcp.WithString("base", mcp.Description("Base group (default /)")),
	mcp.WithString("format", mcp.Description("Output format (default text)"),
		mcp.Enum("text", "html", "groups", "paths", "markdown")),
)

var queryToolDef = mcp.NewTool("hive_query",
	mcp.WithDescription("Evaluate a JSONPath expression against the document under a base group."),
	mcp.WithString("expr", mcp.Required(), mcp.Description("JSONPath expression, e.g. $.*.name")),
	mcp.WithString("base", mcp.Description("Base group (default /)")),
)

var exportToolDef = mcp.NewTool("hive_export",
	mcp.WithDescription("Write the document under a base group to a JSON or YAML file."),
	mcp.WithString("path", mcp.Description("Output file (default ~/.hive/exports/<archive>-<timestamp>.json)")),
	mcp.WithString("format", mcp.Description("File format, default from the extension"), mcp.Enum("json", "yaml")),
	mcp.WithString("base", mcp.Description("Base group (default /)")),
	mcp.WithBoolean("flat", mcp.Description("Use slash-joined paths as keys")),
	mcp.WithBoolean("envelope", mcp.Description("Wrap the document under the ARChive key")),
)

var importToolDef = mcp.NewTool("hive_import",
	mcp.WithDescription("Load a JSON or YAML document file into existing slots."),
	mcp.WithString("path", mcp.Required(), mcp.Description("Input file (.json, .yaml or .yml)")),
	mcp.WithString("base", mcp.Description("Base group (default /)")),
	mcp.WithBoolean("flat", mcp.Description("Keys are slash-joined paths")),
	mcp.WithBoolean("envelope", mcp.Description("Document is wrapped under the ARChive key")),
)

var loadToolDef = mcp.NewTool("hive_load",
	mcp.WithDescription("Load an inline document into existing slots."),
	mcp.WithObject("document", mcp.Required(), mcp.Description("Document to load")),
	mcp.WithString("base", mcp.Description("Base group (default /)")),
	mcp.WithBoolean("flat", mcp.Description("Keys are slash-joined paths")),
	mcp.WithBoolean("envelope", mcp.Description("Document is wrapped under the ARChive key")),
)
