package tools

// ToolDef describes a tool advertised to the model.
type ToolDef struct {
	Name        string
	Description string
	InputSchema map[string]any
}

func stringProp(description string) map[string]any {
	return map[string]any{
		"type":        "string",
		"description": description,
	}
}

// Definitions returns the sandboxed filesystem tools in a stable order.
func Definitions() []ToolDef {
	return []ToolDef{
		{
			Name:        NameReadFile,
			Description: "Read a text file inside the workspace",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"path": stringProp("Path relative to the workspace root"),
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        NameWriteFile,
			Description: "Create or overwrite a file inside the workspace. Parent directories are created as needed.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"path":    stringProp("Path relative to the workspace root"),
					"content": stringProp("Full file contents to write"),
				},
				"required": []string{"path", "content"},
			},
		},
		{
			Name:        NameListDir,
			Description: "List the entries of a directory inside the workspace",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"path": stringProp("Directory relative to the workspace root (default .)"),
				},
			},
		},
		{
			Name:        NameSearchFiles,
			Description: "Recursively find files whose name matches a glob pattern (e.g. *.go)",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"pattern": stringProp("Glob pattern; patterns containing / match the relative path"),
					"path":    stringProp("Directory to search from (default .)"),
				},
				"required": []string{"pattern"},
			},
		},
	}
}
