package tools

// Tool names understood by the executor.
const (
	NameReadFile    = "read_file"
	NameWriteFile   = "write_file"
	NameListDir     = "list_dir"
	NameSearchFiles = "search_files"
)

// Op is one supported filesystem operation. The set is closed: only the
// types in this file implement it, and Executor.run switches over all of them.
type Op interface {
	Name() string
	isOp()
}

type ReadFile struct {
	Path string
}

type WriteFile struct {
	Path    string
	Content string
}

type ListDir struct {
	Path string
}

type SearchFiles struct {
	Pattern string
	Path    string
}

func (ReadFile) Name() string    { return NameReadFile }
func (WriteFile) Name() string   { return NameWriteFile }
func (ListDir) Name() string     { return NameListDir }
func (SearchFiles) Name() string { return NameSearchFiles }

func (ReadFile) isOp()    {}
func (WriteFile) isOp()   {}
func (ListDir) isOp()     {}
func (SearchFiles) isOp() {}

// Parse validates a tool call's arguments and returns the matching Op.
// Unknown names fail with KindUnknownTool.
func Parse(call ToolCall) (Op, error) {
	args := call.Arguments
	if args == nil {
		args = map[string]any{}
	}

	switch call.Name {
	case NameReadFile:
		path, err := requireString(args, "path")
		if err != nil {
			return nil, err
		}
		return ReadFile{Path: path}, nil

	case NameWriteFile:
		path, err := requireString(args, "path")
		if err != nil {
			return nil, err
		}
		content, ok := args["content"].(string)
		if !ok {
			return nil, newError(KindInvalidArguments, "missing content argument")
		}
		return WriteFile{Path: path, Content: content}, nil

	case NameListDir:
		path, err := optionalString(args, "path", ".")
		if err != nil {
			return nil, err
		}
		return ListDir{Path: path}, nil

	case NameSearchFiles:
		pattern, err := requireString(args, "pattern")
		if err != nil {
			return nil, err
		}
		path, err := optionalString(args, "path", ".")
		if err != nil {
			return nil, err
		}
		return SearchFiles{Pattern: pattern, Path: path}, nil

	default:
		return nil, newError(KindUnknownTool, "unknown tool: "+call.Name)
	}
}
