package tools

import (
	"io/fs"
	"syscall"

	"github.com/TheLazyLemur/granitecoder/internal/sandbox"
	"github.com/pkg/errors"
)

// Kind classifies a failed tool call.
type Kind int

const (
	KindNone Kind = iota
	KindPathEscape
	KindNotFound
	KindIsADirectory
	KindNotADirectory
	KindPermission
	KindUnknownTool
	KindInvalidArguments
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindPathEscape:
		return "path_escape"
	case KindNotFound:
		return "not_found"
	case KindIsADirectory:
		return "is_a_directory"
	case KindNotADirectory:
		return "not_a_directory"
	case KindPermission:
		return "permission"
	case KindUnknownTool:
		return "unknown_tool"
	case KindInvalidArguments:
		return "invalid_arguments"
	default:
		return "internal"
	}
}

// Result is the outcome of one tool call: Ok(text) or Err(kind, message).
type Result struct {
	Tool    string
	Text    string
	Kind    Kind
	Message string
}

// Ok builds a successful result.
func Ok(tool, text string) Result {
	return Result{Tool: tool, Text: text}
}

// Err builds a failed result.
func Err(tool string, kind Kind, message string) Result {
	return Result{Tool: tool, Kind: kind, Message: message}
}

// IsErr reports whether the call failed. Unknown tools count as failures
// for the model even though they are not raised.
func (r Result) IsErr() bool {
	return r.Kind != KindNone
}

// String renders the result for the conversation transcript.
func (r Result) String() string {
	switch r.Kind {
	case KindNone:
		return r.Text
	case KindUnknownTool:
		return "Unknown tool: " + r.Tool
	default:
		return "Error executing " + r.Tool + ": " + r.Message
	}
}

// Error is a typed tool failure carrying its Kind.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func newError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// classify maps an error from the sanitizer or filesystem to a Kind.
func classify(err error) Kind {
	var te *Error
	switch {
	case errors.As(err, &te):
		return te.Kind
	case sandbox.IsPathEscape(err):
		return KindPathEscape
	case errors.Is(err, fs.ErrNotExist):
		return KindNotFound
	case errors.Is(err, fs.ErrPermission):
		return KindPermission
	case errors.Is(err, syscall.EISDIR):
		return KindIsADirectory
	case errors.Is(err, syscall.ENOTDIR):
		return KindNotADirectory
	default:
		return KindInternal
	}
}
