package tools

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/TheLazyLemur/granitecoder/internal/sandbox"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/pkg/errors"
)

// truncateOutput cuts s to at most maxLen bytes without splitting a rune.
func truncateOutput(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "\n... (truncated)"
}

// Executor runs tool calls against a sandbox root.
type Executor struct {
	// MaxOutputBytes caps successful output. Zero means unlimited.
	MaxOutputBytes int
	Logger         *slog.Logger
}

// NewExecutor returns an executor that truncates output to maxOutput bytes.
func NewExecutor(maxOutput int, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{MaxOutputBytes: maxOutput, Logger: logger}
}

// Execute validates and runs call inside sandboxRoot. It never panics and
// never returns a Go error: every failure is folded into the Result.
//
// read_file returns file bytes verbatim. Content that is not valid UTF-8 is
// passed through unchanged rather than re-encoded.
func (e *Executor) Execute(call ToolCall, sandboxRoot string) Result {
	sb, err := sandbox.New(sandboxRoot)
	if err != nil {
		return e.fail(call.Name, err)
	}
	return e.ExecuteIn(call, sb)
}

// ExecuteIn is Execute against an already canonicalized sandbox.
func (e *Executor) ExecuteIn(call ToolCall, sb sandbox.Sandbox) (res Result) {
	logger := e.logger()
	defer func() {
		if r := recover(); r != nil {
			logger.Error("tool panicked", "name", call.Name, "panic", r)
			res = Err(call.Name, KindInternal, fmt.Sprint(r))
		}
	}()

	op, err := Parse(call)
	if err != nil {
		return e.fail(call.Name, err)
	}

	text, err := e.run(op, sb)
	if err != nil {
		return e.fail(call.Name, err)
	}

	logger.Debug("tool succeeded", "name", call.Name, "bytes", len(text))
	return Ok(call.Name, truncateOutput(text, e.MaxOutputBytes))
}

func (e *Executor) fail(name string, err error) Result {
	kind := classify(err)
	e.logger().Warn("tool failed", "name", name, "kind", kind.String(), "error", err)
	return Err(name, kind, err.Error())
}

func (e *Executor) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.Default()
	}
	return e.Logger
}

func (e *Executor) run(op Op, sb sandbox.Sandbox) (string, error) {
	switch op := op.(type) {
	case ReadFile:
		return readFile(op, sb)
	case WriteFile:
		return writeFile(op, sb)
	case ListDir:
		return listDir(op, sb)
	case SearchFiles:
		return searchFiles(op, sb, e.logger())
	default:
		panic(fmt.Sprintf("tools: unhandled op %T", op))
	}
}

func readFile(op ReadFile, sb sandbox.Sandbox) (string, error) {
	path, err := sb.Resolve(op.Path)
	if err != nil {
		return "", err
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", notFoundOr(err, op.Path)
	}
	if info.IsDir() {
		return "", newError(KindIsADirectory, "is a directory: "+op.Path)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return "", errors.Wrap(err, "reading "+op.Path)
	}
	return string(content), nil
}

func writeFile(op WriteFile, sb sandbox.Sandbox) (string, error) {
	path, err := sb.Resolve(op.Path)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", errors.Wrap(err, "creating parent directories")
	}
	if err := os.WriteFile(path, []byte(op.Content), 0644); err != nil {
		return "", errors.Wrap(err, "writing "+op.Path)
	}

	return "Successfully wrote to " + op.Path, nil
}

func listDir(op ListDir, sb sandbox.Sandbox) (string, error) {
	path, err := sb.Resolve(op.Path)
	if err != nil {
		return "", err
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", notFoundOr(err, op.Path)
	}
	if !info.IsDir() {
		return "", newError(KindNotADirectory, "not a directory: "+op.Path)
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return "", errors.Wrap(err, "listing "+op.Path)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	slices.Sort(names)
	return strings.Join(names, "\n"), nil
}

// searchFiles walks the sanitized directory. A pattern without a separator
// matches base names at any depth; otherwise it matches the relative path,
// where ** spans any number of directories. Directories that cannot be read
// are skipped.
func searchFiles(op SearchFiles, sb sandbox.Sandbox, logger *slog.Logger) (string, error) {
	base, err := sb.Resolve(op.Path)
	if err != nil {
		return "", err
	}

	pattern := filepath.ToSlash(op.Pattern)
	if !doublestar.ValidatePattern(pattern) {
		return "", newError(KindInvalidArguments, "bad pattern: "+op.Pattern)
	}
	byName := !strings.Contains(pattern, "/")

	info, err := os.Stat(base)
	if err != nil {
		return "", notFoundOr(err, op.Path)
	}
	if !info.IsDir() {
		return "", newError(KindNotADirectory, "not a directory: "+op.Path)
	}

	var matches []string
	err = filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == base {
				return err
			}
			logger.Debug("search skipping entry", "path", path, "error", err)
			return skipUnreadable(d, err)
		}
		if path == base {
			return nil
		}
		rel, err := filepath.Rel(base, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		subject := rel
		if byName {
			subject = d.Name()
		}
		if ok, _ := doublestar.Match(pattern, subject); ok {
			matches = append(matches, rel)
		}
		return nil
	})
	if err != nil {
		return "", errors.Wrap(err, "searching "+op.Path)
	}

	slices.Sort(matches)
	return strings.Join(matches, "\n"), nil
}

// skipUnreadable decides how a walk continues past an entry it failed on.
// Permission and vanished-entry errors skip that entry; others stop the walk.
func skipUnreadable(d fs.DirEntry, err error) error {
	if !errors.Is(err, fs.ErrPermission) && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if d != nil && d.IsDir() {
		return fs.SkipDir
	}
	return nil
}

func notFoundOr(err error, path string) error {
	if errors.Is(err, fs.ErrNotExist) {
		return newError(KindNotFound, "no such file or directory: "+path)
	}
	return errors.Wrap(err, "stat "+path)
}
