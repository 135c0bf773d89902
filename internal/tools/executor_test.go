package tools

import (
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/TheLazyLemur/granitecoder/internal/sandbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRoot(t *testing.T, files map[string]string) string {
	t.Helper()
	root, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	return root
}

func call(name string, args map[string]any) ToolCall {
	return ToolCall{Name: name, Arguments: args}
}

func TestExecute_WriteThenRead(t *testing.T) {
	a := assert.New(t)
	root := newRoot(t, nil)
	e := NewExecutor(0, nil)
	content := "package main\n\nfunc main() {}\n\ttabs and unicode: héllo ✓\n"

	// when
	w := e.Execute(call(NameWriteFile, map[string]any{"path": "cmd/app/main.go", "content": content}), root)
	r := e.Execute(call(NameReadFile, map[string]any{"path": "cmd/app/main.go"}), root)

	// then
	a.False(w.IsErr())
	a.Equal("Successfully wrote to cmd/app/main.go", w.String())
	a.False(r.IsErr())
	a.Equal(content, r.String())
}

func TestExecute_WriteOverwrites(t *testing.T) {
	a := assert.New(t)
	root := newRoot(t, map[string]string{"a.txt": "old contents that are longer"})
	e := NewExecutor(0, nil)

	res := e.Execute(call(NameWriteFile, map[string]any{"path": "a.txt", "content": "new"}), root)

	a.False(res.IsErr())
	data, err := os.ReadFile(filepath.Join(root, "a.txt"))
	a.NoError(err)
	a.Equal("new", string(data))
}

func TestExecute_WriteEmptyContent(t *testing.T) {
	a := assert.New(t)
	root := newRoot(t, nil)
	e := NewExecutor(0, nil)

	res := e.Execute(call(NameWriteFile, map[string]any{"path": "empty.txt", "content": ""}), root)

	a.False(res.IsErr())
	a.FileExists(filepath.Join(root, "empty.txt"))
}

func TestExecute_ReadFile_NonUTF8PassesThrough(t *testing.T) {
	a := assert.New(t)
	raw := string([]byte{0xff, 0xfe, 'a', 0x00, 'b'})
	root := newRoot(t, map[string]string{"bin.dat": raw})

	res := NewExecutor(0, nil).Execute(call(NameReadFile, map[string]any{"path": "bin.dat"}), root)

	a.False(res.IsErr())
	a.Equal(raw, res.Text)
}

func TestExecute_ReadFile_Missing(t *testing.T) {
	a := assert.New(t)
	root := newRoot(t, nil)

	res := NewExecutor(0, nil).Execute(call(NameReadFile, map[string]any{"path": "nope.txt"}), root)

	a.True(res.IsErr())
	a.Equal(KindNotFound, res.Kind)
	a.Contains(res.String(), "Error executing read_file")
	a.Contains(res.String(), "nope.txt")
}

func TestExecute_ReadFile_Directory(t *testing.T) {
	a := assert.New(t)
	root := newRoot(t, map[string]string{"pkg/x.go": "x"})

	res := NewExecutor(0, nil).Execute(call(NameReadFile, map[string]any{"path": "pkg"}), root)

	a.Equal(KindIsADirectory, res.Kind)
	a.True(strings.HasPrefix(res.String(), "Error executing read_file: "))
}

func TestExecute_ListDir_Sorted(t *testing.T) {
	a := assert.New(t)
	root := newRoot(t, map[string]string{"b.py": "", "a.txt": "", "sub/c.go": ""})

	res := NewExecutor(0, nil).Execute(call(NameListDir, map[string]any{"path": "."}), root)

	a.False(res.IsErr())
	a.Equal("a.txt\nb.py\nsub", res.String())
}

func TestExecute_ListDir_DefaultsToRoot(t *testing.T) {
	a := assert.New(t)
	root := newRoot(t, map[string]string{"only.txt": ""})

	res := NewExecutor(0, nil).Execute(call(NameListDir, nil), root)

	a.Equal("only.txt", res.String())
}

func TestExecute_ListDir_Errors(t *testing.T) {
	a := assert.New(t)
	root := newRoot(t, map[string]string{"file.txt": ""})
	e := NewExecutor(0, nil)

	missing := e.Execute(call(NameListDir, map[string]any{"path": "gone"}), root)
	a.Equal(KindNotFound, missing.Kind)

	notDir := e.Execute(call(NameListDir, map[string]any{"path": "file.txt"}), root)
	a.Equal(KindNotADirectory, notDir.Kind)
	a.Contains(notDir.String(), "Error executing list_dir")
}

func TestExecute_SearchFiles(t *testing.T) {
	a := assert.New(t)
	root := newRoot(t, map[string]string{"a.txt": "", "b.py": ""})

	res := NewExecutor(0, nil).Execute(call(NameSearchFiles, map[string]any{"pattern": "*.py", "path": "."}), root)

	a.False(res.IsErr())
	a.Equal("b.py", res.String())
}

func TestExecute_SearchFiles_Recursive(t *testing.T) {
	a := assert.New(t)
	root := newRoot(t, map[string]string{
		"main.go":              "",
		"internal/x/x.go":      "",
		"internal/x/x_test.go": "",
		"docs/readme.md":       "",
	})
	e := NewExecutor(0, nil)

	all := e.Execute(call(NameSearchFiles, map[string]any{"pattern": "*.go"}), root)
	a.Equal("internal/x/x.go\ninternal/x/x_test.go\nmain.go", all.String())

	scoped := e.Execute(call(NameSearchFiles, map[string]any{"pattern": "*_test.go", "path": "internal"}), root)
	a.Equal("x/x_test.go", scoped.String())

	byPath := e.Execute(call(NameSearchFiles, map[string]any{"pattern": "docs/*.md"}), root)
	a.Equal("docs/readme.md", byPath.String())
}

func TestExecute_SearchFiles_DoubleStar(t *testing.T) {
	a := assert.New(t)
	root := newRoot(t, map[string]string{
		"b.py":          "",
		"pkg/c.py":      "",
		"pkg/deep/d.py": "",
		"pkg/deep/e.go": "",
	})
	e := NewExecutor(0, nil)

	anyDepth := e.Execute(call(NameSearchFiles, map[string]any{"pattern": "**/*.py"}), root)
	a.Equal("b.py\npkg/c.py\npkg/deep/d.py", anyDepth.String())

	underDir := e.Execute(call(NameSearchFiles, map[string]any{"pattern": "pkg/**/*.py"}), root)
	a.Equal("pkg/c.py\npkg/deep/d.py", underDir.String())

	named := e.Execute(call(NameSearchFiles, map[string]any{"pattern": "pkg/**/e.go"}), root)
	a.Equal("pkg/deep/e.go", named.String())
}

func TestExecute_SearchFiles_SkipsUnreadableDirectory(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("permission bits not enforced")
	}
	a := assert.New(t)
	r := require.New(t)

	// given
	root := newRoot(t, map[string]string{"ok/a.py": "", "locked/b.py": ""})
	locked := filepath.Join(root, "locked")
	r.NoError(os.Chmod(locked, 0000))
	t.Cleanup(func() { os.Chmod(locked, 0755) })

	// when
	res := NewExecutor(0, nil).Execute(call(NameSearchFiles, map[string]any{"pattern": "*.py"}), root)

	// then
	a.False(res.IsErr())
	a.Equal("ok/a.py", res.String())
}

func TestSkipUnreadable(t *testing.T) {
	a := assert.New(t)
	r := require.New(t)

	root := newRoot(t, map[string]string{"f.txt": ""})
	dirInfo, err := os.Stat(root)
	r.NoError(err)
	fileInfo, err := os.Stat(filepath.Join(root, "f.txt"))
	r.NoError(err)
	dir := fs.FileInfoToDirEntry(dirInfo)
	file := fs.FileInfoToDirEntry(fileInfo)

	a.Equal(fs.SkipDir, skipUnreadable(dir, fs.ErrPermission))
	a.Equal(fs.SkipDir, skipUnreadable(dir, &fs.PathError{Op: "open", Path: "gone", Err: fs.ErrNotExist}))
	a.NoError(skipUnreadable(file, fs.ErrPermission))
	a.NoError(skipUnreadable(nil, fs.ErrNotExist))

	other := fs.ErrInvalid
	a.Equal(other, skipUnreadable(dir, other))
}

func TestExecuteIn_ReusesSandbox(t *testing.T) {
	a := assert.New(t)
	r := require.New(t)

	root := newRoot(t, map[string]string{"a.txt": "hello"})
	sb, err := sandbox.New(root)
	r.NoError(err)
	e := NewExecutor(0, nil)

	a.Equal("hello", e.ExecuteIn(call(NameReadFile, map[string]any{"path": "a.txt"}), sb).String())
	a.Equal(KindPathEscape, e.ExecuteIn(call(NameReadFile, map[string]any{"path": "../a.txt"}), sb).Kind)
}

func TestExecute_SearchFiles_NoMatches(t *testing.T) {
	a := assert.New(t)
	root := newRoot(t, map[string]string{"a.txt": ""})

	res := NewExecutor(0, nil).Execute(call(NameSearchFiles, map[string]any{"pattern": "*.rs"}), root)

	a.False(res.IsErr())
	a.Empty(res.String())
}

func TestExecute_SearchFiles_BadPattern(t *testing.T) {
	a := assert.New(t)
	root := newRoot(t, nil)

	res := NewExecutor(0, nil).Execute(call(NameSearchFiles, map[string]any{"pattern": "[unclosed"}), root)

	a.Equal(KindInvalidArguments, res.Kind)
}

func TestExecute_PathEscape(t *testing.T) {
	a := assert.New(t)
	root := newRoot(t, nil)
	e := NewExecutor(0, nil)

	for _, c := range []ToolCall{
		call(NameReadFile, map[string]any{"path": "../../etc/passwd"}),
		call(NameWriteFile, map[string]any{"path": "../evil.txt", "content": "x"}),
		call(NameListDir, map[string]any{"path": ".."}),
		call(NameSearchFiles, map[string]any{"pattern": "*", "path": "a/../../"}),
	} {
		res := e.Execute(c, root)
		a.Equal(KindPathEscape, res.Kind, c.Name)
		a.Contains(res.String(), "Error executing "+c.Name, c.Name)
	}
	a.NoFileExists(filepath.Join(filepath.Dir(root), "evil.txt"))
}

func TestExecute_WritePermissionDenied(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("permission bits not enforced")
	}
	a := assert.New(t)
	r := require.New(t)

	// given
	root := newRoot(t, nil)
	locked := filepath.Join(root, "locked")
	r.NoError(os.Mkdir(locked, 0555))
	t.Cleanup(func() { os.Chmod(locked, 0755) })

	// when
	res := NewExecutor(0, nil).Execute(call(NameWriteFile, map[string]any{"path": "locked/x.txt", "content": "x"}), root)

	// then
	a.Equal(KindPermission, res.Kind)
	a.Contains(res.String(), "Error executing write_file")
}

func TestExecute_UnknownTool(t *testing.T) {
	a := assert.New(t)

	res := NewExecutor(0, nil).Execute(call("delete_everything", map[string]any{}), t.TempDir())

	a.Equal(KindUnknownTool, res.Kind)
	a.Contains(res.String(), "Unknown tool")
	a.Contains(res.String(), "delete_everything")
}

func TestExecute_MissingArguments(t *testing.T) {
	a := assert.New(t)
	root := newRoot(t, nil)
	e := NewExecutor(0, nil)

	read := e.Execute(call(NameReadFile, map[string]any{}), root)
	a.Equal(KindInvalidArguments, read.Kind)
	a.Equal("Error executing read_file: missing path argument", read.String())

	write := e.Execute(call(NameWriteFile, map[string]any{"path": "x"}), root)
	a.Equal("Error executing write_file: missing content argument", write.String())

	wrongType := e.Execute(call(NameListDir, map[string]any{"path": 42}), root)
	a.Equal(KindInvalidArguments, wrongType.Kind)
}

func TestExecute_Truncates(t *testing.T) {
	a := assert.New(t)
	root := newRoot(t, map[string]string{"big.txt": strings.Repeat("x", 100)})

	res := NewExecutor(10, nil).Execute(call(NameReadFile, map[string]any{"path": "big.txt"}), root)

	a.Equal(strings.Repeat("x", 10)+"\n... (truncated)", res.String())
}

func TestExecute_BadRootIsReported(t *testing.T) {
	a := assert.New(t)

	res := NewExecutor(0, nil).Execute(call(NameReadFile, map[string]any{"path": "a"}), filepath.Join(t.TempDir(), "missing"))

	a.True(res.IsErr())
	a.Contains(res.String(), "Error executing read_file")
}

func TestTruncateOutput(t *testing.T) {
	a := assert.New(t)

	a.Equal(strings.Repeat("x", 10)+"\n... (truncated)", truncateOutput(strings.Repeat("x", 100), 10))
	a.Equal("short", truncateOutput("short", 100))
	a.Equal("exact", truncateOutput("exact", 5))
	a.Equal("unlimited", truncateOutput("unlimited", 0))
}

func TestTruncateOutput_KeepsRunesWhole(t *testing.T) {
	a := assert.New(t)

	a.Equal("h\n... (truncated)", truncateOutput("héllo", 2))
	a.Equal("hé\n... (truncated)", truncateOutput("héllo", 3))
	a.Equal("\n... (truncated)", truncateOutput("日本", 2))
}
