package file

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recipekit/recipekit/pkg/errors"
	"github.com/recipekit/recipekit/pkg/recipe"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func runRead(t *testing.T, rc *recipe.Context, config map[string]interface{}) error {
	t.Helper()
	step, err := NewReadStep(slog.Default(), config)
	require.NoError(t, err)
	return step.Execute(context.Background(), rc)
}

func runWrite(t *testing.T, rc *recipe.Context, config map[string]interface{}) error {
	t.Helper()
	step, err := NewWriteStep(slog.Default(), config)
	require.NoError(t, err)
	return step.Execute(context.Background(), rc)
}

func TestReadSingleFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "x.md", "content of x")

	rc := recipe.NewContext(nil)
	require.NoError(t, runRead(t, rc, map[string]interface{}{
		"path":        filepath.Join(dir, "x.md"),
		"content_key": "blob",
	}))

	// Single file: raw content, no header.
	assert.Equal(t, "content of x", rc.GetDefault("blob", nil))
}

func TestReadConcatWithHeaders(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "x.md", "xx")
	writeFile(t, dir, "y.md", "yy")

	rc := recipe.NewContext(nil)
	require.NoError(t, runRead(t, rc, map[string]interface{}{
		"path":        filepath.Join(dir, "x.md") + "," + filepath.Join(dir, "y.md"),
		"content_key": "blob",
		"merge_mode":  "concat",
	}))

	assert.Equal(t, "File: x.md\nxx\n\nFile: y.md\nyy", rc.GetDefault("blob", nil))
}

func TestReadDictMode(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "aa")
	writeFile(t, dir, "b.txt", "bb")

	rc := recipe.NewContext(nil)
	require.NoError(t, runRead(t, rc, map[string]interface{}{
		"paths":       []interface{}{filepath.Join(dir, "a.txt"), filepath.Join(dir, "b.txt")},
		"content_key": "docs",
		"merge_mode":  "dict",
	}))

	docs := rc.GetDefault("docs", nil).(map[string]interface{})
	assert.Equal(t, "aa", docs["a.txt"])
	assert.Equal(t, "bb", docs["b.txt"])
}

func TestReadRenderedPath(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "doc.md", "hello")

	rc := recipe.NewContext(nil)
	rc.Set("dir", dir)

	require.NoError(t, runRead(t, rc, map[string]interface{}{
		"path":        "{{ dir }}/doc.md",
		"content_key": "blob",
	}))
	assert.Equal(t, "hello", rc.GetDefault("blob", nil))
}

func TestReadGlob(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	writeFile(t, dir, "top.md", "top")
	writeFile(t, filepath.Join(dir, "sub"), "deep.md", "deep")

	rc := recipe.NewContext(nil)
	require.NoError(t, runRead(t, rc, map[string]interface{}{
		"path":        filepath.Join(dir, "**", "*.md"),
		"content_key": "docs",
		"merge_mode":  "dict",
	}))

	docs := rc.GetDefault("docs", nil).(map[string]interface{})
	assert.Equal(t, "top", docs["top.md"])
	assert.Equal(t, "deep", docs["deep.md"])
}

func TestReadMissingFile(t *testing.T) {
	rc := recipe.NewContext(nil)
	err := runRead(t, rc, map[string]interface{}{
		"path":        filepath.Join(t.TempDir(), "absent.md"),
		"content_key": "blob",
	})

	var missing *errors.MissingFileError
	require.ErrorAs(t, err, &missing)
}

func TestReadOptionalMissing(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "present.md", "here")

	t.Run("concat contributes empty", func(t *testing.T) {
		rc := recipe.NewContext(nil)
		require.NoError(t, runRead(t, rc, map[string]interface{}{
			"path":        filepath.Join(dir, "present.md") + "," + filepath.Join(dir, "absent.md"),
			"content_key": "blob",
			"optional":    true,
		}))
		assert.Equal(t, "File: present.md\nhere\n\nFile: absent.md\n", rc.GetDefault("blob", nil))
	})

	t.Run("dict skips", func(t *testing.T) {
		rc := recipe.NewContext(nil)
		require.NoError(t, runRead(t, rc, map[string]interface{}{
			"path":        filepath.Join(dir, "present.md") + "," + filepath.Join(dir, "absent.md"),
			"content_key": "docs",
			"optional":    true,
			"merge_mode":  "dict",
		}))
		docs := rc.GetDefault("docs", nil).(map[string]interface{})
		assert.Len(t, docs, 1)
	})
}

func TestWriteInlineFiles(t *testing.T) {
	dir := t.TempDir()
	rc := recipe.NewContext(nil)
	rc.Set("body", "generated")

	require.NoError(t, runWrite(t, rc, map[string]interface{}{
		"root": dir,
		"files": []interface{}{
			map[string]interface{}{"path": "nested/out.md", "content": "{{ body }}"},
		},
	}))

	data, err := os.ReadFile(filepath.Join(dir, "nested", "out.md"))
	require.NoError(t, err)
	assert.Equal(t, "generated", string(data))
}

func TestWriteFromFilesKey(t *testing.T) {
	dir := t.TempDir()
	rc := recipe.NewContext(nil)
	rc.Set("outputs", []recipe.FileSpec{
		{Path: "a.txt", Content: "aa"},
		{Path: "b.txt", Content: "bb"},
	})

	require.NoError(t, runWrite(t, rc, map[string]interface{}{
		"files_key": "outputs",
		"root":      dir,
	}))

	for name, want := range map[string]string{"a.txt": "aa", "b.txt": "bb"} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err)
		assert.Equal(t, want, string(data))
	}
}

func TestWriteFromDecodedList(t *testing.T) {
	dir := t.TempDir()
	rc := recipe.NewContext(nil)
	rc.Set("outputs", []interface{}{
		map[string]interface{}{"path": "c.txt", "content": "cc"},
	})

	require.NoError(t, runWrite(t, rc, map[string]interface{}{
		"files_key": "outputs",
		"root":      dir,
	}))

	data, err := os.ReadFile(filepath.Join(dir, "c.txt"))
	require.NoError(t, err)
	assert.Equal(t, "cc", string(data))
}

func TestReadWriteRoundTrip(t *testing.T) {
	dir := t.TempDir()
	original := "line one\nline two\nunicode: héllo\n"
	writeFile(t, dir, "in.md", original)

	rc := recipe.NewContext(nil)
	require.NoError(t, runRead(t, rc, map[string]interface{}{
		"path":        filepath.Join(dir, "in.md"),
		"content_key": "blob",
	}))
	require.NoError(t, runWrite(t, rc, map[string]interface{}{
		"root": dir,
		"files": []interface{}{
			map[string]interface{}{"path": "out.md", "content": "{{ blob }}"},
		},
	}))

	data, err := os.ReadFile(filepath.Join(dir, "out.md"))
	require.NoError(t, err)
	assert.Equal(t, original, string(data))
}

func TestConfigValidation(t *testing.T) {
	var cfgErr *errors.ConfigError

	_, err := NewReadStep(slog.Default(), map[string]interface{}{"content_key": "k"})
	require.ErrorAs(t, err, &cfgErr)

	_, err = NewReadStep(slog.Default(), map[string]interface{}{"path": "x", "content_key": "k", "merge_mode": "bogus"})
	require.ErrorAs(t, err, &cfgErr)

	_, err = NewWriteStep(slog.Default(), map[string]interface{}{})
	require.ErrorAs(t, err, &cfgErr)

	_, err = NewWriteStep(slog.Default(), map[string]interface{}{"files_key": "k", "files": []interface{}{}})
	require.ErrorAs(t, err, &cfgErr)
}
