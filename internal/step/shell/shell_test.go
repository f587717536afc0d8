package shell

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recipekit/recipekit/pkg/errors"
	"github.com/recipekit/recipekit/pkg/recipe"
)

func runShell(t *testing.T, rc *recipe.Context, config map[string]interface{}) error {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell step tests require a POSIX shell")
	}
	step, err := New(slog.Default(), config)
	require.NoError(t, err)
	return step.Execute(context.Background(), rc)
}

func TestShellCapturesOutput(t *testing.T) {
	rc := recipe.NewContext(nil)

	require.NoError(t, runShell(t, rc, map[string]interface{}{
		"command":        "echo hello",
		"capture_output": true,
	}))

	assert.Equal(t, "hello", rc.GetDefault("shell_output", nil))
	assert.Equal(t, "", rc.GetDefault("shell_error", nil))
}

func TestShellCustomOutputKeys(t *testing.T) {
	rc := recipe.NewContext(nil)

	require.NoError(t, runShell(t, rc, map[string]interface{}{
		"command":        "echo out; echo err >&2",
		"capture_output": true,
		"output_key":     "my_out",
		"error_key":      "my_err",
	}))

	assert.Equal(t, "out", rc.GetDefault("my_out", nil))
	assert.Equal(t, "err", rc.GetDefault("my_err", nil))
}

func TestShellRendersCommand(t *testing.T) {
	rc := recipe.NewContext(nil)
	rc.Set("word", "rendered")

	require.NoError(t, runShell(t, rc, map[string]interface{}{
		"command":        "echo {{ word }}",
		"capture_output": true,
	}))

	assert.Equal(t, "rendered", rc.GetDefault("shell_output", nil))
}

func TestShellArgvForm(t *testing.T) {
	rc := recipe.NewContext(nil)
	rc.Set("arg", "two words")

	require.NoError(t, runShell(t, rc, map[string]interface{}{
		"command":        []interface{}{"echo", "{{ arg }}"},
		"capture_output": true,
	}))

	// Argv form passes the rendered value as one argument, unsplit.
	assert.Equal(t, "two words", rc.GetDefault("shell_output", nil))
}

func TestShellNonZeroExit(t *testing.T) {
	rc := recipe.NewContext(nil)

	err := runShell(t, rc, map[string]interface{}{
		"command": "echo failing >&2; exit 3",
	})

	var shellErr *errors.ShellError
	require.ErrorAs(t, err, &shellErr)
	assert.Equal(t, 3, shellErr.ExitCode)
	assert.Contains(t, shellErr.Stderr, "failing")
}

func TestShellWorkingDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "marker"), []byte("x"), 0o644))

	rc := recipe.NewContext(nil)
	require.NoError(t, runShell(t, rc, map[string]interface{}{
		"command":        "ls",
		"working_dir":    dir,
		"capture_output": true,
	}))

	assert.Contains(t, rc.GetDefault("shell_output", nil), "marker")
}

func TestShellEnv(t *testing.T) {
	rc := recipe.NewContext(nil)
	rc.Set("suffix", "value")

	require.NoError(t, runShell(t, rc, map[string]interface{}{
		"command":        "echo $MY_VAR",
		"env":            map[string]interface{}{"MY_VAR": "env-{{ suffix }}"},
		"capture_output": true,
	}))

	assert.Equal(t, "env-value", rc.GetDefault("shell_output", nil))
}

func TestShellTimeout(t *testing.T) {
	rc := recipe.NewContext(nil)

	err := runShell(t, rc, map[string]interface{}{
		"command": "sleep 5",
		"timeout": 0.05,
	})

	var shellErr *errors.ShellError
	require.ErrorAs(t, err, &shellErr)
	assert.Contains(t, shellErr.Stderr, "timed out")
}

func TestShellConfigValidation(t *testing.T) {
	var cfgErr *errors.ConfigError

	_, err := New(slog.Default(), map[string]interface{}{})
	require.ErrorAs(t, err, &cfgErr)

	_, err = New(slog.Default(), map[string]interface{}{"command": 42})
	require.ErrorAs(t, err, &cfgErr)
}
