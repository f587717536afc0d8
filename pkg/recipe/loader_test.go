package recipe

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recipekit/recipekit/pkg/errors"
)

func TestLoadInlineJSON(t *testing.T) {
	r, source, err := Load(`{"steps":[{"type":"set_context","config":{"key":"a","value":"b"}}]}`)
	require.NoError(t, err)
	assert.Equal(t, InlineSource, source)
	require.Len(t, r.Steps, 1)
	assert.Equal(t, "set_context", r.Steps[0].Type)
	assert.Equal(t, "a", r.Steps[0].Config["key"])
}

func TestLoadMap(t *testing.T) {
	r, _, err := Load(map[string]interface{}{
		"steps": []interface{}{
			map[string]interface{}{"type": "shell", "config": map[string]interface{}{"command": "true"}},
		},
	})
	require.NoError(t, err)
	require.Len(t, r.Steps, 1)
	assert.Equal(t, "shell", r.Steps[0].Type)
}

func TestLoadRecipeValue(t *testing.T) {
	in := Recipe{Steps: []StepDef{{Type: "shell"}}}

	r, source, err := Load(in)
	require.NoError(t, err)
	assert.Equal(t, InlineSource, source)
	assert.Len(t, r.Steps, 1)

	r, _, err = Load(&in)
	require.NoError(t, err)
	assert.Len(t, r.Steps, 1)
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "r.yaml")
	content := "steps:\n  - type: set_context\n    config:\n      key: a\n      value: b\nenv_mask:\n  - OPENAI_API_KEY\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	r, source, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, path, source)
	require.Len(t, r.Steps, 1)
	assert.Equal(t, []string{"OPENAI_API_KEY"}, r.EnvMask)
}

func TestLoadExtensionlessYAMLFallback(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recipe")
	require.NoError(t, os.WriteFile(path, []byte("steps:\n  - type: shell\n"), 0o644))

	r, _, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "shell", r.Steps[0].Type)
}

func TestLoadMissingFile(t *testing.T) {
	_, _, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	var missing *errors.MissingRecipeError
	require.ErrorAs(t, err, &missing)
}

func TestLoadParseError(t *testing.T) {
	_, _, err := Load(`{"steps": [`)
	var parse *errors.ParseError
	require.ErrorAs(t, err, &parse)
}

func TestLoadValidation(t *testing.T) {
	t.Run("missing steps", func(t *testing.T) {
		_, _, err := Load(`{"name":"x"}`)
		var invalid *errors.ValidationError
		require.ErrorAs(t, err, &invalid)
	})

	t.Run("step without type", func(t *testing.T) {
		_, _, err := Load(`{"steps":[{"config":{}}]}`)
		var invalid *errors.ValidationError
		require.ErrorAs(t, err, &invalid)
	})

	t.Run("unsupported source type", func(t *testing.T) {
		_, _, err := Load(42)
		var invalid *errors.ValidationError
		require.ErrorAs(t, err, &invalid)
	})
}
