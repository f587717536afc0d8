package recipe

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/recipekit/recipekit/pkg/errors"
)

// InlineSource is the source identifier used for recipes that did not
// come from a file.
const InlineSource = "inline"

// Load normalizes a recipe source into a validated Recipe. It accepts:
//   - *Recipe or Recipe (already validated values are re-validated cheaply)
//   - map[string]interface{} (a parsed recipe document)
//   - string: a filesystem path to a JSON/YAML file, or an inline JSON
//     document
//   - []byte: an inline JSON/YAML document
//
// It returns the recipe and a source identifier for error reporting.
func Load(source interface{}) (*Recipe, string, error) {
	switch src := source.(type) {
	case *Recipe:
		if src == nil {
			return nil, InlineSource, &errors.ValidationError{Source: InlineSource, Message: "recipe is nil"}
		}
		return src, InlineSource, validate(src, InlineSource)
	case Recipe:
		return &src, InlineSource, validate(&src, InlineSource)
	case map[string]interface{}:
		return fromMap(src)
	case string:
		return fromString(src)
	case []byte:
		return fromBytes(src, InlineSource)
	default:
		return nil, InlineSource, &errors.ValidationError{
			Source:  InlineSource,
			Message: fmt.Sprintf("unsupported recipe source type %T", source),
		}
	}
}

// fromString loads a recipe from a path or an inline document. Anything
// that looks like a JSON document is parsed inline; everything else is
// treated as a path.
func fromString(src string) (*Recipe, string, error) {
	trimmed := strings.TrimSpace(src)
	if strings.HasPrefix(trimmed, "{") {
		return fromBytes([]byte(trimmed), InlineSource)
	}

	data, err := os.ReadFile(src)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, src, &errors.MissingRecipeError{Path: src}
		}
		return nil, src, &errors.ParseError{Source: src, Cause: err}
	}
	return fromBytes(data, src)
}

// fromBytes parses a JSON or YAML recipe document.
func fromBytes(data []byte, source string) (*Recipe, string, error) {
	var recipe Recipe

	useYAML := false
	switch strings.ToLower(filepath.Ext(source)) {
	case ".yaml", ".yml":
		useYAML = true
	}

	if useYAML {
		if err := yaml.Unmarshal(data, &recipe); err != nil {
			return nil, source, &errors.ParseError{Source: source, Cause: err}
		}
	} else if err := json.Unmarshal(data, &recipe); err != nil {
		// JSON is the primary format; fall back to YAML for extensionless
		// sources that are not JSON.
		if yamlErr := yaml.Unmarshal(data, &recipe); yamlErr != nil {
			return nil, source, &errors.ParseError{Source: source, Cause: err}
		}
	}

	return &recipe, source, validate(&recipe, source)
}

// fromMap converts an already-parsed mapping into a Recipe by round-tripping
// through JSON, which also normalizes nested value types.
func fromMap(m map[string]interface{}) (*Recipe, string, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, InlineSource, &errors.ParseError{Source: InlineSource, Cause: err}
	}
	var recipe Recipe
	if err := json.Unmarshal(data, &recipe); err != nil {
		return nil, InlineSource, &errors.ParseError{Source: InlineSource, Cause: err}
	}
	return &recipe, InlineSource, validate(&recipe, InlineSource)
}

// validate checks the recipe shape: a steps list must be present and every
// step must carry a type.
func validate(r *Recipe, source string) error {
	if r.Steps == nil {
		return &errors.ValidationError{Source: source, Message: "missing required field: steps"}
	}
	for i, step := range r.Steps {
		if step.Type == "" {
			return &errors.ValidationError{
				Source:  source,
				Message: fmt.Sprintf("step %d is missing required field: type", i),
			}
		}
	}
	return nil
}
