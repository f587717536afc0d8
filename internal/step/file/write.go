package file

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/recipekit/recipekit/internal/step/conf"
	"github.com/recipekit/recipekit/pkg/errors"
	"github.com/recipekit/recipekit/pkg/recipe"
)

// WriteStep writes a list of file specs to disk, creating parent
// directories on demand. Specs come either from a context artifact
// (files_key) or inline (files), with inline path/content rendered.
type WriteStep struct {
	logger   *slog.Logger
	filesKey string
	inline   []interface{}
	root     string
}

// NewWriteStep validates the write_files config.
func NewWriteStep(logger *slog.Logger, config map[string]interface{}) (*WriteStep, error) {
	filesKey, err := conf.StringOr(config, "write_files", "files_key", "")
	if err != nil {
		return nil, err
	}

	var inline []interface{}
	if raw, ok := config["files"]; ok {
		inline, ok = raw.([]interface{})
		if !ok {
			return nil, &errors.ConfigError{StepType: "write_files", Field: "files", Message: fmt.Sprintf("expected list, got %T", raw)}
		}
	}

	if filesKey == "" && inline == nil {
		return nil, &errors.ConfigError{StepType: "write_files", Field: "files_key", Message: "required (files_key or files)"}
	}
	if filesKey != "" && inline != nil {
		return nil, &errors.ConfigError{StepType: "write_files", Field: "files", Message: "files_key and files are mutually exclusive"}
	}

	root, err := conf.StringOr(config, "write_files", "root", "")
	if err != nil {
		return nil, err
	}

	return &WriteStep{logger: logger, filesKey: filesKey, inline: inline, root: root}, nil
}

// Execute writes every file spec. A failure propagates after the failing
// write; files already written stay on disk.
func (s *WriteStep) Execute(ctx context.Context, rc *recipe.Context) error {
	specs, err := s.resolveSpecs(rc)
	if err != nil {
		return err
	}

	root := s.root
	if root != "" {
		root, err = renderer.Render(root, rc)
		if err != nil {
			return err
		}
	}

	for _, spec := range specs {
		path := spec.Path
		if root != "" {
			path = filepath.Join(root, path)
		}
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create directory %s: %w", dir, err)
			}
		}
		if err := os.WriteFile(path, []byte(spec.Content), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		s.logger.Info("wrote file", "path", path, "bytes", len(spec.Content))
	}
	return nil
}

// resolveSpecs produces the file specs to write. Inline specs render
// path and content; artifact-held specs are used as stored.
func (s *WriteStep) resolveSpecs(rc *recipe.Context) ([]recipe.FileSpec, error) {
	if s.filesKey != "" {
		value, err := rc.Get(s.filesKey)
		if err != nil {
			return nil, err
		}
		return coerceSpecs(value, s.filesKey)
	}

	specs := make([]recipe.FileSpec, 0, len(s.inline))
	for i, elem := range s.inline {
		m, ok := elem.(map[string]interface{})
		if !ok {
			return nil, &errors.ConfigError{StepType: "write_files", Field: fmt.Sprintf("files[%d]", i), Message: fmt.Sprintf("expected mapping, got %T", elem)}
		}
		path, _ := m["path"].(string)
		content, _ := m["content"].(string)
		if path == "" {
			return nil, &errors.ConfigError{StepType: "write_files", Field: fmt.Sprintf("files[%d].path", i), Message: "required"}
		}
		renderedPath, err := renderer.Render(path, rc)
		if err != nil {
			return nil, err
		}
		renderedContent, err := renderer.Render(content, rc)
		if err != nil {
			return nil, err
		}
		specs = append(specs, recipe.FileSpec{Path: renderedPath, Content: renderedContent})
	}
	return specs, nil
}

// coerceSpecs accepts the artifact shapes a file list can arrive in:
// []FileSpec from llm_generate, or decoded JSON lists of mappings.
func coerceSpecs(value interface{}, key string) ([]recipe.FileSpec, error) {
	switch v := value.(type) {
	case []recipe.FileSpec:
		return v, nil
	case []interface{}:
		specs := make([]recipe.FileSpec, 0, len(v))
		for i, elem := range v {
			m, ok := elem.(map[string]interface{})
			if !ok {
				return nil, &errors.ConfigError{StepType: "write_files", Field: key, Message: fmt.Sprintf("element %d is %T, expected a file mapping", i, elem)}
			}
			path, _ := m["path"].(string)
			content, _ := m["content"].(string)
			if path == "" {
				return nil, &errors.ConfigError{StepType: "write_files", Field: key, Message: fmt.Sprintf("element %d has an empty path", i)}
			}
			specs = append(specs, recipe.FileSpec{Path: path, Content: content})
		}
		return specs, nil
	default:
		return nil, &errors.ConfigError{StepType: "write_files", Field: key, Message: fmt.Sprintf("expected a file list, got %T", value)}
	}
}
