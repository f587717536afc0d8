// Package file implements the read_files and write_files steps.
package file

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/recipekit/recipekit/internal/step/conf"
	"github.com/recipekit/recipekit/pkg/errors"
	"github.com/recipekit/recipekit/pkg/recipe"
	"github.com/recipekit/recipekit/pkg/template"
)

var renderer = template.New()

// ReadStep reads one or more UTF-8 files into a context artifact.
type ReadStep struct {
	logger     *slog.Logger
	paths      interface{}
	contentKey string
	optional   bool
	mergeMode  string
}

// NewReadStep validates the read_files config.
func NewReadStep(logger *slog.Logger, config map[string]interface{}) (*ReadStep, error) {
	paths, ok := config["path"]
	if !ok {
		paths, ok = config["paths"]
	}
	if !ok {
		return nil, &errors.ConfigError{StepType: "read_files", Field: "path", Message: "required (path or paths)"}
	}

	contentKey, err := conf.String(config, "read_files", "content_key")
	if err != nil {
		return nil, err
	}
	optional, err := conf.BoolOr(config, "read_files", "optional", false)
	if err != nil {
		return nil, err
	}
	mergeMode, err := conf.StringOr(config, "read_files", "merge_mode", "concat")
	if err != nil {
		return nil, err
	}
	if mergeMode != "concat" && mergeMode != "dict" {
		return nil, &errors.ConfigError{StepType: "read_files", Field: "merge_mode", Message: fmt.Sprintf("expected concat or dict, got %q", mergeMode)}
	}

	return &ReadStep{
		logger:     logger,
		paths:      paths,
		contentKey: contentKey,
		optional:   optional,
		mergeMode:  mergeMode,
	}, nil
}

// Execute resolves the configured paths, reads each file, and stores the
// merged content under content_key.
func (s *ReadStep) Execute(ctx context.Context, rc *recipe.Context) error {
	paths, err := s.resolvePaths(rc)
	if err != nil {
		return err
	}

	type fileContent struct {
		path    string
		content string
		present bool
	}

	contents := make([]fileContent, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				if s.optional {
					s.logger.Debug("optional file absent", "path", path)
					contents = append(contents, fileContent{path: path})
					continue
				}
				return &errors.MissingFileError{Path: path}
			}
			return fmt.Errorf("read %s: %w", path, err)
		}
		contents = append(contents, fileContent{path: path, content: string(data), present: true})
	}

	if s.mergeMode == "dict" {
		result := make(map[string]interface{}, len(contents))
		for _, fc := range contents {
			if !fc.present {
				continue
			}
			result[filepath.Base(fc.path)] = fc.content
		}
		rc.Set(s.contentKey, result)
		return nil
	}

	// Single file keeps its raw content; multiple files gain per-file
	// header lines so the consumer can tell them apart.
	if len(contents) == 1 {
		rc.Set(s.contentKey, contents[0].content)
		return nil
	}
	sections := make([]string, 0, len(contents))
	for _, fc := range contents {
		sections = append(sections, fmt.Sprintf("File: %s\n%s", filepath.Base(fc.path), fc.content))
	}
	rc.Set(s.contentKey, strings.Join(sections, "\n\n"))
	return nil
}

// resolvePaths renders the configured path value and expands it into
// concrete file paths. Glob patterns expand via doublestar; a pattern
// with no matches counts as one absent file so optional semantics apply.
func (s *ReadStep) resolvePaths(rc *recipe.Context) ([]string, error) {
	var elements []string
	switch v := s.paths.(type) {
	case string:
		rendered, err := renderer.Render(v, rc)
		if err != nil {
			return nil, err
		}
		for _, part := range strings.Split(rendered, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				elements = append(elements, trimmed)
			}
		}
	case []interface{}:
		for i, elem := range v {
			str, ok := elem.(string)
			if !ok {
				return nil, &errors.ConfigError{StepType: "read_files", Field: fmt.Sprintf("path[%d]", i), Message: fmt.Sprintf("expected string, got %T", elem)}
			}
			rendered, err := renderer.Render(str, rc)
			if err != nil {
				return nil, err
			}
			if rendered != "" {
				elements = append(elements, rendered)
			}
		}
	default:
		return nil, &errors.ConfigError{StepType: "read_files", Field: "path", Message: fmt.Sprintf("expected string or list, got %T", s.paths)}
	}

	var paths []string
	for _, element := range elements {
		if !isGlob(element) {
			paths = append(paths, element)
			continue
		}
		matches, err := doublestar.FilepathGlob(element)
		if err != nil {
			return nil, &errors.ConfigError{StepType: "read_files", Field: "path", Message: fmt.Sprintf("bad glob %q: %v", element, err)}
		}
		if len(matches) == 0 {
			if s.optional {
				continue
			}
			return nil, &errors.MissingFileError{Path: element}
		}
		paths = append(paths, matches...)
	}
	return paths, nil
}

// isGlob reports whether a path element contains glob metacharacters.
func isGlob(s string) bool {
	return strings.ContainsAny(s, "*?[")
}
