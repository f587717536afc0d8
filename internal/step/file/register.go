package file

import (
	"log/slog"

	"github.com/recipekit/recipekit/pkg/executor"
)

// Register adds the file steps to the executor registry.
func Register() {
	executor.Register("read_files", func(logger *slog.Logger, config map[string]interface{}) (executor.Step, error) {
		return NewReadStep(logger, config)
	})
	executor.Register("write_files", func(logger *slog.Logger, config map[string]interface{}) (executor.Step, error) {
		return NewWriteStep(logger, config)
	})
}
