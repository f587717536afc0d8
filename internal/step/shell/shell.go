// Package shell implements the shell step: one subprocess per step, with
// optional output capture into the recipe context.
package shell

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/recipekit/recipekit/internal/step/conf"
	"github.com/recipekit/recipekit/pkg/errors"
	"github.com/recipekit/recipekit/pkg/executor"
	"github.com/recipekit/recipekit/pkg/recipe"
	"github.com/recipekit/recipekit/pkg/template"
)

// stderrTailLimit bounds the stderr excerpt attached to shell errors.
const stderrTailLimit = 2048

var renderer = template.New()

// Step runs one subprocess. Command is either a single string run through
// `sh -c`, or an argv list executed directly.
type Step struct {
	logger        *slog.Logger
	command       interface{}
	workingDir    string
	env           map[string]interface{}
	captureOutput bool
	outputKey     string
	errorKey      string
	timeout       time.Duration
}

// New validates the shell step config.
func New(logger *slog.Logger, config map[string]interface{}) (*Step, error) {
	command, ok := config["command"]
	if !ok {
		return nil, &errors.ConfigError{StepType: "shell", Field: "command", Message: "required"}
	}
	switch command.(type) {
	case string, []interface{}:
	default:
		return nil, &errors.ConfigError{StepType: "shell", Field: "command", Message: fmt.Sprintf("expected string or argv list, got %T", command)}
	}

	workingDir, err := conf.StringOr(config, "shell", "working_dir", "")
	if err != nil {
		return nil, err
	}
	env, err := conf.Map(config, "shell", "env")
	if err != nil {
		return nil, err
	}
	captureOutput, err := conf.BoolOr(config, "shell", "capture_output", false)
	if err != nil {
		return nil, err
	}
	outputKey, err := conf.StringOr(config, "shell", "output_key", "shell_output")
	if err != nil {
		return nil, err
	}
	errorKey, err := conf.StringOr(config, "shell", "error_key", "shell_error")
	if err != nil {
		return nil, err
	}
	timeout, err := conf.SecondsOr(config, "shell", "timeout", 0)
	if err != nil {
		return nil, err
	}

	return &Step{
		logger:        logger,
		command:       command,
		workingDir:    workingDir,
		env:           env,
		captureOutput: captureOutput,
		outputKey:     outputKey,
		errorKey:      errorKey,
		timeout:       timeout,
	}, nil
}

// Execute launches the subprocess and waits for it. Non-zero exit fails
// with a shell error carrying the exit code and a stderr tail.
func (s *Step) Execute(ctx context.Context, rc *recipe.Context) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	cmd, display, err := s.buildCommand(ctx, rc)
	if err != nil {
		return err
	}

	// stderr is always captured so failures carry an excerpt, even when
	// output capture is off.
	var stdout, stderr bytes.Buffer
	cmd.Stderr = &stderr
	if s.captureOutput {
		cmd.Stdout = &stdout
	} else {
		cmd.Stdout = os.Stdout
	}

	s.logger.Debug("running command", "command", display)
	start := time.Now()
	runErr := cmd.Run()
	duration := time.Since(start)

	if s.captureOutput {
		rc.Set(s.outputKey, strings.TrimRight(stdout.String(), "\n"))
		rc.Set(s.errorKey, strings.TrimRight(stderr.String(), "\n"))
	}

	if runErr != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return &errors.ShellError{Command: display, ExitCode: -1, Stderr: fmt.Sprintf("timed out after %s", s.timeout)}
		}
		exitCode := -1
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		}
		return &errors.ShellError{Command: display, ExitCode: exitCode, Stderr: tail(stderr.String())}
	}

	s.logger.Debug("command complete", "command", display, "duration_ms", duration.Milliseconds())
	return nil
}

// buildCommand renders the command config and constructs the exec.Cmd.
func (s *Step) buildCommand(ctx context.Context, rc *recipe.Context) (*exec.Cmd, string, error) {
	var cmd *exec.Cmd
	var display string

	switch v := s.command.(type) {
	case string:
		rendered, err := renderer.Render(v, rc)
		if err != nil {
			return nil, "", err
		}
		cmd = exec.CommandContext(ctx, "sh", "-c", rendered)
		display = rendered

	case []interface{}:
		argv := make([]string, 0, len(v))
		for i, elem := range v {
			str, ok := elem.(string)
			if !ok {
				return nil, "", &errors.ConfigError{StepType: "shell", Field: fmt.Sprintf("command[%d]", i), Message: fmt.Sprintf("expected string, got %T", elem)}
			}
			rendered, err := renderer.Render(str, rc)
			if err != nil {
				return nil, "", err
			}
			argv = append(argv, rendered)
		}
		if len(argv) == 0 {
			return nil, "", &errors.ConfigError{StepType: "shell", Field: "command", Message: "argv list is empty"}
		}
		cmd = exec.CommandContext(ctx, argv[0], argv[1:]...)
		display = strings.Join(argv, " ")
	}

	if s.workingDir != "" {
		dir, err := renderer.Render(s.workingDir, rc)
		if err != nil {
			return nil, "", err
		}
		cmd.Dir = dir
	}

	if len(s.env) > 0 {
		cmd.Env = os.Environ()
		for key, value := range s.env {
			str := fmt.Sprintf("%v", value)
			rendered, err := renderer.Render(str, rc)
			if err != nil {
				return nil, "", err
			}
			cmd.Env = append(cmd.Env, key+"="+rendered)
		}
	}

	return cmd, display, nil
}

// tail keeps the last portion of captured stderr for error messages.
func tail(s string) string {
	s = strings.TrimRight(s, "\n")
	if len(s) > stderrTailLimit {
		return "..." + s[len(s)-stderrTailLimit:]
	}
	return s
}

// Register adds the shell step to the executor registry.
func Register() {
	executor.Register("shell", func(logger *slog.Logger, config map[string]interface{}) (executor.Step, error) {
		return New(logger, config)
	})
}
