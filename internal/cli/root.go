// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package cli defines the recipekit command tree.
package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/recipekit/recipekit/internal/log"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

// flags shared across subcommands.
var (
	flagDebug  bool
	flagConfig string
)

// SetVersion records build information injected via ldflags.
func SetVersion(v, c, b string) {
	version, commit, buildDate = v, c, b
}

// NewRootCommand creates the root command with its subcommands attached.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recipekit",
		Short: "recipekit - declarative recipe execution",
		Long: `recipekit executes recipes: declarative JSON or YAML workflows of
typed steps sharing a mutable key-value context. Recipes orchestrate
LLM calls, file I/O, shell commands, sub-recipes, conditionals, and
bounded-concurrency iteration.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolVarP(&flagDebug, "debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to config file (default: recipekit.yaml)")

	cmd.AddCommand(newRunCommand())
	cmd.AddCommand(newValidateCommand())

	return cmd
}

// newLogger builds the process logger from environment settings plus the
// --debug flag.
func newLogger() *slog.Logger {
	cfg := log.FromEnv()
	if flagDebug {
		cfg.Level = "debug"
		cfg.AddSource = true
	}
	return log.New(cfg)
}
