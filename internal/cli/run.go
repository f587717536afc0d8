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

package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/recipekit/recipekit/internal/config"
	"github.com/recipekit/recipekit/internal/log"
	"github.com/recipekit/recipekit/pkg/executor"
	"github.com/recipekit/recipekit/pkg/recipe"
)

// credentialKeys are the config entries masked when logging the loaded
// configuration; both the file key and the env name form may be present.
var credentialKeys = []string{
	"openai_api_key", "OPENAI_API_KEY",
	"anthropic_api_key", "ANTHROPIC_API_KEY",
	"azure_openai_api_key", "AZURE_OPENAI_API_KEY",
}

// newRunCommand creates the run subcommand.
func newRunCommand() *cobra.Command {
	var contextPairs []string
	var printContext bool

	cmd := &cobra.Command{
		Use:   "run <recipe>",
		Short: "Execute a recipe",
		Long: `Execute a recipe from a JSON or YAML file. Initial context values can
be seeded with --context key=value; values that parse as JSON are
stored as structures.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()

			cfg, err := config.Load(flagConfig)
			if err != nil {
				return err
			}
			for _, key := range credentialKeys {
				if value, ok := cfg[key].(string); ok && value != "" {
					logger.Debug("credential loaded", "key", key, "value", log.SanitizeAPIKey(value))
				}
			}

			rc := recipe.NewContext(cfg)
			for _, pair := range contextPairs {
				key, value, err := parseContextPair(pair)
				if err != nil {
					return err
				}
				rc.Set(key, value)
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := executor.New(logger).Execute(ctx, args[0], rc); err != nil {
				return err
			}

			if printContext {
				out, err := json.MarshalIndent(contextSnapshot(rc), "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(out))
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&contextPairs, "context", nil, "Initial context value as key=value (repeatable)")
	cmd.Flags().BoolVar(&printContext, "print-context", false, "Print the final context as JSON on success")

	return cmd
}

// parseContextPair splits a key=value flag. Values that parse as JSON
// become structures; everything else stays a string.
func parseContextPair(pair string) (string, interface{}, error) {
	key, raw, found := strings.Cut(pair, "=")
	if !found || key == "" {
		return "", nil, fmt.Errorf("--context %q: expected key=value", pair)
	}
	var parsed interface{}
	if err := json.Unmarshal([]byte(raw), &parsed); err == nil {
		return key, parsed, nil
	}
	return key, raw, nil
}

// contextSnapshot produces an ordered-key view of the final artifacts.
func contextSnapshot(rc *recipe.Context) map[string]interface{} {
	return rc.AsMap()
}
