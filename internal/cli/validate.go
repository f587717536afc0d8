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
	"fmt"

	"github.com/spf13/cobra"

	"github.com/recipekit/recipekit/pkg/errors"
	"github.com/recipekit/recipekit/pkg/executor"
	"github.com/recipekit/recipekit/pkg/recipe"
)

// newValidateCommand creates the validate subcommand.
func newValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <recipe>",
		Short: "Parse and validate a recipe without executing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, source, err := recipe.Load(args[0])
			if err != nil {
				return err
			}

			for _, step := range r.Steps {
				if _, ok := executor.Lookup(step.Type); !ok {
					return &errors.UnknownStepError{StepType: step.Type}
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s: valid (%d steps)\n", source, len(r.Steps))
			return nil
		},
	}
}
