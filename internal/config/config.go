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

// Package config assembles the recipe context configuration from an
// optional YAML file and the process environment. Recipes themselves
// never read the environment; credentials reach steps only through
// Context.Config(), so the assembly here defines the authentication
// scope of a run.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/recipekit/recipekit/pkg/errors"
)

// DefaultFile is the config file looked for when none is given.
const DefaultFile = "recipekit.yaml"

// envKeys are the environment variables surfaced into the config map
// under their own names when set. Provider factories try both the
// lowercase file key and the uppercase env name.
var envKeys = []string{
	"OPENAI_API_KEY",
	"OPENAI_BASE_URL",
	"ANTHROPIC_API_KEY",
	"ANTHROPIC_BASE_URL",
	"AZURE_OPENAI_ENDPOINT",
	"AZURE_OPENAI_API_KEY",
	"OLLAMA_BASE_URL",
}

// Load builds the context config map. File values load first; set
// environment variables overlay them. A missing explicit path is an
// error; a missing default path is not.
func Load(path string) (map[string]interface{}, error) {
	explicit := path != ""
	if path == "" {
		path = DefaultFile
	}

	config := make(map[string]interface{})

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, &errors.ConfigError{StepType: "config", Field: path, Message: fmt.Sprintf("not valid YAML: %v", err)}
		}
		if config == nil {
			config = make(map[string]interface{})
		}
	case os.IsNotExist(err):
		if explicit {
			return nil, &errors.ConfigError{StepType: "config", Field: path, Message: "file not found"}
		}
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	for _, key := range envKeys {
		if value, ok := os.LookupEnv(key); ok {
			config[key] = value
		}
	}
	if model, ok := os.LookupEnv("RECIPEKIT_MODEL"); ok {
		config["model"] = model
	}

	return config, nil
}
