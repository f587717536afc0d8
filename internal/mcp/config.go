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

// Package mcp connects to Model Context Protocol servers over stdio or
// streamable HTTP and exposes their tools to recipe steps and the LLM
// dispatch facade.
package mcp

import (
	"fmt"
)

// ServerConfig describes one MCP server. Exactly one of URL (HTTP
// transport) or Command (stdio transport) must be set.
type ServerConfig struct {
	// URL is the endpoint of a streamable-HTTP server.
	URL string `json:"url,omitempty" yaml:"url,omitempty"`

	// Headers are sent with every HTTP request (e.g. Authorization).
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`

	// Command is the executable for a stdio server.
	Command string `json:"command,omitempty" yaml:"command,omitempty"`

	// Args are command-line arguments for the stdio server.
	Args []string `json:"args,omitempty" yaml:"args,omitempty"`

	// Env are extra environment variables in KEY=VALUE form.
	Env []string `json:"env,omitempty" yaml:"env,omitempty"`
}

// Identifier returns a short string naming the server for logs and errors.
func (c ServerConfig) Identifier() string {
	if c.URL != "" {
		return c.URL
	}
	return c.Command
}

// Validate checks that exactly one transport is configured.
func (c ServerConfig) Validate() error {
	if c.URL == "" && c.Command == "" {
		return fmt.Errorf("mcp server requires url or command")
	}
	if c.URL != "" && c.Command != "" {
		return fmt.Errorf("mcp server cannot set both url and command")
	}
	return nil
}

// ConfigFromMap builds a ServerConfig from a decoded step config value.
func ConfigFromMap(m map[string]interface{}) (ServerConfig, error) {
	var cfg ServerConfig

	if url, ok := m["url"].(string); ok {
		cfg.URL = url
	}
	if command, ok := m["command"].(string); ok {
		cfg.Command = command
	}
	if headers, ok := m["headers"].(map[string]interface{}); ok {
		cfg.Headers = make(map[string]string, len(headers))
		for k, v := range headers {
			cfg.Headers[k] = fmt.Sprintf("%v", v)
		}
	}
	if args, ok := m["args"].([]interface{}); ok {
		for _, arg := range args {
			cfg.Args = append(cfg.Args, fmt.Sprintf("%v", arg))
		}
	}
	if env, ok := m["env"].([]interface{}); ok {
		for _, e := range env {
			cfg.Env = append(cfg.Env, fmt.Sprintf("%v", e))
		}
	}

	return cfg, cfg.Validate()
}
