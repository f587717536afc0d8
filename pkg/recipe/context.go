package recipe

import (
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/recipekit/recipekit/pkg/errors"
)

// Context is the shared state container threaded through every step.
// Artifacts are an ordered key-value mapping mutated by steps; config is
// environment-derived settings that steps read but never write.
//
// A Context is not safe for concurrent mutation. Steps that introduce
// concurrency (loop, parallel) must give each branch its own Clone.
type Context struct {
	artifacts *orderedmap.OrderedMap[string, interface{}]
	config    map[string]interface{}
}

// NewContext creates an empty context with the given config.
// A nil config is treated as empty.
func NewContext(config map[string]interface{}) *Context {
	if config == nil {
		config = make(map[string]interface{})
	}
	return &Context{
		artifacts: orderedmap.New[string, interface{}](),
		config:    config,
	}
}

// Get returns the artifact stored under key, failing with a missing-key
// error if it is absent.
func (c *Context) Get(key string) (interface{}, error) {
	value, ok := c.artifacts.Get(key)
	if !ok {
		return nil, &errors.MissingKeyError{Key: key}
	}
	return value, nil
}

// GetDefault returns the artifact stored under key, or def if absent.
// It never fails.
func (c *Context) GetDefault(key string, def interface{}) interface{} {
	if value, ok := c.artifacts.Get(key); ok {
		return value
	}
	return def
}

// Set stores value under key, overwriting any existing artifact.
func (c *Context) Set(key string, value interface{}) {
	c.artifacts.Set(key, value)
}

// Delete removes the artifact stored under key, failing with a
// missing-key error if it is absent.
func (c *Context) Delete(key string) error {
	if _, ok := c.artifacts.Get(key); !ok {
		return &errors.MissingKeyError{Key: key}
	}
	c.artifacts.Delete(key)
	return nil
}

// Contains reports whether an artifact exists under key.
func (c *Context) Contains(key string) bool {
	_, ok := c.artifacts.Get(key)
	return ok
}

// Len returns the number of artifacts.
func (c *Context) Len() int {
	return c.artifacts.Len()
}

// Keys returns the artifact keys in insertion order.
func (c *Context) Keys() []string {
	keys := make([]string, 0, c.artifacts.Len())
	for pair := c.artifacts.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

// Clone returns a deep, independent copy of the context. Mutations to
// either copy are invisible to the other.
func (c *Context) Clone() *Context {
	clone := NewContext(deepCopyMap(c.config))
	for pair := c.artifacts.Oldest(); pair != nil; pair = pair.Next() {
		clone.artifacts.Set(pair.Key, deepCopyValue(pair.Value))
	}
	return clone
}

// AsMap returns a deep copy of the artifacts as a plain map.
// Insertion order is lost; use Keys for deterministic iteration.
func (c *Context) AsMap() map[string]interface{} {
	out := make(map[string]interface{}, c.artifacts.Len())
	for pair := c.artifacts.Oldest(); pair != nil; pair = pair.Next() {
		out[pair.Key] = deepCopyValue(pair.Value)
	}
	return out
}

// Config returns the context configuration. The returned map is shared:
// callers must treat it as read-only.
func (c *Context) Config() map[string]interface{} {
	return c.config
}

// SetConfig stores a config value. This is for the engine and top-level
// callers (env_mask surfacing, CLI setup); steps never call it.
func (c *Context) SetConfig(key string, value interface{}) {
	c.config[key] = value
}

// deepCopyValue copies the JSON-shaped values recipes traffic in. Scalars
// and opaque structs are returned as-is.
func deepCopyValue(value interface{}) interface{} {
	switch v := value.(type) {
	case map[string]interface{}:
		return deepCopyMap(v)
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, elem := range v {
			out[i] = deepCopyValue(elem)
		}
		return out
	case []string:
		out := make([]string, len(v))
		copy(out, v)
		return out
	case []FileSpec:
		out := make([]FileSpec, len(v))
		copy(out, v)
		return out
	case map[string]string:
		out := make(map[string]string, len(v))
		for k, val := range v {
			out[k] = val
		}
		return out
	default:
		return value
	}
}

// deepCopyMap deep-copies a string-keyed map.
func deepCopyMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = deepCopyValue(v)
	}
	return out
}
