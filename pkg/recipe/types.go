// Package recipe defines the recipe data model and the shared execution
// context threaded through every step.
package recipe

// StepDef is one step entry in a recipe: a registered type name plus its
// type-specific configuration.
type StepDef struct {
	// Type is the registered step type name (e.g. "read_files", "loop").
	Type string `json:"type" yaml:"type"`

	// Config is the step's configuration, validated by the step factory.
	Config map[string]interface{} `json:"config" yaml:"config"`
}

// Recipe is a validated list of steps plus an optional environment mask.
type Recipe struct {
	// Steps are executed strictly in declared order.
	Steps []StepDef `json:"steps" yaml:"steps"`

	// EnvMask lists environment variable names surfaced into the context
	// config at load time. Unset names are ignored.
	EnvMask []string `json:"env_mask,omitempty" yaml:"env_mask,omitempty"`
}

// FileSpec is a single generated file: a relative path and its content.
// Produced by llm_generate with output_format "files" and consumed by
// write_files.
type FileSpec struct {
	Path    string `json:"path" yaml:"path"`
	Content string `json:"content" yaml:"content"`
}
