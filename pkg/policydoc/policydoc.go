// Package policydoc loads a policy.Policy from a YAML document (spec
// §6.1). It is a peripheral collaborator, never imported by the kernel
// core packages: the kernel only ever sees an already-constructed
// policy.Policy, never this package's document shape.
package policydoc

import (
	"fmt"
	"os"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"

	"github.com/kernelgate/governor/pkg/policy"
)

// supportedMajor is the only document major version this loader
// accepts. Bumping it is a breaking change to the document shape, not
// to policy.Policy itself.
const supportedMajor = 1

// Document is the on-disk YAML shape. CEL rules and per-tool schemas
// are expressed as raw strings/bytes here and compiled by policy.New.
type Document struct {
	Version         string            `yaml:"version"`
	AllowedActors   []string          `yaml:"allowed_actors"`
	AllowedTools    []string          `yaml:"allowed_tools"`
	RequireToolCall bool              `yaml:"require_tool_call"`
	MaxIntentLength int               `yaml:"max_intent_length"`
	MaxParamsBytes  int               `yaml:"max_params_bytes"`
	ParamsSchemas   map[string]string `yaml:"params_schemas,omitempty"`
	CELRules        []struct {
		Label      string `yaml:"label"`
		Expression string `yaml:"expression"`
	} `yaml:"cel_rules,omitempty"`
}

// Load reads and parses a policy document from path and compiles it
// into a policy.Policy.
func Load(path string) (*policy.Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("policydoc: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse compiles a policy.Policy from raw YAML bytes.
func Parse(data []byte) (*policy.Policy, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("policydoc: parse document: %w", err)
	}
	return doc.Compile()
}

// Compile validates the document's version and converts it into a
// policy.Policy.
func (doc Document) Compile() (*policy.Policy, error) {
	v, err := semver.NewVersion(doc.Version)
	if err != nil {
		return nil, fmt.Errorf("policydoc: invalid version %q: %w", doc.Version, err)
	}
	if v.Major() != supportedMajor {
		return nil, fmt.Errorf("policydoc: unsupported document major version %d (want %d)", v.Major(), supportedMajor)
	}

	cfg := policy.Config{
		AllowedActors:   doc.AllowedActors,
		AllowedTools:    doc.AllowedTools,
		RequireToolCall: doc.RequireToolCall,
		MaxIntentLength: doc.MaxIntentLength,
		MaxParamsBytes:  doc.MaxParamsBytes,
	}

	if len(doc.ParamsSchemas) > 0 {
		cfg.ParamsSchemaJSON = make(map[string][]byte, len(doc.ParamsSchemas))
		for tool, schema := range doc.ParamsSchemas {
			cfg.ParamsSchemaJSON[tool] = []byte(schema)
		}
	}

	for _, r := range doc.CELRules {
		cfg.CELRules = append(cfg.CELRules, policy.CELRuleSource{Label: r.Label, Expression: r.Expression})
	}

	p, err := policy.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("policydoc: compile policy: %w", err)
	}
	return p, nil
}
