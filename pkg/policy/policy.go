// Package policy implements the deterministic policy evaluator (C3): a
// pure predicate over (request, policy) that reports every violation it
// finds rather than stopping at the first one, so a caller always sees
// the complete reason a request was denied.
package policy

import (
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Wildcard, present in AllowedActors or AllowedTools, admits any value.
const Wildcard = "*"

// CustomRule is a pure predicate evaluated in construction order as the
// final stage of the pipeline (spec §4.3 step 9). Implementations MUST
// be deterministic and side-effect free — the evaluator is a pure
// function and custom rules are the one extension point that could
// break that guarantee if written carelessly.
type CustomRule interface {
	// Check returns (true, "") when the request is acceptable to this
	// rule, or (false, reason) naming why it was rejected.
	Check(ctx Context) (bool, string)
	// Label identifies the rule for diagnostics.
	Label() string
}

// CustomRuleFunc adapts a plain function to CustomRule.
type CustomRuleFunc struct {
	Name string
	Fn   func(ctx Context) (bool, string)
}

func (f CustomRuleFunc) Check(ctx Context) (bool, string) { return f.Fn(ctx) }
func (f CustomRuleFunc) Label() string                    { return f.Name }

// Policy is the immutable configuration of what is permitted. Construct
// with New; once built, a Policy is never mutated (the spec's Non-goal:
// "live mutation of policy within an instance").
type Policy struct {
	AllowedActors   map[string]struct{}
	AllowedTools    map[string]struct{}
	RequireToolCall bool
	MaxIntentLength int
	MaxParamsBytes  int
	CustomRules     []CustomRule

	// ParamsSchemas optionally binds a compiled JSON Schema to a tool
	// name (SPEC_FULL §3.1); params failing the schema add a violation
	// in step 4 alongside the base "is a mapping" check.
	ParamsSchemas map[string]*jsonschema.Schema
}

// Config is the plain-data form passed to New; it exists so callers
// (and pkg/policydoc) can build a Policy without touching map internals
// directly.
type Config struct {
	AllowedActors   []string
	AllowedTools    []string
	RequireToolCall bool
	MaxIntentLength int
	MaxParamsBytes  int
	CustomRules     []CustomRule
	// ParamsSchemaJSON maps tool name -> raw JSON Schema document bytes.
	ParamsSchemaJSON map[string][]byte
	// CELRules compiles each source expression into a CustomRule (§3.2).
	CELRules []CELRuleSource
}

// New validates and compiles a Config into an immutable Policy.
func New(cfg Config) (*Policy, error) {
	if cfg.MaxIntentLength <= 0 {
		return nil, fmt.Errorf("policy: max_intent_length must be positive, got %d", cfg.MaxIntentLength)
	}
	if cfg.MaxParamsBytes <= 0 {
		return nil, fmt.Errorf("policy: max_params_bytes must be positive, got %d", cfg.MaxParamsBytes)
	}

	p := &Policy{
		AllowedActors:   toSet(cfg.AllowedActors),
		AllowedTools:    toSet(cfg.AllowedTools),
		RequireToolCall: cfg.RequireToolCall,
		MaxIntentLength: cfg.MaxIntentLength,
		MaxParamsBytes:  cfg.MaxParamsBytes,
	}

	p.CustomRules = append(p.CustomRules, cfg.CustomRules...)

	for _, src := range cfg.CELRules {
		rule, err := compileCELRule(src)
		if err != nil {
			return nil, fmt.Errorf("policy: compiling CEL rule %q: %w", src.Label, err)
		}
		p.CustomRules = append(p.CustomRules, rule)
	}

	if len(cfg.ParamsSchemaJSON) > 0 {
		p.ParamsSchemas = make(map[string]*jsonschema.Schema, len(cfg.ParamsSchemaJSON))
		for tool, raw := range cfg.ParamsSchemaJSON {
			sch, err := compileParamsSchema(tool, raw)
			if err != nil {
				return nil, fmt.Errorf("policy: compiling params schema for tool %q: %w", tool, err)
			}
			p.ParamsSchemas[tool] = sch
		}
	}

	return p, nil
}

func toSet(values []string) map[string]struct{} {
	m := make(map[string]struct{}, len(values))
	for _, v := range values {
		m[v] = struct{}{}
	}
	return m
}

func (p *Policy) actorAllowed(actor string) bool {
	if _, ok := p.AllowedActors[Wildcard]; ok {
		return true
	}
	_, ok := p.AllowedActors[actor]
	return ok
}

func (p *Policy) toolAllowed(tool string) bool {
	if _, ok := p.AllowedTools[Wildcard]; ok {
		return true
	}
	_, ok := p.AllowedTools[tool]
	return ok
}
