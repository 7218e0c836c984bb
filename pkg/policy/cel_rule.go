package policy

import (
	"fmt"

	"github.com/google/cel-go/cel"
)

// CELRuleSource is a custom rule expressed as a CEL expression instead
// of Go (SPEC_FULL §3.2). The expression MUST evaluate to a bool; true
// means the request satisfies the rule, false means it was rejected by
// it with Label as the violation reason.
type CELRuleSource struct {
	Label      string
	Expression string
}

var celDeclarations = []cel.EnvOption{
	cel.Variable("actor", cel.StringType),
	cel.Variable("intent", cel.StringType),
	cel.Variable("has_tool_call", cel.BoolType),
	cel.Variable("tool_name", cel.StringType),
	cel.Variable("params", cel.MapType(cel.StringType, cel.DynType)),
	cel.Variable("evidence_count", cel.IntType),
	cel.Variable("constraints", cel.MapType(cel.StringType, cel.StringType)),
}

type celRule struct {
	label   string
	program cel.Program
}

func compileCELRule(src CELRuleSource) (CustomRule, error) {
	env, err := cel.NewEnv(celDeclarations...)
	if err != nil {
		return nil, fmt.Errorf("cel env: %w", err)
	}
	ast, issues := env.Compile(src.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("cel compile: %w", issues.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("cel rule %q must evaluate to bool, got %s", src.Label, ast.OutputType())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("cel program: %w", err)
	}
	return &celRule{label: src.Label, program: prg}, nil
}

func (r *celRule) Label() string { return r.label }

func (r *celRule) Check(ctx Context) (bool, string) {
	params := ctx.Params
	if params == nil {
		params = map[string]interface{}{}
	}
	constraints := map[string]interface{}{}
	for k, v := range ctx.Constraints {
		constraints[k] = v
	}

	out, _, err := r.program.Eval(map[string]interface{}{
		"actor":          ctx.Actor,
		"intent":         ctx.Intent,
		"has_tool_call":  ctx.HasToolCall,
		"tool_name":      ctx.ToolName,
		"params":         params,
		"evidence_count": ctx.EvidenceCount,
		"constraints":    constraints,
	})
	if err != nil {
		// Evaluation failure is fail-closed: treat as a rule violation
		// rather than letting a malformed custom rule silently pass.
		return false, fmt.Sprintf("%s: evaluation error: %v", r.label, err)
	}
	val, ok := out.Value().(bool)
	if !ok || !val {
		return false, r.label
	}
	return true, ""
}
