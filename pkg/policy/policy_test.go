package policy

import (
	"testing"

	"github.com/kernelgate/governor/pkg/request"
)

func basicPolicy(t *testing.T) *Policy {
	t.Helper()
	p, err := New(Config{
		AllowedActors:   []string{"alice"},
		AllowedTools:    []string{"search"},
		RequireToolCall: false,
		MaxIntentLength: 100,
		MaxParamsBytes:  1024,
	})
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestEvaluateHappyPath(t *testing.T) {
	p := basicPolicy(t)
	req := request.Request{
		RequestID: "r1", Actor: "alice", Intent: "look something up",
		ToolCall: &request.ToolCall{Name: "search", Params: map[string]interface{}{"q": "go"}},
	}
	res := Evaluate(p, req, AmbiguityPermissive)
	if !res.Allowed {
		t.Fatalf("expected allowed, got violations: %v", res.Violations)
	}
}

func TestEvaluateCollectsAllViolations(t *testing.T) {
	p := basicPolicy(t)
	req := request.Request{
		RequestID: "", Actor: "mallory", Intent: "",
		ToolCall: &request.ToolCall{Name: "delete_everything", Params: nil},
	}
	res := Evaluate(p, req, AmbiguityPermissive)
	if res.Allowed {
		t.Fatal("expected rejection")
	}
	// request_id, intent, actor, tool_call.params, tool admissibility all
	// fail simultaneously; none of them should short-circuit the rest.
	if len(res.Violations) < 4 {
		t.Fatalf("expected multiple collected violations, got %d: %v", len(res.Violations), res.Violations)
	}
}

func TestEvaluateMaxIntentLength(t *testing.T) {
	p := basicPolicy(t)
	req := request.Request{RequestID: "r1", Actor: "alice", Intent: string(make([]byte, 200))}
	res := Evaluate(p, req, AmbiguityPermissive)
	if res.Allowed {
		t.Fatal("expected rejection for oversized intent")
	}
}

func TestEvaluateRequireToolCall(t *testing.T) {
	p, err := New(Config{AllowedActors: []string{"*"}, AllowedTools: []string{"*"}, RequireToolCall: true, MaxIntentLength: 100, MaxParamsBytes: 1024})
	if err != nil {
		t.Fatal(err)
	}
	req := request.Request{RequestID: "r1", Actor: "alice", Intent: "do a thing"}
	res := Evaluate(p, req, AmbiguityPermissive)
	if res.Allowed {
		t.Fatal("expected rejection: tool_call required but absent")
	}
}

func TestEvaluateParamsSizeLimit(t *testing.T) {
	p, err := New(Config{AllowedActors: []string{"*"}, AllowedTools: []string{"*"}, MaxIntentLength: 100, MaxParamsBytes: 8})
	if err != nil {
		t.Fatal(err)
	}
	req := request.Request{
		RequestID: "r1", Actor: "alice", Intent: "go",
		ToolCall: &request.ToolCall{Name: "search", Params: map[string]interface{}{"query": "this is a long query string"}},
	}
	res := Evaluate(p, req, AmbiguityPermissive)
	if res.Allowed {
		t.Fatal("expected rejection: params exceed max_params_bytes")
	}
}

func TestEvaluateStrictRejectsHedging(t *testing.T) {
	p := basicPolicy(t)
	req := request.Request{RequestID: "r1", Actor: "alice", Intent: "maybe search for something"}
	strict := Evaluate(p, req, AmbiguityStrict)
	if strict.Allowed {
		t.Fatal("expected strict mode to reject hedging language")
	}
	permissive := Evaluate(p, req, AmbiguityPermissive)
	if !permissive.Allowed {
		t.Fatalf("expected permissive mode to allow the same request, got: %v", permissive.Violations)
	}
}

func TestEvaluateCustomRuleFunc(t *testing.T) {
	p, err := New(Config{
		AllowedActors: []string{"*"}, AllowedTools: []string{"*"},
		MaxIntentLength: 100, MaxParamsBytes: 1024,
		CustomRules: []CustomRule{
			CustomRuleFunc{Name: "no_shouting", Fn: func(ctx Context) (bool, string) {
				if ctx.Intent == "STOP EVERYTHING" {
					return false, "no_shouting: intent looks like a shouted override"
				}
				return true, ""
			}},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	req := request.Request{RequestID: "r1", Actor: "alice", Intent: "STOP EVERYTHING"}
	res := Evaluate(p, req, AmbiguityPermissive)
	if res.Allowed {
		t.Fatal("expected custom rule to reject")
	}
}

func TestEvaluateCELRule(t *testing.T) {
	p, err := New(Config{
		AllowedActors: []string{"*"}, AllowedTools: []string{"*"},
		MaxIntentLength: 100, MaxParamsBytes: 1024,
		CELRules: []CELRuleSource{
			{Label: "actor_must_not_be_guest", Expression: `actor != "guest"`},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	res := Evaluate(p, request.Request{RequestID: "r1", Actor: "guest", Intent: "hi"}, AmbiguityPermissive)
	if res.Allowed {
		t.Fatal("expected CEL rule to reject guest actor")
	}
	res2 := Evaluate(p, request.Request{RequestID: "r1", Actor: "alice", Intent: "hi"}, AmbiguityPermissive)
	if !res2.Allowed {
		t.Fatalf("expected CEL rule to allow non-guest actor, got: %v", res2.Violations)
	}
}

func TestVariantEvidenceFirstRequiresEvidence(t *testing.T) {
	p := basicPolicy(t)
	req := request.Request{
		RequestID: "r1", Actor: "alice", Intent: "search for it",
		ToolCall: &request.ToolCall{Name: "search", Params: map[string]interface{}{}},
	}
	res := Check(p, VariantEvidenceFirst, req)
	if res.Allowed {
		t.Fatal("expected evidence_first to reject a tool call with no evidence")
	}
	req.Evidence = []string{"doc:1"}
	res2 := Check(p, VariantEvidenceFirst, req)
	if !res2.Allowed {
		t.Fatalf("expected evidence_first to allow once evidence is present, got: %v", res2.Violations)
	}
}

func TestVariantDualChannelRequiresCorroboration(t *testing.T) {
	p := basicPolicy(t)
	req := request.Request{
		RequestID: "r1", Actor: "alice", Intent: "search for it",
		ToolCall: &request.ToolCall{Name: "search", Params: map[string]interface{}{}},
	}
	res := Check(p, VariantDualChannel, req)
	if res.Allowed {
		t.Fatal("expected dual_channel to reject without a corroboration constraint")
	}
	req.Constraints = map[string]string{"corroboration": "approved-by:bob"}
	res2 := Check(p, VariantDualChannel, req)
	if !res2.Allowed {
		t.Fatalf("expected dual_channel to allow with corroboration present, got: %v", res2.Violations)
	}
}
