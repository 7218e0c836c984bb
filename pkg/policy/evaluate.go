package policy

import (
	"fmt"
	"strings"

	"github.com/kernelgate/governor/pkg/canon"
	"github.com/kernelgate/governor/pkg/request"
)

// AmbiguityMode selects which variant-specific ambiguity heuristics
// step 8 applies (spec §4.3 step 8, §4.6).
type AmbiguityMode int

const (
	// AmbiguityPermissive applies only the baseline checks already
	// covered by steps 1-7; no additional heuristic is layered on.
	AmbiguityPermissive AmbiguityMode = iota
	// AmbiguityStrict additionally rejects intents phrased with
	// hedging language, since a Strict-posture kernel treats an
	// uncertain intent as indistinguishable from an unsafe one.
	AmbiguityStrict
)

var strictHedgeWords = []string{
	"maybe", "perhaps", "possibly", "not sure", "i think", "i guess", "probably",
}

// Structural runs steps 1, 2, 3, 4 and 7 of the pipeline: the checks
// that depend only on the request's own shape, never on the policy's
// admission lists or custom rules. The kernel core runs this while in
// VALIDATING; a failure here means the request never reaches
// arbitration (spec §4.4's VALIDATING -> AUDITING edge).
func Structural(p *Policy, req request.Request) Result {
	res := Result{Allowed: true}

	// Step 1: required fields.
	if strings.TrimSpace(req.RequestID) == "" {
		res.reject("request_id is required")
	}
	if strings.TrimSpace(req.Actor) == "" {
		res.reject("actor is required")
	}
	if strings.TrimSpace(req.Intent) == "" {
		res.reject("intent is required")
	}

	// Step 2: intent bounds.
	if len(req.Intent) > p.MaxIntentLength {
		res.reject(fmt.Sprintf("intent exceeds max_intent_length (%d > %d)", len(req.Intent), p.MaxIntentLength))
	}
	if req.Intent != "" && strings.TrimSpace(req.Intent) == "" {
		res.reject("intent must not be whitespace-only")
	}

	// Step 3: tool-call presence.
	if p.RequireToolCall && req.ToolCall == nil {
		res.reject("tool_call is required by policy but absent")
	}

	// Step 4: tool-call structure (+ SPEC_FULL schema validation).
	if req.ToolCall != nil {
		if strings.TrimSpace(req.ToolCall.Name) == "" {
			res.reject("tool_call.name is required when tool_call is present")
		}
		if req.ToolCall.Params == nil {
			res.reject("tool_call.params must be a mapping, even if empty")
		} else if ok, reason := p.validateParams(req.ToolCall.Name, req.ToolCall.Params); !ok {
			res.reject(reason)
		}
	}

	// Step 7: params size, measured over the canonical encoding so the
	// bound matches what params_hash will actually be computed over.
	if req.ToolCall != nil && req.ToolCall.Params != nil {
		b, err := canon.Bytes(req.ToolCall.Params)
		if err != nil {
			res.reject(fmt.Sprintf("tool_call.params could not be canonically encoded: %v", err))
		} else if len(b) > p.MaxParamsBytes {
			res.reject(fmt.Sprintf("tool_call.params exceeds max_params_bytes (%d > %d)", len(b), p.MaxParamsBytes))
		}
	}

	return res
}

// Arbitration runs steps 5, 6, 8 and 9: admissibility, ambiguity
// heuristics and custom rules. The kernel core runs this while in
// ARBITRATING, after Structural has already passed and the variant's
// own pre-policy predicate (Variant.PreCheck's switch) has run.
func Arbitration(p *Policy, req request.Request, mode AmbiguityMode) Result {
	res := Result{Allowed: true}

	// Step 5: actor admissibility.
	if !p.actorAllowed(req.Actor) {
		res.reject(fmt.Sprintf("actor %q is not in allowed_actors", req.Actor))
	}

	// Step 6: tool admissibility (only meaningful when a tool_call is present).
	if req.ToolCall != nil && !p.toolAllowed(req.ToolCall.Name) {
		res.reject(fmt.Sprintf("tool %q is not in allowed_tools", req.ToolCall.Name))
	}

	// Step 8: ambiguity heuristics, variant-dependent.
	if mode == AmbiguityStrict {
		lower := strings.ToLower(req.Intent)
		for _, word := range strictHedgeWords {
			if strings.Contains(lower, word) {
				res.reject(fmt.Sprintf("intent contains ambiguous hedging language (%q) disallowed under strict posture", word))
				break
			}
		}
	}

	// Step 9: custom rules, Go functions and compiled CEL programs alike,
	// all executed regardless of whether earlier steps already failed.
	ctx := newContext(req)
	for _, rule := range p.CustomRules {
		if ok, reason := rule.Check(ctx); !ok {
			if reason == "" {
				reason = rule.Label()
			}
			res.reject(reason)
		}
	}

	return res
}

// Evaluate runs the full nine-step pipeline as a single pure function,
// combining Structural and Arbitration in one call. This is the shape
// used for standalone policy testing and by any caller that doesn't
// need the kernel's two-phase VALIDATING/ARBITRATING split; the kernel
// core itself calls Structural and Arbitration separately so it can
// move the state machine between them.
func Evaluate(p *Policy, req request.Request, mode AmbiguityMode) Result {
	structural := Structural(p, req)
	arbitration := Arbitration(p, req, mode)

	res := Result{Allowed: structural.Allowed && arbitration.Allowed}
	res.Violations = append(res.Violations, structural.Violations...)
	res.Violations = append(res.Violations, arbitration.Violations...)
	return res
}
