package policy

import (
	"fmt"

	"github.com/kernelgate/governor/pkg/request"
)

// Variant is the kernel's posture (spec §4.6). It is a closed tagged
// enum — dispatch is a single switch in PreCheck, not a family of types —
// because the set of postures is fixed by the spec and never extended
// by a plugin.
type Variant int

const (
	VariantStrict Variant = iota
	VariantPermissive
	VariantEvidenceFirst
	VariantDualChannel
)

func (v Variant) String() string {
	switch v {
	case VariantStrict:
		return "STRICT"
	case VariantPermissive:
		return "PERMISSIVE"
	case VariantEvidenceFirst:
		return "EVIDENCE_FIRST"
	case VariantDualChannel:
		return "DUAL_CHANNEL"
	default:
		return "UNKNOWN"
	}
}

// AmbiguityMode maps a variant to the ambiguity heuristics step 8 uses;
// every variant other than Strict runs the baseline-only heuristics.
func (v Variant) AmbiguityMode() AmbiguityMode {
	if v == VariantStrict {
		return AmbiguityStrict
	}
	return AmbiguityPermissive
}

// PreCheck applies the variant's own pre-policy predicate, independent
// of Structural/Arbitration. The kernel core runs this during
// ARBITRATING, alongside Arbitration; both contribute to the same
// collected violation set.
func (v Variant) PreCheck(req request.Request) Result {
	res := Result{Allowed: true}

	switch v {
	case VariantEvidenceFirst:
		// A tool call without at least one evidence reference cannot be
		// admitted: EvidenceFirst requires justification to precede action.
		if req.ToolCall != nil && len(req.Evidence) == 0 {
			res.reject("evidence_first: tool_call present without any evidence reference")
		}
	case VariantDualChannel:
		// Requires an explicit corroborating constraint alongside any
		// tool call, modeling a second, independent channel of intent.
		if req.ToolCall != nil {
			if _, ok := req.Constraints["corroboration"]; !ok {
				res.reject("dual_channel: tool_call present without a corroboration constraint")
			}
		}
	case VariantStrict, VariantPermissive:
		// No additional pre-policy predicate; ambiguityMode differentiates
		// them inside the shared pipeline.
	default:
		res.reject(fmt.Sprintf("unknown variant %d", v))
	}

	return res
}

// Check runs the full pipeline for standalone policy testing: Structural,
// the variant's PreCheck, and Arbitration, all combined into one Result.
// The kernel core does not call this directly — it runs the same three
// phases itself, interleaved with state machine transitions.
func Check(p *Policy, v Variant, req request.Request) Result {
	structural := Structural(p, req)
	pre := v.PreCheck(req)
	arbitration := Arbitration(p, req, v.AmbiguityMode())

	res := Result{Allowed: structural.Allowed && pre.Allowed && arbitration.Allowed}
	res.Violations = append(res.Violations, structural.Violations...)
	res.Violations = append(res.Violations, pre.Violations...)
	res.Violations = append(res.Violations, arbitration.Violations...)
	return res
}
