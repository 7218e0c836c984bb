package policy

import "github.com/kernelgate/governor/pkg/request"

// Context is the read-only view a custom rule evaluates against. It is
// derived from the request once per Evaluate call and never mutated.
type Context struct {
	Actor         string
	Intent        string
	HasToolCall   bool
	ToolName      string
	Params        map[string]interface{}
	EvidenceCount int
	Constraints   map[string]string
}

func newContext(req request.Request) Context {
	ctx := Context{
		Actor:         req.Actor,
		Intent:        req.Intent,
		EvidenceCount: len(req.Evidence),
		Constraints:   req.Constraints,
	}
	if req.ToolCall != nil {
		ctx.HasToolCall = true
		ctx.ToolName = req.ToolCall.Name
		ctx.Params = req.ToolCall.Params
	}
	return ctx
}
