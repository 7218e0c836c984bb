package policy

import (
	"bytes"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// compileParamsSchema compiles a raw JSON Schema document (SPEC_FULL
// §3.1) bound to a tool name, so step 4 can validate a tool call's
// params against it in addition to the base shape check.
func compileParamsSchema(tool string, raw []byte) (*jsonschema.Schema, error) {
	url := "mem://params/" + tool + ".json"
	c := jsonschema.NewCompiler()
	if err := c.AddResource(url, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("add resource: %w", err)
	}
	return c.Compile(url)
}

// validateParams runs the schema bound to toolName, if any, against the
// params map. A nil schema set or no binding for toolName means no
// schema check applies and validateParams reports no violation.
func (p *Policy) validateParams(toolName string, params map[string]interface{}) (bool, string) {
	sch, ok := p.ParamsSchemas[toolName]
	if !ok {
		return true, ""
	}
	if params == nil {
		params = map[string]interface{}{}
	}
	if err := sch.Validate(params); err != nil {
		return false, fmt.Sprintf("tool_call.params failed schema validation for tool %q: %v", toolName, err)
	}
	return true, ""
}
