package policydoc

import (
	"testing"

	"github.com/kernelgate/governor/pkg/policy"
)

const validDoc = `
version: "1.0.0"
allowed_actors: ["*"]
allowed_tools: ["echo", "lookup"]
require_tool_call: false
max_intent_length: 4096
max_params_bytes: 65536
`

func TestParseValidDocument(t *testing.T) {
	p, err := Parse([]byte(validDoc))
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := p.AllowedTools["echo"]; !ok {
		t.Fatal("expected echo to be an allowed tool")
	}
	if _, ok := p.AllowedActors[policy.Wildcard]; !ok {
		t.Fatal("expected wildcard actor to be preserved")
	}
}

func TestParseRejectsWrongMajorVersion(t *testing.T) {
	doc := `
version: "2.0.0"
allowed_actors: ["*"]
allowed_tools: ["*"]
max_intent_length: 100
max_params_bytes: 100
`
	if _, err := Parse([]byte(doc)); err == nil {
		t.Fatal("expected a major version 2 document to be rejected")
	}
}

func TestParseRejectsMalformedVersion(t *testing.T) {
	doc := `
version: "not-a-version"
allowed_actors: ["*"]
allowed_tools: ["*"]
max_intent_length: 100
max_params_bytes: 100
`
	if _, err := Parse([]byte(doc)); err == nil {
		t.Fatal("expected a malformed version string to be rejected")
	}
}

func TestParseWithCELRule(t *testing.T) {
	doc := `
version: "1.0.0"
allowed_actors: ["*"]
allowed_tools: ["*"]
max_intent_length: 100
max_params_bytes: 100
cel_rules:
  - label: no_guests
    expression: 'actor != "guest"'
`
	p, err := Parse([]byte(doc))
	if err != nil {
		t.Fatal(err)
	}
	if len(p.CustomRules) != 1 {
		t.Fatalf("expected one compiled custom rule, got %d", len(p.CustomRules))
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/path/to/policy.yaml"); err == nil {
		t.Fatal("expected loading a nonexistent file to fail")
	}
}
