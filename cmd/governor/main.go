// Command governor is a thin demonstration binary wiring a Kernel
// with an in-memory Tool Registry. The CLI surface itself is out of
// core scope (spec §1 Non-goals) — this exists only to show the
// pieces assembled, not as a production entrypoint.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/kernelgate/governor/pkg/kernel"
	"github.com/kernelgate/governor/pkg/ledger"
	"github.com/kernelgate/governor/pkg/policy"
	"github.com/kernelgate/governor/pkg/policydoc"
	"github.com/kernelgate/governor/pkg/replay"
	"github.com/kernelgate/governor/pkg/request"
)

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run is the dispatcher entrypoint, kept separate from main so tests
// can invoke it without an os.Exit call terminating the test binary.
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		printUsage(stdout)
		return 0
	}

	switch args[1] {
	case "submit":
		return runSubmit(args[2:], stdout, stderr)
	case "verify":
		return runVerify(args[2:], stdout, stderr)
	case "help", "-h", "--help":
		printUsage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command: %s\n", args[1])
		printUsage(stderr)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "governor - deterministic control-plane governor demo")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "USAGE:")
	fmt.Fprintln(w, "  governor submit --policy <policy.yaml> [--variant strict|permissive|evidence-first|dual-channel]")
	fmt.Fprintln(w, "      reads one JSON Request from stdin, submits it, writes the Receipt to stdout")
	fmt.Fprintln(w, "  governor verify --bundle <bundle.json>")
	fmt.Fprintln(w, "      replay-verifies an exported evidence bundle, writes the Report to stdout")
	fmt.Fprintln(w, "  governor help")
}

func runSubmit(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("submit", flag.ContinueOnError)
	fs.SetOutput(stderr)
	policyPath := fs.String("policy", "", "path to a policy document (YAML)")
	variantName := fs.String("variant", "permissive", "posture variant: strict|permissive|evidence-first|dual-channel")
	kernelID := fs.String("kernel-id", "cli-kernel", "kernel identifier recorded in audit entries")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *policyPath == "" {
		fmt.Fprintln(stderr, "error: --policy is required")
		return 2
	}

	p, err := policydoc.Load(*policyPath)
	if err != nil {
		fmt.Fprintf(stderr, "error: loading policy: %v\n", err)
		return 1
	}

	variant, err := parseVariant(*variantName)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 2
	}

	var req request.Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		fmt.Fprintf(stderr, "error: decoding request from stdin: %v\n", err)
		return 2
	}

	k, err := kernel.New(*kernelID, p, variant, kernel.MapRegistry{}, kernel.WallClock{})
	if err != nil {
		fmt.Fprintf(stderr, "error: constructing kernel: %v\n", err)
		return 1
	}

	receipt := k.Submit(context.Background(), req)

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(receipt); err != nil {
		fmt.Fprintf(stderr, "error: encoding receipt: %v\n", err)
		return 1
	}
	return 0
}

func runVerify(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	fs.SetOutput(stderr)
	bundlePath := fs.String("bundle", "", "path to an exported evidence bundle (JSON)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *bundlePath == "" {
		fmt.Fprintln(stderr, "error: --bundle is required")
		return 2
	}

	data, err := os.ReadFile(*bundlePath)
	if err != nil {
		fmt.Fprintf(stderr, "error: reading bundle: %v\n", err)
		return 1
	}

	var bundle ledger.Bundle
	if err := json.Unmarshal(data, &bundle); err != nil {
		fmt.Fprintf(stderr, "error: parsing bundle: %v\n", err)
		return 1
	}

	report := replay.Verify(bundle)

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		fmt.Fprintf(stderr, "error: encoding report: %v\n", err)
		return 1
	}
	if !report.Valid {
		return 1
	}
	return 0
}

func parseVariant(name string) (policy.Variant, error) {
	switch name {
	case "strict":
		return policy.VariantStrict, nil
	case "permissive":
		return policy.VariantPermissive, nil
	case "evidence-first":
		return policy.VariantEvidenceFirst, nil
	case "dual-channel":
		return policy.VariantDualChannel, nil
	default:
		return 0, fmt.Errorf("unknown variant %q", name)
	}
}
