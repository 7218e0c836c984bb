// Package kernel implements the kernel core (C5): the single orchestrator
// that drives a request through validation, arbitration, execution and
// audit, and is the only component permitted to advance pkg/state's
// machine or append to pkg/ledger.
package kernel

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/kernelgate/governor/pkg/errorir"
	"github.com/kernelgate/governor/pkg/ledger"
	"github.com/kernelgate/governor/pkg/policy"
	"github.com/kernelgate/governor/pkg/request"
	"github.com/kernelgate/governor/pkg/state"
)

// haltPrefix marks a custom-rule violation as catastrophic: rather than
// a DENY, the request's own arbitration result demands the kernel halt
// itself once the decision is audited. No built-in step 1-8 rule ever
// produces this; only a CustomRule (Go or CEL) can.
const haltPrefix = "HALT:"

// Kernel is the C5 orchestrator. It owns the only references to the
// state machine and the ledger's write path; nothing else in this
// module is permitted to call Machine.Apply or Ledger.Append directly.
type Kernel struct {
	mu sync.Mutex

	id      string
	machine *state.Machine
	ledger  *ledger.Ledger
	policy  *policy.Policy
	variant policy.Variant
	reg     Registry
	clock   Clock
}

// New constructs a Kernel and boots it. Boot fails closed: a nil policy
// or nil registry is treated as a boot failure, landing the machine in
// HALTED before any request can ever be submitted.
func New(id string, p *policy.Policy, v policy.Variant, reg Registry, clk Clock) (*Kernel, error) {
	if clk == nil {
		clk = WallClock{}
	}
	k := &Kernel{
		id:      id,
		machine: state.New(),
		ledger:  ledger.New(),
		policy:  p,
		variant: v,
		reg:     reg,
		clock:   clk,
	}

	if p == nil || reg == nil {
		if _, err := k.machine.Apply(state.TriggerBootFailed); err != nil {
			return nil, fmt.Errorf("kernel: boot failure transition rejected: %w", err)
		}
		return k, fmt.Errorf("kernel: boot failed: policy and registry must both be non-nil")
	}
	if _, err := k.machine.Apply(state.TriggerBootOK); err != nil {
		return nil, fmt.Errorf("kernel: boot transition rejected: %w", err)
	}
	return k, nil
}

// KernelID returns the kernel's identity, stamped into exported bundles.
func (k *Kernel) KernelID() string { return k.id }

// State returns the machine's current state as a string.
func (k *Kernel) State() string {
	k.mu.Lock()
	defer k.mu.Unlock()
	return string(k.machine.Current())
}

// ExportEvidence is permitted from any state, including HALTED — a
// halted kernel's evidence is exactly what a caller needs to see.
func (k *Kernel) ExportEvidence() ledger.Bundle {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.ledger.Export(k.id, k.variant.String(), k.clock.NowMs())
}

// Halt is an explicit external halt command. It is idempotent: calling
// it on an already-halted kernel is a no-op. It is only ever observed
// from IDLE or HALTED, since Submit holds the kernel's lock for the
// entirety of a request's transient states.
func (k *Kernel) Halt(reason string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.machine.Current() == state.Halted {
		return nil
	}

	now := k.clock.NowMs()
	entry, err := k.ledger.Append(ledger.Draft{
		RequestID:   "halt-" + uuid.NewString(),
		Actor:       "kernel",
		Intent:      reason,
		Decision:    ledger.Halt,
		StateFrom:   string(state.Idle),
		StateTo:     string(state.Halted),
		TimestampMs: now,
	})
	if err != nil {
		return fmt.Errorf("kernel: halt audit append failed: %w", err)
	}
	if _, err := k.machine.Apply(state.TriggerHaltCommand); err != nil {
		return fmt.Errorf("kernel: halt transition rejected: %w", err)
	}
	_ = entry
	return nil
}

// Submit is the kernel's single entry point: validate, arbitrate,
// execute, and audit one request, returning a Receipt. Submit never
// returns an error — every failure mode (validation, arbitration,
// execution, or audit) is represented in the returned Receipt, per
// spec §4.5's fail-closed contract.
func (k *Kernel) Submit(ctx context.Context, req request.Request) request.Receipt {
	k.mu.Lock()
	defer k.mu.Unlock()

	stateFrom := k.machine.Current()
	now := k.clock.NowMs()

	if stateFrom == state.Halted {
		return request.Receipt{
			RequestID:    req.RequestID,
			Status:       request.Rejected,
			Decision:     request.Deny,
			StateFrom:    string(state.Halted),
			StateTo:      string(state.Halted),
			TimestampMs:  now,
			ErrorMessage: "kernel is halted",
		}
	}

	if _, err := k.machine.Apply(state.TriggerRequestReceived); err != nil {
		return k.fatalReceipt(req, stateFrom, now, err)
	}

	structural := policy.Structural(k.policy, req)
	if !structural.Allowed {
		return k.auditAndFinish(req, string(state.Validating), now, ledger.Deny, state.TriggerValidationFailed,
			request.Rejected, request.Deny, nil, nil, nil, strings.Join(structural.Violations, "; "))
	}

	if _, err := k.machine.Apply(state.TriggerValidationPassed); err != nil {
		return k.fatalReceipt(req, stateFrom, now, err)
	}

	pre := k.variant.PreCheck(req)
	arbitration := policy.Arbitration(k.policy, req, k.variant.AmbiguityMode())
	violations := append(append([]string{}, pre.Violations...), arbitration.Violations...)
	allowed := pre.Allowed && arbitration.Allowed

	if halted, reason := detectHalt(violations); halted {
		return k.auditHalt(req, now, reason)
	}
	if !allowed {
		return k.auditAndFinish(req, string(state.Arbitrating), now, ledger.Deny, state.TriggerAllowNoTool,
			request.Rejected, request.Deny, nil, nil, nil, strings.Join(violations, "; "))
	}

	if req.ToolCall == nil {
		return k.auditAndFinish(req, string(state.Arbitrating), now, ledger.Allow, state.TriggerAllowNoTool,
			request.Accepted, request.Allow, nil, nil, nil, "")
	}

	return k.executeAndAudit(ctx, req, now)
}

// detectHalt reports whether any collected violation is a halt signal
// rather than an ordinary denial (a custom rule's reason prefixed with
// haltPrefix).
func detectHalt(violations []string) (bool, string) {
	for _, v := range violations {
		if strings.HasPrefix(v, haltPrefix) {
			return true, strings.TrimPrefix(v, haltPrefix)
		}
	}
	return false, ""
}

// auditHalt appends the halt entry and drives ARBITRATING -> HALTED
// directly, per spec §4.4's table (no AUDITING state is visited by
// name for a halt decision, though the entry itself is still written
// before the transition — commit precedes visible effect either way).
func (k *Kernel) auditHalt(req request.Request, now int64, reason string) request.Receipt {
	errMsg := reason
	entry, err := k.ledger.Append(ledger.Draft{
		RequestID:   req.RequestID,
		Actor:       req.Actor,
		Intent:      req.Intent,
		Decision:    ledger.Halt,
		StateFrom:   string(state.Arbitrating),
		StateTo:     string(state.Halted),
		TimestampMs: now,
		Error:       &errMsg,
	})
	if err != nil {
		k.forceHalt()
		return request.Receipt{RequestID: req.RequestID, Status: request.Failed, Decision: request.Halt,
			StateFrom: string(state.Arbitrating), StateTo: string(state.Halted), TimestampMs: now,
			ErrorMessage: errorir.New(errorir.CodeAuditFailure, "audit append failed during halt").Detail("%v", err).Build().Error()}
	}
	if _, err := k.machine.Apply(state.TriggerHaltDecision); err != nil {
		k.forceHalt()
	}
	return request.Receipt{
		RequestID: req.RequestID, Status: request.Rejected, Decision: request.Halt,
		StateFrom: string(state.Arbitrating), StateTo: string(state.Halted),
		TimestampMs: now, ErrorMessage: reason, EvidenceHash: entry.EntryHash,
	}
}

// auditAndFinish handles the shared shape of every non-executing path
// (validation failure, arbitration deny, allow-without-tool): append the
// entry first; if the append fails, halt via the unhandled-failure edge
// without entering AUDITING; otherwise move to AUDITING via fromTrigger
// and then to IDLE via append_succeeded.
func (k *Kernel) auditAndFinish(req request.Request, stateFrom string, now int64, decision ledger.Decision,
	fromTrigger state.Trigger, status request.Status, reqDecision request.Decision,
	toolName, paramsHash, evidenceHash *string, errMsg string) request.Receipt {

	var errPtr *string
	if errMsg != "" {
		errPtr = &errMsg
	}

	entry, err := k.ledger.Append(ledger.Draft{
		RequestID: req.RequestID, Actor: req.Actor, Intent: req.Intent,
		Decision: decision, StateFrom: stateFrom, StateTo: string(state.Auditing),
		TimestampMs: now, ToolName: toolName, ParamsHash: paramsHash,
		EvidenceHash: evidenceHash, Error: errPtr,
	})
	if err != nil {
		k.forceHalt()
		return request.Receipt{RequestID: req.RequestID, Status: request.Failed, Decision: reqDecision,
			StateFrom: stateFrom, StateTo: string(state.Halted), TimestampMs: now,
			ErrorMessage: errorir.New(errorir.CodeAuditFailure, "audit append failed").Detail("%v", err).Build().Error()}
	}

	if _, err := k.machine.Apply(fromTrigger); err != nil {
		k.forceHalt()
		return request.Receipt{RequestID: req.RequestID, Status: request.Failed, Decision: reqDecision,
			StateFrom: stateFrom, StateTo: string(state.Halted), TimestampMs: now, ErrorMessage: err.Error()}
	}

	if _, err := k.machine.Apply(state.TriggerAppendSucceeded); err != nil {
		// Unreachable in practice (AUDITING always accepts
		// append_succeeded once the write above has already succeeded),
		// but fail closed via the edge AUDITING does define for failure.
		_, _ = k.machine.Apply(state.TriggerAppendFailed)
		return request.Receipt{RequestID: req.RequestID, Status: request.Failed, Decision: reqDecision,
			StateFrom: stateFrom, StateTo: string(state.Halted), TimestampMs: now, ErrorMessage: err.Error()}
	}

	return request.Receipt{
		RequestID: req.RequestID, Status: status, Decision: reqDecision,
		StateFrom: stateFrom, StateTo: string(state.Idle), TimestampMs: now,
		ErrorMessage: errMsg, EvidenceHash: entry.EntryHash,
	}
}

// executeAndAudit handles the ALLOW-with-tool_call path: EXECUTING then
// AUDITING. A handler error does not itself halt the kernel — it is a
// recoverable execution failure, recorded in the entry and surfaced to
// the caller as request.Failed, per spec §4.5.
func (k *Kernel) executeAndAudit(ctx context.Context, req request.Request, now int64) request.Receipt {
	if _, err := k.machine.Apply(state.TriggerAllowWithTool); err != nil {
		return k.fatalReceipt(req, state.Arbitrating, now, err)
	}

	toolName := req.ToolCall.Name
	paramsHash, hashErr := hashParams(req.ToolCall.Params)

	var toolResult interface{}
	var errMsg string
	handler, ok := k.reg.Lookup(toolName)
	switch {
	case hashErr != nil:
		errMsg = errorir.New(errorir.CodeExecutionFailure, "tool params could not be hashed").
			Detail("%v", hashErr).Classify(errorir.NonRetryable).Build().Error()
	case !ok:
		errMsg = errorir.New(errorir.CodeUnknownTool, "tool not found in registry").
			Detail("tool %q is admissible by policy but not registered", toolName).Build().Error()
	default:
		result, err := handler(ctx, req.ToolCall.Params)
		if err != nil {
			errMsg = errorir.New(errorir.CodeExecutionFailure, "tool handler returned an error").
				Detail("%v", err).Classify(errorir.Retryable).Build().Error()
		} else {
			toolResult = result
		}
	}

	var paramsHashPtr *string
	if paramsHash != "" {
		paramsHashPtr = &paramsHash
	}
	var evidenceHashPtr *string
	if len(req.Evidence) > 0 {
		h, err := canonHashStrings(req.Evidence)
		if err == nil {
			evidenceHashPtr = &h
		}
	}

	status := request.Accepted
	if errMsg != "" {
		status = request.Failed
	}

	receipt := k.auditAndFinish(req, string(state.Executing), now, ledger.Allow, state.TriggerToolReturned,
		status, request.Allow, &toolName, paramsHashPtr, evidenceHashPtr, errMsg)
	receipt.ToolResult = toolResult
	return receipt
}

// fatalReceipt handles the "should never happen" case of Apply itself
// rejecting a transition the kernel core constructed correctly; it is
// the kernel's own bug-backstop, not a normal request outcome.
func (k *Kernel) fatalReceipt(req request.Request, from state.State, now int64, cause error) request.Receipt {
	k.forceHalt()
	return request.Receipt{
		RequestID: req.RequestID, Status: request.Failed, Decision: request.Halt,
		StateFrom: string(from), StateTo: string(state.Halted), TimestampMs: now,
		ErrorMessage: errorir.New(errorir.CodeAuditFailure, "unhandled state transition failure").
			Detail("%v", cause).Build().Error(),
	}
}

// forceHalt drives the machine to HALTED via the unhandled-failure edge,
// defined from every state Submit can be in when something it built
// itself is rejected by Apply — VALIDATING, ARBITRATING and EXECUTING.
func (k *Kernel) forceHalt() {
	_, _ = k.machine.Apply(state.TriggerUnhandledFailure)
}

func hashParams(params map[string]interface{}) (string, error) {
	if params == nil {
		return "", nil
	}
	return canonHash(params)
}
