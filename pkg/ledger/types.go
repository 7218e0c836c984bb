package ledger

// Decision is the outcome recorded against an entry.
type Decision string

const (
	Allow Decision = "ALLOW"
	Deny  Decision = "DENY"
	Halt  Decision = "HALT"
)

// Entry is one immutable, hash-chained audit record (spec §3 "Audit
// Entry"). Fields marked optional are nil/empty when not applicable and
// are still hashed as explicit nulls (see canon.Bytes).
type Entry struct {
	PrevHash  string `json:"prev_hash"`
	EntryHash string `json:"entry_hash"`

	RequestID   string   `json:"request_id"`
	Actor       string   `json:"actor"`
	Intent      string   `json:"intent"`
	Decision    Decision `json:"decision"`
	StateFrom   string   `json:"state_from"`
	StateTo     string   `json:"state_to"`
	TimestampMs int64    `json:"timestamp_ms"`

	ToolName     *string `json:"tool_name,omitempty"`
	ParamsHash   *string `json:"params_hash,omitempty"`
	EvidenceHash *string `json:"evidence_hash,omitempty"`
	Error        *string `json:"error,omitempty"`
}

// Draft is the caller-assembled, not-yet-hashed view of an entry: every
// field the ledger needs except prev_hash and entry_hash, which Append
// computes.
type Draft struct {
	RequestID   string
	Actor       string
	Intent      string
	Decision    Decision
	StateFrom   string
	StateTo     string
	TimestampMs int64

	ToolName     *string
	ParamsHash   *string
	EvidenceHash *string
	Error        *string
}

// hashFields returns the canonical-encoding map used to compute
// entry_hash: the field set named in spec §3, minus prev_hash and
// entry_hash themselves (those are concatenated/produced separately).
// Absent optionals are represented as explicit nils so {tool_name:null}
// hashes differently from a draft that set a tool_name.
func (d Draft) hashFields() map[string]interface{} {
	m := map[string]interface{}{
		"request_id":   d.RequestID,
		"actor":        d.Actor,
		"intent":       d.Intent,
		"decision":     string(d.Decision),
		"state_from":   d.StateFrom,
		"state_to":     d.StateTo,
		"timestamp_ms": d.TimestampMs,
	}
	m["tool_name"] = optStr(d.ToolName)
	m["params_hash"] = optStr(d.ParamsHash)
	m["evidence_hash"] = optStr(d.EvidenceHash)
	m["error"] = optStr(d.Error)
	return m
}

func optStr(p *string) interface{} {
	if p == nil {
		return nil
	}
	return *p
}

// Bundle is the exportable snapshot of a ledger (spec §3 "Evidence
// Bundle").
type Bundle struct {
	KernelID     string  `json:"kernel_id"`
	VariantTag   string  `json:"variant_tag"`
	Entries      []Entry `json:"entries"`
	RootHash     string  `json:"root_hash"`
	ExportedAtMs int64   `json:"exported_at_ms"`
}
