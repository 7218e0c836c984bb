// Package sqlexport is a durable evidence-bundle exporter backed by
// database/sql (SPEC_FULL §4.10). It is a reference collaborator for
// the host's periodic export_evidence() call (spec §5) — it is never
// imported by pkg/kernel, which only ever produces a ledger.Bundle in
// memory and knows nothing about where a host chooses to persist it.
package sqlexport

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/kernelgate/governor/pkg/ledger"
)

// Exporter persists evidence bundles to a SQL database. It works
// against any database/sql driver (Postgres via lib/pq, or an
// embedded SQLite via modernc.org/sqlite) since all statements use
// portable, standard SQL.
type Exporter struct {
	db *sql.DB
}

// New wraps an already-open *sql.DB. Callers choose the driver
// (sql.Open("postgres", dsn) or sql.Open("sqlite", path)).
func New(db *sql.DB) *Exporter {
	return &Exporter{db: db}
}

const schema = `
CREATE TABLE IF NOT EXISTS governor_entries (
	kernel_id     TEXT NOT NULL,
	seq           INTEGER NOT NULL,
	prev_hash     TEXT NOT NULL,
	entry_hash    TEXT NOT NULL,
	request_id    TEXT NOT NULL,
	actor         TEXT NOT NULL,
	intent        TEXT NOT NULL,
	decision      TEXT NOT NULL,
	state_from    TEXT NOT NULL,
	state_to      TEXT NOT NULL,
	timestamp_ms  BIGINT NOT NULL,
	tool_name     TEXT,
	params_hash   TEXT,
	evidence_hash TEXT,
	error         TEXT,
	PRIMARY KEY (kernel_id, seq)
);

CREATE TABLE IF NOT EXISTS governor_bundles (
	kernel_id      TEXT PRIMARY KEY,
	variant_tag    TEXT NOT NULL,
	root_hash      TEXT NOT NULL,
	exported_at_ms BIGINT NOT NULL
);
`

// Init creates the exporter's tables if they do not already exist.
func (e *Exporter) Init(ctx context.Context) error {
	if _, err := e.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("sqlexport: init schema: %w", err)
	}
	return nil
}

// Export persists bundle, replacing any prior export under the same
// kernel_id. Entries are written inside one transaction so a durable
// export is all-or-nothing, matching the ledger's own commit-or-not
// discipline.
func (e *Exporter) Export(ctx context.Context, bundle ledger.Bundle) error {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlexport: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM governor_entries WHERE kernel_id = $1`, bundle.KernelID); err != nil {
		return fmt.Errorf("sqlexport: clear prior entries: %w", err)
	}

	for i, entry := range bundle.Entries {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO governor_entries (
				kernel_id, seq, prev_hash, entry_hash, request_id, actor, intent,
				decision, state_from, state_to, timestamp_ms, tool_name, params_hash,
				evidence_hash, error
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		`,
			bundle.KernelID, i, entry.PrevHash, entry.EntryHash, entry.RequestID, entry.Actor, entry.Intent,
			string(entry.Decision), entry.StateFrom, entry.StateTo, entry.TimestampMs,
			entry.ToolName, entry.ParamsHash, entry.EvidenceHash, entry.Error,
		)
		if err != nil {
			return fmt.Errorf("sqlexport: insert entry %d: %w", i, err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO governor_bundles (kernel_id, variant_tag, root_hash, exported_at_ms)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (kernel_id) DO UPDATE SET
			variant_tag = EXCLUDED.variant_tag,
			root_hash = EXCLUDED.root_hash,
			exported_at_ms = EXCLUDED.exported_at_ms
	`, bundle.KernelID, bundle.VariantTag, bundle.RootHash, bundle.ExportedAtMs)
	if err != nil {
		return fmt.Errorf("sqlexport: upsert bundle row: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlexport: commit: %w", err)
	}
	return nil
}

// Load reconstructs a ledger.Bundle previously persisted under kernelID.
func (e *Exporter) Load(ctx context.Context, kernelID string) (ledger.Bundle, error) {
	var bundle ledger.Bundle
	bundle.KernelID = kernelID

	row := e.db.QueryRowContext(ctx, `SELECT variant_tag, root_hash, exported_at_ms FROM governor_bundles WHERE kernel_id = $1`, kernelID)
	if err := row.Scan(&bundle.VariantTag, &bundle.RootHash, &bundle.ExportedAtMs); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ledger.Bundle{}, fmt.Errorf("sqlexport: no bundle found for kernel_id %q", kernelID)
		}
		return ledger.Bundle{}, fmt.Errorf("sqlexport: load bundle row: %w", err)
	}

	rows, err := e.db.QueryContext(ctx, `
		SELECT prev_hash, entry_hash, request_id, actor, intent, decision, state_from,
			state_to, timestamp_ms, tool_name, params_hash, evidence_hash, error
		FROM governor_entries WHERE kernel_id = $1 ORDER BY seq ASC
	`, kernelID)
	if err != nil {
		return ledger.Bundle{}, fmt.Errorf("sqlexport: query entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var e ledger.Entry
		var decision string
		if err := rows.Scan(&e.PrevHash, &e.EntryHash, &e.RequestID, &e.Actor, &e.Intent, &decision,
			&e.StateFrom, &e.StateTo, &e.TimestampMs, &e.ToolName, &e.ParamsHash, &e.EvidenceHash, &e.Error); err != nil {
			return ledger.Bundle{}, fmt.Errorf("sqlexport: scan entry: %w", err)
		}
		e.Decision = ledger.Decision(decision)
		bundle.Entries = append(bundle.Entries, e)
	}
	if err := rows.Err(); err != nil {
		return ledger.Bundle{}, fmt.Errorf("sqlexport: iterate entries: %w", err)
	}

	return bundle, nil
}
