package postgres

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CREATE LEDGER SNAPSHOTS
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- One row per snapshot key; the value is the JSON-encoded ledger state.
CREATE TABLE IF NOT EXISTS ledger_snapshots (
    key        TEXT PRIMARY KEY,
    value      JSONB NOT NULL,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);
`

// GetMigrations returns all embedded migrations.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_ledger_snapshots",
			UpSQL:   migration001Up,
		},
	}
}
