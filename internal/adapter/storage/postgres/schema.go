package postgres

import (
	"context"
	"fmt"
)

type ddl struct {
	name string
	sql  string
}

// Timestamps are stored as fixed-width UTC text so lexical order equals time order.
// interest_rate is unconstrained NUMERIC: replay recomputes accruals from it, so it must
// come back exactly as written.
var schema = []ddl{
	{"table savings_accounts", `CREATE TABLE IF NOT EXISTS savings_accounts (
		id            TEXT PRIMARY KEY,
		balance       NUMERIC(19,2) NOT NULL,
		interest_rate NUMERIC NOT NULL CHECK (interest_rate >= 0 AND interest_rate <= 1),
		created_at    TEXT NOT NULL,
		version       BIGINT NOT NULL
	)`},
	{"column savings_accounts.interest_rate", `ALTER TABLE savings_accounts
		ALTER COLUMN interest_rate TYPE NUMERIC`},
	{"table savings_transactions", `CREATE TABLE IF NOT EXISTS savings_transactions (
		id              TEXT PRIMARY KEY,
		account_id      TEXT NOT NULL REFERENCES savings_accounts(id),
		type            SMALLINT NOT NULL,
		amount          NUMERIC(19,2) NOT NULL,
		created_at      TEXT NOT NULL,
		idempotency_key TEXT
	)`},
	{"index idx_savings_transactions_account_created", `CREATE INDEX IF NOT EXISTS idx_savings_transactions_account_created
		ON savings_transactions (account_id, created_at)`},
	{"index idx_savings_transactions_idempotency", `CREATE UNIQUE INDEX IF NOT EXISTS idx_savings_transactions_idempotency
		ON savings_transactions (account_id, idempotency_key) WHERE idempotency_key IS NOT NULL`},
}

// Migrate creates the savings tables and indexes if they do not exist and widens
// columns created by older versions.
func Migrate(ctx context.Context, pool Pool) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt.sql); err != nil {
			return fmt.Errorf("migrate %s: %w", stmt.name, err)
		}
	}
	return nil
}
