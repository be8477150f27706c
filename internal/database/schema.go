package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// Execer runs a statement. *pgxpool.Pool and pgx.Tx satisfy it.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// schema is applied in order. Every statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS bid_events (
		id          BIGSERIAL PRIMARY KEY,
		auction_id  TEXT        NOT NULL,
		user_uuid   TEXT        NOT NULL DEFAULT '',
		nickname    TEXT        NOT NULL,
		amount      BIGINT      NOT NULL,
		received_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS bid_events_auction_amount_idx
		ON bid_events (auction_id, amount)`,
	`CREATE TABLE IF NOT EXISTS participant_counts (
		auction_id   TEXT        NOT NULL,
		participants BIGINT      NOT NULL,
		received_at  TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS participant_counts_auction_idx
		ON participant_counts (auction_id, received_at)`,
	`CREATE TABLE IF NOT EXISTS auction_results (
		auction_id      TEXT PRIMARY KEY,
		winner_nickname TEXT        NOT NULL,
		winning_bid     BIGINT      NOT NULL,
		received_at     TIMESTAMPTZ NOT NULL
	)`,
}

// Migrate creates the recorder tables if they do not exist.
func Migrate(ctx context.Context, db Execer) error {
	for i, stmt := range schema {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i+1, err)
		}
	}
	return nil
}
