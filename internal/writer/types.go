package writer

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
)

// WriterConfig contains configuration for batch writers.
type WriterConfig struct {
	// BatchSize is the number of rows to accumulate before flushing.
	BatchSize int

	// FlushInterval is the maximum time between flushes.
	FlushInterval time.Duration
}

// DefaultWriterConfig returns sensible defaults.
func DefaultWriterConfig() WriterConfig {
	return WriterConfig{
		BatchSize:     100,
		FlushInterval: time.Second,
	}
}

// WriterMetrics holds metrics for a writer.
type WriterMetrics struct {
	Inserts   int64
	Conflicts int64
	Errors    int64
	Flushes   int64
	Skipped   int64 // events of another kind
}

// DB sends a batch of statements. *pgxpool.Pool satisfies it.
type DB interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// bidRow represents a row to be inserted into the bid_events table.
type bidRow struct {
	AuctionID  string
	UserUUID   string
	Nickname   string
	Amount     int64
	ReceivedAt time.Time
}

// participantRow represents a row for the participant_counts table.
type participantRow struct {
	AuctionID    string
	Participants int64
	ReceivedAt   time.Time
}

// resultRow represents a row for the auction_results table.
type resultRow struct {
	AuctionID      string
	WinnerNickname string
	WinningBid     int64
	ReceivedAt     time.Time
}
