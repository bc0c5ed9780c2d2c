// Package audit writes a best-effort record of executed swaps to ClickHouse.
// The agent pipeline itself is stateless; this trail is telemetry, so every
// failure here is logged and swallowed.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/sirupsen/logrus"
)

// SwapRecord is one executed (or attempted) swap.
type SwapRecord struct {
	Signature  string
	Timestamp  time.Time
	InputMint  string
	OutputMint string
	Symbol     string
	Amount     float64 // base units
	Outcome    string  // "finalized", "failed:<step>"
}

// Trail is a nil-safe recorder. A nil *Trail records nothing.
type Trail struct {
	conn   driver.Conn
	logger *logrus.Logger
}

// Config holds ClickHouse connection settings.
type Config struct {
	Addr     string
	Database string
	Username string
	Password string
	Logger   *logrus.Logger
}

// New connects and pings. Callers that cannot connect should run with a nil
// Trail rather than treat this as fatal.
func New(cfg Config) (*Trail, error) {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.Database == "" {
		cfg.Database = "agent"
	}

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	cfg.Logger.Info("connected to ClickHouse audit trail")

	return &Trail{conn: conn, logger: cfg.Logger}, nil
}

// RecordSwap inserts one record. Never returns an error: audit failures must
// not surface into the conversation.
func (t *Trail) RecordSwap(ctx context.Context, rec SwapRecord) {
	if t == nil {
		return
	}

	query := `
		INSERT INTO swap_audit (
			signature, timestamp, input_mint, output_mint,
			symbol, amount, outcome
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	err := t.conn.Exec(ctx, query,
		rec.Signature,
		rec.Timestamp,
		rec.InputMint,
		rec.OutputMint,
		rec.Symbol,
		rec.Amount,
		rec.Outcome,
	)
	if err != nil {
		t.logger.WithError(err).Warn("failed to record swap audit entry")
	}
}

// Close releases the connection.
func (t *Trail) Close() error {
	if t == nil {
		return nil
	}
	return t.conn.Close()
}
