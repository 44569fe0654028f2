// Package clickhouse provides the ClickHouse store for pricing
// decision records. Decisions are append-only: written once when a
// live send is billed, immutable thereafter, and scanned in time
// windows by the profit aggregator.
package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"sms-margin/decision/pricing"
)

// Config holds ClickHouse connection configuration.
type Config struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
	Debug    bool
}

// DefaultConfig returns default development configuration.
func DefaultConfig() *Config {
	return &Config{
		Host:     "localhost",
		Port:     9000,
		Database: "smsmargin",
		Username: "default",
		Password: "",
		Debug:    false,
	}
}

// Store implements the decision-record store on ClickHouse.
type Store struct {
	conn clickhouse.Conn
	cfg  *Config
}

// NewStore connects to ClickHouse with the given configuration.
func NewStore(cfg *Config) (*Store, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Debug: cfg.Debug,
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}
	return &Store{conn: conn, cfg: cfg}, nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.conn.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// EnsureSchema creates the pricing_decisions table if it does not
// exist. MergeTree ordered by (owner, time) matches the aggregator's
// windowed scan pattern.
func (s *Store) EnsureSchema(ctx context.Context) error {
	ddl := `
		CREATE TABLE IF NOT EXISTS pricing_decisions (
			id                UUID,
			owner_id          UUID,
			occurred_at       DateTime64(3, 'UTC'),
			volume            Int64,
			country_code      String,
			sms_type          String,
			base_cost         Decimal(24, 12),
			applied_rule_id   Nullable(UUID),
			markup_type       String,
			unit_sell_price   Decimal(24, 12),
			total_sell_price  Decimal(18, 2),
			total_cost        Decimal(18, 2),
			profit            Decimal(18, 2),
			profit_margin_pct Decimal(9, 2),
			clamped           UInt8,
			created_at        DateTime DEFAULT now()
		) ENGINE = MergeTree()
		ORDER BY (owner_id, occurred_at)
	`
	if err := s.conn.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("failed to ensure pricing_decisions schema: %w", err)
	}
	return nil
}

// InsertDecision appends one immutable decision record.
func (s *Store) InsertDecision(ctx context.Context, rec *pricing.DecisionRecord) error {
	query := `
		INSERT INTO pricing_decisions (
			id, owner_id, occurred_at, volume, country_code, sms_type,
			base_cost, applied_rule_id, markup_type, unit_sell_price,
			total_sell_price, total_cost, profit, profit_margin_pct, clamped
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	var markupType string
	if rec.Quote.MarkupType != nil {
		markupType = string(*rec.Quote.MarkupType)
	}
	return s.conn.Exec(ctx, query,
		rec.ID,
		rec.OwnerID,
		rec.OccurredAt,
		rec.Volume,
		rec.CountryCode,
		rec.SmsType,
		rec.Quote.BaseCostPerUnit,
		rec.Quote.AppliedRuleID,
		markupType,
		rec.Quote.UnitSellPrice,
		rec.Quote.TotalSellPrice,
		rec.Quote.TotalCost,
		rec.Quote.Profit,
		rec.Quote.ProfitMarginPct,
		boolToUInt8(rec.Quote.Clamped),
	)
}

// ListDecisions returns the owner's decision records inside [from, to),
// oldest first.
func (s *Store) ListDecisions(ctx context.Context, ownerID uuid.UUID, from, to time.Time) ([]*pricing.DecisionRecord, error) {
	query := `
		SELECT id, owner_id, occurred_at, volume, country_code, sms_type,
			   base_cost, applied_rule_id, markup_type, unit_sell_price,
			   total_sell_price, total_cost, profit, profit_margin_pct, clamped
		FROM pricing_decisions
		WHERE owner_id = ? AND occurred_at >= ? AND occurred_at < ?
		ORDER BY occurred_at ASC, id ASC
	`
	rows, err := s.conn.Query(ctx, query, ownerID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query pricing decisions: %w", err)
	}
	defer rows.Close()

	records := make([]*pricing.DecisionRecord, 0)
	for rows.Next() {
		var (
			rec           pricing.DecisionRecord
			appliedRuleID *uuid.UUID
			markupType    string
			clamped       uint8
		)
		if err := rows.Scan(
			&rec.ID, &rec.OwnerID, &rec.OccurredAt, &rec.Volume,
			&rec.CountryCode, &rec.SmsType,
			&rec.Quote.BaseCostPerUnit, &appliedRuleID, &markupType,
			&rec.Quote.UnitSellPrice, &rec.Quote.TotalSellPrice,
			&rec.Quote.TotalCost, &rec.Quote.Profit,
			&rec.Quote.ProfitMarginPct, &clamped,
		); err != nil {
			return nil, fmt.Errorf("failed to scan pricing decision: %w", err)
		}
		rec.Quote.AppliedRuleID = appliedRuleID
		if markupType != "" {
			mt := pricing.MarkupType(markupType)
			rec.Quote.MarkupType = &mt
		}
		rec.Quote.Clamped = clamped == 1
		records = append(records, &rec)
	}
	return records, nil
}

// SumProfitByType computes the grouped profit breakdown inside the
// database. The aggregator scans full records for summaries; this is
// the fast path for dashboards over large windows.
func (s *Store) SumProfitByType(ctx context.Context, ownerID uuid.UUID, from, to time.Time) (map[string]decimal.Decimal, error) {
	query := `
		SELECT sms_type, sum(profit)
		FROM pricing_decisions
		WHERE owner_id = ? AND occurred_at >= ? AND occurred_at < ?
		GROUP BY sms_type
		ORDER BY sms_type ASC
	`
	rows, err := s.conn.Query(ctx, query, ownerID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to sum profit by type: %w", err)
	}
	defer rows.Close()

	out := make(map[string]decimal.Decimal)
	for rows.Next() {
		var (
			smsType string
			profit  decimal.Decimal
		)
		if err := rows.Scan(&smsType, &profit); err != nil {
			return nil, fmt.Errorf("failed to scan profit sum: %w", err)
		}
		out[smsType] = profit
	}
	return out, nil
}

func boolToUInt8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
