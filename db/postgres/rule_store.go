// Package postgres provides the Postgres-backed markup rule store.
// Every statement is owner-scoped: an id belonging to a different
// owner is indistinguishable from a missing id.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"

	"sms-margin/decision/pricing"
)

// Store implements pricing.RuleStore on Postgres.
type Store struct {
	db *sql.DB
}

// NewStore opens a connection pool for the given DSN.
func NewStore(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}
	return &Store{db: db}, nil
}

// NewStoreWithDB wraps an existing connection pool.
func NewStoreWithDB(db *sql.DB) *Store {
	return &Store{db: db}
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// EnsureSchema creates the markup_rules table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	ddl := `
		CREATE TABLE IF NOT EXISTS markup_rules (
			id           UUID PRIMARY KEY,
			owner_id     UUID NOT NULL,
			name         TEXT NOT NULL,
			markup_type  TEXT NOT NULL,
			markup_value NUMERIC(18,6) NOT NULL,
			min_volume   BIGINT,
			max_volume   BIGINT,
			country_code CHAR(2),
			sms_type     TEXT,
			priority     INT NOT NULL DEFAULT 0,
			is_active    BOOLEAN NOT NULL DEFAULT TRUE,
			created_at   TIMESTAMPTZ NOT NULL,
			updated_at   TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_markup_rules_owner_active
			ON markup_rules (owner_id, is_active);
	`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("failed to ensure markup_rules schema: %w", err)
	}
	return nil
}

const ruleColumns = `
	id, owner_id, name, markup_type, markup_value,
	min_volume, max_volume, country_code, sms_type,
	priority, is_active, created_at, updated_at
`

// ListActiveRules returns the owner's active rules; resolution input.
func (s *Store) ListActiveRules(ctx context.Context, ownerID uuid.UUID) ([]*pricing.MarkupRule, error) {
	query := `
		SELECT ` + ruleColumns + `
		FROM markup_rules
		WHERE owner_id = $1 AND is_active = TRUE
		ORDER BY priority ASC, created_at ASC, id ASC
	`
	return s.queryRules(ctx, query, ownerID)
}

// ListRules returns the owner's rules, optionally including inactive
// ones (inactive rules stay listable even though resolution ignores
// them).
func (s *Store) ListRules(ctx context.Context, ownerID uuid.UUID, includeInactive bool) ([]*pricing.MarkupRule, error) {
	query := `
		SELECT ` + ruleColumns + `
		FROM markup_rules
		WHERE owner_id = $1 AND (is_active = TRUE OR $2)
		ORDER BY priority ASC, created_at ASC, id ASC
	`
	return s.queryRules(ctx, query, ownerID, includeInactive)
}

// GetRule fetches one owned rule or pricing.ErrRuleNotFound.
func (s *Store) GetRule(ctx context.Context, ownerID, id uuid.UUID) (*pricing.MarkupRule, error) {
	query := `
		SELECT ` + ruleColumns + `
		FROM markup_rules
		WHERE owner_id = $1 AND id = $2
	`
	row := s.db.QueryRowContext(ctx, query, ownerID, id)
	rule, err := scanRule(row)
	if err == sql.ErrNoRows {
		return nil, pricing.ErrRuleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rule: %w", err)
	}
	return rule, nil
}

// CreateRule inserts a validated rule.
func (s *Store) CreateRule(ctx context.Context, rule *pricing.MarkupRule) error {
	query := `
		INSERT INTO markup_rules (` + ruleColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := s.db.ExecContext(ctx, query,
		rule.ID,
		rule.OwnerID,
		rule.Name,
		string(rule.Markup.Type),
		rule.Markup.Value.String(),
		nullableInt64(rule.MinVolume),
		nullableInt64(rule.MaxVolume),
		nullableString(rule.CountryCode),
		nullableSmsType(rule.SmsType),
		rule.Priority,
		rule.IsActive,
		rule.CreatedAt,
		rule.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert rule: %w", err)
	}
	return nil
}

// UpdateRule persists the merged rule definition; owner-scoped, so a
// foreign id updates zero rows and surfaces as not found.
func (s *Store) UpdateRule(ctx context.Context, rule *pricing.MarkupRule) error {
	query := `
		UPDATE markup_rules SET
			name = $3, markup_type = $4, markup_value = $5,
			min_volume = $6, max_volume = $7, country_code = $8, sms_type = $9,
			priority = $10, is_active = $11, updated_at = $12
		WHERE owner_id = $1 AND id = $2
	`
	res, err := s.db.ExecContext(ctx, query,
		rule.OwnerID,
		rule.ID,
		rule.Name,
		string(rule.Markup.Type),
		rule.Markup.Value.String(),
		nullableInt64(rule.MinVolume),
		nullableInt64(rule.MaxVolume),
		nullableString(rule.CountryCode),
		nullableSmsType(rule.SmsType),
		rule.Priority,
		rule.IsActive,
		rule.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update rule: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		return pricing.ErrRuleNotFound
	}
	return nil
}

// DeleteRule removes one owned rule or fails with
// pricing.ErrRuleNotFound.
func (s *Store) DeleteRule(ctx context.Context, ownerID, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM markup_rules WHERE owner_id = $1 AND id = $2`, ownerID, id)
	if err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read delete result: %w", err)
	}
	if affected == 0 {
		return pricing.ErrRuleNotFound
	}
	return nil
}

func (s *Store) queryRules(ctx context.Context, query string, args ...interface{}) ([]*pricing.MarkupRule, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	defer rows.Close()

	rules := make([]*pricing.MarkupRule, 0)
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rules: %w", err)
	}
	return rules, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRule(row rowScanner) (*pricing.MarkupRule, error) {
	var (
		rule        pricing.MarkupRule
		markupType  string
		markupValue string
		minVolume   sql.NullInt64
		maxVolume   sql.NullInt64
		countryCode sql.NullString
		smsType     sql.NullString
	)
	err := row.Scan(
		&rule.ID, &rule.OwnerID, &rule.Name, &markupType, &markupValue,
		&minVolume, &maxVolume, &countryCode, &smsType,
		&rule.Priority, &rule.IsActive, &rule.CreatedAt, &rule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	value, err := decimal.NewFromString(markupValue)
	if err != nil {
		return nil, fmt.Errorf("invalid markup value %q: %w", markupValue, err)
	}
	rule.Markup = pricing.Markup{Type: pricing.MarkupType(markupType), Value: value}

	if minVolume.Valid {
		v := minVolume.Int64
		rule.MinVolume = &v
	}
	if maxVolume.Valid {
		v := maxVolume.Int64
		rule.MaxVolume = &v
	}
	if countryCode.Valid {
		cc := countryCode.String
		rule.CountryCode = &cc
	}
	if smsType.Valid {
		st := pricing.SmsType(smsType.String)
		rule.SmsType = &st
	}
	return &rule, nil
}

func nullableInt64(v *int64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func nullableString(v *string) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func nullableSmsType(v *pricing.SmsType) interface{} {
	if v == nil {
		return nil
	}
	return string(*v)
}
