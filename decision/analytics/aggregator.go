// Package analytics aggregates historical pricing decisions into
// profit summaries and configuration recommendations for a reseller.
package analytics

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"sms-margin/decision/pricing"
)

// Recommendation flags derived from the owner's rule set and traffic.
const (
	RecNoRulesConfigured = "no_rules_configured"
	RecZeroProfit        = "zero_profit"
	RecNoVolumeTiers     = "no_volume_tiers"
	RecNoCountryRules    = "no_country_rules"
)

// HighTrafficThreshold is the transaction count above which missing
// volume-tiered rules are flagged.
const HighTrafficThreshold = 1000

// DecisionStore is the read-only collaborator holding immutable
// pricing-decision records.
type DecisionStore interface {
	ListDecisions(ctx context.Context, ownerID uuid.UUID, from, to time.Time) ([]*pricing.DecisionRecord, error)
}

// TypeProfit is the per-SMS-type profit breakdown. Records without a
// type are grouped under an empty key.
type TypeProfit struct {
	SmsType      string          `json:"sms_type"`
	Profit       decimal.Decimal `json:"profit"`
	Transactions int64           `json:"transactions"`
}

// ProfitSummary is the aggregation output for one owner and window.
// For a fixed record set and window it is value-identical across
// repeated calls.
type ProfitSummary struct {
	OwnerID           uuid.UUID       `json:"owner_id"`
	From              time.Time       `json:"from"`
	To                time.Time       `json:"to"`
	TotalProfit       decimal.Decimal `json:"total_profit"`
	TotalTransactions int64           `json:"total_transactions"`
	ProfitByType      []TypeProfit    `json:"profit_by_type"`
	Recommendations   []string        `json:"recommendations"`
}

// Aggregator computes profit summaries over historical pricing
// decisions. It is stateless; every call reads fresh from the stores.
type Aggregator struct {
	decisions DecisionStore
	rules     pricing.RuleStore
	now       func() time.Time
}

// NewAggregator creates an aggregator over the decision and rule
// stores.
func NewAggregator(decisions DecisionStore, rules pricing.RuleStore) *Aggregator {
	return &Aggregator{decisions: decisions, rules: rules, now: time.Now}
}

// Summarize aggregates the owner's pricing decisions over the last
// `days` days. Empty history yields a summary of all zeros, not an
// error.
func (a *Aggregator) Summarize(ctx context.Context, ownerID uuid.UUID, days int) (*ProfitSummary, error) {
	if days < 1 {
		return nil, &pricing.ValidationError{Field: "days", Reason: "window must be at least 1 day"}
	}

	to := a.now().UTC()
	from := to.AddDate(0, 0, -days)

	records, err := a.decisions.ListDecisions(ctx, ownerID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to load pricing decisions: %w", err)
	}
	rules, err := a.rules.ListRules(ctx, ownerID, true)
	if err != nil {
		return nil, fmt.Errorf("failed to load rules: %w", err)
	}

	summary := &ProfitSummary{
		OwnerID:      ownerID,
		From:         from,
		To:           to,
		TotalProfit:  decimal.Zero,
		ProfitByType: []TypeProfit{},
	}

	byType := make(map[string]*TypeProfit)
	countries := make(map[string]struct{})
	for _, rec := range records {
		summary.TotalTransactions++
		summary.TotalProfit = summary.TotalProfit.Add(rec.Quote.Profit)

		tp, ok := byType[rec.SmsType]
		if !ok {
			tp = &TypeProfit{SmsType: rec.SmsType, Profit: decimal.Zero}
			byType[rec.SmsType] = tp
		}
		tp.Transactions++
		tp.Profit = tp.Profit.Add(rec.Quote.Profit)

		if rec.CountryCode != "" {
			countries[rec.CountryCode] = struct{}{}
		}
	}

	for _, tp := range byType {
		summary.ProfitByType = append(summary.ProfitByType, *tp)
	}
	sort.Slice(summary.ProfitByType, func(i, j int) bool {
		return summary.ProfitByType[i].SmsType < summary.ProfitByType[j].SmsType
	})

	summary.Recommendations = recommend(rules, summary, len(countries))
	return summary, nil
}

// recommend derives configuration flags from the rule set and the
// summary. The output is sorted so identical inputs always produce
// identical summaries.
func recommend(rules []*pricing.MarkupRule, summary *ProfitSummary, distinctCountries int) []string {
	recs := make([]string, 0, 4)

	if len(rules) == 0 {
		recs = append(recs, RecNoRulesConfigured)
	}
	if summary.TotalTransactions > 0 && !summary.TotalProfit.IsPositive() {
		recs = append(recs, RecZeroProfit)
	}

	hasVolumeTier := false
	hasCountryRule := false
	for _, r := range rules {
		if !r.IsActive {
			continue
		}
		if r.MinVolume != nil || r.MaxVolume != nil {
			hasVolumeTier = true
		}
		if r.CountryCode != nil {
			hasCountryRule = true
		}
	}
	if summary.TotalTransactions >= HighTrafficThreshold && !hasVolumeTier {
		recs = append(recs, RecNoVolumeTiers)
	}
	if distinctCountries > 1 && !hasCountryRule {
		recs = append(recs, RecNoCountryRules)
	}

	sort.Strings(recs)
	return recs
}
