package pricing

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PricingRequest describes one send to be priced. It is ephemeral and
// never persisted by the engine. BaseCost is the wholesale unit cost
// supplied by the caller; the engine never invents one.
type PricingRequest struct {
	OwnerID     uuid.UUID       `json:"owner_id"`
	Volume      int64           `json:"volume"`
	CountryCode string          `json:"country_code,omitempty"` // empty = unspecified
	SmsType     string          `json:"sms_type,omitempty"`     // empty = unspecified
	BaseCost    decimal.Decimal `json:"base_cost"`
}

// Normalize uppercases the country code in place.
func (r *PricingRequest) Normalize() {
	r.CountryCode = strings.ToUpper(strings.TrimSpace(r.CountryCode))
	r.SmsType = strings.ToUpper(strings.TrimSpace(r.SmsType))
}

// Validate checks the request's structural constraints.
func (r *PricingRequest) Validate() error {
	if r.OwnerID == uuid.Nil {
		return newValidationError("owner_id", "owner id is required")
	}
	if r.Volume < 1 {
		return newValidationError("volume", "volume must be at least 1")
	}
	if r.BaseCost.IsNegative() {
		return newValidationError("base_cost", "base cost must not be negative")
	}
	if r.CountryCode != "" && !countryCodePattern.MatchString(r.CountryCode) {
		return newValidationError("country_code", "must be a two-letter ISO-3166 code")
	}
	if r.SmsType != "" && !SmsType(r.SmsType).Valid() {
		return newValidationError("sms_type", "unrecognized sms type")
	}
	return nil
}

// Quote is the engine's priced output for one request. All monetary
// fields are decimal; TotalSellPrice and TotalCost are rounded to
// currency precision, the unit sell price is kept at full precision.
type Quote struct {
	BaseCostPerUnit decimal.Decimal `json:"base_cost_per_unit"`
	AppliedRuleID   *uuid.UUID      `json:"applied_rule_id,omitempty"`
	MarkupType      *MarkupType     `json:"markup_type,omitempty"`
	UnitSellPrice   decimal.Decimal `json:"unit_sell_price"`
	TotalSellPrice  decimal.Decimal `json:"total_sell_price"`
	TotalCost       decimal.Decimal `json:"total_cost"`
	Profit          decimal.Decimal `json:"profit"`
	ProfitMarginPct decimal.Decimal `json:"profit_margin_pct"`

	// Clamped marks a FIXED_AMOUNT markup that would have produced a
	// negative unit price and was held at zero instead.
	Clamped bool `json:"clamped,omitempty"`
}

// DecisionRecord is the immutable historical record of one priced live
// transaction. It is created by the caller at billing time and read
// back only as aggregation input.
type DecisionRecord struct {
	ID          uuid.UUID `json:"id"`
	OwnerID     uuid.UUID `json:"owner_id"`
	OccurredAt  time.Time `json:"occurred_at"`
	Volume      int64     `json:"volume"`
	CountryCode string    `json:"country_code,omitempty"`
	SmsType     string    `json:"sms_type,omitempty"`
	Quote       Quote     `json:"quote"`
}
