// Package pricing provides the Markup Rule Resolution & Pricing Engine.
// Given a send request and a reseller's configured markup rules it
// deterministically selects the single applicable rule and computes a
// sell price and profit, identically for live and test invocations.
package pricing

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MarkupType discriminates how a rule's markup value is applied.
type MarkupType string

const (
	MarkupPercentage  MarkupType = "PERCENTAGE"   // value = percentage points on top of base cost
	MarkupFixedAmount MarkupType = "FIXED_AMOUNT" // value = additive currency amount (may be negative)
	MarkupFixedPrice  MarkupType = "FIXED_PRICE"  // value = absolute replacement unit price
)

// Valid reports whether t is a recognized markup type.
func (t MarkupType) Valid() bool {
	switch t {
	case MarkupPercentage, MarkupFixedAmount, MarkupFixedPrice:
		return true
	}
	return false
}

// SmsType classifies message traffic for rule scoping.
type SmsType string

const (
	SmsTransactional SmsType = "TRANSACTIONAL"
	SmsPromotional   SmsType = "PROMOTIONAL"
	SmsOTP           SmsType = "OTP"
)

// Valid reports whether t is a recognized SMS type.
func (t SmsType) Valid() bool {
	switch t {
	case SmsTransactional, SmsPromotional, SmsOTP:
		return true
	}
	return false
}

// Markup is the discriminated variant carried by every rule. The
// meaning of Value depends on Type; the calculator switches on Type
// exhaustively.
type Markup struct {
	Type  MarkupType      `json:"type"`
	Value decimal.Decimal `json:"value"`
}

// MarkupRule is a reseller-owned pricing rule. Scoping fields are a
// conjunction: a request matches only if it satisfies every present
// constraint. Absent fields match anything.
type MarkupRule struct {
	ID      uuid.UUID `json:"id"`
	OwnerID uuid.UUID `json:"owner_id"`
	Name    string    `json:"name"`
	Markup  Markup    `json:"markup"`

	// Scoping constraints (nil = unbounded / matches any)
	MinVolume   *int64   `json:"min_volume,omitempty"`
	MaxVolume   *int64   `json:"max_volume,omitempty"`
	CountryCode *string  `json:"country_code,omitempty"`
	SmsType     *SmsType `json:"sms_type,omitempty"`

	// Lower priority value wins ties among equally specific rules.
	Priority int  `json:"priority"`
	IsActive bool `json:"is_active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Matches reports whether the request satisfies every scoping
// constraint present on the rule. Volume bounds are inclusive.
func (r *MarkupRule) Matches(req PricingRequest) bool {
	if r.MinVolume != nil && req.Volume < *r.MinVolume {
		return false
	}
	if r.MaxVolume != nil && req.Volume > *r.MaxVolume {
		return false
	}
	if r.CountryCode != nil && *r.CountryCode != strings.ToUpper(req.CountryCode) {
		return false
	}
	if r.SmsType != nil && string(*r.SmsType) != req.SmsType {
		return false
	}
	return true
}

// Specificity counts the rule's present scoping constraints. A volume
// bound on either side counts once; country and type count once each.
// Narrowly targeted rules outrank catch-all rules during resolution.
func (r *MarkupRule) Specificity() int {
	score := 0
	if r.MinVolume != nil || r.MaxVolume != nil {
		score++
	}
	if r.CountryCode != nil {
		score++
	}
	if r.SmsType != nil {
		score++
	}
	return score
}
