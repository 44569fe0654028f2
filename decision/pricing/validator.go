package pricing

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// MaxRuleNameLength bounds the rule name after trimming.
const MaxRuleNameLength = 100

var countryCodePattern = regexp.MustCompile(`^[A-Z]{2}$`)

// RuleInput carries a rule definition to be validated before it is
// persisted. Optional scoping fields stay nil when absent.
type RuleInput struct {
	Name        string          `json:"name"`
	MarkupType  MarkupType      `json:"markup_type"`
	MarkupValue decimal.Decimal `json:"markup_value"`
	MinVolume   *int64          `json:"min_volume,omitempty"`
	MaxVolume   *int64          `json:"max_volume,omitempty"`
	CountryCode *string         `json:"country_code,omitempty"`
	SmsType     *string         `json:"sms_type,omitempty"`
	Priority    int             `json:"priority"`
	IsActive    bool            `json:"is_active"`
}

// ValidatedRule is a structurally sound, normalized rule definition.
// Name is trimmed, the country code is uppercased and the sms type is
// converted to its enum form.
type ValidatedRule struct {
	Name        string
	Markup      Markup
	MinVolume   *int64
	MaxVolume   *int64
	CountryCode *string
	SmsType     *SmsType
	Priority    int
	IsActive    bool
}

// Validate enforces the structural invariants on a rule definition.
// It is pure: no store access, no side effects. Failures are
// *ValidationError values naming the violated field.
func Validate(in RuleInput) (*ValidatedRule, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, newValidationError("name", "name is required")
	}
	if len(name) > MaxRuleNameLength {
		return nil, newValidationError("name", "name must be at most 100 characters")
	}

	if !in.MarkupType.Valid() {
		return nil, newValidationError("markup_type", "must be one of PERCENTAGE, FIXED_AMOUNT, FIXED_PRICE")
	}
	switch in.MarkupType {
	case MarkupPercentage:
		if in.MarkupValue.IsNegative() {
			return nil, newValidationError("markup_value", "percentage markup must not be negative")
		}
	case MarkupFixedAmount:
		// Any real value is allowed here: negative amounts model
		// promotional discounts. A combined base cost + markup below
		// zero is clamped at pricing time, not rejected here.
	case MarkupFixedPrice:
		if in.MarkupValue.IsNegative() {
			return nil, newValidationError("markup_value", "fixed price must not be negative")
		}
	}

	if in.MinVolume != nil && *in.MinVolume < 0 {
		return nil, newValidationError("min_volume", "must not be negative")
	}
	if in.MaxVolume != nil && *in.MaxVolume < 0 {
		return nil, newValidationError("max_volume", "must not be negative")
	}
	if in.MinVolume != nil && in.MaxVolume != nil && *in.MinVolume > *in.MaxVolume {
		return nil, newValidationError("min_volume", "min volume must not exceed max volume")
	}

	out := &ValidatedRule{
		Name:      name,
		Markup:    Markup{Type: in.MarkupType, Value: in.MarkupValue},
		MinVolume: in.MinVolume,
		MaxVolume: in.MaxVolume,
		Priority:  in.Priority,
		IsActive:  in.IsActive,
	}

	if in.CountryCode != nil {
		cc := strings.ToUpper(strings.TrimSpace(*in.CountryCode))
		if !countryCodePattern.MatchString(cc) {
			return nil, newValidationError("country_code", "must be a two-letter ISO-3166 code")
		}
		out.CountryCode = &cc
	}

	if in.SmsType != nil {
		st := SmsType(strings.ToUpper(strings.TrimSpace(*in.SmsType)))
		if !st.Valid() {
			return nil, newValidationError("sms_type", "must be one of TRANSACTIONAL, PROMOTIONAL, OTP")
		}
		out.SmsType = &st
	}

	return out, nil
}
