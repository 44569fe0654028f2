package pricing

import (
	"github.com/shopspring/decimal"
)

// MaxVolumePerRequest is the arithmetic guard against pathologically
// large batches. Requests above it fail with a ComputationError rather
// than being silently clamped.
const MaxVolumePerRequest int64 = 100_000_000

// currencyScale is the rounding precision applied at the quote
// boundary. Intermediate arithmetic is never rounded.
const currencyScale int32 = 2

var oneHundred = decimal.NewFromInt(100)

// Price applies the resolved rule (or the absence of one) to produce a
// quote. Pure function: all arithmetic is decimal, rounding to
// currency precision happens only on the totals, and the only
// non-error clamp is holding a negative FIXED_AMOUNT unit price at
// zero.
func Price(baseCost decimal.Decimal, volume int64, rule *MarkupRule) (*Quote, error) {
	if baseCost.IsNegative() {
		return nil, newValidationError("base_cost", "base cost must not be negative")
	}
	if volume < 1 {
		return nil, newValidationError("volume", "volume must be at least 1")
	}
	if volume > MaxVolumePerRequest {
		return nil, &ComputationError{Op: "price", Reason: "volume exceeds the maximum priceable batch size"}
	}

	quote := &Quote{BaseCostPerUnit: baseCost}

	unit := baseCost
	if rule != nil {
		switch rule.Markup.Type {
		case MarkupPercentage:
			unit = baseCost.Mul(oneHundred.Add(rule.Markup.Value)).Div(oneHundred)
		case MarkupFixedAmount:
			unit = baseCost.Add(rule.Markup.Value)
			if unit.IsNegative() {
				// Never bill a negative unit price.
				unit = decimal.Zero
				quote.Clamped = true
			}
		case MarkupFixedPrice:
			// Base cost is ignored on the sell side but still drives
			// total cost and profit below.
			unit = rule.Markup.Value
		}
		id := rule.ID
		mt := rule.Markup.Type
		quote.AppliedRuleID = &id
		quote.MarkupType = &mt
	}

	vol := decimal.NewFromInt(volume)
	quote.UnitSellPrice = unit
	quote.TotalSellPrice = unit.Mul(vol).Round(currencyScale)
	quote.TotalCost = baseCost.Mul(vol).Round(currencyScale)
	quote.Profit = quote.TotalSellPrice.Sub(quote.TotalCost)

	if quote.TotalSellPrice.IsZero() {
		quote.ProfitMarginPct = decimal.Zero
	} else {
		quote.ProfitMarginPct = quote.Profit.Div(quote.TotalSellPrice).Mul(oneHundred).Round(currencyScale)
	}

	return quote, nil
}
