package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"sms-margin/decision/pricing"
)

// QuoteRequest is the API request for a pricing quote. BaseCost is
// optional; when absent the server defaults it from the wholesale rate
// source for the destination country. Test quotes are computed
// identically to live ones but are never recorded.
type QuoteRequest struct {
	Volume      int64            `json:"volume"`
	CountryCode string           `json:"country_code,omitempty"`
	SmsType     string           `json:"sms_type,omitempty"`
	BaseCost    *decimal.Decimal `json:"base_cost,omitempty"`
	Test        bool             `json:"test,omitempty"`
}

// QuoteResponse is the API response for a pricing quote. Totals are
// formatted at currency precision; the unit price keeps its full
// decimal form.
type QuoteResponse struct {
	BaseCostPerUnit string  `json:"base_cost_per_unit"`
	AppliedRuleID   *string `json:"applied_rule_id"`
	MarkupType      *string `json:"markup_type"`
	UnitSellPrice   string  `json:"unit_sell_price"`
	TotalSellPrice  string  `json:"total_sell_price"`
	TotalCost       string  `json:"total_cost"`
	Profit          string  `json:"profit"`
	ProfitMarginPct string  `json:"profit_margin_pct"`
	Clamped         bool    `json:"clamped,omitempty"`
	Recorded        bool    `json:"recorded"`
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.jsonError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	start := time.Now()

	owner, err := ownerFromRequest(r)
	if err != nil {
		s.jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req QuoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.jsonError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	baseCost := decimal.Zero
	if req.BaseCost != nil {
		baseCost = *req.BaseCost
	} else {
		rate, err := s.deps.Rates.UnitCost(r.Context(), req.CountryCode)
		if err != nil {
			s.deps.Logger.Error().Err(err).Str("country", req.CountryCode).Msg("failed to default base cost")
			s.metrics.observeQuote(outcomeError, start)
			s.jsonError(w, http.StatusServiceUnavailable, "wholesale rate unavailable")
			return
		}
		baseCost = rate
	}

	quote, err := s.deps.Pricing.Quote(r.Context(), pricing.PricingRequest{
		OwnerID:     owner,
		Volume:      req.Volume,
		CountryCode: req.CountryCode,
		SmsType:     req.SmsType,
		BaseCost:    baseCost,
	})
	if err != nil {
		s.metrics.observeQuote(outcomeRejected, start)
		s.writeEngineError(w, err)
		return
	}

	recorded := false
	if !req.Test && s.deps.Publisher != nil {
		rec := &pricing.DecisionRecord{
			ID:          uuid.New(),
			OwnerID:     owner,
			OccurredAt:  time.Now().UTC(),
			Volume:      req.Volume,
			CountryCode: strings.ToUpper(strings.TrimSpace(req.CountryCode)),
			SmsType:     strings.ToUpper(strings.TrimSpace(req.SmsType)),
			Quote:       *quote,
		}
		if err := s.deps.Publisher.Publish(r.Context(), rec); err != nil {
			s.deps.Logger.Error().Err(err).
				Str("owner_id", owner.String()).
				Msg("failed to publish pricing decision record")
		} else {
			recorded = true
		}
	}

	if quote.AppliedRuleID != nil {
		s.metrics.observeQuote(outcomeApplied, start)
	} else {
		s.metrics.observeQuote(outcomeNoMatch, start)
	}

	s.jsonResponse(w, http.StatusOK, quoteToResponse(quote, recorded))
}

func quoteToResponse(q *pricing.Quote, recorded bool) QuoteResponse {
	resp := QuoteResponse{
		BaseCostPerUnit: q.BaseCostPerUnit.String(),
		UnitSellPrice:   q.UnitSellPrice.String(),
		TotalSellPrice:  q.TotalSellPrice.StringFixed(2),
		TotalCost:       q.TotalCost.StringFixed(2),
		Profit:          q.Profit.StringFixed(2),
		ProfitMarginPct: q.ProfitMarginPct.StringFixed(2),
		Clamped:         q.Clamped,
		Recorded:        recorded,
	}
	if q.AppliedRuleID != nil {
		id := q.AppliedRuleID.String()
		resp.AppliedRuleID = &id
	}
	if q.MarkupType != nil {
		mt := string(*q.MarkupType)
		resp.MarkupType = &mt
	}
	return resp
}
