package api

import (
	"net/http"
	"strconv"
	"time"

	"sms-margin/decision/analytics"
)

// ProfitSummaryResponse is the API shape of a profit summary.
type ProfitSummaryResponse struct {
	From              string               `json:"from"`
	To                string               `json:"to"`
	TotalProfit       string               `json:"total_profit"`
	TotalTransactions int64                `json:"total_transactions"`
	ProfitByType      []TypeProfitResponse `json:"profit_by_type"`
	Recommendations   []string             `json:"recommendations"`
}

// TypeProfitResponse is one per-type breakdown line.
type TypeProfitResponse struct {
	SmsType      string `json:"sms_type"`
	Profit       string `json:"profit"`
	Transactions int64  `json:"transactions"`
}

func (s *Server) handleProfitSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.jsonError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	owner, err := ownerFromRequest(r)
	if err != nil {
		s.jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	days := 30
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			s.jsonError(w, http.StatusBadRequest, "days must be an integer")
			return
		}
		days = parsed
	}

	summary, err := s.deps.Analytics.Summarize(r.Context(), owner, days)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	s.jsonResponse(w, http.StatusOK, summaryToResponse(summary))
}

func summaryToResponse(summary *analytics.ProfitSummary) ProfitSummaryResponse {
	resp := ProfitSummaryResponse{
		From:              summary.From.Format(time.RFC3339),
		To:                summary.To.Format(time.RFC3339),
		TotalProfit:       summary.TotalProfit.StringFixed(2),
		TotalTransactions: summary.TotalTransactions,
		ProfitByType:      make([]TypeProfitResponse, 0, len(summary.ProfitByType)),
		Recommendations:   summary.Recommendations,
	}
	for _, tp := range summary.ProfitByType {
		resp.ProfitByType = append(resp.ProfitByType, TypeProfitResponse{
			SmsType:      tp.SmsType,
			Profit:       tp.Profit.StringFixed(2),
			Transactions: tp.Transactions,
		})
	}
	return resp
}
