package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"sms-margin/decision/pricing"
)

// RuleResponse is the API shape of a markup rule.
type RuleResponse struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	MarkupType  string  `json:"markup_type"`
	MarkupValue string  `json:"markup_value"`
	MinVolume   *int64  `json:"min_volume,omitempty"`
	MaxVolume   *int64  `json:"max_volume,omitempty"`
	CountryCode *string `json:"country_code,omitempty"`
	SmsType     *string `json:"sms_type,omitempty"`
	Priority    int     `json:"priority"`
	IsActive    bool    `json:"is_active"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
}

func (s *Server) handleRules(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerFromRequest(r)
	if err != nil {
		s.jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	switch r.Method {
	case http.MethodGet:
		includeInactive := r.URL.Query().Get("include_inactive") == "true"
		rules, err := s.deps.Pricing.ListRules(r.Context(), owner, includeInactive)
		if err != nil {
			s.writeEngineError(w, err)
			return
		}
		out := make([]RuleResponse, 0, len(rules))
		for _, rule := range rules {
			out = append(out, ruleToResponse(rule))
		}
		s.jsonResponse(w, http.StatusOK, map[string]interface{}{"rules": out})

	case http.MethodPost:
		var in pricing.RuleInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			s.jsonError(w, http.StatusBadRequest, "malformed request body")
			return
		}
		rule, err := s.deps.Pricing.CreateRule(r.Context(), owner, in)
		if err != nil {
			s.writeEngineError(w, err)
			return
		}
		s.metrics.ruleMutations.WithLabelValues("create").Inc()
		s.jsonResponse(w, http.StatusCreated, ruleToResponse(rule))

	default:
		s.jsonError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleRuleByID(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerFromRequest(r)
	if err != nil {
		s.jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	rawID := strings.TrimPrefix(r.URL.Path, "/api/v1/rules/")
	id, err := uuid.Parse(rawID)
	if err != nil {
		s.jsonError(w, http.StatusBadRequest, "invalid rule id")
		return
	}

	switch r.Method {
	case http.MethodGet:
		rule, err := s.deps.Pricing.GetRule(r.Context(), owner, id)
		if err != nil {
			s.writeEngineError(w, err)
			return
		}
		s.jsonResponse(w, http.StatusOK, ruleToResponse(rule))

	case http.MethodPut:
		var patch pricing.RulePatch
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			s.jsonError(w, http.StatusBadRequest, "malformed request body")
			return
		}
		rule, err := s.deps.Pricing.UpdateRule(r.Context(), owner, id, patch)
		if err != nil {
			s.writeEngineError(w, err)
			return
		}
		s.metrics.ruleMutations.WithLabelValues("update").Inc()
		s.jsonResponse(w, http.StatusOK, ruleToResponse(rule))

	case http.MethodDelete:
		if err := s.deps.Pricing.DeleteRule(r.Context(), owner, id); err != nil {
			s.writeEngineError(w, err)
			return
		}
		s.metrics.ruleMutations.WithLabelValues("delete").Inc()
		w.WriteHeader(http.StatusNoContent)

	default:
		s.jsonError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func ruleToResponse(rule *pricing.MarkupRule) RuleResponse {
	resp := RuleResponse{
		ID:          rule.ID.String(),
		Name:        rule.Name,
		MarkupType:  string(rule.Markup.Type),
		MarkupValue: rule.Markup.Value.String(),
		MinVolume:   rule.MinVolume,
		MaxVolume:   rule.MaxVolume,
		CountryCode: rule.CountryCode,
		Priority:    rule.Priority,
		IsActive:    rule.IsActive,
		CreatedAt:   rule.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:   rule.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if rule.SmsType != nil {
		st := string(*rule.SmsType)
		resp.SmsType = &st
	}
	return resp
}
