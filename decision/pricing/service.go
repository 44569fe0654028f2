package pricing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RuleStore is the persistence collaborator the engine consumes. Rules
// are strictly partitioned per owner: implementations must treat an id
// owned by someone else exactly like a missing id and return
// ErrRuleNotFound, never a forbidden-style signal.
type RuleStore interface {
	ListActiveRules(ctx context.Context, ownerID uuid.UUID) ([]*MarkupRule, error)
	ListRules(ctx context.Context, ownerID uuid.UUID, includeInactive bool) ([]*MarkupRule, error)
	GetRule(ctx context.Context, ownerID, id uuid.UUID) (*MarkupRule, error)
	CreateRule(ctx context.Context, rule *MarkupRule) error
	UpdateRule(ctx context.Context, rule *MarkupRule) error
	DeleteRule(ctx context.Context, ownerID, id uuid.UUID) error
}

// RulePatch carries a partial rule update. Nil fields are left
// unchanged; the Clear flags remove an optional scoping constraint.
type RulePatch struct {
	Name        *string          `json:"name,omitempty"`
	MarkupType  *MarkupType      `json:"markup_type,omitempty"`
	MarkupValue *decimal.Decimal `json:"markup_value,omitempty"`
	MinVolume   *int64           `json:"min_volume,omitempty"`
	MaxVolume   *int64           `json:"max_volume,omitempty"`
	CountryCode *string          `json:"country_code,omitempty"`
	SmsType     *string          `json:"sms_type,omitempty"`
	Priority    *int             `json:"priority,omitempty"`
	IsActive    *bool            `json:"is_active,omitempty"`

	ClearMinVolume   bool `json:"clear_min_volume,omitempty"`
	ClearMaxVolume   bool `json:"clear_max_volume,omitempty"`
	ClearCountryCode bool `json:"clear_country_code,omitempty"`
	ClearSmsType     bool `json:"clear_sms_type,omitempty"`
}

// Service is the pricing façade: the only entry point other subsystems
// call. It orchestrates validation, resolution and calculation for
// quotes, and validation plus store operations for rule CRUD. The
// service holds no mutable state of its own.
type Service struct {
	rules    RuleStore
	resolver *Resolver
	now      func() time.Time
}

// NewService creates the pricing façade over a rule store.
func NewService(rules RuleStore) *Service {
	return &Service{
		rules:    rules,
		resolver: NewResolver(rules),
		now:      time.Now,
	}
}

// Quote validates the request, resolves the applicable rule and prices
// the send. Live and test quotes are computed identically; whether the
// resulting quote is billed and recorded is entirely the caller's
// choice.
func (s *Service) Quote(ctx context.Context, req PricingRequest) (*Quote, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	rule, err := s.resolver.Resolve(ctx, req.OwnerID, req)
	if err != nil {
		return nil, err
	}
	return Price(req.BaseCost, req.Volume, rule)
}

// CreateRule validates and persists a new markup rule for the owner.
func (s *Service) CreateRule(ctx context.Context, ownerID uuid.UUID, in RuleInput) (*MarkupRule, error) {
	validated, err := Validate(in)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	rule := &MarkupRule{
		ID:          uuid.New(),
		OwnerID:     ownerID,
		Name:        validated.Name,
		Markup:      validated.Markup,
		MinVolume:   validated.MinVolume,
		MaxVolume:   validated.MaxVolume,
		CountryCode: validated.CountryCode,
		SmsType:     validated.SmsType,
		Priority:    validated.Priority,
		IsActive:    validated.IsActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.rules.CreateRule(ctx, rule); err != nil {
		return nil, fmt.Errorf("failed to create rule: %w", err)
	}
	return rule, nil
}

// UpdateRule applies a partial update to an owned rule. The merged
// definition is re-validated as a whole before it is persisted, so a
// patch can never leave a rule structurally invalid.
func (s *Service) UpdateRule(ctx context.Context, ownerID, id uuid.UUID, patch RulePatch) (*MarkupRule, error) {
	rule, err := s.rules.GetRule(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	in := ruleToInput(rule)
	applyPatch(&in, patch)

	validated, err := Validate(in)
	if err != nil {
		return nil, err
	}

	rule.Name = validated.Name
	rule.Markup = validated.Markup
	rule.MinVolume = validated.MinVolume
	rule.MaxVolume = validated.MaxVolume
	rule.CountryCode = validated.CountryCode
	rule.SmsType = validated.SmsType
	rule.Priority = validated.Priority
	rule.IsActive = validated.IsActive
	rule.UpdatedAt = s.now().UTC()

	if err := s.rules.UpdateRule(ctx, rule); err != nil {
		return nil, err
	}
	return rule, nil
}

// DeleteRule removes an owned rule. Ids owned by someone else fail
// with ErrRuleNotFound exactly like missing ids.
func (s *Service) DeleteRule(ctx context.Context, ownerID, id uuid.UUID) error {
	return s.rules.DeleteRule(ctx, ownerID, id)
}

// GetRule fetches a single owned rule.
func (s *Service) GetRule(ctx context.Context, ownerID, id uuid.UUID) (*MarkupRule, error) {
	return s.rules.GetRule(ctx, ownerID, id)
}

// ListRules lists the owner's rules. Inactive rules are invisible to
// resolution but remain listable here.
func (s *Service) ListRules(ctx context.Context, ownerID uuid.UUID, includeInactive bool) ([]*MarkupRule, error) {
	return s.rules.ListRules(ctx, ownerID, includeInactive)
}

func ruleToInput(r *MarkupRule) RuleInput {
	in := RuleInput{
		Name:        r.Name,
		MarkupType:  r.Markup.Type,
		MarkupValue: r.Markup.Value,
		MinVolume:   r.MinVolume,
		MaxVolume:   r.MaxVolume,
		Priority:    r.Priority,
		IsActive:    r.IsActive,
	}
	if r.CountryCode != nil {
		cc := *r.CountryCode
		in.CountryCode = &cc
	}
	if r.SmsType != nil {
		st := string(*r.SmsType)
		in.SmsType = &st
	}
	return in
}

func applyPatch(in *RuleInput, patch RulePatch) {
	if patch.Name != nil {
		in.Name = *patch.Name
	}
	if patch.MarkupType != nil {
		in.MarkupType = *patch.MarkupType
	}
	if patch.MarkupValue != nil {
		in.MarkupValue = *patch.MarkupValue
	}
	if patch.MinVolume != nil {
		in.MinVolume = patch.MinVolume
	}
	if patch.MaxVolume != nil {
		in.MaxVolume = patch.MaxVolume
	}
	if patch.CountryCode != nil {
		in.CountryCode = patch.CountryCode
	}
	if patch.SmsType != nil {
		in.SmsType = patch.SmsType
	}
	if patch.Priority != nil {
		in.Priority = *patch.Priority
	}
	if patch.IsActive != nil {
		in.IsActive = *patch.IsActive
	}
	if patch.ClearMinVolume {
		in.MinVolume = nil
	}
	if patch.ClearMaxVolume {
		in.MaxVolume = nil
	}
	if patch.ClearCountryCode {
		in.CountryCode = nil
	}
	if patch.ClearSmsType {
		in.SmsType = nil
	}
}
