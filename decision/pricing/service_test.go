package pricing

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// fakeRuleStore is an in-memory RuleStore with the same ownership
// semantics the real store has: an id owned by someone else is
// indistinguishable from a missing id.
type fakeRuleStore struct {
	mu    sync.Mutex
	rules map[uuid.UUID]*MarkupRule
}

func newFakeRuleStore() *fakeRuleStore {
	return &fakeRuleStore{rules: make(map[uuid.UUID]*MarkupRule)}
}

func (f *fakeRuleStore) seed(rules ...*MarkupRule) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range rules {
		cp := *r
		f.rules[r.ID] = &cp
	}
}

func (f *fakeRuleStore) ListActiveRules(ctx context.Context, ownerID uuid.UUID) ([]*MarkupRule, error) {
	return f.ListRules(ctx, ownerID, false)
}

func (f *fakeRuleStore) ListRules(_ context.Context, ownerID uuid.UUID, includeInactive bool) ([]*MarkupRule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*MarkupRule
	for _, r := range f.rules {
		if r.OwnerID != ownerID {
			continue
		}
		if !r.IsActive && !includeInactive {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	return out, nil
}

func (f *fakeRuleStore) GetRule(_ context.Context, ownerID, id uuid.UUID) (*MarkupRule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rules[id]
	if !ok || r.OwnerID != ownerID {
		return nil, ErrRuleNotFound
	}
	cp := *r
	return &cp, nil
}

func (f *fakeRuleStore) CreateRule(_ context.Context, rule *MarkupRule) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *rule
	f.rules[rule.ID] = &cp
	return nil
}

func (f *fakeRuleStore) UpdateRule(_ context.Context, rule *MarkupRule) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.rules[rule.ID]
	if !ok || existing.OwnerID != rule.OwnerID {
		return ErrRuleNotFound
	}
	cp := *rule
	f.rules[rule.ID] = &cp
	return nil
}

func (f *fakeRuleStore) DeleteRule(_ context.Context, ownerID, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rules[id]
	if !ok || r.OwnerID != ownerID {
		return ErrRuleNotFound
	}
	delete(f.rules, id)
	return nil
}

func TestService_CreateRule(t *testing.T) {
	store := newFakeRuleStore()
	svc := NewService(store)
	fixed := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	owner := uuid.New()
	rule, err := svc.CreateRule(context.Background(), owner, RuleInput{
		Name:        "Ghana premium",
		MarkupType:  MarkupPercentage,
		MarkupValue: decimal.NewFromInt(25),
		CountryCode: strPtr("gh"),
		IsActive:    true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rule.ID == uuid.Nil {
		t.Error("expected a generated rule id")
	}
	if rule.OwnerID != owner {
		t.Errorf("expected owner %s, got %s", owner, rule.OwnerID)
	}
	if rule.CountryCode == nil || *rule.CountryCode != "GH" {
		t.Errorf("country code not normalized: %v", rule.CountryCode)
	}
	if !rule.CreatedAt.Equal(fixed) || !rule.UpdatedAt.Equal(fixed) {
		t.Errorf("timestamps not set: created=%s updated=%s", rule.CreatedAt, rule.UpdatedAt)
	}

	persisted, err := store.GetRule(context.Background(), owner, rule.ID)
	if err != nil {
		t.Fatalf("rule not persisted: %v", err)
	}
	if persisted.Name != "Ghana premium" {
		t.Errorf("persisted name mismatch: %q", persisted.Name)
	}
}

func TestService_CreateRuleRejectsInvalidInput(t *testing.T) {
	svc := NewService(newFakeRuleStore())
	_, err := svc.CreateRule(context.Background(), uuid.New(), RuleInput{
		Name:        "",
		MarkupType:  MarkupPercentage,
		MarkupValue: decimal.NewFromInt(20),
	})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestService_UpdateRuleMergesPatch(t *testing.T) {
	store := newFakeRuleStore()
	svc := NewService(store)
	owner := uuid.New()

	created, err := svc.CreateRule(context.Background(), owner, RuleInput{
		Name:        "Tiered",
		MarkupType:  MarkupPercentage,
		MarkupValue: decimal.NewFromInt(20),
		MinVolume:   int64Ptr(100),
		MaxVolume:   int64Ptr(5000),
		CountryCode: strPtr("GH"),
		IsActive:    true,
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	updated, err := svc.UpdateRule(context.Background(), owner, created.ID, RulePatch{
		MarkupValue:      decPtr("30"),
		ClearCountryCode: true,
	})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if !updated.Markup.Value.Equal(decimal.NewFromInt(30)) {
		t.Errorf("markup value not patched: %s", updated.Markup.Value)
	}
	if updated.CountryCode != nil {
		t.Errorf("country code not cleared: %v", updated.CountryCode)
	}
	// Untouched fields survive the merge.
	if updated.MinVolume == nil || *updated.MinVolume != 100 {
		t.Errorf("min volume lost in merge: %v", updated.MinVolume)
	}
	if updated.Name != "Tiered" {
		t.Errorf("name lost in merge: %q", updated.Name)
	}
}

func TestService_UpdateRuleRevalidatesMergedRule(t *testing.T) {
	store := newFakeRuleStore()
	svc := NewService(store)
	owner := uuid.New()

	created, err := svc.CreateRule(context.Background(), owner, RuleInput{
		Name:        "Tiered",
		MarkupType:  MarkupPercentage,
		MarkupValue: decimal.NewFromInt(20),
		MinVolume:   int64Ptr(100),
		MaxVolume:   int64Ptr(5000),
		IsActive:    true,
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	// Raising min above the existing max must fail as a whole.
	_, err = svc.UpdateRule(context.Background(), owner, created.ID, RulePatch{
		MinVolume: int64Ptr(9000),
	})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}

	// The stored rule is untouched after the rejected patch.
	persisted, err := store.GetRule(context.Background(), owner, created.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if *persisted.MinVolume != 100 {
		t.Errorf("rejected patch leaked into the store: min=%d", *persisted.MinVolume)
	}
}

func TestService_OwnershipIsOpaque(t *testing.T) {
	store := newFakeRuleStore()
	svc := NewService(store)
	owner := uuid.New()
	stranger := uuid.New()

	created, err := svc.CreateRule(context.Background(), owner, RuleInput{
		Name:        "Mine",
		MarkupType:  MarkupPercentage,
		MarkupValue: decimal.NewFromInt(10),
		IsActive:    true,
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if _, err := svc.GetRule(context.Background(), stranger, created.ID); !errors.Is(err, ErrRuleNotFound) {
		t.Errorf("get: expected ErrRuleNotFound for foreign owner, got %v", err)
	}
	if _, err := svc.UpdateRule(context.Background(), stranger, created.ID, RulePatch{}); !errors.Is(err, ErrRuleNotFound) {
		t.Errorf("update: expected ErrRuleNotFound for foreign owner, got %v", err)
	}
	if err := svc.DeleteRule(context.Background(), stranger, created.ID); !errors.Is(err, ErrRuleNotFound) {
		t.Errorf("delete: expected ErrRuleNotFound for foreign owner, got %v", err)
	}

	// The rightful owner still sees the rule.
	if _, err := svc.GetRule(context.Background(), owner, created.ID); err != nil {
		t.Errorf("owner lookup failed: %v", err)
	}
}

func TestService_QuoteEndToEnd(t *testing.T) {
	store := newFakeRuleStore()
	svc := NewService(store)
	owner := uuid.New()

	if _, err := svc.CreateRule(context.Background(), owner, RuleInput{
		Name:        "Ghana 20%",
		MarkupType:  MarkupPercentage,
		MarkupValue: decimal.NewFromInt(20),
		CountryCode: strPtr("GH"),
		IsActive:    true,
	}); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	quote, err := svc.Quote(context.Background(), PricingRequest{
		OwnerID:     owner,
		Volume:      1000,
		CountryCode: "gh", // lowercase on purpose, Quote normalizes
		BaseCost:    decimal.RequireFromString("0.01"),
	})
	if err != nil {
		t.Fatalf("quote failed: %v", err)
	}
	if quote.AppliedRuleID == nil {
		t.Fatal("expected the Ghana rule to apply")
	}
	if got := quote.TotalSellPrice.StringFixed(2); got != "12.00" {
		t.Errorf("total sell: expected 12.00, got %s", got)
	}
	if got := quote.Profit.StringFixed(2); got != "2.00" {
		t.Errorf("profit: expected 2.00, got %s", got)
	}
}

func TestService_QuoteWithoutRulesPassesBaseCostThrough(t *testing.T) {
	svc := NewService(newFakeRuleStore())

	quote, err := svc.Quote(context.Background(), PricingRequest{
		OwnerID:  uuid.New(),
		Volume:   100,
		BaseCost: decimal.RequireFromString("0.02"),
	})
	if err != nil {
		t.Fatalf("quote failed: %v", err)
	}
	if quote.AppliedRuleID != nil {
		t.Error("expected no rule to apply")
	}
	if !quote.Profit.IsZero() {
		t.Errorf("expected zero profit, got %s", quote.Profit)
	}
}

func TestService_QuoteValidatesRequest(t *testing.T) {
	svc := NewService(newFakeRuleStore())

	cases := []struct {
		name  string
		req   PricingRequest
		field string
	}{
		{
			"missing owner",
			PricingRequest{Volume: 100, BaseCost: decimal.NewFromFloat(0.01)},
			"owner_id",
		},
		{
			"zero volume",
			PricingRequest{OwnerID: uuid.New(), Volume: 0, BaseCost: decimal.NewFromFloat(0.01)},
			"volume",
		},
		{
			"bad country",
			PricingRequest{OwnerID: uuid.New(), Volume: 10, CountryCode: "GHA", BaseCost: decimal.NewFromFloat(0.01)},
			"country_code",
		},
		{
			"bad sms type",
			PricingRequest{OwnerID: uuid.New(), Volume: 10, SmsType: "BULK", BaseCost: decimal.NewFromFloat(0.01)},
			"sms_type",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Quote(context.Background(), tc.req)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if verr.Field != tc.field {
				t.Errorf("expected field %s, got %s", tc.field, verr.Field)
			}
		})
	}
}
