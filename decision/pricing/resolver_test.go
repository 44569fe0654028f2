package pricing

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ruleOpt func(*MarkupRule)

func withCountry(cc string) ruleOpt {
	return func(r *MarkupRule) { r.CountryCode = &cc }
}

func withSmsType(st SmsType) ruleOpt {
	return func(r *MarkupRule) { r.SmsType = &st }
}

func withVolumeRange(min, max int64) ruleOpt {
	return func(r *MarkupRule) { r.MinVolume = &min; r.MaxVolume = &max }
}

func withMinVolume(min int64) ruleOpt {
	return func(r *MarkupRule) { r.MinVolume = &min }
}

func withPriority(p int) ruleOpt {
	return func(r *MarkupRule) { r.Priority = p }
}

func withCreatedAt(ts time.Time) ruleOpt {
	return func(r *MarkupRule) { r.CreatedAt = ts }
}

func withID(id uuid.UUID) ruleOpt {
	return func(r *MarkupRule) { r.ID = id }
}

func inactive() ruleOpt {
	return func(r *MarkupRule) { r.IsActive = false }
}

func testRule(name string, opts ...ruleOpt) *MarkupRule {
	r := &MarkupRule{
		ID:        uuid.New(),
		Name:      name,
		Markup:    Markup{Type: MarkupPercentage, Value: decimal.NewFromInt(10)},
		IsActive:  true,
		CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func req(volume int64, country, smsType string) PricingRequest {
	return PricingRequest{
		OwnerID:     uuid.New(),
		Volume:      volume,
		CountryCode: country,
		SmsType:     smsType,
		BaseCost:    decimal.NewFromFloat(0.01),
	}
}

func TestSelect_SpecificityBeatsPriority(t *testing.T) {
	// The catch-all has the best priority, but the country-scoped rule
	// is more specific and must win.
	catchAll := testRule("catch-all", withPriority(0))
	ghana := testRule("ghana", withCountry("GH"), withPriority(99))

	got := Select([]*MarkupRule{catchAll, ghana}, req(1000, "GH", ""))
	if got == nil || got.Name != "ghana" {
		t.Fatalf("expected ghana rule, got %+v", got)
	}

	// Reversed input order must not change the outcome.
	got = Select([]*MarkupRule{ghana, catchAll}, req(1000, "GH", ""))
	if got == nil || got.Name != "ghana" {
		t.Fatalf("expected ghana rule regardless of input order, got %+v", got)
	}
}

func TestSelect_TwoConstraintsBeatOne(t *testing.T) {
	countryOnly := testRule("country", withCountry("GH"), withPriority(0))
	countryAndType := testRule("country+type",
		withCountry("GH"), withSmsType(SmsTransactional), withPriority(50))

	got := Select([]*MarkupRule{countryOnly, countryAndType}, req(100, "GH", "TRANSACTIONAL"))
	if got == nil || got.Name != "country+type" {
		t.Fatalf("expected country+type rule, got %+v", got)
	}
}

func TestSelect_VolumeBoundsAreInclusive(t *testing.T) {
	tier := testRule("tier", withVolumeRange(100, 500))
	rules := []*MarkupRule{tier}

	cases := []struct {
		volume int64
		match  bool
	}{
		{99, false},
		{100, true},
		{300, true},
		{500, true},
		{501, false},
	}

	for _, tc := range cases {
		got := Select(rules, req(tc.volume, "", ""))
		if (got != nil) != tc.match {
			t.Errorf("volume %d: expected match=%t, got %+v", tc.volume, tc.match, got)
		}
	}
}

func TestSelect_VolumeBoundCountsOnceForSpecificity(t *testing.T) {
	// A rule with both volume bounds ties with a single-bound rule on
	// specificity, so priority decides.
	bothBounds := testRule("both", withVolumeRange(1, 10000), withPriority(10))
	oneBound := testRule("one", withMinVolume(1), withPriority(5))

	got := Select([]*MarkupRule{bothBounds, oneBound}, req(50, "", ""))
	if got == nil || got.Name != "one" {
		t.Fatalf("expected priority to break the tie, got %+v", got)
	}
}

func TestSelect_PriorityThenCreatedAtThenID(t *testing.T) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	a := testRule("a", withPriority(5))
	b := testRule("b", withPriority(3))
	got := Select([]*MarkupRule{a, b}, req(10, "", ""))
	if got == nil || got.Name != "b" {
		t.Fatalf("lower priority value should win, got %+v", got)
	}

	older := testRule("older", withPriority(3), withCreatedAt(base))
	newer := testRule("newer", withPriority(3), withCreatedAt(base.Add(time.Hour)))
	got = Select([]*MarkupRule{newer, older}, req(10, "", ""))
	if got == nil || got.Name != "older" {
		t.Fatalf("older rule should win a priority tie, got %+v", got)
	}

	idLow := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	idHigh := uuid.MustParse("ffffffff-ffff-ffff-ffff-ffffffffffff")
	first := testRule("first", withPriority(3), withCreatedAt(base), withID(idLow))
	second := testRule("second", withPriority(3), withCreatedAt(base), withID(idHigh))
	got = Select([]*MarkupRule{second, first}, req(10, "", ""))
	if got == nil || got.ID != idLow {
		t.Fatalf("lexically smaller id should win the final tie, got %+v", got)
	}
}

func TestSelect_InactiveRulesAreInvisible(t *testing.T) {
	off := testRule("off", withCountry("GH"), inactive())
	fallback := testRule("fallback")

	got := Select([]*MarkupRule{off, fallback}, req(100, "GH", ""))
	if got == nil || got.Name != "fallback" {
		t.Fatalf("inactive rule must not resolve, got %+v", got)
	}

	if got := Select([]*MarkupRule{off}, req(100, "GH", "")); got != nil {
		t.Fatalf("expected nil with only an inactive rule, got %+v", got)
	}
}

func TestSelect_NoMatchReturnsNil(t *testing.T) {
	nigeria := testRule("nigeria", withCountry("NG"))
	if got := Select([]*MarkupRule{nigeria}, req(100, "GH", "")); got != nil {
		t.Fatalf("expected nil for non-matching rules, got %+v", got)
	}
	if got := Select(nil, req(100, "GH", "")); got != nil {
		t.Fatalf("expected nil for empty rule set, got %+v", got)
	}
}

func TestSelect_UnspecifiedRequestFieldsOnlyMatchUnconstrainedRules(t *testing.T) {
	// A request without a country cannot satisfy a country constraint.
	ghana := testRule("ghana", withCountry("GH"))
	catchAll := testRule("catch-all")

	got := Select([]*MarkupRule{ghana, catchAll}, req(100, "", ""))
	if got == nil || got.Name != "catch-all" {
		t.Fatalf("expected catch-all for unscoped request, got %+v", got)
	}
}

func TestResolver_LoadsActiveRulesFromStore(t *testing.T) {
	owner := uuid.New()
	store := newFakeRuleStore()
	rule := testRule("ghana", withCountry("GH"))
	rule.OwnerID = owner
	store.seed(rule)

	otherOwner := testRule("other-ghana", withCountry("GH"), withPriority(-100))
	otherOwner.OwnerID = uuid.New()
	store.seed(otherOwner)

	r := NewResolver(store)
	request := req(100, "GH", "")
	request.OwnerID = owner

	got, err := r.Resolve(context.Background(), owner, request)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || got.ID != rule.ID {
		t.Fatalf("expected the owner's rule, got %+v", got)
	}
}
