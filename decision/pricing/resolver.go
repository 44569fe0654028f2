package pricing

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// Resolver selects at most one applicable markup rule per request. It
// re-reads the owner's active rule set fresh on every call; there is
// no cached rule state inside the engine.
type Resolver struct {
	rules RuleStore
}

// NewResolver creates a resolver over the given rule store.
func NewResolver(store RuleStore) *Resolver {
	return &Resolver{rules: store}
}

// Resolve loads the owner's active rules and returns the single
// top-ranked rule matching the request, or nil when no rule applies.
// Absence of a match is a valid outcome, not an error.
func (r *Resolver) Resolve(ctx context.Context, ownerID uuid.UUID, req PricingRequest) (*MarkupRule, error) {
	rules, err := r.rules.ListActiveRules(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load active rules: %w", err)
	}
	return Select(rules, req), nil
}

// Select is the pure resolution core: it filters the given rules to
// those whose scoping constraints are all satisfied by the request,
// then ranks by specificity (more constrained wins), priority
// ascending, creation time ascending and finally id ascending. The
// ordering is total, so resolution is a deterministic function of
// (rule set, request).
//
// Specificity outranks priority so that a broad catch-all rule can
// never shadow a deliberately narrow one, however the priorities were
// configured.
func Select(rules []*MarkupRule, req PricingRequest) *MarkupRule {
	candidates := make([]*MarkupRule, 0, len(rules))
	for _, rule := range rules {
		if rule.IsActive && rule.Matches(req) {
			candidates = append(candidates, rule)
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if sa, sb := a.Specificity(), b.Specificity(); sa != sb {
			return sa > sb
		}
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID.String() < b.ID.String()
	})

	return candidates[0]
}
