package core

import (
	"context"
	"fmt"
	"sort"

	"decision-maker/internal/metrics"
)

// SubscriptionPlan maps MAIN states to the inbound channels they need.
// Default channels are bound in every state.
type SubscriptionPlan struct {
	Default []string
	ByState map[string][]string
}

// Required returns the sorted, de-duplicated channel set for main.
func (p SubscriptionPlan) Required(main string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, list := range [][]string{p.Default, p.ByState[main]} {
		for _, ch := range list {
			if !seen[ch] {
				seen[ch] = true
				out = append(out, ch)
			}
		}
	}
	sort.Strings(out)
	return out
}

// diffTopics returns the channels to add and remove to go from bound to
// required. Both inputs must be sorted.
func diffTopics(bound, required []string) (add, remove []string) {
	i, j := 0, 0
	for i < len(bound) && j < len(required) {
		switch {
		case bound[i] == required[j]:
			i++
			j++
		case bound[i] < required[j]:
			remove = append(remove, bound[i])
			i++
		default:
			add = append(add, required[j])
			j++
		}
	}
	remove = append(remove, bound[i:]...)
	add = append(add, required[j:]...)
	return add, remove
}

// resubscribe rewires inbound bindings for main. The transport is only
// called when the channel set actually changes. On failure the previous
// binding is kept so the next cycle retries.
func (n *DecisionNode) resubscribe(ctx context.Context, main string) error {
	required := n.plan.Required(main)
	add, remove := diffTopics(n.bound, required)

	if len(add) > 0 || len(remove) > 0 {
		n.logger.Infof("Rebinding inbound channels for %s: +%v -%v", main, add, remove)
		if err := n.transport.Rebind(ctx, add, remove); err != nil {
			metrics.IncResubscriptionFailure()
			n.logger.Errorf("Failed to rebind inbound channels for %s: %v", main, err)
			n.raiseFault(ctx, FaultResubscription, fmt.Sprintf("rebind for %s failed: %v", main, err))
			return fmt.Errorf("%w for %s: %w", ErrResubscription, main, err)
		}
	}

	n.bound = required
	n.boundMain = main
	n.clearFault(ctx, FaultResubscription)
	return nil
}
