package match

import (
	"context"
	"fmt"

	"github.com/hyeonwoo/redactkit/extractor"
	"github.com/hyeonwoo/redactkit/observability"
	"github.com/hyeonwoo/redactkit/scripting"
)

// runRules executes custom JavaScript detection rules. Each rule sees the
// full fragment list as `fragments` and returns the indices it wants claimed;
// those are tagged pattern_match. A rule that errors or returns something
// unusable is logged and ignored.
func (m *Matcher) runRules(ctx context.Context, frags []extractor.Fragment, claimed []bool) []Region {
	if len(m.cfg.Rules) == 0 {
		return nil
	}

	bound := make([]map[string]interface{}, len(frags))
	for i, f := range frags {
		bound[i] = map[string]interface{}{
			"text":   f.Text,
			"page":   f.Page,
			"x":      f.X,
			"y":      f.Y,
			"width":  f.W,
			"height": f.H,
		}
	}

	var out []Region
	for ruleIdx, rule := range m.cfg.Rules {
		engine := scripting.NewEngine()
		if err := engine.Set("fragments", bound); err != nil {
			m.cfg.Logger.Warn("rule setup failed",
				observability.Int("rule", ruleIdx), observability.Error("err", err))
			continue
		}
		val, err := engine.Execute(ctx, rule)
		if err != nil {
			m.cfg.Logger.Warn("rule failed",
				observability.Int("rule", ruleIdx), observability.Error("err", err))
			continue
		}
		for _, idx := range ruleIndices(val) {
			if idx < 0 || idx >= len(frags) || claimed[idx] {
				continue
			}
			claimed[idx] = true
			out = append(out, Region{Fragment: frags[idx], Reason: ReasonPattern})
		}
	}
	return out
}

// ruleIndices coerces a rule's return value into fragment indices.
func ruleIndices(val interface{}) []int {
	items, ok := val.([]interface{})
	if !ok {
		return nil
	}
	out := make([]int, 0, len(items))
	for _, item := range items {
		switch v := item.(type) {
		case int64:
			out = append(out, int(v))
		case float64:
			out = append(out, int(v))
		default:
			// Tolerate string indices from sloppy rules.
			var n int
			if _, err := fmt.Sscanf(fmt.Sprint(v), "%d", &n); err == nil {
				out = append(out, n)
			}
		}
	}
	return out
}
