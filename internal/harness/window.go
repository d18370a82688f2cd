package harness

import "github.com/steveyegge/markform/internal/inspect"

// window caps the issues exposed in one turn: distinct fields first, then
// distinct groups, then the total count. Input order is preserved.
func window(issues []inspect.Issue, cfg Config) []inspect.Issue {
	out := issues
	if cfg.MaxFieldsPerTurn > 0 {
		out = capDistinct(out, cfg.MaxFieldsPerTurn, func(is inspect.Issue) (string, bool) {
			return is.Ref, is.Scope == inspect.ScopeField
		})
	}
	if cfg.MaxGroupsPerTurn > 0 {
		out = capDistinct(out, cfg.MaxGroupsPerTurn, func(is inspect.Issue) (string, bool) {
			return is.Group, is.Group != ""
		})
	}
	if len(out) > cfg.MaxIssuesPerTurn {
		out = out[:cfg.MaxIssuesPerTurn]
	}
	return out
}

// capDistinct keeps issues whose key is among the first n distinct keys.
// Issues without a key are always kept.
func capDistinct(issues []inspect.Issue, n int, key func(inspect.Issue) (string, bool)) []inspect.Issue {
	seen := make(map[string]bool)
	out := make([]inspect.Issue, 0, len(issues))
	for _, is := range issues {
		k, ok := key(is)
		if !ok {
			out = append(out, is)
			continue
		}
		if !seen[k] {
			if len(seen) == n {
				continue
			}
			seen[k] = true
		}
		out = append(out, is)
	}
	return out
}
