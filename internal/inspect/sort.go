package inspect

import (
	"sort"

	"github.com/steveyegge/markform/internal/form"
)

// keyedIssue carries the structural position used for ordering.
type keyedIssue struct {
	Issue
	group int
	order int
}

// Key positions an issue within doc for sorting. Refs that are not in the
// document sort last.
func Key(doc *form.Document, is Issue) (group, order int) {
	if gi, ok := doc.GroupIndex(is.Ref); ok {
		return gi, fieldOrder(doc, is.Ref)
	}
	for gi, g := range doc.Groups {
		if g.ID == is.Ref {
			return gi, -1
		}
	}
	return len(doc.Groups), 0
}

// keyed wraps issues with their document positions.
func keyed(doc *form.Document, issues []Issue) []keyedIssue {
	out := make([]keyedIssue, len(issues))
	for i, is := range issues {
		g, o := Key(doc, is)
		out[i] = keyedIssue{Issue: is, group: g, order: o}
	}
	return out
}

// sortKeyed orders by priority, then group position, then field position,
// then ref.
func sortKeyed(issues []keyedIssue) {
	sort.SliceStable(issues, func(i, j int) bool {
		a, b := issues[i], issues[j]
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		if a.group != b.group {
			return a.group < b.group
		}
		if a.order != b.order {
			return a.order < b.order
		}
		return a.Ref < b.Ref
	})
}

// Sorted returns issues in canonical order for doc.
func Sorted(doc *form.Document, issues []Issue) []Issue {
	ks := keyed(doc, issues)
	sortKeyed(ks)
	out := make([]Issue, len(ks))
	for i, k := range ks {
		out[i] = k.Issue
	}
	return out
}

func fieldOrder(doc *form.Document, id string) int {
	for i, fid := range doc.OrderIndex {
		if fid == id {
			return i
		}
	}
	return len(doc.OrderIndex)
}
