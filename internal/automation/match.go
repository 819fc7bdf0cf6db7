package automation

import "sort"

// MatchClause is one condition->>'Key' = 'Value' test. The clauses returned
// by MatchClauses are OR'ed: a stored rule is a candidate when any holds.
type MatchClause struct {
	Key   string
	Value string
}

// comparisonExpansionEvents are the events that also surface list-count
// rules and "added to" rules.
var comparisonExpansionEvents = map[UserActionEvent]struct{}{
	EventCardMovedInto:  {},
	EventCardMovedOutOf: {},
	EventCardCopied:     {},
	EventCreatedIn:      {},
	EventCardArchived:   {},
	EventCardUnarchived: {},
}

// ExpandsComparison reports whether v triggers the comparison expansion.
func ExpandsComparison(v string) bool {
	_, ok := comparisonExpansionEvents[UserActionEvent(v)]
	return ok
}

// MatchClauses turns a probe condition into the union of clauses the rule
// store is queried with. Supplied keys come first in key order, followed by
// the expansion clauses when any supplied value is a movement-like event.
// Empty values carry no constraint and are skipped.
func MatchClauses(condition map[string]string) []MatchClause {
	keys := make([]string, 0, len(condition))
	for k := range condition {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	seen := make(map[MatchClause]struct{})
	var out []MatchClause
	add := func(c MatchClause) {
		if _, dup := seen[c]; dup {
			return
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}

	expand := false
	for _, k := range keys {
		v := condition[k]
		if v == "" {
			continue
		}
		add(MatchClause{Key: k, Value: v})
		if ExpandsComparison(v) {
			expand = true
		}
	}
	if expand {
		for _, op := range NumberComparisonOptions {
			add(MatchClause{Key: string(SelectionNumberComparison), Value: op})
		}
		add(MatchClause{Key: string(SelectionAction), Value: string(EventCardAddedTo)})
	}
	return out
}
