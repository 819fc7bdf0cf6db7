package automation

import "strconv"

// EventContext is the transient probe a card or list mutation builds before
// asking the engine which rules apply.
type EventContext struct {
	Type         UserActionEvent   `json:"type"`
	WorkspaceID  string            `json:"workspace_id"`
	ActorID      string            `json:"actor_id,omitempty"`
	BoardID      string            `json:"board_id,omitempty"`
	ListID       string            `json:"list_id,omitempty"`
	CardID       string            `json:"card_id,omitempty"`
	Position     string            `json:"position,omitempty"`
	Set          string            `json:"set,omitempty"`
	Field        string            `json:"field,omitempty"`
	NumericValue *int              `json:"numeric_value,omitempty"`
	Fields       map[string]string `json:"fields,omitempty"`
}

// Probe is the condition sent to the rule matcher for this event. Label and
// member events also probe set* and fields*, which their templates use in
// place of an action* slot.
func (e EventContext) Probe() map[string]string {
	probe := map[string]string{string(SelectionAction): string(e.Type)}
	if e.Set != "" {
		probe[string(SelectionSet)] = e.Set
	}
	if e.Field != "" {
		probe[string(SelectionFields)] = e.Field
	}
	return probe
}

// addedToFamily are the concrete events a stored "card.added.to" covers.
var addedToFamily = map[UserActionEvent]struct{}{
	EventCardAddedTo:     {},
	EventCardMovedInto:   {},
	EventCreatedIn:       {},
	EventCardCopied:      {},
	EventCardEmailedInto: {},
}

// EventImplies reports whether a stored action value is satisfied by actual.
func EventImplies(stored string, actual UserActionEvent) bool {
	if stored == string(actual) {
		return true
	}
	if UserActionEvent(stored) == EventCardAddedTo {
		_, ok := addedToFamily[actual]
		return ok
	}
	return false
}

// ConditionHolds evaluates a stored condition (rule or filter row) against
// ev with strict AND semantics. ownerID is the member who configured the
// rule and anchors the by-me / by-anyone-except-me subjects; when it is
// unknown the subject slot is not enforced. Unknown keys never fail.
func ConditionHolds(cond map[string]string, ownerID string, ev EventContext) bool {
	for key, v := range cond {
		if v == "" {
			continue
		}
		switch SelectionType(key).Base() {
		case "action":
			if !EventImplies(v, ev.Type) {
				return false
			}
		case "by":
			if !subjectHolds(v, ownerID, ev.ActorID) {
				return false
			}
		case "list":
			if v != ev.ListID {
				return false
			}
		case "board":
			if v != ev.BoardID {
				return false
			}
		case "position":
			if v != ev.Position {
				return false
			}
		case "set":
			if v != ev.Set {
				return false
			}
		case "number-comparison":
			if !numberHolds(v, cond[string(SelectionNumber)], ev.NumericValue) {
				return false
			}
		case "fields":
			if _, ok := ev.Fields[v]; !ok && v != ev.Field {
				return false
			}
		case "field_value":
			if !fieldValueHolds(v, cond[string(SelectionFields)], ev.Fields) {
				return false
			}
		}
	}
	return true
}

func subjectHolds(subject, ownerID, actorID string) bool {
	if ownerID == "" {
		return true
	}
	switch subject {
	case SubjectByMe:
		return actorID == ownerID
	case SubjectByAnyoneExceptMe:
		return actorID != ownerID
	default:
		return true
	}
}

func numberHolds(op, want string, got *int) bool {
	if got == nil {
		return false
	}
	n, err := strconv.Atoi(want)
	if err != nil {
		return false
	}
	switch op {
	case NumberExactly:
		return *got == n
	case NumberFewerThan:
		return *got < n
	case NumberMoreThan:
		return *got > n
	}
	return false
}

func fieldValueHolds(value, field string, fields map[string]string) bool {
	if field != "" {
		got, ok := fields[field]
		return ok && got == value
	}
	for _, got := range fields {
		if got == value {
			return true
		}
	}
	return false
}
