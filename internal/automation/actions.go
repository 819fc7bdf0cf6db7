package automation

import "sort"

// ActionType names the shape of an executable rule action.
type ActionType string

const (
	ActionTheCardToPositionList ActionType = "action_the_card_to_position_list"
	ActionTheCardToPosition     ActionType = "action_the_card_to_position"
	ActionTheCard               ActionType = "action_the_card"
	ActionTheLabel              ActionType = "action_the_label"
	ActionNotify                ActionType = "notify"
)

// ActionMeta describes one action template.
type ActionMeta struct {
	Type                  ActionType                 `json:"type"`
	GroupType             string                     `json:"group_type"`
	Template              string                     `json:"template"`
	ExpectedConditionKeys []SelectionType            `json:"expected_condition_key"`
	Options               map[SelectionType][]string `json:"options,omitempty"`
}

func action(t ActionType, template string, options map[SelectionType][]string) ActionMeta {
	return ActionMeta{
		Type:                  t,
		GroupType:             GroupCard,
		Template:              template,
		ExpectedConditionKeys: mandatoryTokens(template),
		Options:               options,
	}
}

// ActionsMap is the closed set of action templates, keyed by type.
var ActionsMap = map[ActionType]ActionMeta{
	ActionTheCardToPositionList: action(ActionTheCardToPositionList,
		"<action*> the card to <position*> <list*>",
		map[SelectionType][]string{
			SelectionAction:   {VerbMove, VerbCopy},
			SelectionPosition: PositionOptions,
		}),
	ActionTheCardToPosition: action(ActionTheCardToPosition,
		"<action*> the card to <position*>",
		map[SelectionType][]string{
			SelectionAction:   {VerbMove},
			SelectionPosition: PositionOptions,
		}),
	ActionTheCard: action(ActionTheCard,
		"<action*> the card",
		map[SelectionType][]string{
			SelectionAction: {VerbArchive, VerbUnarchive},
		}),
	ActionTheLabel: action(ActionTheLabel,
		"<action*> the label <field_value*>",
		map[SelectionType][]string{
			SelectionAction: {VerbAdd, VerbRemove},
		}),
	ActionNotify: action(ActionNotify,
		"notify the board with <field_value*>",
		nil),
}

// LookupAction returns the template metadata for t.
func LookupAction(t ActionType) (ActionMeta, bool) {
	meta, ok := ActionsMap[t]
	return meta, ok
}

// Actions returns every action template ordered by type.
func Actions() []ActionMeta {
	out := make([]ActionMeta, 0, len(ActionsMap))
	for _, m := range ActionsMap {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out
}
