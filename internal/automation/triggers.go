package automation

import "sort"

// TriggerType names a trigger pattern a rule implements.
type TriggerType string

const (
	WhenACardActionOverBoard   TriggerType = "when_a_card_action_over_board"
	WhenACardActionOverList    TriggerType = "when_a_card_action_over_list"
	WhenACardIsArchived        TriggerType = "when_a_card_is_archived"
	WhenACardIsCopied          TriggerType = "when_a_card_is_copied"
	WhenListHasNumberOfCards   TriggerType = "when_list_has_number_of_cards"
	WhenACustomFieldIsChanged  TriggerType = "when_a_custom_field_is_changed"
	WhenALabelIsSet            TriggerType = "when_a_label_is_set"
	WhenAMemberIsSet           TriggerType = "when_a_member_is_set"
	WhenADateIsAdded           TriggerType = "when_a_date_is_added"
	WhenACommentIsPosted       TriggerType = "when_a_comment_is_posted"
	WhenAnAttachmentIsAdded    TriggerType = "when_an_attachment_is_added"
	WhenACardIsCreatedOrEdited TriggerType = "when_a_card_is_created_or_edited"
)

// TriggerMeta describes one trigger template.
type TriggerMeta struct {
	Type                  TriggerType                `json:"type"`
	GroupType             string                     `json:"group_type"`
	Template              string                     `json:"template"`
	ExpectedConditionKeys []SelectionType            `json:"expected_condition_key"`
	Options               map[SelectionType][]string `json:"options,omitempty"`
}

const (
	GroupCard = "card"
	GroupList = "list"
)

func trigger(t TriggerType, group, template string, options map[SelectionType][]string) TriggerMeta {
	return TriggerMeta{
		Type:                  t,
		GroupType:             group,
		Template:              template,
		ExpectedConditionKeys: mandatoryTokens(template),
		Options:               options,
	}
}

// TriggersMap is the closed set of trigger templates, keyed by type.
var TriggersMap = map[TriggerType]TriggerMeta{
	WhenACardActionOverBoard: trigger(WhenACardActionOverBoard, GroupCard,
		"when a <filter> card is <action*> the board <board> <by>",
		map[SelectionType][]string{
			SelectionAction: eventStrings(EventCardAddedTo, EventCreatedIn, EventCardEmailedInto, EventCardMovedInto, EventCardMovedOutOf),
			SelectionBy:     SubjectOptions,
		}),
	WhenACardActionOverList: trigger(WhenACardActionOverList, GroupCard,
		"when a <filter> card is <action*> list <list*> <by>",
		map[SelectionType][]string{
			SelectionAction: eventStrings(EventCardAddedTo, EventCreatedIn, EventCardMovedInto, EventCardMovedOutOf),
			SelectionBy:     SubjectOptions,
		}),
	WhenACardIsArchived: trigger(WhenACardIsArchived, GroupCard,
		"when a <filter> card is <action*> <by>",
		map[SelectionType][]string{
			SelectionAction: eventStrings(EventCardArchived, EventCardUnarchived),
			SelectionBy:     SubjectOptions,
		}),
	WhenACardIsCopied: trigger(WhenACardIsCopied, GroupCard,
		"when a <filter> card is <action*> into list <list> <by>",
		map[SelectionType][]string{
			SelectionAction: eventStrings(EventCardCopied),
			SelectionBy:     SubjectOptions,
		}),
	WhenListHasNumberOfCards: trigger(WhenListHasNumberOfCards, GroupList,
		"when the list <list*> has <number-comparison*> <number*> cards",
		map[SelectionType][]string{
			SelectionNumberComparison: NumberComparisonOptions,
		}),
	WhenACustomFieldIsChanged: trigger(WhenACustomFieldIsChanged, GroupCard,
		"when custom field <fields*> is set to <field_value*> on a <filter> card <by>",
		map[SelectionType][]string{
			SelectionBy: SubjectOptions,
		}),
	WhenALabelIsSet: trigger(WhenALabelIsSet, GroupCard,
		"when a label <fields*> is <set*> a <filter> card <by>",
		map[SelectionType][]string{
			SelectionSet: SetOptions,
			SelectionBy:  SubjectOptions,
		}),
	WhenAMemberIsSet: trigger(WhenAMemberIsSet, GroupCard,
		"when a member is <set*> a <filter> card <by>",
		map[SelectionType][]string{
			SelectionSet: SetOptions,
			SelectionBy:  SubjectOptions,
		}),
	WhenADateIsAdded: trigger(WhenADateIsAdded, GroupCard,
		"when a <action*> is added to a <filter> card <by>",
		map[SelectionType][]string{
			SelectionAction: eventStrings(EventCardStartDateAdded, EventCardDueDateAdded),
			SelectionBy:     SubjectOptions,
		}),
	WhenACommentIsPosted: trigger(WhenACommentIsPosted, GroupCard,
		"when a comment is posted to a <filter> card <by*>",
		map[SelectionType][]string{
			SelectionByRequired: SubjectOptions,
		}),
	WhenAnAttachmentIsAdded: trigger(WhenAnAttachmentIsAdded, GroupCard,
		"when an <action*> to a <filter> card <by>",
		map[SelectionType][]string{
			SelectionAction: eventStrings(EventCardAttachmentAdded, EventCardCoverAdded),
			SelectionBy:     SubjectOptions,
		}),
	WhenACardIsCreatedOrEdited: trigger(WhenACardIsCreatedOrEdited, GroupCard,
		"when a <filter> card is <action*> <by>",
		map[SelectionType][]string{
			SelectionAction: eventStrings(EventCardCreated, EventCardUpdated, EventCardRenamed),
			SelectionBy:     SubjectOptions,
		}),
}

// LookupTrigger returns the template metadata for t.
func LookupTrigger(t TriggerType) (TriggerMeta, bool) {
	meta, ok := TriggersMap[t]
	return meta, ok
}

// Triggers returns every trigger template ordered by type.
func Triggers() []TriggerMeta {
	out := make([]TriggerMeta, 0, len(TriggersMap))
	for _, m := range TriggersMap {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out
}
