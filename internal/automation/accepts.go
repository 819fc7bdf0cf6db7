package automation

// triggerEvents lists the events each trigger type listens to when its
// template has no action* slot to say so.
var triggerEvents = map[TriggerType][]UserActionEvent{
	WhenListHasNumberOfCards: {
		EventCardMovedInto, EventCardMovedOutOf, EventCardCopied,
		EventCreatedIn, EventCardArchived, EventCardUnarchived,
	},
	WhenACustomFieldIsChanged: {EventCardCustomFieldChanged},
	WhenALabelIsSet:           {EventCardLabelAdded, EventCardLabelRemoved},
	WhenAMemberIsSet:          {EventCardMemberAdded},
	WhenACommentIsPosted:      {EventCardCommentAdded},
}

// TriggerAccepts reports whether a rule of type t can fire for ev. Triggers
// with an action* slot are decided by the condition itself; unknown types
// accept everything.
func TriggerAccepts(t TriggerType, ev UserActionEvent) bool {
	events, ok := triggerEvents[t]
	if !ok {
		return true
	}
	for _, e := range events {
		if e == ev {
			return true
		}
	}
	return false
}
