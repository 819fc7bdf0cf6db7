// Package automation holds the static vocabulary of the board automation
// engine: user action events, selection tokens, trigger and action
// templates, option enumerations and the typed condition variants.
package automation

// UserActionEvent is an action a user (or automation) performed on a card.
type UserActionEvent string

const (
	EventCardCreated            UserActionEvent = "card.created"
	EventCardUpdated            UserActionEvent = "card.updated"
	EventCardRenamed            UserActionEvent = "card.renamed"
	EventCardMovedInto          UserActionEvent = "card.moved.into"
	EventCardMovedOutOf         UserActionEvent = "card.moved.out.of"
	EventCardCopied             UserActionEvent = "card.copied"
	EventCardArchived           UserActionEvent = "card.archived"
	EventCardUnarchived         UserActionEvent = "card.unarchived"
	EventCardLabelAdded         UserActionEvent = "card.label.added"
	EventCardLabelRemoved       UserActionEvent = "card.label.removed"
	EventCardMemberAdded        UserActionEvent = "card.member.added"
	EventCardCoverAdded         UserActionEvent = "card.cover.added"
	EventCardAttachmentAdded    UserActionEvent = "card.attachment.added"
	EventCardCustomFieldChanged UserActionEvent = "card.custom_field.changed"
	EventCardCommentAdded       UserActionEvent = "card.comment.added"
	EventCardStartDateAdded     UserActionEvent = "card.start_date.added"
	EventCardDueDateAdded       UserActionEvent = "card.due_date.added"

	// board / list level
	EventCardAddedTo     UserActionEvent = "card.added.to"
	EventCreatedIn       UserActionEvent = "card.created.in"
	EventCardEmailedInto UserActionEvent = "card.emailed.into"
)

var allEvents = []UserActionEvent{
	EventCardCreated, EventCardUpdated, EventCardRenamed,
	EventCardMovedInto, EventCardMovedOutOf, EventCardCopied,
	EventCardArchived, EventCardUnarchived,
	EventCardLabelAdded, EventCardLabelRemoved, EventCardMemberAdded, EventCardCoverAdded,
	EventCardAttachmentAdded, EventCardCustomFieldChanged, EventCardCommentAdded,
	EventCardStartDateAdded, EventCardDueDateAdded,
	EventCardAddedTo, EventCreatedIn, EventCardEmailedInto,
}

// Events returns every known user action event.
func Events() []UserActionEvent {
	out := make([]UserActionEvent, len(allEvents))
	copy(out, allEvents)
	return out
}

func IsKnownEvent(v string) bool {
	for _, e := range allEvents {
		if string(e) == v {
			return true
		}
	}
	return false
}

func eventStrings(events ...UserActionEvent) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = string(e)
	}
	return out
}
