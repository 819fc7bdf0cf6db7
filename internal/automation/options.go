package automation

// Subject options fill the by / by* slots.
const (
	SubjectByMe             = "by-me"
	SubjectByAnyone         = "by-anyone"
	SubjectByAnyoneExceptMe = "by-anyone-except-me"
)

// Number comparison operators fill the number-comparison* slot.
const (
	NumberExactly   = "exactly"
	NumberFewerThan = "fewer-than"
	NumberMoreThan  = "more-than"
)

// Positions fill the position* slot.
const (
	PositionTop    = "top"
	PositionBottom = "bottom"
)

// Set options fill the set* slot.
const (
	SetAddedTo     = "added-to"
	SetRemovedFrom = "removed-from"
)

// Date comparison operators and ranges used by due/start date filters.
const (
	DateIsDue       = "is-due"
	DateIsOverdue   = "is-overdue"
	DateIsDueWithin = "is-due-within"

	DateRangeToday     = "today"
	DateRangeThisWeek  = "this-week"
	DateRangeNextWeek  = "next-week"
	DateRangeThisMonth = "this-month"
)

// Checklist condition operators.
const (
	ChecklistCompleted  = "completed"
	ChecklistIncomplete = "incomplete"
	ChecklistAdded      = "added"
	ChecklistRemoved    = "removed"
)

// Action verbs fill the action* slot of action templates.
const (
	VerbMove      = "move"
	VerbCopy      = "copy"
	VerbArchive   = "archive"
	VerbUnarchive = "unarchive"
	VerbAdd       = "add"
	VerbRemove    = "remove"
)

var (
	SubjectOptions          = []string{SubjectByMe, SubjectByAnyone, SubjectByAnyoneExceptMe}
	NumberComparisonOptions = []string{NumberExactly, NumberFewerThan, NumberMoreThan}
	PositionOptions         = []string{PositionTop, PositionBottom}
	SetOptions              = []string{SetAddedTo, SetRemovedFrom}
	DateComparisonOptions   = []string{DateIsDue, DateIsOverdue, DateIsDueWithin}
	DateRangeOptions        = []string{DateRangeToday, DateRangeThisWeek, DateRangeNextWeek, DateRangeThisMonth}
	ChecklistOptions        = []string{ChecklistCompleted, ChecklistIncomplete, ChecklistAdded, ChecklistRemoved}
)

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
