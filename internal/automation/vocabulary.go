package automation

// VocabularySet is the serialisable view of every template and option list,
// served to rule editors.
type VocabularySet struct {
	Events   []UserActionEvent   `json:"events"`
	Triggers []TriggerMeta       `json:"triggers"`
	Actions  []ActionMeta        `json:"actions"`
	Options  map[string][]string `json:"options"`
}

func Vocabulary() VocabularySet {
	return VocabularySet{
		Events:   Events(),
		Triggers: Triggers(),
		Actions:  Actions(),
		Options: map[string][]string{
			"subject":           SubjectOptions,
			"number_comparison": NumberComparisonOptions,
			"position":          PositionOptions,
			"set":               SetOptions,
			"date_comparison":   DateComparisonOptions,
			"date_range":        DateRangeOptions,
			"checklist":         ChecklistOptions,
		},
	}
}
