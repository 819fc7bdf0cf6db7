package automation

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ValidateCondition checks that cond carries every key the trigger template
// declares as mandatory and that slot values come from the closed option sets.
func ValidateCondition(t TriggerType, cond map[string]string) error {
	meta, ok := LookupTrigger(t)
	if !ok {
		return fmt.Errorf("unknown trigger type: %s", t)
	}
	return validateSlots("trigger", string(t), meta.ExpectedConditionKeys, meta.Options, cond)
}

// ValidateActionCondition is ValidateCondition for action templates.
func ValidateActionCondition(t ActionType, cond map[string]string) error {
	meta, ok := LookupAction(t)
	if !ok {
		return fmt.Errorf("unknown action type: %s", t)
	}
	return validateSlots("action", string(t), meta.ExpectedConditionKeys, meta.Options, cond)
}

func validateSlots(kind, name string, expected []SelectionType, options map[SelectionType][]string, cond map[string]string) error {
	var problems []string
	for _, key := range expected {
		if strings.TrimSpace(cond[string(key)]) == "" {
			problems = append(problems, fmt.Sprintf("missing %s", key))
		}
	}

	keys := make([]string, 0, len(options))
	for k := range options {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	for _, key := range keys {
		v, ok := cond[key]
		if !ok || v == "" {
			continue
		}
		if allowed := options[SelectionType(key)]; !contains(allowed, v) {
			problems = append(problems, fmt.Sprintf("invalid value %q for %s", v, key))
		}
	}

	if v, ok := cond[string(SelectionNumber)]; ok && v != "" {
		if n, err := strconv.Atoi(v); err != nil || n < 0 {
			problems = append(problems, fmt.Sprintf("invalid value %q for %s", v, SelectionNumber))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%s %s: %s", kind, name, strings.Join(problems, "; "))
	}
	return nil
}
