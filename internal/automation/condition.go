package automation

import (
	"fmt"
	"strconv"
	"strings"
)

// Condition is the typed form of a rule's condition map. Each trigger type
// has its own variant; Map returns the storable key/value form.
type Condition interface {
	TriggerType() TriggerType
	Map() map[string]string
}

// Subject holds the optional slots most card triggers share.
type Subject struct {
	Filter string `json:"filter,omitempty"`
	By     string `json:"by,omitempty"`
}

func (s Subject) put(m map[string]string, byKey SelectionType) {
	set(m, SelectionFilter, s.Filter)
	set(m, byKey, s.By)
}

func set(m map[string]string, key SelectionType, v string) {
	if v != "" {
		m[string(key)] = v
	}
}

type CardActionOverBoardCondition struct {
	Action UserActionEvent
	Board  string
	Subject
}

func (CardActionOverBoardCondition) TriggerType() TriggerType { return WhenACardActionOverBoard }
func (c CardActionOverBoardCondition) Map() map[string]string {
	m := map[string]string{string(SelectionAction): string(c.Action)}
	set(m, SelectionBoard, c.Board)
	c.put(m, SelectionBy)
	return m
}

type CardActionOverListCondition struct {
	Action UserActionEvent
	List   string
	Subject
}

func (CardActionOverListCondition) TriggerType() TriggerType { return WhenACardActionOverList }
func (c CardActionOverListCondition) Map() map[string]string {
	m := map[string]string{string(SelectionAction): string(c.Action)}
	set(m, SelectionListRequired, c.List)
	c.put(m, SelectionBy)
	return m
}

type CardArchivalCondition struct {
	Action UserActionEvent
	Subject
}

func (CardArchivalCondition) TriggerType() TriggerType { return WhenACardIsArchived }
func (c CardArchivalCondition) Map() map[string]string {
	m := map[string]string{string(SelectionAction): string(c.Action)}
	c.put(m, SelectionBy)
	return m
}

type CardCopiedCondition struct {
	Action UserActionEvent
	List   string
	Subject
}

func (CardCopiedCondition) TriggerType() TriggerType { return WhenACardIsCopied }
func (c CardCopiedCondition) Map() map[string]string {
	m := map[string]string{string(SelectionAction): string(c.Action)}
	set(m, SelectionList, c.List)
	c.put(m, SelectionBy)
	return m
}

type ListCardCountCondition struct {
	List       string
	Comparison string
	Number     int
}

func (ListCardCountCondition) TriggerType() TriggerType { return WhenListHasNumberOfCards }
func (c ListCardCountCondition) Map() map[string]string {
	return map[string]string{
		string(SelectionListRequired):     c.List,
		string(SelectionNumberComparison): c.Comparison,
		string(SelectionNumber):           strconv.Itoa(c.Number),
	}
}

type CustomFieldChangedCondition struct {
	Field string
	Value string
	Subject
}

func (CustomFieldChangedCondition) TriggerType() TriggerType { return WhenACustomFieldIsChanged }
func (c CustomFieldChangedCondition) Map() map[string]string {
	m := map[string]string{
		string(SelectionFields):     c.Field,
		string(SelectionFieldValue): c.Value,
	}
	c.put(m, SelectionBy)
	return m
}

type LabelSetCondition struct {
	Label string
	Set   string
	Subject
}

func (LabelSetCondition) TriggerType() TriggerType { return WhenALabelIsSet }
func (c LabelSetCondition) Map() map[string]string {
	m := map[string]string{
		string(SelectionFields): c.Label,
		string(SelectionSet):    c.Set,
	}
	c.put(m, SelectionBy)
	return m
}

type MemberSetCondition struct {
	Set string
	Subject
}

func (MemberSetCondition) TriggerType() TriggerType { return WhenAMemberIsSet }
func (c MemberSetCondition) Map() map[string]string {
	m := map[string]string{string(SelectionSet): c.Set}
	c.put(m, SelectionBy)
	return m
}

type DateAddedCondition struct {
	Action UserActionEvent
	Subject
}

func (DateAddedCondition) TriggerType() TriggerType { return WhenADateIsAdded }
func (c DateAddedCondition) Map() map[string]string {
	m := map[string]string{string(SelectionAction): string(c.Action)}
	c.put(m, SelectionBy)
	return m
}

type CommentPostedCondition struct {
	Subject
}

func (CommentPostedCondition) TriggerType() TriggerType { return WhenACommentIsPosted }
func (c CommentPostedCondition) Map() map[string]string {
	m := map[string]string{}
	c.put(m, SelectionByRequired)
	return m
}

type AttachmentAddedCondition struct {
	Action UserActionEvent
	Subject
}

func (AttachmentAddedCondition) TriggerType() TriggerType { return WhenAnAttachmentIsAdded }
func (c AttachmentAddedCondition) Map() map[string]string {
	m := map[string]string{string(SelectionAction): string(c.Action)}
	c.put(m, SelectionBy)
	return m
}

type CardEditedCondition struct {
	Action UserActionEvent
	Subject
}

func (CardEditedCondition) TriggerType() TriggerType { return WhenACardIsCreatedOrEdited }
func (c CardEditedCondition) Map() map[string]string {
	m := map[string]string{string(SelectionAction): string(c.Action)}
	c.put(m, SelectionBy)
	return m
}

// ParseCondition validates raw against the trigger template and returns the
// typed variant for t.
func ParseCondition(t TriggerType, raw map[string]string) (Condition, error) {
	if err := ValidateCondition(t, raw); err != nil {
		return nil, err
	}
	get := func(k SelectionType) string { return raw[string(k)] }
	subj := Subject{Filter: get(SelectionFilter), By: get(SelectionBy)}
	act := UserActionEvent(get(SelectionAction))

	switch t {
	case WhenACardActionOverBoard:
		return CardActionOverBoardCondition{Action: act, Board: get(SelectionBoard), Subject: subj}, nil
	case WhenACardActionOverList:
		return CardActionOverListCondition{Action: act, List: get(SelectionListRequired), Subject: subj}, nil
	case WhenACardIsArchived:
		return CardArchivalCondition{Action: act, Subject: subj}, nil
	case WhenACardIsCopied:
		return CardCopiedCondition{Action: act, List: get(SelectionList), Subject: subj}, nil
	case WhenListHasNumberOfCards:
		n, _ := strconv.Atoi(get(SelectionNumber))
		return ListCardCountCondition{List: get(SelectionListRequired), Comparison: get(SelectionNumberComparison), Number: n}, nil
	case WhenACustomFieldIsChanged:
		return CustomFieldChangedCondition{Field: get(SelectionFields), Value: get(SelectionFieldValue), Subject: subj}, nil
	case WhenALabelIsSet:
		return LabelSetCondition{Label: get(SelectionFields), Set: get(SelectionSet), Subject: subj}, nil
	case WhenAMemberIsSet:
		return MemberSetCondition{Set: get(SelectionSet), Subject: subj}, nil
	case WhenADateIsAdded:
		return DateAddedCondition{Action: act, Subject: subj}, nil
	case WhenACommentIsPosted:
		return CommentPostedCondition{Subject: Subject{Filter: subj.Filter, By: get(SelectionByRequired)}}, nil
	case WhenAnAttachmentIsAdded:
		return AttachmentAddedCondition{Action: act, Subject: subj}, nil
	case WhenACardIsCreatedOrEdited:
		return CardEditedCondition{Action: act, Subject: subj}, nil
	}
	return nil, fmt.Errorf("unknown trigger type: %s", t)
}

// StringMap flattens a decoded JSON object into string values. JSON numbers
// are rendered without a trailing ".0".
func StringMap(in map[string]interface{}) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		switch t := v.(type) {
		case nil:
			continue
		case string:
			out[k] = t
		case float64:
			out[k] = strconv.FormatFloat(t, 'f', -1, 64)
		case bool:
			out[k] = strconv.FormatBool(t)
		default:
			out[k] = strings.TrimSpace(fmt.Sprint(t))
		}
	}
	return out
}

// AnyMap is the inverse of StringMap, used when persisting a condition.
func AnyMap(in map[string]string) map[string]interface{} {
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
