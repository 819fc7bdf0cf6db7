package automation

import (
	"regexp"
	"strings"
)

// SelectionType is a slot token inside a trigger or action template.
// A trailing "*" marks the slot as mandatory.
type SelectionType string

const (
	SelectionFilter           SelectionType = "filter"
	SelectionAction           SelectionType = "action*"
	SelectionPosition         SelectionType = "position*"
	SelectionNumberComparison SelectionType = "number-comparison*"
	SelectionNumber           SelectionType = "number*"
	SelectionByRequired       SelectionType = "by*"
	SelectionBy               SelectionType = "by"
	SelectionBoardRequired    SelectionType = "board*"
	SelectionBoard            SelectionType = "board"
	SelectionListRequired     SelectionType = "list*"
	SelectionList             SelectionType = "list"
	SelectionFields           SelectionType = "fields*"
	SelectionFieldValue       SelectionType = "field_value*"
	SelectionSet              SelectionType = "set*"
)

func (s SelectionType) Mandatory() bool { return strings.HasSuffix(string(s), "*") }

// Base strips the mandatory marker, so "list*" and "list" share a base.
func (s SelectionType) Base() string { return strings.TrimSuffix(string(s), "*") }

func (s SelectionType) String() string { return string(s) }

var templateToken = regexp.MustCompile(`<([a-z_\-]+\*?)>`)

// TemplateTokens lists the selection tokens of a template in order of appearance.
func TemplateTokens(template string) []SelectionType {
	matches := templateToken.FindAllStringSubmatch(template, -1)
	out := make([]SelectionType, 0, len(matches))
	for _, m := range matches {
		out = append(out, SelectionType(m[1]))
	}
	return out
}

// mandatoryTokens returns the "*" tokens of a template; these are the
// condition keys a well-formed rule of that template must carry.
func mandatoryTokens(template string) []SelectionType {
	var out []SelectionType
	for _, tok := range TemplateTokens(template) {
		if tok.Mandatory() {
			out = append(out, tok)
		}
	}
	return out
}
