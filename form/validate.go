package form

import (
	"strings"

	"github.com/mbolis/field-survey/model"
)

// Answered reports whether v counts as an answer to q. present is false when
// the draft has no key for q.
func Answered(q model.Question, v model.Answer, present bool) bool {
	if !present || v == nil {
		return false
	}

	switch q.Type {
	case model.TypeText, model.TypeSingleSelect,
		model.TypeDate, model.TypeTime, model.TypeDateTime:
		s, ok := v.(model.TextValue)
		return ok && strings.TrimSpace(string(s)) != ""

	case model.TypeGeolocation:
		g, ok := v.(model.GeoValue)
		return ok && g.Latitude != nil && g.Longitude != nil

	case model.TypePhoto, model.TypeFile:
		switch b := v.(type) {
		case model.TextValue:
			return b != ""
		case model.BinaryValue:
			return b.Payload != "" || b.Name != ""
		}
		return false

	default:
		s, ok := v.(model.TextValue)
		return !ok || s != ""
	}
}

// MissingRequired lists required questions without an answer, in section
// then question order.
func MissingRequired(t *model.Template, answers model.Answers) []string {
	var missing []string
	for _, q := range t.Questions() {
		if !q.Required {
			continue
		}
		v, ok := answers[q.ID]
		if !Answered(q, v, ok) {
			missing = append(missing, q.ID)
		}
	}
	return missing
}
