package form

import (
	"fmt"
	"html"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"

	"github.com/mbolis/field-survey/model"
)

type Widget string

const (
	WidgetTextarea    Widget = "textarea"
	WidgetSelect      Widget = "select"
	WidgetDate        Widget = "date"
	WidgetTime        Widget = "time"
	WidgetDateTime    Widget = "datetime-local"
	WidgetCamera      Widget = "camera"
	WidgetFile        Widget = "file"
	WidgetLocation    Widget = "location"
	WidgetUnsupported Widget = "unsupported"
)

type FieldView struct {
	ID       string             `json:"id"`
	Label    string             `json:"label"`
	Type     model.QuestionType `json:"type"`
	Widget   Widget             `json:"widget"`
	Required bool               `json:"required"`

	Options []string `json:"options,omitempty"`
	Accept  string   `json:"accept,omitempty"`
	Capture string   `json:"capture,omitempty"`

	Placeholder string `json:"placeholder,omitempty"`
	Min         string `json:"min,omitempty"`
	Max         string `json:"max,omitempty"`
	Step        string `json:"step,omitempty"`

	Value   model.Answer `json:"value,omitempty"`
	Display string       `json:"display,omitempty"`

	Invalid bool `json:"invalid,omitempty"`
	Focused bool `json:"focused,omitempty"`
}

type SectionView struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	Fields      []FieldView `json:"fields"`
}

type View struct {
	InstanceID  int64         `json:"instanceId"`
	SurveyID    string        `json:"surveyId"`
	Title       string        `json:"title"`
	Description string        `json:"description,omitempty"`
	Sections    []SectionView `json:"sections"`

	State   State    `json:"state"`
	Banner  string   `json:"banner,omitempty"`
	Status  string   `json:"status,omitempty"`
	Invalid []string `json:"invalid,omitempty"`
	Focus   string   `json:"focus,omitempty"`
}

var (
	textPolicyOnce sync.Once
	textPolicy     *bluemonday.Policy
)

// plain strips any markup from template text.
func plain(raw string) string {
	textPolicyOnce.Do(func() {
		textPolicy = bluemonday.StrictPolicy()
	})
	return strings.TrimSpace(html.UnescapeString(textPolicy.Sanitize(raw)))
}

// Render lays the template out against the current draft, in section then
// question order.
func (s *Session) Render() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.template
	v := View{
		InstanceID:  s.instance.InstanceID,
		SurveyID:    t.ID,
		Title:       plain(t.Title),
		Description: plain(t.Description),
		Sections:    make([]SectionView, 0, len(t.Sections)),
		State:       s.state,
		Banner:      s.banner,
		Status:      s.status,
		Invalid:     s.invalidLocked(),
		Focus:       s.focus,
	}
	for _, sec := range t.Sections {
		sv := SectionView{
			ID:          sec.ID,
			Title:       plain(sec.Title),
			Description: plain(sec.Description),
			Fields:      make([]FieldView, 0, len(sec.Questions)),
		}
		for _, q := range sec.Questions {
			sv.Fields = append(sv.Fields, s.fieldLocked(q))
		}
		v.Sections = append(v.Sections, sv)
	}
	return v
}

func (s *Session) fieldLocked(q model.Question) FieldView {
	f := FieldView{
		ID:       q.ID,
		Label:    plain(q.Label),
		Type:     q.Type,
		Widget:   widgetFor(q.Type),
		Required: q.Required,
		Invalid:  s.invalid[q.ID],
		Focused:  s.focus == q.ID,
	}

	switch f.Widget {
	case WidgetSelect:
		f.Options = make([]string, len(q.Options))
		for i, o := range q.Options {
			f.Options[i] = plain(o)
		}
	case WidgetDate, WidgetTime, WidgetDateTime:
		f.Placeholder, f.Min, f.Max, f.Step = q.Placeholder, q.Min, q.Max, q.Step
	case WidgetCamera:
		f.Accept = "image/*"
		f.Capture = "environment"
	case WidgetFile:
		f.Accept = q.Accept
	}

	if ans, ok := s.draft[q.ID]; ok && ans != nil {
		f.Value = ans
		f.Display = display(ans)
	}
	return f
}

func widgetFor(t model.QuestionType) Widget {
	switch t {
	case model.TypeText:
		return WidgetTextarea
	case model.TypeSingleSelect:
		return WidgetSelect
	case model.TypeDate:
		return WidgetDate
	case model.TypeTime:
		return WidgetTime
	case model.TypeDateTime:
		return WidgetDateTime
	case model.TypePhoto:
		return WidgetCamera
	case model.TypeFile:
		return WidgetFile
	case model.TypeGeolocation:
		return WidgetLocation
	default:
		return WidgetUnsupported
	}
}

func display(a model.Answer) string {
	switch v := a.(type) {
	case model.TextValue:
		return string(v)
	case model.GeoValue:
		if v.Latitude == nil || v.Longitude == nil {
			return ""
		}
		return fmt.Sprintf("Lat: %g, Lon: %g", *v.Latitude, *v.Longitude)
	case model.BinaryValue:
		return v.Name
	}
	return ""
}
