package form_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mbolis/field-survey/form"
	"github.com/mbolis/field-survey/model"
)

func TestAnswered(t *testing.T) {
	q := func(typ model.QuestionType) model.Question {
		return model.Question{ID: "q", Type: typ, Required: true}
	}

	cases := []struct {
		name string
		q    model.Question
		v    model.Answer
		want bool
	}{
		{"text", q(model.TypeText), model.TextValue("x"), true},
		{"blank text", q(model.TypeText), model.TextValue(" \t"), false},
		{"text with geo", q(model.TypeText), model.Geo(1, 2), false},
		{"select", q(model.TypeSingleSelect), model.TextValue("north"), true},
		{"empty select", q(model.TypeSingleSelect), model.TextValue(""), false},
		{"date", q(model.TypeDate), model.TextValue("2024-01-02"), true},
		{"datetime blank", q(model.TypeDateTime), model.TextValue("  "), false},
		{"geo", q(model.TypeGeolocation), model.Geo(0, 0), true},
		{"geo missing longitude", q(model.TypeGeolocation), model.GeoValue{Latitude: ptr(1)}, false},
		{"geo as text", q(model.TypeGeolocation), model.TextValue("1,2"), false},
		{"photo payload", q(model.TypePhoto), model.BinaryValue{Payload: "data:,x"}, true},
		{"photo name only", q(model.TypePhoto), model.BinaryValue{Name: "a.jpg"}, true},
		{"photo empty", q(model.TypePhoto), model.BinaryValue{MimeType: "image/jpeg"}, false},
		{"file as text", q(model.TypeFile), model.TextValue("ref-42"), true},
		{"file empty text", q(model.TypeFile), model.TextValue(""), false},
		{"unknown type", q("signature"), model.TextValue("x"), true},
		{"unknown type empty", q("signature"), model.TextValue(""), false},
		{"null", q(model.TypeText), nil, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, form.Answered(tc.q, tc.v, true))
		})
	}

	require.False(t, form.Answered(q(model.TypeText), model.TextValue("x"), false))
}

func TestMissingRequired(t *testing.T) {
	tpl := fieldTemplate()

	require.Equal(t, []string{"site", "when", "photo", "where"}, form.MissingRequired(tpl, nil))

	all := model.Answers{
		"site":  model.TextValue("north"),
		"when":  model.TextValue("2024-01-02"),
		"photo": model.BinaryValue{Name: "p.jpg"},
		"where": model.Geo(1, 2),
	}
	require.Empty(t, form.MissingRequired(tpl, all))
}
