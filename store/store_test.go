package store_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/mbolis/field-survey/model"
	"github.com/mbolis/field-survey/store"
)

func openStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleTemplate() *model.Template {
	return &model.Template{
		ID:          "t1",
		Title:       "Site visit",
		Version:     1,
		Description: "Visit checklist",
		Metadata:    map[string]any{"author": "field ops"},
		Sections: []model.Section{
			{
				ID:    "s1",
				Title: "General",
				Questions: []model.Question{
					{ID: "q1", Label: "Name", Type: model.TypeText, Required: true, Placeholder: "Full name"},
					{ID: "q2", Label: "Weather", Type: model.TypeSingleSelect, Options: []string{"sun", "rain"}},
				},
			},
			{
				ID:    "s2",
				Title: "Evidence",
				Questions: []model.Question{
					{ID: "q3", Label: "Photo", Type: model.TypePhoto},
					{ID: "q4", Label: "Report", Type: model.TypeFile, Accept: ".pdf"},
					{ID: "q5", Label: "Where", Type: model.TypeGeolocation, Required: true},
					{ID: "q6", Label: "When", Type: model.TypeDate, Min: "2024-01-01", Max: "2030-12-31", Step: "1"},
				},
			},
		},
	}
}

func TestPutGetTemplateRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	want := sampleTemplate()
	require.NoError(t, s.PutTemplate(ctx, want))

	got, err := s.GetTemplate(ctx, "t1")
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("template mismatch (-want +got):\n%s", diff)
	}
}

func TestGetTemplateMissing(t *testing.T) {
	s := openStore(t)

	_, err := s.GetTemplate(context.Background(), "nope")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestPutTemplateReplacesWholesale(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	require.NoError(t, s.PutTemplate(ctx, sampleTemplate()))

	replacement := &model.Template{
		ID:      "t1",
		Title:   "Updated",
		Version: 2,
		Sections: []model.Section{
			{ID: "s9", Title: "Only", Questions: []model.Question{{ID: "q9", Label: "Note", Type: model.TypeText}}},
		},
	}
	require.NoError(t, s.PutTemplate(ctx, replacement))

	got, err := s.GetTemplate(ctx, "t1")
	require.NoError(t, err)
	if diff := cmp.Diff(replacement, got); diff != "" {
		t.Fatalf("template mismatch (-want +got):\n%s", diff)
	}

	all, err := s.ListTemplates(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func TestInstanceLifecycle(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	created := time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)
	id, err := s.AddInstance(ctx, model.Instance{SurveyID: "t1", CreatedAt: created})
	require.NoError(t, err)
	require.NotZero(t, id)

	inst, err := s.GetInstance(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "t1", inst.SurveyID)
	require.True(t, created.Equal(inst.CreatedAt), "created at %s", inst.CreatedAt)
	require.Empty(t, inst.Answers)

	answers := model.Answers{
		"q1": model.TextValue("Alice"),
		"q5": model.Geo(45.1, 9.2),
		"q3": model.BinaryValue{Name: "a.png", MimeType: "image/png", Payload: "data:image/png;base64,iVBORw0KGgo="},
	}
	require.NoError(t, s.UpdateInstanceAnswers(ctx, id, answers))

	inst, err = s.GetInstance(ctx, id)
	require.NoError(t, err)
	if diff := cmp.Diff(answers, inst.Answers); diff != "" {
		t.Fatalf("answers mismatch (-want +got):\n%s", diff)
	}

	// wholesale replacement drops keys that are not in the new mapping
	require.NoError(t, s.UpdateInstanceAnswers(ctx, id, model.Answers{"q1": model.TextValue("Bob")}))
	inst, err = s.GetInstance(ctx, id)
	require.NoError(t, err)
	require.Equal(t, model.Answers{"q1": model.TextValue("Bob")}, inst.Answers)

	require.NoError(t, s.DeleteInstance(ctx, id))
	_, err = s.GetInstance(ctx, id)
	require.ErrorIs(t, err, store.ErrNotFound)
	require.ErrorIs(t, s.DeleteInstance(ctx, id), store.ErrNotFound)
	require.ErrorIs(t, s.UpdateInstanceAnswers(ctx, id, nil), store.ErrNotFound)
}

func TestInstanceIDsAreNotReused(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	first, err := s.AddInstance(ctx, model.Instance{SurveyID: "t1"})
	require.NoError(t, err)
	require.NoError(t, s.DeleteInstance(ctx, first))

	second, err := s.AddInstance(ctx, model.Instance{SurveyID: "t1"})
	require.NoError(t, err)
	require.Greater(t, second, first)
}

func TestDeleteTemplateCascades(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	require.NoError(t, s.PutTemplate(ctx, sampleTemplate()))

	other := &model.Template{ID: "t2", Title: "Other", Version: 1, Sections: []model.Section{}}
	require.NoError(t, s.PutTemplate(ctx, other))

	for i := 0; i < 3; i++ {
		_, err := s.AddInstance(ctx, model.Instance{SurveyID: "t1"})
		require.NoError(t, err)
	}
	keep, err := s.AddInstance(ctx, model.Instance{SurveyID: "t2"})
	require.NoError(t, err)

	list, err := s.ListInstancesBySurvey(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, list, 3)

	require.NoError(t, s.DeleteTemplate(ctx, "t1"))

	list, err = s.ListInstancesBySurvey(ctx, "t1")
	require.NoError(t, err)
	require.Empty(t, list)

	_, err = s.GetTemplate(ctx, "t1")
	require.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.GetInstance(ctx, keep)
	require.NoError(t, err)

	require.ErrorIs(t, s.DeleteTemplate(ctx, "t1"), store.ErrNotFound)
}

func TestDeleteTemplateRemovesOrphans(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	_, err := s.AddInstance(ctx, model.Instance{SurveyID: "ghost"})
	require.NoError(t, err)

	require.ErrorIs(t, s.DeleteTemplate(ctx, "ghost"), store.ErrNotFound)

	list, err := s.ListInstancesBySurvey(ctx, "ghost")
	require.NoError(t, err)
	require.Empty(t, list)
}
