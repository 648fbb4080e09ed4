package form_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mbolis/field-survey/form"
	"github.com/mbolis/field-survey/model"
)

func TestRegistryReusesOpenDraft(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	id := seed(t, s, censusTemplate(), nil)
	r := form.NewRegistry(s)
	t.Cleanup(r.CloseAll)

	a, err := r.Open(ctx, id)
	require.NoError(t, err)
	require.NoError(t, a.SetAnswer("q1", model.TextValue("Alice")))

	b, err := r.Open(ctx, id)
	require.NoError(t, err)
	require.Same(t, a, b)

	require.NoError(t, a.Cancel())
	_, ok := r.Get(id)
	require.False(t, ok)

	c, err := r.Open(ctx, id)
	require.NoError(t, err)
	require.NotSame(t, a, c)
	require.Empty(t, c.Draft())
}

func TestRegistryCloseSurvey(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	first := seed(t, s, censusTemplate(), nil)
	second, err := s.AddInstance(ctx, model.Instance{SurveyID: "t1"})
	require.NoError(t, err)
	other := seed(t, s, fieldTemplate(), nil)

	r := form.NewRegistry(s)
	t.Cleanup(r.CloseAll)
	var sessions []*form.Session
	for _, id := range []int64{first, second, other} {
		sess, err := r.Open(ctx, id)
		require.NoError(t, err)
		sessions = append(sessions, sess)
	}

	r.CloseSurvey("t1")
	require.True(t, sessions[0].Closed())
	require.True(t, sessions[1].Closed())
	require.False(t, sessions[2].Closed())

	_, ok := r.Get(first)
	require.False(t, ok)
	_, ok = r.Get(other)
	require.True(t, ok)
}
