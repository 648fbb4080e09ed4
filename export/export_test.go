package export_test

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"sort"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/require"
	"github.com/vincent-petithory/dataurl"

	"github.com/mbolis/field-survey/export"
	"github.com/mbolis/field-survey/model"
	"github.com/mbolis/field-survey/store"
)

func openStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "export.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func visitTemplate() *model.Template {
	return &model.Template{
		ID:      "visit",
		Title:   "  Site   Visit\tReport ",
		Version: 1,
		Sections: []model.Section{{
			ID: "s", Title: "Main",
			Questions: []model.Question{
				{ID: "name", Type: model.TypeText, Label: "Name"},
				{ID: "photo", Type: model.TypePhoto, Label: "Photo"},
				{ID: "where", Type: model.TypeGeolocation, Label: "Where"},
			},
		}},
	}
}

func dataURI(mt string, data []byte) string {
	return dataurl.New(data, mt).String()
}

// unzip returns the archive entries by name.
func unzip(t *testing.T, data []byte) map[string][]byte {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	out := map[string][]byte{}
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		b, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		out[f.Name] = b
	}
	return out
}

type manifestRecord struct {
	InstanceID int64                      `json:"instanceId"`
	CreatedAt  string                     `json:"createdAt"`
	Answers    map[string]json.RawMessage `json:"answers"`
}

func TestPackage(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	require.NoError(t, s.PutTemplate(ctx, visitTemplate()))

	jpeg := []byte{0xff, 0xd8, 0xff, 0xe0, 1, 2, 3}
	first, err := s.AddInstance(ctx, model.Instance{SurveyID: "visit", Answers: model.Answers{
		"name":  model.TextValue("Alice"),
		"photo": model.BinaryValue{Name: "front.jpg", MimeType: "image/jpeg", Payload: dataURI("image/jpeg", jpeg)},
		"where": model.Geo(45.5, 9.25),
	}})
	require.NoError(t, err)
	second, err := s.AddInstance(ctx, model.Instance{SurveyID: "visit", Answers: model.Answers{
		"name":  model.TextValue("Bob"),
		"photo": model.BinaryValue{Name: "back.jpg", MimeType: "image/jpeg", Payload: dataURI("image/jpeg", []byte("other"))},
	}})
	require.NoError(t, err)
	_, err = s.AddInstance(ctx, model.Instance{SurveyID: "visit"})
	require.NoError(t, err)

	archive, err := export.New(s).Package(ctx, "visit")
	require.NoError(t, err)
	require.Equal(t, "site-visit-report-export.zip", archive.Name)

	entries := unzip(t, archive.Data)
	var names []string
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)
	firstPhoto := export.AttachmentName(first, "photo", "front.jpg")
	secondPhoto := export.AttachmentName(second, "photo", "back.jpg")
	require.Equal(t, []string{
		"attachments/" + firstPhoto,
		"attachments/" + secondPhoto,
		"results.json",
	}, names)
	require.Equal(t, jpeg, entries["attachments/"+firstPhoto])
	require.Equal(t, []byte("other"), entries["attachments/"+secondPhoto])

	manifest := entries["results.json"]
	require.Contains(t, string(manifest), "\n  {\n    \"instanceId\"")

	var records []manifestRecord
	require.NoError(t, json.Unmarshal(manifest, &records))
	require.Len(t, records, 3)
	require.Equal(t, first, records[0].InstanceID)
	require.Equal(t, second, records[1].InstanceID)

	require.JSONEq(t, `"Alice"`, string(records[0].Answers["name"]))
	require.JSONEq(t, `{"latitude":45.5,"longitude":9.25}`, string(records[0].Answers["where"]))
	require.JSONEq(t, `{"filename":"`+firstPhoto+`"}`, string(records[0].Answers["photo"]))
	require.JSONEq(t, `{"filename":"`+secondPhoto+`"}`, string(records[1].Answers["photo"]))
	require.Empty(t, records[2].Answers)
}

func TestPackageBinaryWithoutPayloadPassesThrough(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	require.NoError(t, s.PutTemplate(ctx, visitTemplate()))
	_, err := s.AddInstance(ctx, model.Instance{SurveyID: "visit", Answers: model.Answers{
		"photo": model.BinaryValue{Name: "lost.jpg", MimeType: "image/jpeg"},
	}})
	require.NoError(t, err)

	archive, err := export.New(s).Package(ctx, "visit")
	require.NoError(t, err)

	entries := unzip(t, archive.Data)
	require.Len(t, entries, 1)

	var records []manifestRecord
	require.NoError(t, json.Unmarshal(entries["results.json"], &records))
	require.JSONEq(t, `{"name":"lost.jpg","type":"image/jpeg","data":""}`, string(records[0].Answers["photo"]))
}

func TestPackageRefusesEmptySurvey(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	require.NoError(t, s.PutTemplate(ctx, visitTemplate()))

	archive, err := export.New(s).Package(ctx, "visit")
	require.ErrorIs(t, err, export.ErrNoInstances)
	require.Nil(t, archive)

	_, err = export.New(s).Package(ctx, "missing")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestArchiveName(t *testing.T) {
	cases := map[string]string{
		"Census":              "census-export.zip",
		"Site  Visit\nReport": "site-visit-report-export.zip",
		"A/B: test?":          "ab-test-export.zip",
		"   ":                 "survey-export.zip",
	}
	for title, want := range cases {
		require.Equal(t, want, export.ArchiveName(title), "title %q", title)
	}
}

func TestAttachmentName(t *testing.T) {
	require.Equal(t, "instance-7_question-q2_scan.pdf", export.AttachmentName(7, "q2", "scan.pdf"))
	require.Equal(t, "instance-7_question-q2_.._etc_passwd", export.AttachmentName(7, "q2", "../etc/passwd"))
}
