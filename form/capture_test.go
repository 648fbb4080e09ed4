package form_test

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vincent-petithory/dataurl"

	"github.com/mbolis/field-survey/form"
	"github.com/mbolis/field-survey/model"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

func TestCaptureFileStoresDataURL(t *testing.T) {
	cases := map[string]struct {
		file     form.BytesFile
		wantType string
	}{
		"declared type":   {form.BytesFile{FileName: "site.png", Type: "image/png", Data: pngHeader}, "image/png"},
		"octet-stream":    {form.BytesFile{FileName: "site.png", Type: "application/octet-stream", Data: pngHeader}, "image/png"},
		"no type":         {form.BytesFile{FileName: "notes.txt", Data: []byte("hello field")}, "text/plain"},
		"with parameters": {form.BytesFile{FileName: "notes.txt", Type: "text/plain; charset=utf-8", Data: []byte("hi")}, "text/plain"},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			s := openStore(t)
			id := seed(t, s, fieldTemplate(), nil)
			sess := load(t, s, id)

			require.NoError(t, sess.CaptureFile(context.Background(), "photo", tc.file))

			v, ok := sess.Draft()["photo"].(model.BinaryValue)
			require.True(t, ok)
			require.Equal(t, tc.file.FileName, v.Name)
			require.Equal(t, tc.wantType, v.MimeType)

			du, err := dataurl.DecodeString(v.Payload)
			require.NoError(t, err)
			require.Equal(t, tc.file.Data, du.Data)
			require.Equal(t, tc.wantType, du.MediaType.ContentType())
		})
	}
}

func TestCaptureFileTooLarge(t *testing.T) {
	s := openStore(t)
	id := seed(t, s, fieldTemplate(), nil)
	sess := load(t, s, id, form.WithMaxPayload(4))

	err := sess.CaptureFile(context.Background(), "doc", form.BytesFile{FileName: "a.bin", Data: []byte("12345")})
	require.ErrorIs(t, err, form.ErrPayloadTooLarge)
	require.NotContains(t, sess.Draft(), "doc")

	require.NoError(t, sess.CaptureFile(context.Background(), "doc", form.BytesFile{FileName: "b.bin", Data: []byte("1234")}))
	require.Contains(t, sess.Draft(), "doc")
}

// pipeFile hands out the read end of a pipe and reports when it was opened.
type pipeFile struct {
	r      *io.PipeReader
	opened chan struct{}
}

func (p pipeFile) Name() string        { return "slow.txt" }
func (p pipeFile) ContentType() string { return "text/plain" }
func (p pipeFile) Open() (io.ReadCloser, error) {
	close(p.opened)
	return p.r, nil
}

func startSlowCapture(t *testing.T, sess *form.Session, qid string) (*io.PipeWriter, <-chan error) {
	t.Helper()
	pr, pw := io.Pipe()
	f := pipeFile{r: pr, opened: make(chan struct{})}
	done := make(chan error, 1)
	go func() {
		done <- sess.CaptureFile(context.Background(), qid, f)
	}()
	<-f.opened
	return pw, done
}

func TestCaptureSupersededByNewerAnswer(t *testing.T) {
	s := openStore(t)
	id := seed(t, s, fieldTemplate(), nil)
	sess := load(t, s, id)

	pw, done := startSlowCapture(t, sess, "doc")
	require.NoError(t, sess.SetAnswer("doc", model.TextValue("scanned later")))

	_, _ = pw.Write([]byte("late bytes"))
	_ = pw.Close()

	require.ErrorIs(t, <-done, form.ErrStaleCapture)
	require.Equal(t, model.TextValue("scanned later"), sess.Draft()["doc"])
}

func TestCaptureAfterCloseIsDropped(t *testing.T) {
	s := openStore(t)
	id := seed(t, s, fieldTemplate(), nil)
	sess := load(t, s, id)

	pw, done := startSlowCapture(t, sess, "doc")
	sess.Close()

	_, _ = pw.Write([]byte("late bytes"))
	_ = pw.Close()

	require.ErrorIs(t, <-done, form.ErrStaleCapture)
	require.NotContains(t, sess.Draft(), "doc")
}

func TestCaptureLocation(t *testing.T) {
	s := openStore(t)
	id := seed(t, s, fieldTemplate(), nil)
	sess := load(t, s, id)

	here := form.LocatorFunc(func(context.Context) (form.Position, error) {
		return form.Position{Latitude: 45.5, Longitude: 9.25}, nil
	})
	require.NoError(t, sess.CaptureLocation(context.Background(), "where", here))
	require.Equal(t, model.Geo(45.5, 9.25), sess.Draft()["where"])
	require.Empty(t, sess.Status())
}

func TestCaptureLocationFailures(t *testing.T) {
	cases := map[string]struct {
		loc    form.Locator
		reason form.GeolocationReason
		status string
	}{
		"no locator": {nil, form.GeolocationUnavailable, "Geolocation is not available on this device."},
		"denied": {form.LocatorFunc(func(context.Context) (form.Position, error) {
			return form.Position{}, &form.GeolocationError{Reason: form.GeolocationDenied}
		}), form.GeolocationDenied, "Location permission was denied."},
		"plain error": {form.LocatorFunc(func(context.Context) (form.Position, error) {
			return form.Position{}, errors.New("gps timeout")
		}), form.GeolocationUnavailable, "Geolocation is not available on this device."},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			s := openStore(t)
			id := seed(t, s, fieldTemplate(), nil)
			sess := load(t, s, id)

			err := sess.CaptureLocation(context.Background(), "where", tc.loc)
			var gerr *form.GeolocationError
			require.True(t, errors.As(err, &gerr), "got %v", err)
			require.Equal(t, tc.reason, gerr.Reason)
			require.Equal(t, tc.status, sess.Status())
			require.NotContains(t, sess.Draft(), "where")
			require.Equal(t, form.Idle, sess.State())
		})
	}
}

func TestFailedCaptureKeepsEarlierOneCurrent(t *testing.T) {
	s := openStore(t)
	id := seed(t, s, fieldTemplate(), nil)
	sess := load(t, s, id, form.WithMaxPayload(4))

	pw, done := startSlowCapture(t, sess, "doc")

	err := sess.CaptureFile(context.Background(), "doc", form.BytesFile{FileName: "big.bin", Data: []byte("12345")})
	require.ErrorIs(t, err, form.ErrPayloadTooLarge)

	_, _ = pw.Write([]byte("abc"))
	_ = pw.Close()

	require.NoError(t, <-done)
	v, ok := sess.Draft()["doc"].(model.BinaryValue)
	require.True(t, ok)
	require.Equal(t, "slow.txt", v.Name)
}

func TestStaleLocationFailureLeavesStatus(t *testing.T) {
	s := openStore(t)
	id := seed(t, s, fieldTemplate(), nil)
	sess := load(t, s, id)

	asked := make(chan struct{})
	release := make(chan struct{})
	slow := form.LocatorFunc(func(context.Context) (form.Position, error) {
		close(asked)
		<-release
		return form.Position{}, &form.GeolocationError{Reason: form.GeolocationDenied}
	})

	done := make(chan error, 1)
	go func() {
		done <- sess.CaptureLocation(context.Background(), "where", slow)
	}()
	<-asked
	require.NoError(t, sess.SetAnswer("where", model.Geo(1, 2)))
	close(release)

	require.ErrorIs(t, <-done, form.ErrStaleCapture)
	require.Empty(t, sess.Status())
	require.Equal(t, model.Geo(1, 2), sess.Draft()["where"])
}
