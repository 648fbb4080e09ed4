package log_test

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mbolis/field-survey/log"
)

func TestLevelFiltersOutput(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	t.Cleanup(func() {
		log.SetOutput(io.Discard)
		log.SetLevel(log.InfoLevel)
	})

	log.SetLevel(log.InfoLevel)
	log.Debugf("sync.fetch: %s", "hidden")
	require.Empty(t, buf.String())

	log.Infof("sync: added template %q", "t1")
	require.Contains(t, buf.String(), "added template")

	buf.Reset()
	log.SetLevel(log.DebugLevel)
	log.WithFields(log.Fields{"code": "draft.open"}).Debug("shown")
	require.Contains(t, buf.String(), "shown")
	require.Contains(t, buf.String(), "code=draft.open")
}
