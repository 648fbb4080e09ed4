// Package export bundles every instance of a survey, plus the files captured
// in them, into a single zip archive.
//
// The archive holds results.json at the root, an array of
// {instanceId, createdAt, answers}, and an attachments/ folder with one entry
// per captured file. In the manifest each captured file is replaced by
// {"filename": "<entry name>"}.
package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/klauspost/compress/zip"
	"github.com/vincent-petithory/dataurl"

	"github.com/mbolis/field-survey/log"
	"github.com/mbolis/field-survey/model"
)

const (
	ManifestName   = "results.json"
	AttachmentsDir = "attachments/"
)

// ErrNoInstances is returned when the survey has nothing to export.
var ErrNoInstances = errors.New("export: survey has no instances")

type Store interface {
	GetTemplate(ctx context.Context, id string) (*model.Template, error)
	ListInstancesBySurvey(ctx context.Context, surveyID string) ([]model.Instance, error)
}

type Archive struct {
	Name string
	Data []byte
}

type FileRef struct {
	Filename string `json:"filename"`
}

type Record struct {
	InstanceID int64          `json:"instanceId"`
	CreatedAt  time.Time      `json:"createdAt"`
	Answers    map[string]any `json:"answers"`
}

type Packager struct {
	store Store
}

func New(s Store) *Packager {
	return &Packager{store: s}
}

// Package builds the archive for the template. Instances are exported in
// instanceId order.
func (p *Packager) Package(ctx context.Context, templateID string) (*Archive, error) {
	tpl, err := p.store.GetTemplate(ctx, templateID)
	if err != nil {
		return nil, fmt.Errorf("export.template: %w", err)
	}
	instances, err := p.store.ListInstancesBySurvey(ctx, templateID)
	if err != nil {
		return nil, fmt.Errorf("export.instances: %w", err)
	}
	if len(instances) == 0 {
		return nil, ErrNoInstances
	}
	sort.Slice(instances, func(i, j int) bool {
		return instances[i].InstanceID < instances[j].InstanceID
	})

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	records := make([]Record, 0, len(instances))
	attached := 0
	for _, inst := range instances {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, n, err := writeInstance(zw, inst)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
		attached += n
	}

	manifest, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("export.manifest: %w", err)
	}
	w, err := zw.Create(ManifestName)
	if err != nil {
		return nil, fmt.Errorf("export.manifest: %w", err)
	}
	if _, err := w.Write(manifest); err != nil {
		return nil, fmt.Errorf("export.manifest: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("export.close: %w", err)
	}

	name := ArchiveName(tpl.Title)
	log.Infof("export: %s with %d instances and %d attachments", name, len(records), attached)
	return &Archive{Name: name, Data: buf.Bytes()}, nil
}

// writeInstance adds the instance's captured files to the archive and
// returns its manifest record.
func writeInstance(zw *zip.Writer, inst model.Instance) (Record, int, error) {
	rec := Record{
		InstanceID: inst.InstanceID,
		CreatedAt:  inst.CreatedAt,
		Answers:    make(map[string]any, len(inst.Answers)),
	}

	qids := make([]string, 0, len(inst.Answers))
	for qid := range inst.Answers {
		qids = append(qids, qid)
	}
	sort.Strings(qids)

	n := 0
	for _, qid := range qids {
		ans := inst.Answers[qid]
		b, ok := ans.(model.BinaryValue)
		if !ok || b.Payload == "" {
			rec.Answers[qid] = ans
			continue
		}

		du, err := dataurl.DecodeString(b.Payload)
		if err != nil {
			return Record{}, 0, fmt.Errorf("export.decode: instance %d question %q: %w", inst.InstanceID, qid, err)
		}
		name := AttachmentName(inst.InstanceID, qid, b.Name)
		w, err := zw.Create(AttachmentsDir + name)
		if err != nil {
			return Record{}, 0, fmt.Errorf("export.attachment: %w", err)
		}
		if _, err := w.Write(du.Data); err != nil {
			return Record{}, 0, fmt.Errorf("export.attachment: %w", err)
		}
		rec.Answers[qid] = FileRef{Filename: name}
		n++
	}
	return rec, n, nil
}

// AttachmentName is the entry name of a captured file under attachments/.
// Path separators in the original name are flattened.
func AttachmentName(instanceID int64, questionID, fileName string) string {
	return fmt.Sprintf("instance-%d_question-%s_%s", instanceID, questionID, separators.Replace(fileName))
}

var separators = strings.NewReplacer("/", "_", "\\", "_")

var whitespace = regexp.MustCompile(`\s+`)

// ArchiveName lower-cases the title and collapses whitespace runs into a
// dash.
func ArchiveName(title string) string {
	s := strings.ToLower(strings.TrimSpace(title))
	s = whitespace.ReplaceAllString(s, "-")
	s = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return -1
		}
		return r
	}, s)
	if s == "" {
		s = "survey"
	}
	return s + "-export.zip"
}
