package syncer

import (
	"bytes"
	"errors"
	"fmt"
	"sort"

	json "github.com/goccy/go-json"
	"github.com/hashicorp/go-multierror"
	"github.com/mbolis/field-survey/model"
)

// parseDocument turns a remote document into a template. Empty id/title and
// a zero version count as missing; sections must be an array.
func parseDocument(data []byte) (*model.Template, error) {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(data, &keys); err != nil || keys == nil {
		return nil, &ValidationError{Err: errors.New("document is not a JSON object")}
	}

	var errs *multierror.Error
	var fields []string
	fail := func(field string, err error) {
		fields = append(fields, field)
		errs = multierror.Append(errs, fmt.Errorf("%s: %w", field, err))
	}

	var id, title string
	if err := decodeKey(keys, "id", &id); err != nil {
		fail("id", err)
	} else if id == "" {
		fail("id", errMissing)
	}
	if err := decodeKey(keys, "title", &title); err != nil {
		fail("title", err)
	} else if title == "" {
		fail("title", errMissing)
	}
	var version int
	if err := decodeKey(keys, "version", &version); err != nil {
		fail("version", err)
	} else if version == 0 {
		fail("version", errMissing)
	}
	if raw, ok := keys["sections"]; !ok {
		fail("sections", errMissing)
	} else if raw = bytes.TrimSpace(raw); len(raw) == 0 || raw[0] != '[' {
		fail("sections", fmt.Errorf("not an array: %s", raw))
	}

	if errs != nil {
		sort.Strings(fields)
		return nil, &ValidationError{Fields: fields, Err: errs.ErrorOrNil()}
	}

	var t model.Template
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, &ValidationError{Err: err}
	}
	if t.Sections == nil {
		t.Sections = []model.Section{}
	}
	for i := range t.Sections {
		for j := range t.Sections[i].Questions {
			q := &t.Sections[i].Questions[j]
			q.Type = model.NormalizeQuestionType(string(q.Type))
		}
	}
	return &t, nil
}

var errMissing = errors.New("missing")

func decodeKey(keys map[string]json.RawMessage, key string, out any) error {
	raw, ok := keys[key]
	if !ok {
		return errMissing
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("invalid value %s", raw)
	}
	return nil
}
