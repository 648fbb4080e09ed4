package model

import (
	"bytes"
	"errors"
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/vincent-petithory/dataurl"
)

// ErrInvalidPayload is returned for a binary answer whose data is not a
// data URI.
var ErrInvalidPayload = errors.New("model: binary payload is not a data URI")

type AnswerKind string

const (
	KindText   AnswerKind = "text"
	KindGeo    AnswerKind = "geo"
	KindBinary AnswerKind = "binary"
)

// Answer is one of TextValue, GeoValue or BinaryValue. A nil Answer stored
// under a key stands for an explicit null.
type Answer interface {
	Kind() AnswerKind
}

type TextValue string

func (TextValue) Kind() AnswerKind { return KindText }

type GeoValue struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

func (GeoValue) Kind() AnswerKind { return KindGeo }

func Geo(lat, lon float64) GeoValue {
	return GeoValue{Latitude: &lat, Longitude: &lon}
}

// BinaryValue carries a captured file. Payload is a data URI.
type BinaryValue struct {
	Name     string `json:"name"`
	MimeType string `json:"type"`
	Payload  string `json:"data"`
}

func (BinaryValue) Kind() AnswerKind { return KindBinary }

// Validate accepts an empty payload or one that decodes as a data URI.
func (b BinaryValue) Validate() error {
	if b.Payload == "" {
		return nil
	}
	if _, err := dataurl.DecodeString(b.Payload); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}

// Answers maps question ids to answers. Keys need not match the questions
// of the current template version.
type Answers map[string]Answer

// Clone returns a deep copy; nothing is shared with a.
func (a Answers) Clone() Answers {
	out := make(Answers, len(a))
	for k, v := range a {
		out[k] = cloneAnswer(v)
	}
	return out
}

func cloneAnswer(v Answer) Answer {
	g, ok := v.(GeoValue)
	if !ok {
		// the other variants are plain values
		return v
	}
	var c GeoValue
	if g.Latitude != nil {
		lat := *g.Latitude
		c.Latitude = &lat
	}
	if g.Longitude != nil {
		lon := *g.Longitude
		c.Longitude = &lon
	}
	return c
}

func (a Answers) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(a))
	for k, v := range a {
		out[k] = v
	}
	return json.Marshal(out)
}

func (a *Answers) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Answers, len(raw))
	for k, v := range raw {
		ans, err := DecodeAnswer(v)
		if err != nil {
			return fmt.Errorf("answer %q: %w", k, err)
		}
		out[k] = ans
	}
	*a = out
	return nil
}

// DecodeAnswer recognises the persisted shapes: a JSON string is text, an
// object with name/type/data is binary, an object with latitude/longitude is
// geo. Bare numbers and booleans are kept as their literal text.
func DecodeAnswer(data []byte) (Answer, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, err
		}
		return TextValue(s), nil

	case '{':
		var keys map[string]json.RawMessage
		if err := json.Unmarshal(data, &keys); err != nil {
			return nil, err
		}
		if hasAny(keys, "data", "name", "type") {
			var b BinaryValue
			if err := json.Unmarshal(data, &b); err != nil {
				return nil, err
			}
			return b, nil
		}
		if hasAny(keys, "latitude", "longitude") {
			var g GeoValue
			if err := json.Unmarshal(data, &g); err != nil {
				return nil, err
			}
			return g, nil
		}
		return nil, fmt.Errorf("unrecognized answer object %s", data)

	case '[':
		return nil, fmt.Errorf("unrecognized answer array %s", data)
	}

	return TextValue(data), nil
}

func hasAny(keys map[string]json.RawMessage, names ...string) bool {
	for _, n := range names {
		if _, ok := keys[n]; ok {
			return true
		}
	}
	return false
}
