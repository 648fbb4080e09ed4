package model

import (
	"strings"
	"time"
)

type QuestionType string

const (
	TypeText         QuestionType = "text"
	TypeSingleSelect QuestionType = "single-select"
	TypeDate         QuestionType = "date"
	TypeTime         QuestionType = "time"
	TypeDateTime     QuestionType = "datetime"
	TypePhoto        QuestionType = "photo-capture"
	TypeFile         QuestionType = "file-attachment"
	TypeGeolocation  QuestionType = "geolocation"
)

// Names used by the first generation of survey documents.
var questionTypeAliases = map[string]QuestionType{
	"textbox":    TypeText,
	"dropdown":   TypeSingleSelect,
	"camera":     TypePhoto,
	"attachment": TypeFile,
	"location":   TypeGeolocation,
}

// NormalizeQuestionType maps legacy aliases onto the canonical names.
// Unknown names are returned unchanged so they survive a round trip.
func NormalizeQuestionType(raw string) QuestionType {
	name := strings.ToLower(strings.TrimSpace(raw))
	if t, ok := questionTypeAliases[name]; ok {
		return t
	}
	if QuestionType(name).Known() {
		return QuestionType(name)
	}
	return QuestionType(raw)
}

func (t QuestionType) Known() bool {
	switch t {
	case TypeText, TypeSingleSelect, TypeDate, TypeTime, TypeDateTime,
		TypePhoto, TypeFile, TypeGeolocation:
		return true
	}
	return false
}

type Template struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Version     int            `json:"version"`
	Description string         `json:"description,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Sections    []Section      `json:"sections"`
}

type Section struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Questions   []Question `json:"questions"`
}

type Question struct {
	ID          string       `json:"id"`
	Label       string       `json:"label"`
	Type        QuestionType `json:"type"`
	Required    bool         `json:"required"`
	Options     []string     `json:"options,omitempty"`
	Accept      string       `json:"accept,omitempty"`
	Placeholder string       `json:"placeholder,omitempty"`
	Min         string       `json:"min,omitempty"`
	Max         string       `json:"max,omitempty"`
	Step        string       `json:"step,omitempty"`
}

// Questions returns every question in section-then-question order.
func (t *Template) Questions() []Question {
	var out []Question
	for _, s := range t.Sections {
		out = append(out, s.Questions...)
	}
	return out
}

func (t *Template) Question(id string) (Question, bool) {
	for _, s := range t.Sections {
		for _, q := range s.Questions {
			if q.ID == id {
				return q, true
			}
		}
	}
	return Question{}, false
}

type Instance struct {
	InstanceID int64     `json:"instanceId"`
	SurveyID   string    `json:"surveyId"`
	CreatedAt  time.Time `json:"createdAt"`
	Answers    Answers   `json:"answers"`
}
