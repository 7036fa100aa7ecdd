package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

type AnswerKind string

const (
	KindNumber  AnswerKind = "number"
	KindName    AnswerKind = "name"
	KindBoolean AnswerKind = "boolean"
	KindNames   AnswerKind = "names"
)

// NotAvailable is the universal fallback value, valid for every kind.
const NotAvailable = "N/A"

func ParseAnswerKind(s string) (AnswerKind, error) {
	switch kind := AnswerKind(strings.ToLower(strings.TrimSpace(s))); kind {
	case KindNumber, KindName, KindBoolean, KindNames:
		return kind, nil
	default:
		return "", WrapError(ErrInvalidInput, "parse answer kind", fmt.Errorf("unsupported kind %q", s))
	}
}

// Question is one input record of the inference batch.
type Question struct {
	Text string     `json:"text"`
	Kind AnswerKind `json:"kind"`
}

// Reference cites one page of one source document.
type Reference struct {
	PDFSha1   string `json:"pdf_sha1"`
	PageIndex int    `json:"page_index"`
}

// Value is a typed answer value. Exactly one payload field is meaningful,
// selected by Kind, unless NA is set.
type Value struct {
	Kind   AnswerKind
	NA     bool
	Number float64
	Text   string
	Bool   bool
	Names  []string
}

func NAValue(kind AnswerKind) Value {
	return Value{Kind: kind, NA: true}
}

func NumberValue(v float64) Value { return Value{Kind: KindNumber, Number: v} }

func NameValue(v string) Value { return Value{Kind: KindName, Text: v} }

func BooleanValue(v bool) Value { return Value{Kind: KindBoolean, Bool: v} }

func NamesValue(v []string) Value { return Value{Kind: KindNames, Names: v} }

func (v Value) IsNA() bool { return v.NA }

func (v Value) String() string { return fmt.Sprint(v.Interface()) }

func (v Value) MarshalJSON() ([]byte, error) { return json.Marshal(v.Interface()) }

// Interface returns the runtime representation written to submissions.
func (v Value) Interface() any {
	if v.NA {
		return NotAvailable
	}
	switch v.Kind {
	case KindNumber:
		return v.Number
	case KindBoolean:
		return v.Bool
	case KindNames:
		if v.Names == nil {
			return []string{}
		}
		return v.Names
	default:
		return v.Text
	}
}

// ParseValue converts a raw JSON value into a Value of the requested kind.
// The JSON type must match the kind; the string "N/A" is accepted for any kind.
func ParseValue(kind AnswerKind, raw json.RawMessage) (Value, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return Value{}, fmt.Errorf("value is missing")
	}

	var asString string
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &asString); err != nil {
			return Value{}, fmt.Errorf("decode string value: %w", err)
		}
		if strings.EqualFold(strings.TrimSpace(asString), NotAvailable) {
			return NAValue(kind), nil
		}
	}

	switch kind {
	case KindNumber:
		var n float64
		if raw[0] == '"' || json.Unmarshal(raw, &n) != nil {
			return Value{}, fmt.Errorf("kind number requires a JSON number, got %s", raw)
		}
		return NumberValue(n), nil
	case KindBoolean:
		var b bool
		if json.Unmarshal(raw, &b) != nil {
			return Value{}, fmt.Errorf("kind boolean requires a JSON boolean, got %s", raw)
		}
		return BooleanValue(b), nil
	case KindName:
		if raw[0] != '"' {
			return Value{}, fmt.Errorf("kind name requires a JSON string, got %s", raw)
		}
		return NameValue(asString), nil
	case KindNames:
		var names []string
		if json.Unmarshal(raw, &names) != nil {
			return Value{}, fmt.Errorf("kind names requires an array of strings, got %s", raw)
		}
		if names == nil {
			names = []string{}
		}
		return NamesValue(names), nil
	default:
		return Value{}, fmt.Errorf("unsupported kind %q", kind)
	}
}

// Answer is the extractor output for one question.
type Answer struct {
	Value      Value       `json:"value"`
	References []Reference `json:"references"`
}

// AnswerRecord is one entry of the submission.
type AnswerRecord struct {
	QuestionText string      `json:"question_text"`
	Kind         AnswerKind  `json:"kind"`
	Value        Value       `json:"value"`
	References   []Reference `json:"references"`
}

// FailedRecord is the record written when a question could not be answered.
func FailedRecord(q Question) AnswerRecord {
	return AnswerRecord{
		QuestionText: q.Text,
		Kind:         q.Kind,
		Value:        NAValue(q.Kind),
		References:   []Reference{},
	}
}

type Submission struct {
	TeamEmail      string         `json:"team_email"`
	SubmissionName string         `json:"submission_name"`
	Answers        []AnswerRecord `json:"answers"`
}
