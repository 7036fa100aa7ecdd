package domain

import (
	"encoding/json"
	"testing"
)

func TestParseValueMatchesKind(t *testing.T) {
	cases := []struct {
		kind    AnswerKind
		raw     string
		want    any
		wantErr bool
	}{
		{kind: KindNumber, raw: `120.5`, want: 120.5},
		{kind: KindNumber, raw: `"120.5"`, wantErr: true},
		{kind: KindBoolean, raw: `false`, want: false},
		{kind: KindBoolean, raw: `"false"`, wantErr: true},
		{kind: KindName, raw: `"Jane Doe"`, want: "Jane Doe"},
		{kind: KindName, raw: `42`, wantErr: true},
		{kind: KindNames, raw: `["A", "B"]`, want: []string{"A", "B"}},
		{kind: KindNames, raw: `[1, 2]`, wantErr: true},
		{kind: KindNumber, raw: `"n/a"`, want: NotAvailable},
		{kind: KindNames, raw: `"N/A"`, want: NotAvailable},
		{kind: KindName, raw: `null`, wantErr: true},
	}

	for _, tc := range cases {
		v, err := ParseValue(tc.kind, json.RawMessage(tc.raw))
		if tc.wantErr {
			if err == nil {
				t.Fatalf("ParseValue(%s, %s) expected error, got %+v", tc.kind, tc.raw, v)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseValue(%s, %s) error = %v", tc.kind, tc.raw, err)
		}
		got, _ := json.Marshal(v)
		want, _ := json.Marshal(tc.want)
		if string(got) != string(want) {
			t.Fatalf("ParseValue(%s, %s) = %s, want %s", tc.kind, tc.raw, got, want)
		}
	}
}

func TestAnswerRecordJSONShape(t *testing.T) {
	record := AnswerRecord{
		QuestionText: "Revenue?",
		Kind:         KindNumber,
		Value:        NumberValue(120.5),
		References:   []Reference{{PDFSha1: "acme_2023.pdf", PageIndex: 4}},
	}
	raw, err := json.Marshal(record)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"question_text":"Revenue?","kind":"number","value":120.5,"references":[{"pdf_sha1":"acme_2023.pdf","page_index":4}]}`
	if string(raw) != want {
		t.Fatalf("unexpected json %s", raw)
	}

	failed, _ := json.Marshal(FailedRecord(Question{Text: "q", Kind: KindNames}))
	if string(failed) != `{"question_text":"q","kind":"names","value":"N/A","references":[]}` {
		t.Fatalf("unexpected failed record %s", failed)
	}
}

func TestParseAnswerKind(t *testing.T) {
	if kind, err := ParseAnswerKind(" Boolean "); err != nil || kind != KindBoolean {
		t.Fatalf("expected boolean, got %q, %v", kind, err)
	}
	if _, err := ParseAnswerKind("percent"); !IsKind(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestContractViolationUnwraps(t *testing.T) {
	err := NewContractViolation("extract_answer", `{"x":1}`, "missing field")
	if !IsKind(err, ErrContractViolated) {
		t.Fatalf("expected ErrContractViolated")
	}
	violation, ok := AsContractViolation(err)
	if !ok || violation.Operation != "extract_answer" || violation.Raw != `{"x":1}` {
		t.Fatalf("unexpected violation %+v", violation)
	}
}

func TestSearchFilterMatchesCompanyIgnoringCase(t *testing.T) {
	filter := SearchFilter{Company: "Acme Corp"}
	if !filter.Matches(NewChunk("x", "a.pdf", 0, "ACME CORP", nil)) {
		t.Fatalf("expected case-insensitive company match")
	}
	if filter.Matches(NewChunk("x", "g.pdf", 0, "Globex", nil)) {
		t.Fatalf("unexpected match for another company")
	}
	if !(SearchFilter{}).Matches(NewChunk("x", "g.pdf", 0, "Globex", nil)) {
		t.Fatalf("empty filter must match everything")
	}
}
