package dialogue

import (
	"context"
	"errors"
	"testing"
)

func TestParseTaggedQuestion(t *testing.T) {
	tests := []struct {
		name         string
		raw          string
		wantField    string
		wantQuestion string
	}{
		{
			name:         "well formed",
			raw:          "FIELD: age\nQUESTION: How old are you?",
			wantField:    "age",
			wantQuestion: "How old are you?",
		},
		{
			name:         "extra whitespace and case",
			raw:          "  field: Duration \n  Question:   How long has this lasted?  ",
			wantField:    "duration",
			wantQuestion: "How long has this lasted?",
		},
		{
			name:         "missing field tag",
			raw:          "QUESTION: How old are you?",
			wantField:    "",
			wantQuestion: "How old are you?",
		},
		{
			name:         "free text",
			raw:          "I think we should ask about age next.",
			wantField:    "",
			wantQuestion: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			field, question := parseTaggedQuestion(tt.raw)
			if field != tt.wantField || question != tt.wantQuestion {
				t.Errorf("got (%q, %q), want (%q, %q)", field, question, tt.wantField, tt.wantQuestion)
			}
		})
	}
}

func TestParseKeyValueLines(t *testing.T) {
	raw := "- age: 34\nmain symptom: headache\n\nNONE\nno colon here\n: empty key\nseverity: "
	pairs := parseKeyValueLines(raw)
	want := []KV{{"age", "34"}, {"main symptom", "headache"}}
	if len(pairs) != len(want) {
		t.Fatalf("expected %d pairs, got %d: %v", len(want), len(pairs), pairs)
	}
	for i, kv := range want {
		if pairs[i] != kv {
			t.Errorf("pair %d: got %v, want %v", i, pairs[i], kv)
		}
	}
}

func TestParseKeyValueLinesNone(t *testing.T) {
	if pairs := parseKeyValueLines("NONE"); pairs != nil {
		t.Errorf("expected nil for NONE, got %v", pairs)
	}
}

func TestFirstInt(t *testing.T) {
	tests := []struct {
		in     string
		want   int
		wantOK bool
	}{
		{"7", 7, true},
		{"about 3 days", 3, true},
		{"8/10", 8, true},
		{"severity is 10.", 10, true},
		{"no numbers here", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, ok := firstInt(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("firstInt(%q) = (%d, %v), want (%d, %v)", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestClampSeverity(t *testing.T) {
	tests := []struct{ in, want int }{
		{-3, 1}, {0, 1}, {1, 1}, {5, 5}, {10, 10}, {15, 10},
	}
	for _, tt := range tests {
		if got := ClampSeverity(tt.in); got != tt.want {
			t.Errorf("ClampSeverity(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestIsCompleteToken(t *testing.T) {
	tests := []struct {
		raw  string
		want bool
	}{
		{"COMPLETE", true},
		{"complete", true},
		{"COMPLETE.", true},
		{"Complete, all required fields are present.", true},
		{"INCOMPLETE", false},
		{"incomplete", false},
		{"The set is COMPLETE", false},
		{"INCOMPLETE but close to complete", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := isCompleteToken(tt.raw); got != tt.want {
			t.Errorf("isCompleteToken(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestGenerateQuestionParsesTags(t *testing.T) {
	gen := &stageGenerator{question: "FIELD: age\nQUESTION: How old are you?"}
	a := NewAssist(gen)

	result, err := a.GenerateQuestion(context.Background(), nil, CombinedInfoFields)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Parsed || result.Field != "age" || result.Question != "How old are you?" {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestGenerateQuestionUnparseableUsesRawOutput(t *testing.T) {
	gen := &stageGenerator{question: "Let me ask about your age."}
	a := NewAssist(gen)

	result, err := a.GenerateQuestion(context.Background(), nil, CombinedInfoFields)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Parsed {
		t.Error("expected Parsed=false for untagged output")
	}
	if result.Question != "Let me ask about your age." {
		t.Errorf("expected raw output as question, got %q", result.Question)
	}
}

func TestGenerateQuestionPropagatesError(t *testing.T) {
	gen := &stageGenerator{questionErr: errors.New("service down")}
	a := NewAssist(gen)

	if _, err := a.GenerateQuestion(context.Background(), nil, CombinedInfoFields); err == nil {
		t.Fatal("expected error when the generator fails")
	}
}

func TestExtractFieldsDegradesToNil(t *testing.T) {
	gen := &stageGenerator{extractErr: errors.New("service down")}
	a := NewAssist(gen)

	if pairs := a.ExtractFields(context.Background(), "I am 34", CombinedInfoFields); pairs != nil {
		t.Errorf("expected nil on generator failure, got %v", pairs)
	}
}

func TestAssessSeverity(t *testing.T) {
	gen := &stageGenerator{severity: "The severity is 12"}
	a := NewAssist(gen)

	n, ok := a.AssessSeverity(context.Background(), "unbearable")
	if !ok || n != 10 {
		t.Errorf("expected (10, true), got (%d, %v)", n, ok)
	}

	gen.severity = "I cannot rate this"
	if _, ok := a.AssessSeverity(context.Background(), "something"); ok {
		t.Error("expected ok=false when output has no number")
	}
}

func TestCheckCompleteness(t *testing.T) {
	gen := &stageGenerator{completeness: "COMPLETE"}
	a := NewAssist(gen)

	collected := map[string]string{"age": "34"}
	if !a.CheckCompleteness(context.Background(), collected, CombinedInfoFields) {
		t.Error("expected complete for COMPLETE reply")
	}

	gen.completeness = "INCOMPLETE"
	if a.CheckCompleteness(context.Background(), collected, CombinedInfoFields) {
		t.Error("expected incomplete for INCOMPLETE reply")
	}

	gen.completenessErr = errors.New("service down")
	if a.CheckCompleteness(context.Background(), collected, CombinedInfoFields) {
		t.Error("expected incomplete when the generator fails")
	}
}
