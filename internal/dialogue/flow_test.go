package dialogue

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/sean-bit813/medical-LLM-system/internal/models"
)

// stageGenerator is a scripted Generator that dispatches on the system
// prompt, so one mock can serve extraction, question, severity,
// completeness, and response calls in a single turn.
type stageGenerator struct {
	extract         string
	extractQueue    []string // popped first if non-empty
	extractErr      error
	question        string
	questionErr     error
	severity        string
	severityErr     error
	completeness    string
	completenessErr error
	response        string
	responseErr     error

	calls []string // system prompts seen, in order
}

func (g *stageGenerator) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	g.calls = append(g.calls, systemPrompt)
	switch systemPrompt {
	case extractionSystemPrompt:
		if len(g.extractQueue) > 0 {
			out := g.extractQueue[0]
			g.extractQueue = g.extractQueue[1:]
			return out, g.extractErr
		}
		return g.extract, g.extractErr
	case questionSystemPrompt:
		return g.question, g.questionErr
	case severitySystemPrompt:
		return g.severity, g.severityErr
	case completenessSystemPrompt:
		return g.completeness, g.completenessErr
	case responseSystemPrompt:
		return g.response, g.responseErr
	}
	return "", fmt.Errorf("unexpected system prompt: %q", systemPrompt)
}

// fakeAnalyzer is a scripted NLU collaborator.
type fakeAnalyzer struct {
	intent      models.IntentResult
	symptoms    []string
	intentCalls int
}

func (a *fakeAnalyzer) DetectIntent(ctx context.Context, text string, conversationContext map[string]string) models.IntentResult {
	a.intentCalls++
	return a.intent
}

func (a *fakeAnalyzer) RecognizeSymptoms(ctx context.Context, text string) []string {
	return a.symptoms
}

func newTestFlow(gen Generator, nlu Analyzer, cfg Config) (*collectFlow, *Context) {
	deps := Deps{Assist: NewAssist(gen), NLU: nlu, Config: cfg}
	f := NewCombinedInfoFlow(deps).(*collectFlow)
	c := NewContext()
	c.State = models.StateCollectingInfo
	return f, c
}

func TestMatchFieldKey(t *testing.T) {
	tests := []struct {
		key    string
		want   string
		wantOK bool
	}{
		{"age", "age", true},
		{"main", "main", true},
		{"main symptom", "main", true},
		{"symptom", "main", true},
		{"medical history", "medical_history", true},
		{"ALLERGIES", "allergy", true},
		{"shoe size", "", false},
	}
	for _, tt := range tests {
		got, ok := matchFieldKey(tt.key, CombinedInfoFields)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("matchFieldKey(%q) = (%q, %v), want (%q, %v)", tt.key, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestCursorSkipsCollectedAndNeverRewinds(t *testing.T) {
	gen := &stageGenerator{questionErr: errors.New("down")}
	f, c := newTestFlow(gen, nil, Config{})

	c.Set("age", "34")
	c.Set("gender", "female")

	q, ok := f.NextQuestion(context.Background(), c)
	if !ok || q == "" {
		t.Fatal("expected a question while fields remain")
	}
	// Fallback targets the first missing field past the collected prefix.
	if c.PendingField != "medical_history" {
		t.Errorf("expected pending medical_history, got %q", c.PendingField)
	}

	before := f.cursor
	c.Set("medical_history", "none")
	f.NextQuestion(context.Background(), c)
	if f.cursor < before {
		t.Errorf("cursor moved backwards: %d -> %d", before, f.cursor)
	}
}

func TestProcessResponseMapsExtractedKeys(t *testing.T) {
	gen := &stageGenerator{extract: "age: 34\nmain symptom: headache\nmood: gloomy"}
	f, c := newTestFlow(gen, nil, Config{})
	c.PendingField = "duration"

	if sig := f.ProcessResponse(context.Background(), "I'm 34 with a headache", c); sig != SignalNone {
		t.Fatalf("unexpected signal %v", sig)
	}
	if got := c.Get("age"); got != "34" {
		t.Errorf("age = %q, want 34", got)
	}
	// Label match maps onto the canonical field name.
	if got := c.Get("main"); got != "headache" {
		t.Errorf("main = %q, want headache", got)
	}
	// First unmatched key consumes the pending field.
	if got := c.Get("duration"); got != "gloomy" {
		t.Errorf("duration = %q, want gloomy (pending consumed)", got)
	}
	if c.PendingField != "" {
		t.Errorf("pending field should be cleared, got %q", c.PendingField)
	}
}

func TestProcessResponseForwardProgress(t *testing.T) {
	gen := &stageGenerator{extract: "NONE"}
	f, c := newTestFlow(gen, nil, Config{})
	c.PendingField = "duration"

	f.ProcessResponse(context.Background(), "hmm not sure, maybe a while?", c)
	if got := c.Get("duration"); got != "hmm not sure, maybe a while?" {
		t.Errorf("expected verbatim write to pending field, got %q", got)
	}
	if c.PendingField != "" {
		t.Errorf("pending field should be cleared, got %q", c.PendingField)
	}
}

func TestProcessResponseNoPendingNoPairsIsNoop(t *testing.T) {
	gen := &stageGenerator{extract: "NONE"}
	f, c := newTestFlow(gen, nil, Config{})

	f.ProcessResponse(context.Background(), "just chatting", c)
	if len(c.Fields()) != 0 {
		t.Errorf("expected no fields collected, got %v", c.Fields())
	}
}

func TestSeverityNormalization(t *testing.T) {
	t.Run("direct numeric parse with clamp", func(t *testing.T) {
		gen := &stageGenerator{extract: "severity: 0 out of 10"}
		f, c := newTestFlow(gen, nil, Config{})
		f.ProcessResponse(context.Background(), "barely notice it", c)
		if got := c.Get("severity"); got != "1" {
			t.Errorf("severity = %q, want 1", got)
		}
	})

	t.Run("collaborator assessment for text", func(t *testing.T) {
		gen := &stageGenerator{extract: "severity: quite bad", severity: "7"}
		f, c := newTestFlow(gen, nil, Config{})
		f.ProcessResponse(context.Background(), "it's quite bad", c)
		if got := c.Get("severity"); got != "7" {
			t.Errorf("severity = %q, want 7", got)
		}
	})

	t.Run("unresolvable value left as text", func(t *testing.T) {
		gen := &stageGenerator{extract: "severity: quite bad", severityErr: errors.New("down")}
		f, c := newTestFlow(gen, nil, Config{})
		f.ProcessResponse(context.Background(), "it's quite bad", c)
		if got := c.Get("severity"); got != "quite bad" {
			t.Errorf("severity = %q, want raw text preserved", got)
		}
	})
}

func TestEmergencyBySeverity(t *testing.T) {
	nlu := &fakeAnalyzer{intent: models.IntentResult{PrimaryIntent: models.IntentOther}}
	gen := &stageGenerator{extract: "severity: 9"}
	f, c := newTestFlow(gen, nlu, Config{})

	sig := f.ProcessResponse(context.Background(), "it hurts a lot", c)
	if sig != SignalEmergency {
		t.Fatalf("expected emergency signal, got %v", sig)
	}
	if got := c.Get("referral_urgency"); got != "urgent" {
		t.Errorf("referral_urgency = %q, want urgent", got)
	}
	if c.Get("emergency_advice") == "" {
		t.Error("expected emergency advice to be set")
	}
	// Severity check short-circuits the intent classifier.
	if nlu.intentCalls != 0 {
		t.Errorf("intent classifier called %d times, want 0", nlu.intentCalls)
	}
}

func TestEmergencyByDangerKeyword(t *testing.T) {
	nlu := &fakeAnalyzer{intent: models.IntentResult{PrimaryIntent: models.IntentOther}}
	gen := &stageGenerator{extract: "NONE"}
	f, c := newTestFlow(gen, nlu, Config{})

	sig := f.ProcessResponse(context.Background(), "I suddenly can't breathe properly", c)
	if sig != SignalEmergency {
		t.Fatalf("expected emergency signal, got %v", sig)
	}
	if nlu.intentCalls != 0 {
		t.Errorf("keyword match should short-circuit the classifier, got %d calls", nlu.intentCalls)
	}
}

func TestEmergencyByIntentClassifier(t *testing.T) {
	gen := &stageGenerator{extract: "NONE"}

	t.Run("above threshold", func(t *testing.T) {
		nlu := &fakeAnalyzer{intent: models.IntentResult{PrimaryIntent: models.IntentEmergency, Confidence: 0.9}}
		f, c := newTestFlow(gen, nlu, Config{})
		if sig := f.ProcessResponse(context.Background(), "please help me now", c); sig != SignalEmergency {
			t.Errorf("expected emergency signal, got %v", sig)
		}
	})

	t.Run("at threshold is not enough", func(t *testing.T) {
		nlu := &fakeAnalyzer{intent: models.IntentResult{PrimaryIntent: models.IntentEmergency, Confidence: 0.7}}
		f, c := newTestFlow(gen, nlu, Config{})
		if sig := f.ProcessResponse(context.Background(), "please help me now", c); sig != SignalNone {
			t.Errorf("expected no signal at threshold confidence, got %v", sig)
		}
	})
}

func TestLifestyleFlowSkipsEmergencyChecks(t *testing.T) {
	nlu := &fakeAnalyzer{intent: models.IntentResult{PrimaryIntent: models.IntentEmergency, Confidence: 0.99}}
	deps := Deps{Assist: NewAssist(&stageGenerator{extract: "NONE"}), NLU: nlu}
	f := NewLifeStyleFlow(deps)
	c := NewContext()
	c.State = models.StateLifeStyle

	if sig := f.ProcessResponse(context.Background(), "I barely sleep and my chest hurts", c); sig != SignalNone {
		t.Errorf("lifestyle stage should not raise emergencies, got %v", sig)
	}
}

func TestShouldTransitionLegacyRequiresAllFields(t *testing.T) {
	gen := &stageGenerator{completeness: "COMPLETE"}
	f, c := newTestFlow(gen, nil, Config{AssistedCompletion: false})
	c.Set("age", "34")

	if f.ShouldTransition(context.Background(), c) {
		t.Error("legacy mode must not transition with missing fields")
	}
	if len(gen.calls) != 0 {
		t.Errorf("legacy mode must not call the completeness check, got %v", gen.calls)
	}

	for _, spec := range CombinedInfoFields {
		c.Set(spec.Name, "x")
	}
	if !f.ShouldTransition(context.Background(), c) {
		t.Error("expected transition once every field is collected")
	}
}

func TestShouldTransitionAssistedMode(t *testing.T) {
	gen := &stageGenerator{completeness: "COMPLETE"}
	f, c := newTestFlow(gen, nil, Config{AssistedCompletion: true})
	c.Set("main", "headache")

	if !f.ShouldTransition(context.Background(), c) {
		t.Error("expected assisted completion to allow early transition")
	}

	gen.completeness = "INCOMPLETE"
	f2, c2 := newTestFlow(gen, nil, Config{AssistedCompletion: true})
	c2.Set("main", "headache")
	if f2.ShouldTransition(context.Background(), c2) {
		t.Error("expected INCOMPLETE verdict to block the transition")
	}
}

func TestNextQuestionAssistedCompletionStopsAsking(t *testing.T) {
	gen := &stageGenerator{completeness: "COMPLETE", question: "FIELD: gender\nQUESTION: What is your gender?"}
	f, c := newTestFlow(gen, nil, Config{AssistedCompletion: true})
	c.Set("age", "34")

	if q, ok := f.NextQuestion(context.Background(), c); ok {
		t.Errorf("expected no question once the verdict is COMPLETE, got %q", q)
	}

	gen2 := &stageGenerator{completeness: "INCOMPLETE", question: "FIELD: gender\nQUESTION: What is your gender?"}
	f2, c2 := newTestFlow(gen2, nil, Config{AssistedCompletion: true})
	c2.Set("age", "34")
	if _, ok := f2.NextQuestion(context.Background(), c2); !ok {
		t.Error("expected a question while the verdict is INCOMPLETE")
	}
}

func TestCollectFlowNextState(t *testing.T) {
	gen := &stageGenerator{}
	f, c := newTestFlow(gen, nil, Config{})

	if got := f.NextState(context.Background(), c); got != models.StateCollectingInfo {
		t.Errorf("unsatisfied flow should stay put, got %s", got)
	}

	for _, spec := range CombinedInfoFields {
		c.Set(spec.Name, "x")
	}
	if got := f.NextState(context.Background(), c); got != models.StateLifeStyle {
		t.Errorf("expected life_style, got %s", got)
	}
	if f.cursor != 0 {
		t.Errorf("cursor should reset on transition, got %d", f.cursor)
	}
}

func TestDiagnosisFlowBranches(t *testing.T) {
	reg := NewRegistry(Deps{Assist: NewAssist(&stageGenerator{})})

	tests := []struct {
		severity string
		want     models.DialogueState
	}{
		{"3", models.StateMedicalAdvice},
		{"5", models.StateReferral},
		{"9", models.StateReferral},
		{"", models.StateMedicalAdvice},
		{"not a number", models.StateMedicalAdvice},
	}
	for _, tt := range tests {
		f, ok := reg.New(models.StateDiagnosis)
		if !ok {
			t.Fatal("no diagnosis flow registered")
		}
		c := NewContext()
		c.State = models.StateDiagnosis
		if tt.severity != "" {
			c.Set("severity", tt.severity)
		}
		if got := f.NextState(context.Background(), c); got != tt.want {
			t.Errorf("severity %q: got %s, want %s", tt.severity, got, tt.want)
		}
	}
}

func TestRegistryCoversAllFlowStates(t *testing.T) {
	reg := NewRegistry(Deps{Assist: NewAssist(&stageGenerator{})})
	if err := reg.Validate(); err != nil {
		t.Fatalf("registry incomplete: %v", err)
	}
	if _, ok := reg.New(models.StateInitial); ok {
		t.Error("initial state must not have a flow")
	}
	if _, ok := reg.New(models.StateEnded); ok {
		t.Error("terminal state must not have a flow")
	}
}

func TestRegistryReturnsFreshInstances(t *testing.T) {
	reg := NewRegistry(Deps{Assist: NewAssist(&stageGenerator{questionErr: errors.New("down")})})

	f1, _ := reg.New(models.StateCollectingInfo)
	c := NewContext()
	f1.NextQuestion(context.Background(), c) // advances f1's cursor state

	f2, _ := reg.New(models.StateCollectingInfo)
	if f1 == f2 {
		t.Error("registry must return a fresh flow per call")
	}
	if f2.(*collectFlow).cursor != 0 {
		t.Error("fresh flow should start with cursor at 0")
	}
}
