package nlu

import (
	"context"
	"errors"
	"testing"

	"github.com/sean-bit813/medical-LLM-system/internal/models"
)

// scriptedGenerator returns a fixed response or error.
type scriptedGenerator struct {
	response string
	err      error
	called   bool
}

func (g *scriptedGenerator) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	g.called = true
	return g.response, g.err
}

func TestDetectIntent_GreetingShortcut(t *testing.T) {
	gen := &scriptedGenerator{}
	c := NewClient(gen)

	result := c.DetectIntent(context.Background(), "  Hello ", nil)
	if result.PrimaryIntent != models.IntentGreeting {
		t.Errorf("expected greeting, got %s", result.PrimaryIntent)
	}
	if gen.called {
		t.Error("greeting shortcut must not call the generator")
	}
}

func TestDetectIntent_ParsesJSON(t *testing.T) {
	gen := &scriptedGenerator{response: `Here you go: {"primary_intent": "emergency", "confidence": 0.92, "entities": {"symptoms": ["chest pain"]}}`}
	c := NewClient(gen)

	result := c.DetectIntent(context.Background(), "my chest is crushing", nil)
	if result.PrimaryIntent != models.IntentEmergency {
		t.Errorf("expected emergency, got %s", result.PrimaryIntent)
	}
	if result.Confidence != 0.92 {
		t.Errorf("expected confidence 0.92, got %f", result.Confidence)
	}
	if len(result.Entities["symptoms"]) != 1 {
		t.Errorf("expected one symptom entity, got %+v", result.Entities)
	}
}

func TestDetectIntent_MalformedOutput(t *testing.T) {
	c := NewClient(&scriptedGenerator{response: "I think this might be a symptom report?"})
	result := c.DetectIntent(context.Background(), "my head hurts", nil)
	if result.PrimaryIntent != models.IntentOther || result.Confidence != 0 {
		t.Errorf("expected degraded other/0, got %+v", result)
	}
}

func TestDetectIntent_GeneratorError(t *testing.T) {
	c := NewClient(&scriptedGenerator{err: errors.New("network down")})
	result := c.DetectIntent(context.Background(), "my head hurts", nil)
	if result.PrimaryIntent != models.IntentOther {
		t.Errorf("expected other on error, got %s", result.PrimaryIntent)
	}
}

func TestDetectIntent_ClampsConfidence(t *testing.T) {
	c := NewClient(&scriptedGenerator{response: `{"primary_intent": "greeting", "confidence": 3.5}`})
	result := c.DetectIntent(context.Background(), "hello there friend", nil)
	if result.Confidence != 1 {
		t.Errorf("expected confidence clamped to 1, got %f", result.Confidence)
	}
}

func TestRecognizeSymptoms(t *testing.T) {
	c := NewClient(&scriptedGenerator{response: `{"symptoms": ["headache", "nausea"]}`})
	symptoms := c.RecognizeSymptoms(context.Background(), "head hurts and I feel sick")
	if len(symptoms) != 2 || symptoms[0] != "headache" {
		t.Errorf("unexpected symptoms: %v", symptoms)
	}
}

func TestRecognizeSymptoms_Degrades(t *testing.T) {
	c := NewClient(&scriptedGenerator{response: "no json here"})
	if symptoms := c.RecognizeSymptoms(context.Background(), "hi"); symptoms != nil {
		t.Errorf("expected nil on unparseable output, got %v", symptoms)
	}
}
