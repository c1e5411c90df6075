// Package nlu provides intent detection and symptom recognition over user
// messages, implemented as structured calls to the text-generation
// collaborator with graceful degradation on malformed output.
package nlu

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sean-bit813/medical-LLM-system/internal/models"
)

// Generator is the minimal text-generation dependency of the NLU client.
type Generator interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Client performs intent and entity analysis on user messages.
type Client struct {
	gen Generator
}

// NewClient creates an NLU client over the given generator.
func NewClient(gen Generator) *Client {
	return &Client{gen: gen}
}

// simpleGreetings are handled locally without a collaborator call.
var simpleGreetings = map[string]bool{
	"hi": true, "hello": true, "hey": true, "good morning": true,
	"good afternoon": true, "good evening": true, "start": true,
	"你好": true, "您好": true,
}

const intentSystemPrompt = `You are an intent classifier for a medical intake assistant.
Classify the user's message into exactly one intent:
report_symptom, ask_question, request_info, express_concern, share_history,
request_advice, emergency, greeting, farewell, gratitude, other.

Respond with JSON only, no prose:
{"primary_intent": "<intent>", "confidence": <0.0-1.0>, "entities": {"symptoms": ["..."]}}`

// DetectIntent classifies a user message. It never fails: collaborator
// errors and unparseable output degrade to intent "other" with zero
// confidence.
func (c *Client) DetectIntent(ctx context.Context, text string, conversationContext map[string]string) models.IntentResult {
	trimmed := strings.ToLower(strings.TrimSpace(text))
	if simpleGreetings[trimmed] {
		return models.IntentResult{PrimaryIntent: models.IntentGreeting, Confidence: 0.98}
	}

	userPrompt := "Message: " + text
	if len(conversationContext) > 0 {
		var parts []string
		for k, v := range conversationContext {
			parts = append(parts, k+"="+v)
		}
		userPrompt += "\nKnown context: " + strings.Join(parts, ", ")
	}

	raw, err := c.gen.Generate(ctx, intentSystemPrompt, userPrompt)
	if err != nil {
		slog.Warn("Intent detection call failed, defaulting to other", "error", err)
		return models.IntentResult{PrimaryIntent: models.IntentOther}
	}

	result, err := parseIntentJSON(raw)
	if err != nil {
		slog.Warn("Intent detection returned unparseable output", "error", err)
		return models.IntentResult{PrimaryIntent: models.IntentOther}
	}
	slog.Debug("Intent detected", "intent", result.PrimaryIntent, "confidence", result.Confidence)
	return result
}

const symptomSystemPrompt = `You extract symptom mentions from a patient message.
Respond with JSON only: {"symptoms": ["<symptom>", ...]}. Use an empty list if none.`

// RecognizeSymptoms extracts symptom names mentioned in the text. Returns an
// empty slice on any failure.
func (c *Client) RecognizeSymptoms(ctx context.Context, text string) []string {
	raw, err := c.gen.Generate(ctx, symptomSystemPrompt, "Message: "+text)
	if err != nil {
		slog.Warn("Symptom recognition call failed", "error", err)
		return nil
	}

	var parsed struct {
		Symptoms []string `json:"symptoms"`
	}
	if err := json.Unmarshal([]byte(extractJSON(raw)), &parsed); err != nil {
		slog.Warn("Symptom recognition returned unparseable output", "error", err)
		return nil
	}
	return parsed.Symptoms
}

func parseIntentJSON(raw string) (models.IntentResult, error) {
	var parsed struct {
		PrimaryIntent string              `json:"primary_intent"`
		Confidence    float64             `json:"confidence"`
		Entities      map[string][]string `json:"entities"`
	}
	if err := json.Unmarshal([]byte(extractJSON(raw)), &parsed); err != nil {
		return models.IntentResult{}, fmt.Errorf("invalid intent JSON: %w", err)
	}
	if parsed.PrimaryIntent == "" {
		return models.IntentResult{}, fmt.Errorf("intent JSON missing primary_intent")
	}
	if parsed.Confidence < 0 {
		parsed.Confidence = 0
	}
	if parsed.Confidence > 1 {
		parsed.Confidence = 1
	}
	return models.IntentResult{
		PrimaryIntent: parsed.PrimaryIntent,
		Confidence:    parsed.Confidence,
		Entities:      parsed.Entities,
	}, nil
}

// extractJSON strips prose or code fences around a JSON object so lenient
// collaborator output still parses.
func extractJSON(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}
