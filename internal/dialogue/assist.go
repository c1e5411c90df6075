package dialogue

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

// Generator is the text-generation collaborator surface the dialogue engine
// consumes. The genai.Client satisfies it.
type Generator interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Assist wraps the generator with the structured helper calls the flows
// depend on: question selection, field extraction, severity assessment, and
// completeness checking. Every helper degrades to a safe default when the
// collaborator fails or returns malformed output.
type Assist struct {
	gen Generator
}

// NewAssist creates an Assist over the given generator.
func NewAssist(gen Generator) *Assist {
	return &Assist{gen: gen}
}

// QuestionResult is the outcome of a question-generation call.
type QuestionResult struct {
	Field    string // chosen field name; empty when parsing failed
	Question string // question to ask; the raw output on parse failure
	Parsed   bool
}

const questionSystemPrompt = `You are a medical intake assistant choosing the next question to ask a patient.
Pick exactly one still-missing field and phrase one short, friendly question for it.
Respond in exactly this format, nothing else:
FIELD: <field_name>
QUESTION: <the question to ask>`

// GenerateQuestion asks the collaborator to pick one missing field and phrase
// a question for it. The error is only non-nil when the collaborator call
// itself failed; malformed output is reported via Parsed=false with the raw
// output as the question.
func (a *Assist) GenerateQuestion(ctx context.Context, collected map[string]string, candidates []FieldSpec) (QuestionResult, error) {
	var b strings.Builder
	if len(collected) > 0 {
		b.WriteString("Already collected:\n")
		for k, v := range collected {
			fmt.Fprintf(&b, "- %s: %s\n", k, v)
		}
		b.WriteString("\n")
	}
	b.WriteString("Missing fields (pick one):\n")
	for _, spec := range candidates {
		fmt.Fprintf(&b, "- %s (%s): %s, e.g. %s\n", spec.Name, spec.Label, spec.Description, strings.Join(spec.Examples, "; "))
	}

	raw, err := a.gen.Generate(ctx, questionSystemPrompt, b.String())
	if err != nil {
		return QuestionResult{}, fmt.Errorf("question generation failed: %w", err)
	}

	field, question := parseTaggedQuestion(raw)
	if question == "" {
		slog.Warn("Question generation output unparseable, using raw output", "outputLength", len(raw))
		return QuestionResult{Question: strings.TrimSpace(raw)}, nil
	}
	return QuestionResult{Field: field, Question: question, Parsed: field != ""}, nil
}

// parseTaggedQuestion extracts the FIELD and QUESTION tagged segments.
func parseTaggedQuestion(raw string) (field, question string) {
	for _, line := range strings.Split(raw, "\n") {
		trimmed := strings.TrimSpace(line)
		upper := strings.ToUpper(trimmed)
		switch {
		case strings.HasPrefix(upper, "FIELD:"):
			field = strings.ToLower(strings.TrimSpace(trimmed[len("FIELD:"):]))
		case strings.HasPrefix(upper, "QUESTION:"):
			question = strings.TrimSpace(trimmed[len("QUESTION:"):])
		}
	}
	return field, question
}

// KV is one extracted key/value pair, in collaborator output order.
type KV struct {
	Key   string
	Value string
}

const extractionSystemPrompt = `You extract structured intake fields from a patient's reply.
Output one line per field found, formatted exactly as:
<field_name>: <value>
Only output fields the reply actually answers. If nothing matches, output NONE.`

// ExtractFields asks the collaborator to pull field values out of a free-text
// reply. Returns nil when the collaborator fails or nothing parseable comes
// back; the caller's forward-progress fallback handles that case.
func (a *Assist) ExtractFields(ctx context.Context, reply string, candidates []FieldSpec) []KV {
	var b strings.Builder
	b.WriteString("Candidate fields:\n")
	for _, spec := range candidates {
		fmt.Fprintf(&b, "- %s (%s): %s\n", spec.Name, spec.Label, spec.Description)
	}
	fmt.Fprintf(&b, "\nPatient reply:\n%s\n", reply)

	raw, err := a.gen.Generate(ctx, extractionSystemPrompt, b.String())
	if err != nil {
		slog.Warn("Field extraction call failed", "error", err)
		return nil
	}
	return parseKeyValueLines(raw)
}

// parseKeyValueLines parses "key: value" lines, preserving order and
// skipping anything malformed.
func parseKeyValueLines(raw string) []KV {
	var pairs []KV
	for _, line := range strings.Split(raw, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.EqualFold(trimmed, "none") {
			continue
		}
		idx := strings.Index(trimmed, ":")
		if idx <= 0 {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(strings.Trim(trimmed[:idx], "-* ")))
		value := strings.TrimSpace(trimmed[idx+1:])
		if key == "" || value == "" {
			continue
		}
		pairs = append(pairs, KV{Key: key, Value: value})
	}
	return pairs
}

const severitySystemPrompt = `You assess symptom severity for triage.
Given the patient's description, rate the severity from 1 (minimal) to 10 (life-threatening).
Respond with a single integer only.`

// AssessSeverity derives a numeric severity from a free-text description.
// The result is clamped to [1,10]. Returns ok=false when no numeric signal
// could be obtained.
func (a *Assist) AssessSeverity(ctx context.Context, text string) (int, bool) {
	raw, err := a.gen.Generate(ctx, severitySystemPrompt, text)
	if err != nil {
		slog.Warn("Severity assessment call failed", "error", err)
		return 0, false
	}
	n, ok := firstInt(raw)
	if !ok {
		slog.Warn("Severity assessment output had no number", "outputLength", len(raw))
		return 0, false
	}
	return ClampSeverity(n), true
}

// ClampSeverity clamps a severity value to the valid [1,10] range.
func ClampSeverity(n int) int {
	if n < 1 {
		return 1
	}
	if n > 10 {
		return 10
	}
	return n
}

// firstInt returns the first integer appearing in s.
func firstInt(s string) (int, bool) {
	start := -1
	for i, r := range s {
		if r >= '0' && r <= '9' {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			n, err := strconv.Atoi(s[start:i])
			return n, err == nil
		}
	}
	if start >= 0 {
		n, err := strconv.Atoi(s[start:])
		return n, err == nil
	}
	return 0, false
}

const completenessSystemPrompt = `You judge whether an intake information set is complete enough to move on.
Respond with a single word: COMPLETE if every required field has a usable answer, INCOMPLETE otherwise.`

// CheckCompleteness asks the collaborator whether the collected fields cover
// the required list. Only an exact COMPLETE token is accepted; anything
// else, including failures and ambiguous replies, counts as incomplete.
func (a *Assist) CheckCompleteness(ctx context.Context, collected map[string]string, required []FieldSpec) bool {
	var b strings.Builder
	b.WriteString("Required fields:\n")
	for _, spec := range required {
		fmt.Fprintf(&b, "- %s: %s\n", spec.Name, spec.Description)
	}
	b.WriteString("\nCollected so far:\n")
	if len(collected) == 0 {
		b.WriteString("(nothing)\n")
	}
	for k, v := range collected {
		fmt.Fprintf(&b, "- %s: %s\n", k, v)
	}

	raw, err := a.gen.Generate(ctx, completenessSystemPrompt, b.String())
	if err != nil {
		slog.Warn("Completeness check call failed, treating as incomplete", "error", err)
		return false
	}
	return isCompleteToken(raw)
}

// isCompleteToken accepts only an exact leading COMPLETE token. A substring
// check would misread replies containing both "complete" and "incomplete",
// so the reply is reduced to its first word before comparison.
func isCompleteToken(raw string) bool {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return false
	}
	token := strings.ToUpper(strings.Trim(fields[0], ".,!:;\"'"))
	return token == "COMPLETE"
}
