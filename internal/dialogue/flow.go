package dialogue

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"github.com/sean-bit813/medical-LLM-system/internal/models"
)

// Signal is the tagged result of response processing. Emergencies are a
// distinct control signal rather than a transition-table edge, so the
// manager can bypass the table and tests can assert on the signal directly.
type Signal int

const (
	SignalNone Signal = iota
	SignalEmergency
)

// Analyzer is the NLU collaborator surface consumed by the engine.
type Analyzer interface {
	DetectIntent(ctx context.Context, text string, conversationContext map[string]string) models.IntentResult
	RecognizeSymptoms(ctx context.Context, text string) []string
}

// emergencyIntentThreshold is the minimum classifier confidence for the
// intent-based emergency check.
const emergencyIntentThreshold = 0.7

// errEmptyQuestion flags a question-generation call that returned no usable
// text, so the fallback question path takes over.
var errEmptyQuestion = errors.New("empty question generated")

// Flow is the policy object governing field collection and question
// generation for one conversation state. Flows are instantiated fresh on
// every transition into their state and discarded on transition out.
type Flow interface {
	// State returns the dialogue state this flow owns.
	State() models.DialogueState
	// NextQuestion returns the next collection question, or ok=false when
	// the flow is satisfied and has nothing left to ask.
	NextQuestion(ctx context.Context, c *Context) (string, bool)
	// ProcessResponse ingests a user reply. Safe to call with any input.
	ProcessResponse(ctx context.Context, reply string, c *Context) Signal
	// ShouldTransition reports whether the flow's requirements are met.
	ShouldTransition(ctx context.Context, c *Context) bool
	// NextState returns the state to move to, or the current state when the
	// flow is not yet satisfied.
	NextState(ctx context.Context, c *Context) models.DialogueState
	// Reset rewinds the collection cursor. Idempotent.
	Reset()
}

// Deps bundles the collaborators flows need. NLU may be nil, which disables
// the intent-based emergency check.
type Deps struct {
	Assist *Assist
	NLU    Analyzer
	Config Config
}

// baseFlow carries the cursor-over-required-fields protocol shared by all
// flow variants.
type baseFlow struct {
	state    models.DialogueState
	required []FieldSpec
	cursor   int
}

func (f *baseFlow) State() models.DialogueState { return f.state }

func (f *baseFlow) Reset() { f.cursor = 0 }

// advance moves the cursor past required fields that are already collected.
// The cursor never moves backwards within one flow instance.
func (f *baseFlow) advance(c *Context) {
	for f.cursor < len(f.required) && c.Has(f.required[f.cursor].Name) {
		f.cursor++
	}
}

// satisfied reports whether the cursor has consumed the required sequence.
func (f *baseFlow) satisfied(c *Context) bool {
	f.advance(c)
	return f.cursor >= len(f.required)
}

// missing returns the required fields not yet collected.
func (f *baseFlow) missing(c *Context) []FieldSpec {
	var out []FieldSpec
	for _, spec := range f.required {
		if !c.Has(spec.Name) {
			out = append(out, spec)
		}
	}
	return out
}

// collectFlow is the question-asking flow variant used by the collection
// states. symptomStage enables severity normalization and emergency checks.
type collectFlow struct {
	baseFlow
	deps         Deps
	symptomStage bool
}

// NextQuestion picks one still-missing field and produces a question for it.
// On a successful parse the pending-field pointer is set so the next reply
// can be mapped deterministically; on parse failure the raw collaborator
// output is used and the pointer stays unset.
func (f *collectFlow) NextQuestion(ctx context.Context, c *Context) (string, bool) {
	if f.satisfied(c) {
		return "", false
	}
	// In assisted mode the completion collaborator can declare the collected
	// set sufficient before the cursor is exhausted; stop asking so the
	// transition can happen.
	if f.deps.Config.AssistedCompletion && f.ShouldTransition(ctx, c) {
		slog.Debug("Assisted completion ended questioning early", "state", f.state)
		return "", false
	}
	candidates := f.missing(c)

	result, err := f.deps.Assist.GenerateQuestion(ctx, c.Fields(), candidates)
	if err == nil && strings.TrimSpace(result.Question) == "" {
		err = errEmptyQuestion
	}
	if err != nil {
		// Collaborator down: fall back to a locally built question for the
		// first missing field so the protocol keeps moving.
		spec := candidates[0]
		c.PendingField = spec.Name
		slog.Warn("Question generation unavailable, using fallback question", "state", f.state, "field", spec.Name)
		return fallbackQuestion(spec), true
	}

	if result.Parsed {
		if name, ok := matchFieldKey(result.Field, candidates); ok {
			c.PendingField = name
		} else {
			c.PendingField = ""
		}
	} else {
		c.PendingField = ""
	}
	slog.Debug("Next question generated", "state", f.state, "pendingField", c.PendingField, "parsed", result.Parsed)
	return result.Question, true
}

// ProcessResponse extracts structured fields from the reply, guarantees
// forward progress on unparseable input, and (for the symptom stage)
// normalizes severity and runs the emergency checks.
func (f *collectFlow) ProcessResponse(ctx context.Context, reply string, c *Context) Signal {
	reply = strings.TrimSpace(reply)
	if reply == "" && c.PendingField == "" {
		return SignalNone
	}

	pairs := f.deps.Assist.ExtractFields(ctx, reply, f.required)
	severityTouched := false
	for _, kv := range pairs {
		name, ok := matchFieldKey(kv.Key, f.required)
		if !ok {
			if c.PendingField != "" {
				name = c.PendingField
				c.PendingField = ""
			} else {
				name = kv.Key
			}
		}
		c.Set(name, kv.Value)
		if name == "severity" {
			severityTouched = true
		}
	}

	// Forward-progress guarantee: an unparseable reply still fills the
	// pending field verbatim so the conversation cannot stall.
	if len(pairs) == 0 && c.PendingField != "" {
		c.Set(c.PendingField, reply)
		if c.PendingField == "severity" {
			severityTouched = true
		}
		slog.Debug("Extraction empty, stored raw reply in pending field", "state", f.state, "field", c.PendingField)
		c.PendingField = ""
	}

	if !f.symptomStage {
		return SignalNone
	}

	if severityTouched {
		f.normalizeSeverity(ctx, c)
	}
	return f.checkEmergency(ctx, reply, c)
}

// normalizeSeverity turns the stored severity value into an integer in
// [1,10], preferring a direct numeric parse over a collaborator call. A
// value that yields no numeric signal at all is left as raw text.
func (f *collectFlow) normalizeSeverity(ctx context.Context, c *Context) {
	value := c.Get("severity")
	if n, ok := firstInt(value); ok {
		c.Set("severity", strconv.Itoa(ClampSeverity(n)))
		return
	}
	if n, ok := f.deps.Assist.AssessSeverity(ctx, value); ok {
		c.Set("severity", strconv.Itoa(n))
	}
}

// checkEmergency applies the emergency checks in priority order: stored
// severity, danger keywords, intent classifier. The first positive
// short-circuits the rest.
func (f *collectFlow) checkEmergency(ctx context.Context, reply string, c *Context) Signal {
	if sev, _ := strconv.Atoi(c.Get("severity")); sev >= 8 {
		c.Set("referral_urgency", "urgent")
		c.Set("emergency_advice", "Symptom severity is very high; please seek medical care immediately.")
		slog.Info("Emergency detected by severity", "severity", sev)
		f.Reset()
		return SignalEmergency
	}

	if condition, ok := matchDangerAll(reply, c); ok {
		c.Set("referral_urgency", "urgent")
		c.Set("emergency_advice", "Signs of "+condition+" detected; please seek medical care immediately.")
		slog.Info("Emergency detected by keyword heuristic", "condition", condition)
		f.Reset()
		return SignalEmergency
	}

	if f.deps.NLU != nil {
		result := f.deps.NLU.DetectIntent(ctx, reply, c.Fields())
		if result.PrimaryIntent == models.IntentEmergency && result.Confidence > emergencyIntentThreshold {
			c.Set("referral_urgency", "urgent")
			c.Set("emergency_advice", "Your message suggests an emergency; please seek medical care immediately.")
			slog.Info("Emergency detected by intent classifier", "confidence", result.Confidence)
			f.Reset()
			return SignalEmergency
		}
	}
	return SignalNone
}

// ShouldTransition reports completion: in legacy mode the cursor must have
// consumed the required sequence; in assisted mode the completion
// collaborator may declare the set complete earlier.
func (f *collectFlow) ShouldTransition(ctx context.Context, c *Context) bool {
	if f.satisfied(c) {
		return true
	}
	if !f.deps.Config.AssistedCompletion {
		return false
	}
	collected := make(map[string]string)
	for _, spec := range f.required {
		if c.Has(spec.Name) {
			collected[spec.Name] = c.Get(spec.Name)
		}
	}
	return f.deps.Assist.CheckCompleteness(ctx, collected, f.required)
}

// NextState keeps the flow active until its requirements are met, then
// resets the cursor and moves to the default successor.
func (f *collectFlow) NextState(ctx context.Context, c *Context) models.DialogueState {
	if !f.ShouldTransition(ctx, c) {
		return f.state
	}
	f.Reset()
	return models.Successors(f.state)[0]
}
