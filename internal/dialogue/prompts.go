package dialogue

import (
	"fmt"
	"strings"

	"github.com/sean-bit813/medical-LLM-system/internal/models"
)

// Fixed conversation messages.
const (
	// WelcomeMessage opens every new conversation.
	WelcomeMessage = "Hello, I'm your medical intake assistant. To get started, could you tell me your age and what's been bothering you?"

	// TimeoutMessage closes a conversation that ran past the time limit.
	TimeoutMessage = "This consultation has timed out. Please start a new session to continue."

	// MaxTurnsMessage closes a conversation that hit the turn limit.
	MaxTurnsMessage = "We've reached the maximum number of turns for this consultation. Please review the collected information and consider seeing a doctor."

	// ClosingMessage closes a conversation that finished normally.
	ClosingMessage = "Thank you for the consultation. Take care and get well soon!"

	// EndedMessage answers messages arriving after the conversation ended.
	EndedMessage = "This consultation has ended. Please start a new session if you need further help."

	// ContinuationSuffix is appended to generated stage responses so the
	// user knows another input advances the conversation.
	ContinuationSuffix = "\n\nSend any message to continue."

	// CollectedFallback is returned when neither a question nor a response
	// was produced this turn.
	CollectedFallback = "Your information has been collected. Send any message to continue to the next step."
)

// responseSystemPrompt frames all output-stage generation calls.
const responseSystemPrompt = `You are a careful medical intake assistant. You do not make definitive
diagnoses; you summarize, advise conservatively, and always recommend
professional care when in doubt. Answer in clear, plain language.`

// responseTemplates maps each output stage to its generation template. The
// %s slots are: collected patient information, relevant knowledge, memory
// context.
var responseTemplates = map[models.DialogueState]string{
	models.StateDiagnosis: `Based on the patient information below, give a preliminary impression of
the most likely explanations for the symptoms, with your reasoning.
Mention that this is not a formal diagnosis.

Patient information:
%s

Relevant medical knowledge:
%s

Patient history:
%s`,
	models.StateMedicalAdvice: `Based on the patient information below, give practical self-care advice:
what to do at home, what to watch for, and when to see a doctor.

Patient information:
%s

Relevant medical knowledge:
%s

Patient history:
%s`,
	models.StateReferral: `The patient below needs a referral. Urgency: see the referral_urgency
field (treat "urgent" as an emergency referral). State clearly where they
should go, how soon, and what to bring.

Patient information:
%s

Relevant medical knowledge:
%s

Patient history:
%s`,
	models.StateEducation: `Close the consultation with short health-education guidance tailored to
the patient below: prevention, lifestyle adjustments, and warning signs
that should prompt a return visit.

Patient information:
%s

Relevant medical knowledge:
%s

Patient history:
%s`,
}

// responseFallbacks answer for each output stage when generation fails.
var responseFallbacks = map[models.DialogueState]string{
	models.StateDiagnosis:     "I've recorded your information. A preliminary assessment isn't available right now; please discuss your symptoms with a doctor.",
	models.StateMedicalAdvice: "General advice: rest, stay hydrated, and monitor your symptoms. See a doctor if anything worsens.",
	models.StateReferral:      "Based on what you've described, please visit a medical facility as soon as you can. If symptoms are severe, go to the emergency department now.",
	models.StateEducation:     "Keep a regular routine, watch your symptoms, and don't hesitate to seek care if they return or worsen.",
}

// fallbackQuestion builds a deterministic question for a field when the
// generation collaborator is unavailable.
func fallbackQuestion(spec FieldSpec) string {
	q := fmt.Sprintf("Could you tell me about your %s? (%s)", spec.Label, spec.Description)
	if len(spec.Examples) > 0 {
		q += " For example: " + strings.Join(spec.Examples, "; ") + "."
	}
	return q
}

// infoSections groups collected fields for the formatted summary, in
// display order.
var infoSections = []struct {
	title  string
	fields []string
}{
	{"Basic information", []string{"age", "gender"}},
	{"History", []string{"medical_history", "allergy", "medication"}},
	{"Symptoms", []string{"main", "duration", "severity", "pattern", "factors", "associated"}},
	{"Lifestyle", []string{"sleep", "diet", "exercise", "work", "smoke_drink"}},
	{"Triage", []string{"referral_urgency", "emergency_advice"}},
}

// formatCollectedInfo renders the collected fields into titled sections for
// prompt templates. Unknown fields are omitted.
func formatCollectedInfo(fields map[string]string) string {
	var sections []string
	for _, sec := range infoSections {
		var lines []string
		for _, name := range sec.fields {
			if v, ok := fields[name]; ok && strings.TrimSpace(v) != "" {
				lines = append(lines, fmt.Sprintf("%s: %s", name, v))
			}
		}
		if len(lines) > 0 {
			sections = append(sections, sec.title+":\n"+strings.Join(lines, "\n"))
		}
	}
	if len(sections) == 0 {
		return "(no information collected)"
	}
	return strings.Join(sections, "\n\n")
}
