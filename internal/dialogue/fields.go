// Package dialogue implements the intake conversation engine: the
// per-conversation context, the per-state flow policies, and the dialogue
// manager that drives a consultation turn by turn.
package dialogue

import "strings"

// FieldSpec describes one collectable field: its identifier, a
// human-readable label, and description/examples used in collaborator
// prompts and fallback questions.
type FieldSpec struct {
	Name        string
	Label       string
	Description string
	Examples    []string
	Importance  string // high, medium, low
}

// CombinedInfoFields is the ordered required-field sequence for the combined
// demographic and chief-complaint collection stage.
var CombinedInfoFields = []FieldSpec{
	{
		Name: "age", Label: "age",
		Description: "the patient's age",
		Examples:    []string{"34", "around forty", "23 years old"},
		Importance:  "high",
	},
	{
		Name: "gender", Label: "gender",
		Description: "the patient's gender",
		Examples:    []string{"male", "female"},
		Importance:  "high",
	},
	{
		Name: "medical_history", Label: "medical history",
		Description: "past illnesses and operations",
		Examples:    []string{"hypertension", "diabetes", "gallbladder surgery last year", "none"},
		Importance:  "medium",
	},
	{
		Name: "allergy", Label: "allergies",
		Description: "known drug or food allergies",
		Examples:    []string{"allergic to penicillin", "shellfish allergy", "no known allergies"},
		Importance:  "medium",
	},
	{
		Name: "medication", Label: "current medication",
		Description: "medicines the patient is currently taking",
		Examples:    []string{"blood pressure tablets", "on antibiotics", "not taking anything"},
		Importance:  "medium",
	},
	{
		Name: "main", Label: "main symptom",
		Description: "the patient's primary complaint right now",
		Examples:    []string{"headache", "stomach ache", "fever", "cough"},
		Importance:  "high",
	},
	{
		Name: "duration", Label: "duration",
		Description: "how long the symptom has lasted",
		Examples:    []string{"2 days", "about a week", "3 hours", "on and off for six months"},
		Importance:  "high",
	},
	{
		Name: "severity", Label: "severity",
		Description: "how much the symptom affects daily life, on a 1-10 scale",
		Examples:    []string{"mild, bearable", "moderate, affects work", "severe, unbearable"},
		Importance:  "high",
	},
	{
		Name: "pattern", Label: "symptom pattern",
		Description: "whether the symptom is constant or comes and goes",
		Examples:    []string{"constant pain", "worse every morning", "intermittent", "worse after exercise"},
		Importance:  "medium",
	},
	{
		Name: "factors", Label: "aggravating or relieving factors",
		Description: "what makes the symptom better or worse",
		Examples:    []string{"better after rest", "worse after eating", "pressure relieves it"},
		Importance:  "medium",
	},
	{
		Name: "associated", Label: "associated symptoms",
		Description: "other discomfort besides the main symptom",
		Examples:    []string{"also feeling nauseous", "with fever", "some fatigue", "nothing else"},
		Importance:  "medium",
	},
}

// LifeStyleFields is the ordered required-field sequence for the lifestyle
// stage.
var LifeStyleFields = []FieldSpec{
	{
		Name: "sleep", Label: "sleep",
		Description: "sleep duration and quality",
		Examples:    []string{"7 hours a night", "insomnia", "poor quality sleep"},
		Importance:  "medium",
	},
	{
		Name: "diet", Label: "diet",
		Description: "eating habits and regularity",
		Examples:    []string{"irregular meals", "spicy food", "light diet", "eat out a lot"},
		Importance:  "medium",
	},
	{
		Name: "exercise", Label: "exercise",
		Description: "exercise frequency and type",
		Examples:    []string{"run three times a week", "rarely exercise", "swim regularly"},
		Importance:  "low",
	},
	{
		Name: "work", Label: "work",
		Description: "workload and work-related stress",
		Examples:    []string{"high pressure job", "long desk hours", "shift work", "relaxed"},
		Importance:  "low",
	},
	{
		Name: "smoke_drink", Label: "smoking and drinking",
		Description: "tobacco and alcohol habits",
		Examples:    []string{"non-smoker, no alcohol", "half a pack a day", "social drinker", "quit five years ago"},
		Importance:  "medium",
	},
}

// matchFieldKey maps an extracted key onto a known field, in precedence
// order: exact field-name match, then exact or partial match against the
// field's label. Returns the matched field name.
func matchFieldKey(key string, specs []FieldSpec) (string, bool) {
	k := strings.ToLower(strings.TrimSpace(key))
	for _, s := range specs {
		if k == s.Name {
			return s.Name, true
		}
	}
	for _, s := range specs {
		label := strings.ToLower(s.Label)
		if k == label || strings.Contains(label, k) || strings.Contains(k, label) {
			return s.Name, true
		}
	}
	return "", false
}
