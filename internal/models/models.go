package models

import "time"

// DialogueTurn is one exchange in a consultation, recorded in short-term
// memory and persisted when the consultation is saved.
type DialogueTurn struct {
	Role      string    `json:"role"` // "user" or "assistant"
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// SymptomRecord captures a reported symptom for mid-term memory.
type SymptomRecord struct {
	PatientID  string    `json:"patient_id"`
	Name       string    `json:"name"`
	Severity   int       `json:"severity,omitempty"`
	Duration   string    `json:"duration,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Consultation is the persisted record of one completed (or terminated)
// intake conversation.
type Consultation struct {
	ID         string            `json:"id"`
	PatientID  string            `json:"patient_id"`
	FinalState DialogueState     `json:"final_state"`
	Fields     map[string]string `json:"fields,omitempty"`
	Turns      []DialogueTurn    `json:"turns,omitempty"`
	StartedAt  time.Time         `json:"started_at"`
	EndedAt    time.Time         `json:"ended_at"`
}

// PatientProfile is the long-term memory record for a patient.
type PatientProfile struct {
	PatientID string            `json:"patient_id"`
	Info      map[string]string `json:"info,omitempty"` // age, gender, history, allergies...
	UpdatedAt time.Time         `json:"updated_at"`
}

// KnowledgeDoc is one retrievable chunk of the medical knowledge base.
type KnowledgeDoc struct {
	ID         int64   `json:"id"`
	Department string  `json:"department,omitempty"`
	Title      string  `json:"title,omitempty"`
	Text       string  `json:"text"`
	Score      float64 `json:"score,omitempty"` // set on retrieval, not stored
}

// IntentResult is the outcome of intent detection on a user message.
type IntentResult struct {
	PrimaryIntent string              `json:"primary_intent"`
	Confidence    float64             `json:"confidence"`
	Entities      map[string][]string `json:"entities,omitempty"`
}

// Intent constants recognized by the NLU collaborator.
const (
	IntentReportSymptom = "report_symptom"
	IntentAskQuestion   = "ask_question"
	IntentEmergency     = "emergency"
	IntentGreeting      = "greeting"
	IntentFarewell      = "farewell"
	IntentOther         = "other"
)
