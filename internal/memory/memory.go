// Package memory coordinates the three-tier consultation memory: a
// short-term in-conversation turn buffer, mid-term consultation and symptom
// records, and a long-term patient profile.
package memory

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sean-bit813/medical-LLM-system/internal/models"
	"github.com/sean-bit813/medical-LLM-system/internal/store"
)

// shortTermLimit caps how many recent turns RetrieveRelevant returns.
const shortTermLimit = 10

// Snapshot bundles what the three memory tiers know that is relevant to the
// current turn.
type Snapshot struct {
	ShortTerm []models.DialogueTurn
	MidTerm   []string // recent symptom/consultation summaries
	LongTerm  []string // profile facts
}

// Manager owns the memory tiers for one patient's active consultation.
type Manager struct {
	mu             sync.Mutex
	store          store.Store
	patientID      string
	consultationID string
	startedAt      time.Time
	turns          []models.DialogueTurn
}

// NewManager creates a memory manager over the given store.
func NewManager(st store.Store) *Manager {
	return &Manager{store: st}
}

// StartConsultation resets short-term memory and begins a new consultation
// record for the patient.
func (m *Manager) StartConsultation(patientID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.patientID = patientID
	m.consultationID = uuid.NewString()
	m.startedAt = time.Now()
	m.turns = nil
	slog.Info("Memory consultation started", "patientID", patientID, "consultationID", m.consultationID)
}

// AddDialogueTurn records one exchange in short-term memory. Role is "user"
// or "assistant".
func (m *Manager) AddDialogueTurn(role, content string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns = append(m.turns, models.DialogueTurn{Role: role, Content: content, Timestamp: time.Now()})
}

// AddSymptom persists a reported symptom to mid-term memory. Failures are
// logged and swallowed; losing a symptom record must not break the turn.
func (m *Manager) AddSymptom(rec models.SymptomRecord) {
	m.mu.Lock()
	rec.PatientID = m.patientID
	m.mu.Unlock()
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = time.Now()
	}
	if err := m.store.AddSymptom(rec); err != nil {
		slog.Error("Memory AddSymptom failed", "error", err, "patientID", rec.PatientID, "name", rec.Name)
	}
}

// RetrieveRelevant gathers context from all three tiers for the query.
// Store failures degrade to an empty tier rather than failing the turn.
func (m *Manager) RetrieveRelevant(query, patientID string) Snapshot {
	m.mu.Lock()
	turns := make([]models.DialogueTurn, len(m.turns))
	copy(turns, m.turns)
	m.mu.Unlock()

	if len(turns) > shortTermLimit {
		turns = turns[len(turns)-shortTermLimit:]
	}
	snap := Snapshot{ShortTerm: turns}

	symptoms, err := m.store.GetSymptoms(patientID, 5)
	if err != nil {
		slog.Warn("Memory mid-term retrieval failed", "error", err, "patientID", patientID)
	}
	for _, s := range symptoms {
		entry := s.Name
		if s.Duration != "" {
			entry += " (" + s.Duration + ")"
		}
		if s.Severity > 0 {
			entry += fmt.Sprintf(", severity %d/10", s.Severity)
		}
		snap.MidTerm = append(snap.MidTerm, entry)
	}

	consultations, err := m.store.GetConsultations(patientID, 3)
	if err != nil {
		slog.Warn("Memory consultation retrieval failed", "error", err, "patientID", patientID)
	}
	for _, c := range consultations {
		if main := c.Fields["main"]; main != "" {
			snap.MidTerm = append(snap.MidTerm, "previous visit: "+main)
		}
	}

	profile, err := m.store.GetPatientProfile(patientID)
	if err != nil {
		slog.Warn("Memory long-term retrieval failed", "error", err, "patientID", patientID)
	}
	if profile != nil {
		for k, v := range profile.Info {
			snap.LongTerm = append(snap.LongTerm, k+": "+v)
		}
	}

	slog.Debug("Memory retrieval completed", "patientID", patientID,
		"shortTerm", len(snap.ShortTerm), "midTerm", len(snap.MidTerm), "longTerm", len(snap.LongTerm))
	return snap
}

// profileFields lists collected fields worth keeping in the long-term
// patient profile across consultations.
var profileFields = []string{"age", "gender", "medical_history", "allergy", "medication"}

// SaveConsultation persists the finished conversation to mid-term memory and
// refreshes the long-term profile from the collected fields.
func (m *Manager) SaveConsultation(finalState models.DialogueState, fields map[string]string) error {
	m.mu.Lock()
	cons := models.Consultation{
		ID:         m.consultationID,
		PatientID:  m.patientID,
		FinalState: finalState,
		Fields:     fields,
		Turns:      m.turns,
		StartedAt:  m.startedAt,
		EndedAt:    time.Now(),
	}
	m.mu.Unlock()

	if cons.ID == "" {
		return fmt.Errorf("no active consultation")
	}
	if err := m.store.SaveConsultation(cons); err != nil {
		return fmt.Errorf("failed to save consultation: %w", err)
	}

	info := make(map[string]string)
	for _, k := range profileFields {
		if v := strings.TrimSpace(fields[k]); v != "" {
			info[k] = v
		}
	}
	if len(info) > 0 {
		err := m.store.SavePatientProfile(models.PatientProfile{
			PatientID: cons.PatientID,
			Info:      info,
			UpdatedAt: time.Now(),
		})
		if err != nil {
			slog.Warn("Memory profile update failed", "error", err, "patientID", cons.PatientID)
		}
	}

	slog.Info("Memory consultation saved", "patientID", cons.PatientID, "consultationID", cons.ID, "finalState", finalState)
	return nil
}
