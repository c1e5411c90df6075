// Package store provides persistence backends for the intake engine.
//
// It includes an in-memory store for tests and development, plus SQLite and
// PostgreSQL implementations selected by DSN detection.
package store

import (
	"sort"
	"strings"
	"sync"

	"github.com/sean-bit813/medical-LLM-system/internal/models"
)

// Store is the persistence interface consumed by the memory and knowledge
// collaborators.
type Store interface {
	SaveConsultation(c models.Consultation) error
	GetConsultations(patientID string, limit int) ([]models.Consultation, error)
	AddSymptom(s models.SymptomRecord) error
	GetSymptoms(patientID string, limit int) ([]models.SymptomRecord, error)
	SavePatientProfile(p models.PatientProfile) error
	GetPatientProfile(patientID string) (*models.PatientProfile, error)
	AddKnowledgeDoc(d models.KnowledgeDoc) error
	AllKnowledgeDocs() ([]models.KnowledgeDoc, error)
	Close() error
}

// Opts holds configuration options for store construction.
type Opts struct {
	DSN string
}

// Option defines a configuration option for store construction.
type Option func(*Opts)

// WithSQLiteDSN sets a SQLite file path as the store DSN.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithPostgresDSN sets a PostgreSQL connection string as the store DSN.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// DetectDSNType classifies a DSN as "postgres" or "sqlite". PostgreSQL DSNs
// use URL or key=value form; anything else is treated as a SQLite file path.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite"
}

// InMemoryStore is a mutex-guarded in-memory Store implementation.
type InMemoryStore struct {
	mu            sync.Mutex
	consultations []models.Consultation
	symptoms      []models.SymptomRecord
	profiles      map[string]models.PatientProfile
	docs          []models.KnowledgeDoc
	nextDocID     int64
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{profiles: make(map[string]models.PatientProfile), nextDocID: 1}
}

func (s *InMemoryStore) SaveConsultation(c models.Consultation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.consultations {
		if existing.ID == c.ID {
			s.consultations[i] = c
			return nil
		}
	}
	s.consultations = append(s.consultations, c)
	return nil
}

func (s *InMemoryStore) GetConsultations(patientID string, limit int) ([]models.Consultation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Consultation
	for _, c := range s.consultations {
		if c.PatientID == patientID {
			out = append(out, c)
		}
	}
	// Most recent first.
	sort.Slice(out, func(i, j int) bool { return out[i].EndedAt.After(out[j].EndedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemoryStore) AddSymptom(rec models.SymptomRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.symptoms = append(s.symptoms, rec)
	return nil
}

func (s *InMemoryStore) GetSymptoms(patientID string, limit int) ([]models.SymptomRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.SymptomRecord
	for _, rec := range s.symptoms {
		if rec.PatientID == patientID {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RecordedAt.After(out[j].RecordedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemoryStore) SavePatientProfile(p models.PatientProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.PatientID] = p
	return nil
}

func (s *InMemoryStore) GetPatientProfile(patientID string) (*models.PatientProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[patientID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (s *InMemoryStore) AddKnowledgeDoc(d models.KnowledgeDoc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d.ID = s.nextDocID
	s.nextDocID++
	s.docs = append(s.docs, d)
	return nil
}

func (s *InMemoryStore) AllKnowledgeDocs() ([]models.KnowledgeDoc, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.KnowledgeDoc, len(s.docs))
	copy(out, s.docs)
	return out, nil
}

func (s *InMemoryStore) Close() error { return nil }
