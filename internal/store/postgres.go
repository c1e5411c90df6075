// Package store provides persistence backends for the intake engine.
//
// This file implements the PostgreSQL-backed store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"

	_ "embed"

	"github.com/sean-bit813/medical-LLM-system/internal/models"

	_ "github.com/lib/pq"
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresStore is a Store backed by a PostgreSQL database.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL store for the DSN and runs migrations.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "DSN_set", cfg.DSN != "")

	if cfg.DSN == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		slog.Error("Failed to open PostgreSQL connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("PostgreSQL ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run PostgreSQL migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("PostgreSQL migrations applied successfully")

	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) SaveConsultation(c models.Consultation) error {
	fieldsJSON, turnsJSON, err := encodeConsultation(c)
	if err != nil {
		slog.Error("PostgresStore SaveConsultation encode failed", "error", err, "id", c.ID)
		return err
	}
	_, err = s.db.Exec(`INSERT INTO consultations (id, patient_id, final_state, fields, turns, started_at, ended_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET final_state = $3, fields = $4, turns = $5, ended_at = $7`,
		c.ID, c.PatientID, string(c.FinalState), fieldsJSON, turnsJSON, c.StartedAt, c.EndedAt)
	if err != nil {
		slog.Error("PostgresStore SaveConsultation failed", "error", err, "id", c.ID)
		return fmt.Errorf("failed to save consultation %s: %w", c.ID, err)
	}
	slog.Debug("PostgresStore SaveConsultation succeeded", "id", c.ID, "patientID", c.PatientID)
	return nil
}

func (s *PostgresStore) GetConsultations(patientID string, limit int) ([]models.Consultation, error) {
	rows, err := s.db.Query(`SELECT id, patient_id, final_state, fields, turns, started_at, ended_at
		FROM consultations WHERE patient_id = $1 ORDER BY ended_at DESC LIMIT $2`, patientID, limitOrMax(limit))
	if err != nil {
		slog.Error("PostgresStore GetConsultations query failed", "error", err, "patientID", patientID)
		return nil, fmt.Errorf("failed to query consultations: %w", err)
	}
	defer rows.Close()
	return scanConsultations(rows)
}

func (s *PostgresStore) AddSymptom(rec models.SymptomRecord) error {
	_, err := s.db.Exec(`INSERT INTO symptoms (patient_id, name, severity, duration, recorded_at) VALUES ($1, $2, $3, $4, $5)`,
		rec.PatientID, rec.Name, rec.Severity, nilIfEmpty(rec.Duration), rec.RecordedAt)
	if err != nil {
		slog.Error("PostgresStore AddSymptom failed", "error", err, "patientID", rec.PatientID)
		return fmt.Errorf("failed to insert symptom for %s: %w", rec.PatientID, err)
	}
	return nil
}

func (s *PostgresStore) GetSymptoms(patientID string, limit int) ([]models.SymptomRecord, error) {
	rows, err := s.db.Query(`SELECT patient_id, name, severity, duration, recorded_at
		FROM symptoms WHERE patient_id = $1 ORDER BY recorded_at DESC LIMIT $2`, patientID, limitOrMax(limit))
	if err != nil {
		slog.Error("PostgresStore GetSymptoms query failed", "error", err, "patientID", patientID)
		return nil, fmt.Errorf("failed to query symptoms: %w", err)
	}
	defer rows.Close()
	return scanSymptoms(rows)
}

func (s *PostgresStore) SavePatientProfile(p models.PatientProfile) error {
	infoJSON, err := encodeMap(p.Info)
	if err != nil {
		slog.Error("PostgresStore SavePatientProfile encode failed", "error", err, "patientID", p.PatientID)
		return err
	}
	_, err = s.db.Exec(`INSERT INTO patient_profiles (patient_id, info, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT (patient_id) DO UPDATE SET info = $2, updated_at = $3`,
		p.PatientID, infoJSON, p.UpdatedAt)
	if err != nil {
		slog.Error("PostgresStore SavePatientProfile failed", "error", err, "patientID", p.PatientID)
		return fmt.Errorf("failed to save profile for %s: %w", p.PatientID, err)
	}
	return nil
}

func (s *PostgresStore) GetPatientProfile(patientID string) (*models.PatientProfile, error) {
	row := s.db.QueryRow(`SELECT patient_id, info, updated_at FROM patient_profiles WHERE patient_id = $1`, patientID)
	p, err := scanProfile(row)
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore GetPatientProfile not found", "patientID", patientID)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetPatientProfile failed", "error", err, "patientID", patientID)
		return nil, err
	}
	return p, nil
}

func (s *PostgresStore) AddKnowledgeDoc(d models.KnowledgeDoc) error {
	_, err := s.db.Exec(`INSERT INTO knowledge_docs (department, title, body) VALUES ($1, $2, $3)`,
		nilIfEmpty(d.Department), nilIfEmpty(d.Title), d.Text)
	if err != nil {
		slog.Error("PostgresStore AddKnowledgeDoc failed", "error", err)
		return fmt.Errorf("failed to insert knowledge doc: %w", err)
	}
	return nil
}

func (s *PostgresStore) AllKnowledgeDocs() ([]models.KnowledgeDoc, error) {
	rows, err := s.db.Query(`SELECT id, department, title, body FROM knowledge_docs`)
	if err != nil {
		slog.Error("PostgresStore AllKnowledgeDocs query failed", "error", err)
		return nil, fmt.Errorf("failed to query knowledge docs: %w", err)
	}
	defer rows.Close()
	return scanKnowledgeDocs(rows)
}

// Close closes the PostgreSQL database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing PostgreSQL database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close PostgreSQL database", "error", err)
	}
	return err
}
