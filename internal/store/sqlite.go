// Package store provides persistence backends for the intake engine.
//
// This file implements the SQLite-backed store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "embed"

	"github.com/sean-bit813/medical-LLM-system/internal/models"

	_ "github.com/mattn/go-sqlite3"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore is a Store backed by a SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a SQLite store at the DSN file path, creating the
// parent directory and running migrations as needed.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run SQLite migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) SaveConsultation(c models.Consultation) error {
	fieldsJSON, turnsJSON, err := encodeConsultation(c)
	if err != nil {
		slog.Error("SQLiteStore SaveConsultation encode failed", "error", err, "id", c.ID)
		return err
	}
	_, err = s.db.Exec(`INSERT OR REPLACE INTO consultations (id, patient_id, final_state, fields, turns, started_at, ended_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.PatientID, string(c.FinalState), fieldsJSON, turnsJSON, c.StartedAt, c.EndedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveConsultation failed", "error", err, "id", c.ID)
		return fmt.Errorf("failed to save consultation %s: %w", c.ID, err)
	}
	slog.Debug("SQLiteStore SaveConsultation succeeded", "id", c.ID, "patientID", c.PatientID)
	return nil
}

func (s *SQLiteStore) GetConsultations(patientID string, limit int) ([]models.Consultation, error) {
	rows, err := s.db.Query(`SELECT id, patient_id, final_state, fields, turns, started_at, ended_at
		FROM consultations WHERE patient_id = ? ORDER BY ended_at DESC LIMIT ?`, patientID, limitOrMax(limit))
	if err != nil {
		slog.Error("SQLiteStore GetConsultations query failed", "error", err, "patientID", patientID)
		return nil, fmt.Errorf("failed to query consultations: %w", err)
	}
	defer rows.Close()
	return scanConsultations(rows)
}

func (s *SQLiteStore) AddSymptom(rec models.SymptomRecord) error {
	_, err := s.db.Exec(`INSERT INTO symptoms (patient_id, name, severity, duration, recorded_at) VALUES (?, ?, ?, ?, ?)`,
		rec.PatientID, rec.Name, rec.Severity, nilIfEmpty(rec.Duration), rec.RecordedAt)
	if err != nil {
		slog.Error("SQLiteStore AddSymptom failed", "error", err, "patientID", rec.PatientID)
		return fmt.Errorf("failed to insert symptom for %s: %w", rec.PatientID, err)
	}
	slog.Debug("SQLiteStore AddSymptom succeeded", "patientID", rec.PatientID, "name", rec.Name)
	return nil
}

func (s *SQLiteStore) GetSymptoms(patientID string, limit int) ([]models.SymptomRecord, error) {
	rows, err := s.db.Query(`SELECT patient_id, name, severity, duration, recorded_at
		FROM symptoms WHERE patient_id = ? ORDER BY recorded_at DESC LIMIT ?`, patientID, limitOrMax(limit))
	if err != nil {
		slog.Error("SQLiteStore GetSymptoms query failed", "error", err, "patientID", patientID)
		return nil, fmt.Errorf("failed to query symptoms: %w", err)
	}
	defer rows.Close()
	return scanSymptoms(rows)
}

func (s *SQLiteStore) SavePatientProfile(p models.PatientProfile) error {
	infoJSON, err := encodeMap(p.Info)
	if err != nil {
		slog.Error("SQLiteStore SavePatientProfile encode failed", "error", err, "patientID", p.PatientID)
		return err
	}
	_, err = s.db.Exec(`INSERT OR REPLACE INTO patient_profiles (patient_id, info, updated_at) VALUES (?, ?, ?)`,
		p.PatientID, infoJSON, p.UpdatedAt)
	if err != nil {
		slog.Error("SQLiteStore SavePatientProfile failed", "error", err, "patientID", p.PatientID)
		return fmt.Errorf("failed to save profile for %s: %w", p.PatientID, err)
	}
	return nil
}

func (s *SQLiteStore) GetPatientProfile(patientID string) (*models.PatientProfile, error) {
	row := s.db.QueryRow(`SELECT patient_id, info, updated_at FROM patient_profiles WHERE patient_id = ?`, patientID)
	p, err := scanProfile(row)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore GetPatientProfile not found", "patientID", patientID)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetPatientProfile failed", "error", err, "patientID", patientID)
		return nil, err
	}
	return p, nil
}

func (s *SQLiteStore) AddKnowledgeDoc(d models.KnowledgeDoc) error {
	_, err := s.db.Exec(`INSERT INTO knowledge_docs (department, title, body) VALUES (?, ?, ?)`,
		nilIfEmpty(d.Department), nilIfEmpty(d.Title), d.Text)
	if err != nil {
		slog.Error("SQLiteStore AddKnowledgeDoc failed", "error", err)
		return fmt.Errorf("failed to insert knowledge doc: %w", err)
	}
	return nil
}

func (s *SQLiteStore) AllKnowledgeDocs() ([]models.KnowledgeDoc, error) {
	rows, err := s.db.Query(`SELECT id, department, title, body FROM knowledge_docs`)
	if err != nil {
		slog.Error("SQLiteStore AllKnowledgeDocs query failed", "error", err)
		return nil, fmt.Errorf("failed to query knowledge docs: %w", err)
	}
	defer rows.Close()
	return scanKnowledgeDocs(rows)
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close SQLite database", "error", err)
	}
	return err
}
