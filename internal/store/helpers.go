package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/sean-bit813/medical-LLM-system/internal/models"
)

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// limitOrMax converts a non-positive limit to a large cap so SQL LIMIT
// clauses stay well-formed.
func limitOrMax(limit int) int {
	if limit <= 0 {
		return 1 << 30
	}
	return limit
}

func encodeMap(m map[string]string) (string, error) {
	if len(m) == 0 {
		return "", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encode map failed: %w", err)
	}
	return string(b), nil
}

func encodeConsultation(c models.Consultation) (fieldsJSON, turnsJSON string, err error) {
	fieldsJSON, err = encodeMap(c.Fields)
	if err != nil {
		return "", "", err
	}
	if len(c.Turns) > 0 {
		b, err := json.Marshal(c.Turns)
		if err != nil {
			return "", "", fmt.Errorf("encode turns failed: %w", err)
		}
		turnsJSON = string(b)
	}
	return fieldsJSON, turnsJSON, nil
}

// scanConsultations scans consultation rows, tolerating malformed JSON
// columns by leaving the affected field empty.
func scanConsultations(rows *sql.Rows) ([]models.Consultation, error) {
	var out []models.Consultation
	for rows.Next() {
		var c models.Consultation
		var finalState string
		var fieldsJSON, turnsJSON sql.NullString
		if err := rows.Scan(&c.ID, &c.PatientID, &finalState, &fieldsJSON, &turnsJSON, &c.StartedAt, &c.EndedAt); err != nil {
			return nil, fmt.Errorf("scan consultation failed: %w", err)
		}
		c.FinalState = models.DialogueState(finalState)
		if fieldsJSON.String != "" {
			c.Fields = make(map[string]string)
			// Tolerate malformed JSON rather than failing the whole query.
			_ = json.Unmarshal([]byte(fieldsJSON.String), &c.Fields)
		}
		if turnsJSON.String != "" {
			_ = json.Unmarshal([]byte(turnsJSON.String), &c.Turns)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate consultation rows failed: %w", err)
	}
	return out, nil
}

func scanSymptoms(rows *sql.Rows) ([]models.SymptomRecord, error) {
	var out []models.SymptomRecord
	for rows.Next() {
		var rec models.SymptomRecord
		var duration sql.NullString
		if err := rows.Scan(&rec.PatientID, &rec.Name, &rec.Severity, &duration, &rec.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan symptom failed: %w", err)
		}
		rec.Duration = duration.String
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate symptom rows failed: %w", err)
	}
	return out, nil
}

func scanProfile(row *sql.Row) (*models.PatientProfile, error) {
	var p models.PatientProfile
	var infoJSON sql.NullString
	if err := row.Scan(&p.PatientID, &infoJSON, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if infoJSON.String != "" {
		p.Info = make(map[string]string)
		_ = json.Unmarshal([]byte(infoJSON.String), &p.Info)
	}
	return &p, nil
}

func scanKnowledgeDocs(rows *sql.Rows) ([]models.KnowledgeDoc, error) {
	var out []models.KnowledgeDoc
	for rows.Next() {
		var d models.KnowledgeDoc
		var department, title sql.NullString
		if err := rows.Scan(&d.ID, &department, &title, &d.Text); err != nil {
			return nil, fmt.Errorf("scan knowledge doc failed: %w", err)
		}
		d.Department = department.String
		d.Title = title.String
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate knowledge doc rows failed: %w", err)
	}
	return out, nil
}
