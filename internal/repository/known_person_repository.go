package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jengzang/safetrack-backend-go/internal/database"
	"github.com/jengzang/safetrack-backend-go/internal/models"
)

// KnownPersonRepository handles database operations for a patient's roster
type KnownPersonRepository struct {
	db *sql.DB
}

// NewKnownPersonRepository creates a new known person repository
func NewKnownPersonRepository(db *sql.DB) *KnownPersonRepository {
	return &KnownPersonRepository{db: db}
}

const knownPersonColumns = `id, patient_id, name, relationship, phone, address, details,
	photo_ref, is_emergency_contact, created_at, updated_at`

const insertKnownPerson = `
	INSERT INTO known_people (` + knownPersonColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func scanKnownPerson(row rowScanner) (*models.KnownPerson, error) {
	kp := &models.KnownPerson{}
	var details, photo sql.NullString
	err := row.Scan(
		&kp.ID,
		&kp.PatientID,
		&kp.Name,
		&kp.Relationship,
		&kp.Phone,
		&kp.Address,
		&details,
		&photo,
		&kp.IsEmergencyContact,
		&kp.CreatedAt,
		&kp.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	kp.Details = details.String
	kp.PhotoRef = photo.String
	return kp, nil
}

func insertPerson(ctx context.Context, ex execer, kp *models.KnownPerson) error {
	_, err := ex.ExecContext(ctx, insertKnownPerson,
		kp.ID,
		kp.PatientID,
		kp.Name,
		kp.Relationship,
		kp.Phone,
		kp.Address,
		nullString(kp.Details),
		nullString(kp.PhotoRef),
		kp.IsEmergencyContact,
		kp.CreatedAt,
		kp.UpdatedAt,
	)
	return err
}

// Create inserts a known person
func (r *KnownPersonRepository) Create(ctx context.Context, kp *models.KnownPerson) error {
	if err := insertPerson(ctx, r.db, kp); err != nil {
		return fmt.Errorf("failed to create known person: %w", err)
	}
	return nil
}

// GetByID retrieves a known person within a patient's roster
func (r *KnownPersonRepository) GetByID(ctx context.Context, patientID, id string) (*models.KnownPerson, error) {
	query := `SELECT ` + knownPersonColumns + ` FROM known_people WHERE patient_id = ? AND id = ?`

	kp, err := scanKnownPerson(r.db.QueryRowContext(ctx, query, patientID, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get known person: %w", err)
	}
	return kp, nil
}

// ListByPatient retrieves a patient's roster ordered by name
func (r *KnownPersonRepository) ListByPatient(ctx context.Context, patientID string) ([]*models.KnownPerson, error) {
	query := `SELECT ` + knownPersonColumns + ` FROM known_people WHERE patient_id = ? ORDER BY name`

	rows, err := r.db.QueryContext(ctx, query, patientID)
	if err != nil {
		return nil, fmt.Errorf("failed to query known people: %w", err)
	}
	defer rows.Close()

	people := []*models.KnownPerson{}
	for rows.Next() {
		kp, err := scanKnownPerson(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan known person: %w", err)
		}
		people = append(people, kp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating known people: %w", err)
	}
	return people, nil
}

// Update writes every mutable field of a known person
func (r *KnownPersonRepository) Update(ctx context.Context, kp *models.KnownPerson) error {
	query := `
		UPDATE known_people
		SET name = ?, relationship = ?, phone = ?, address = ?, details = ?,
			photo_ref = ?, is_emergency_contact = ?, updated_at = ?
		WHERE patient_id = ? AND id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		kp.Name,
		kp.Relationship,
		kp.Phone,
		kp.Address,
		nullString(kp.Details),
		nullString(kp.PhotoRef),
		kp.IsEmergencyContact,
		kp.UpdatedAt,
		kp.PatientID,
		kp.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update known person: %w", err)
	}
	return expectAffected(result)
}

// Delete removes a known person from a patient's roster
func (r *KnownPersonRepository) Delete(ctx context.Context, patientID, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM known_people WHERE patient_id = ? AND id = ?`, patientID, id)
	if err != nil {
		return fmt.Errorf("failed to delete known person: %w", err)
	}
	return expectAffected(result)
}

// ReplaceAll swaps a patient's whole roster in one transaction
func (r *KnownPersonRepository) ReplaceAll(ctx context.Context, patientID string, people []*models.KnownPerson) error {
	return database.Transaction(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM known_people WHERE patient_id = ?`, patientID); err != nil {
			return fmt.Errorf("failed to clear known people: %w", err)
		}
		for _, kp := range people {
			if err := insertPerson(ctx, tx, kp); err != nil {
				return fmt.Errorf("failed to insert known person %s: %w", kp.Name, err)
			}
		}
		return nil
	})
}
