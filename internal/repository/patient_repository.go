package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jengzang/safetrack-backend-go/internal/models"
)

// PatientRepository handles database operations for patients
type PatientRepository struct {
	db *sql.DB
}

// NewPatientRepository creates a new patient repository
func NewPatientRepository(db *sql.DB) *PatientRepository {
	return &PatientRepository{db: db}
}

const patientColumns = `id, caretaker_id, name, front_photo_ref, side_photo_ref,
	base_latitude, base_longitude, safe_radius_meters, base_address, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPatient(row rowScanner) (*models.Patient, error) {
	p := &models.Patient{}
	var front, side, address sql.NullString
	err := row.Scan(
		&p.ID,
		&p.CaretakerID,
		&p.Name,
		&front,
		&side,
		&p.Geofence.Base.Latitude,
		&p.Geofence.Base.Longitude,
		&p.Geofence.SafeRadiusMeters,
		&address,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.FrontPhotoRef = front.String
	p.SidePhotoRef = side.String
	p.BaseAddress = address.String
	return p, nil
}

// Create inserts a patient
func (r *PatientRepository) Create(ctx context.Context, p *models.Patient) error {
	query := `
		INSERT INTO patients (` + patientColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		p.ID,
		p.CaretakerID,
		p.Name,
		nullString(p.FrontPhotoRef),
		nullString(p.SidePhotoRef),
		p.Geofence.Base.Latitude,
		p.Geofence.Base.Longitude,
		p.Geofence.SafeRadiusMeters,
		nullString(p.BaseAddress),
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create patient: %w", err)
	}
	return nil
}

// GetByID retrieves a patient by ID
func (r *PatientRepository) GetByID(ctx context.Context, id string) (*models.Patient, error) {
	query := `SELECT ` + patientColumns + ` FROM patients WHERE id = ?`

	p, err := scanPatient(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get patient: %w", err)
	}
	return p, nil
}

// ListByCaretaker retrieves every patient managed by a caretaker
func (r *PatientRepository) ListByCaretaker(ctx context.Context, caretakerID string) ([]*models.Patient, error) {
	query := `SELECT ` + patientColumns + ` FROM patients WHERE caretaker_id = ? ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query, caretakerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query patients: %w", err)
	}
	defer rows.Close()

	var patients []*models.Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan patient: %w", err)
		}
		patients = append(patients, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating patients: %w", err)
	}
	return patients, nil
}

// Update writes every mutable field of a patient
func (r *PatientRepository) Update(ctx context.Context, p *models.Patient) error {
	query := `
		UPDATE patients
		SET name = ?, front_photo_ref = ?, side_photo_ref = ?,
			base_latitude = ?, base_longitude = ?, safe_radius_meters = ?,
			base_address = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		p.Name,
		nullString(p.FrontPhotoRef),
		nullString(p.SidePhotoRef),
		p.Geofence.Base.Latitude,
		p.Geofence.Base.Longitude,
		p.Geofence.SafeRadiusMeters,
		nullString(p.BaseAddress),
		p.UpdatedAt,
		p.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update patient: %w", err)
	}
	return expectAffected(result)
}

// Delete removes a patient and, by cascade, its roster and history
func (r *PatientRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM patients WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete patient: %w", err)
	}
	return expectAffected(result)
}

func expectAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
