package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jengzang/safetrack-backend-go/internal/models"
)

// LocationHistoryRepository handles database operations for persisted history
type LocationHistoryRepository struct {
	db *sql.DB
}

// NewLocationHistoryRepository creates a new location history repository
func NewLocationHistoryRepository(db *sql.DB) *LocationHistoryRepository {
	return &LocationHistoryRepository{db: db}
}

// Insert stores an accepted history entry
func (r *LocationHistoryRepository) Insert(ctx context.Context, patientID string, entry models.LocationHistoryEntry, level models.StatusLevel) error {
	query := `
		INSERT INTO location_history (
			patient_id, latitude, longitude, observed_at, distance_meters, descriptor, status
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		patientID,
		entry.Sample.Point.Latitude,
		entry.Sample.Point.Longitude,
		entry.Sample.ObservedAt.UTC(),
		entry.DistanceMeters,
		entry.Descriptor,
		string(level),
	)
	if err != nil {
		return fmt.Errorf("failed to insert location history: %w", err)
	}
	return nil
}

func buildHistoryWhere(filter models.HistoryFilter) (string, []any) {
	where := " WHERE patient_id = ?"
	args := []any{filter.PatientID}

	if filter.StartTime > 0 {
		where += " AND observed_at >= ?"
		args = append(args, time.Unix(filter.StartTime, 0).UTC())
	}
	if filter.EndTime > 0 {
		where += " AND observed_at <= ?"
		args = append(args, time.Unix(filter.EndTime, 0).UTC())
	}
	if filter.Status != "" {
		where += " AND status = ?"
		args = append(args, filter.Status)
	}
	return where, args
}

// List retrieves persisted history newest first with pagination
func (r *LocationHistoryRepository) List(ctx context.Context, filter models.HistoryFilter) (*models.HistoryPage, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 || filter.PageSize > 1000 {
		filter.PageSize = 100
	}

	where, args := buildHistoryWhere(filter)

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM location_history`+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count location history: %w", err)
	}

	query := `
		SELECT id, patient_id, latitude, longitude, observed_at, distance_meters, descriptor, status
		FROM location_history` + where + `
		ORDER BY observed_at DESC
		LIMIT ? OFFSET ?
	`
	offset := (filter.Page - 1) * filter.PageSize
	rows, err := r.db.QueryContext(ctx, query, append(args, filter.PageSize, offset)...)
	if err != nil {
		return nil, fmt.Errorf("failed to query location history: %w", err)
	}
	defer rows.Close()

	data := []models.StoredHistoryEntry{}
	for rows.Next() {
		var e models.StoredHistoryEntry
		if err := rows.Scan(
			&e.ID,
			&e.PatientID,
			&e.Latitude,
			&e.Longitude,
			&e.ObservedAt,
			&e.DistanceMeters,
			&e.Descriptor,
			&e.Status,
		); err != nil {
			return nil, fmt.Errorf("failed to scan location history: %w", err)
		}
		data = append(data, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating location history: %w", err)
	}

	totalPages := int(total) / filter.PageSize
	if int(total)%filter.PageSize > 0 {
		totalPages++
	}

	return &models.HistoryPage{
		Data:       data,
		Total:      total,
		Page:       filter.Page,
		PageSize:   filter.PageSize,
		TotalPages: totalPages,
	}, nil
}
