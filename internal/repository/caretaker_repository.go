package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jengzang/safetrack-backend-go/internal/models"
)

// ErrDuplicateEmail is returned when registering an email that already exists
var ErrDuplicateEmail = errors.New("email already registered")

// CaretakerRepository handles database operations for caretakers
type CaretakerRepository struct {
	db *sql.DB
}

// NewCaretakerRepository creates a new caretaker repository
func NewCaretakerRepository(db *sql.DB) *CaretakerRepository {
	return &CaretakerRepository{db: db}
}

// Create inserts a caretaker
func (r *CaretakerRepository) Create(ctx context.Context, c *models.Caretaker) error {
	query := `INSERT INTO caretakers (id, email, password_hash, created_at) VALUES (?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query, c.ID, c.Email, c.PasswordHash, c.CreatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("failed to create caretaker: %w", err)
	}
	return nil
}

// GetByEmail retrieves a caretaker by email
func (r *CaretakerRepository) GetByEmail(ctx context.Context, email string) (*models.Caretaker, error) {
	query := `SELECT id, email, password_hash, created_at FROM caretakers WHERE email = ?`

	c := &models.Caretaker{}
	err := r.db.QueryRowContext(ctx, query, email).Scan(&c.ID, &c.Email, &c.PasswordHash, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get caretaker: %w", err)
	}
	return c, nil
}
