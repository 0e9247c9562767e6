package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/example/scibot/pkg/models"
)

// DefaultConceptDescription is stored for concepts created without a description.
const DefaultConceptDescription = "Automatically extracted concept"

// ConceptRepository handles database operations for concepts
type ConceptRepository struct {
	db sqlx.ExtContext
}

// NewConceptRepository creates a new repository bound to a pool or a transaction
func NewConceptRepository(db sqlx.ExtContext) *ConceptRepository {
	return &ConceptRepository{db: db}
}

// GetByID returns a concept by id
func (r *ConceptRepository) GetByID(ctx context.Context, id int64) (*models.Concept, error) {
	var c models.Concept
	query := r.db.Rebind(`SELECT id, name, description, created_at FROM concepts WHERE id = ?`)
	if err := sqlx.GetContext(ctx, r.db, &c, query, id); err != nil {
		return nil, notFound(err, "failed to get concept %d", id)
	}
	return &c, nil
}

// GetByName returns a concept by its exact name
func (r *ConceptRepository) GetByName(ctx context.Context, name string) (*models.Concept, error) {
	var c models.Concept
	query := r.db.Rebind(`SELECT id, name, description, created_at FROM concepts WHERE name = ?`)
	if err := sqlx.GetContext(ctx, r.db, &c, query, name); err != nil {
		return nil, notFound(err, "failed to get concept %q", name)
	}
	return &c, nil
}

// GetOrCreate returns the concept with the given name, creating it if needed.
// The boolean reports whether a concept was created.
func (r *ConceptRepository) GetOrCreate(ctx context.Context, name, description string) (*models.Concept, bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, false, fmt.Errorf("concept name is empty")
	}

	c, err := r.GetByName(ctx, name)
	if err == nil {
		return c, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}

	description = strings.TrimSpace(description)
	if description == "" {
		description = DefaultConceptDescription
	}
	c = &models.Concept{
		Name:        name,
		Description: description,
		CreatedAt:   time.Now().UTC(),
	}

	query := r.db.Rebind(`INSERT INTO concepts (name, description, created_at) VALUES (?, ?, ?) RETURNING id`)
	if err := r.db.QueryRowxContext(ctx, query, c.Name, c.Description, c.CreatedAt).Scan(&c.ID); err != nil {
		return nil, false, fmt.Errorf("failed to create concept %q: %w", name, err)
	}
	return c, true, nil
}
