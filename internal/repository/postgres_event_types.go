package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"eventreg-data/internal/domain"
)

type PostgresEventTypesRepository struct {
	db *sql.DB
}

func NewPostgresEventTypesRepository(db *sql.DB) *PostgresEventTypesRepository {
	return &PostgresEventTypesRepository{db: db}
}

func (r *PostgresEventTypesRepository) ListEventTypes(ctx context.Context, includeInactive bool) ([]*domain.EventType, error) {
	q := `
		SELECT event_type_id::text, name, description, is_active, created_at
		FROM event_types
	`
	if !includeInactive {
		q += ` WHERE is_active = TRUE`
	}
	q += ` ORDER BY name`

	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*domain.EventType{}
	for rows.Next() {
		var et domain.EventType
		if err := rows.Scan(&et.EventTypeID, &et.Name, &et.Description, &et.IsActive, &et.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &et)
	}
	return out, rows.Err()
}

func (r *PostgresEventTypesRepository) GetEventType(ctx context.Context, eventTypeID string) (*domain.EventType, error) {
	var et domain.EventType
	err := r.db.QueryRowContext(ctx, `
		SELECT event_type_id::text, name, description, is_active, created_at
		FROM event_types
		WHERE event_type_id = $1
	`, eventTypeID).Scan(&et.EventTypeID, &et.Name, &et.Description, &et.IsActive, &et.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, domain.ErrEventTypeNotFound
	}
	if err != nil {
		return nil, err
	}
	return &et, nil
}

func (r *PostgresEventTypesRepository) CreateEventType(ctx context.Context, et *domain.EventType) (string, error) {
	id := uuid.NewString()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO event_types (event_type_id, name, description, is_active)
		VALUES ($1, $2, $3, $4)
	`, id, et.Name, et.Description, et.IsActive)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *PostgresEventTypesRepository) UpdateEventType(ctx context.Context, eventTypeID string, et *domain.EventType) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE event_types
		SET name = $1, description = $2, is_active = $3
		WHERE event_type_id = $4
	`, et.Name, et.Description, et.IsActive, eventTypeID)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return domain.ErrEventTypeNotFound
	}
	return nil
}

func (r *PostgresEventTypesRepository) DeleteEventType(ctx context.Context, eventTypeID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var inUse bool
	if err := tx.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM rooms WHERE event_type_id = $1)
		    OR EXISTS(SELECT 1 FROM registrations WHERE event_type_id = $1)
	`, eventTypeID).Scan(&inUse); err != nil {
		return err
	}
	if inUse {
		return domain.ErrEventTypeInUse
	}

	res, err := tx.ExecContext(ctx,
		`DELETE FROM event_types WHERE event_type_id = $1`, eventTypeID,
	)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return domain.ErrEventTypeNotFound
	}
	return tx.Commit()
}
