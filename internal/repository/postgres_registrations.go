package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"eventreg-data/internal/domain"
)

type PostgresRegistrationsRepository struct {
	db *sql.DB
}

func NewPostgresRegistrationsRepository(db *sql.DB) *PostgresRegistrationsRepository {
	return &PostgresRegistrationsRepository{db: db}
}

const registrationColumns = `
	registration_id::text,
	name,
	gender,
	phone,
	email,
	locality,
	event_type_id::text,
	status,
	checked_in_at,
	group_id::text,
	notes,
	created_at
`

func (r *PostgresRegistrationsRepository) ListRegistrations(ctx context.Context, filter RegistrationsFilter, page, size int) ([]*domain.Registration, int, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 500 {
		size = 100
	}

	where := "1=1"
	args := []any{}
	argIdx := 1
	if filter.Search != "" {
		where += fmt.Sprintf(" AND (name ILIKE $%d OR locality ILIKE $%d)", argIdx, argIdx)
		args = append(args, "%"+filter.Search+"%")
		argIdx++
	}
	if filter.Status != "" {
		where += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, filter.Status)
		argIdx++
	}
	if filter.GroupID != "" {
		where += fmt.Sprintf(" AND group_id = $%d", argIdx)
		args = append(args, filter.GroupID)
		argIdx++
	}
	if filter.EventTypeID != "" {
		where += fmt.Sprintf(" AND event_type_id = $%d", argIdx)
		args = append(args, filter.EventTypeID)
		argIdx++
	}

	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM registrations WHERE `+where, args...,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := fmt.Sprintf(`
		SELECT %s
		FROM registrations
		WHERE %s
		ORDER BY created_at DESC, registration_id
		LIMIT $%d OFFSET $%d
	`, registrationColumns, where, argIdx, argIdx+1)
	args = append(args, size, (page-1)*size)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []*domain.Registration{}
	for rows.Next() {
		reg, err := scanRegistrationRow(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, reg)
	}
	return out, total, rows.Err()
}

func (r *PostgresRegistrationsRepository) GetRegistration(ctx context.Context, registrationID string) (*domain.Registration, error) {
	var reg domain.Registration
	err := r.db.QueryRowContext(ctx,
		`SELECT `+registrationColumns+` FROM registrations WHERE registration_id = $1`, registrationID,
	).Scan(
		&reg.RegistrationID,
		&reg.Name,
		&reg.Gender,
		&reg.Phone,
		&reg.Email,
		&reg.Locality,
		&reg.EventTypeID,
		&reg.Status,
		&reg.CheckedInAt,
		&reg.GroupID,
		&reg.Notes,
		&reg.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, domain.ErrRegistrationNotFound
	}
	if err != nil {
		return nil, err
	}
	return &reg, nil
}

func (r *PostgresRegistrationsRepository) CreateRegistration(ctx context.Context, reg *domain.Registration) (string, error) {
	id := uuid.NewString()
	status := reg.Status
	if status == "" {
		status = domain.RegistrationStatusRegistered
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO registrations (registration_id, name, gender, phone, email, locality, event_type_id, status, group_id, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, id, reg.Name, reg.Gender, reg.Phone, reg.Email, reg.Locality, reg.EventTypeID, status, reg.GroupID, reg.Notes)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *PostgresRegistrationsRepository) UpdateRegistration(ctx context.Context, registrationID string, reg *domain.Registration) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE registrations
		SET name = $1,
		    gender = $2,
		    phone = $3,
		    email = $4,
		    locality = $5,
		    event_type_id = $6,
		    notes = $7
		WHERE registration_id = $8
	`, reg.Name, reg.Gender, reg.Phone, reg.Email, reg.Locality, reg.EventTypeID, reg.Notes, registrationID)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return domain.ErrRegistrationNotFound
	}
	return nil
}

// DeleteRegistration: 仍持有床位分配时拒绝（检查和删除同一事务）
func (r *PostgresRegistrationsRepository) DeleteRegistration(ctx context.Context, registrationID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var assigned bool
	if err := tx.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM assignments WHERE registration_id = $1)`, registrationID,
	).Scan(&assigned); err != nil {
		return err
	}
	if assigned {
		return domain.ErrRegistrationAssigned
	}

	res, err := tx.ExecContext(ctx,
		`DELETE FROM registrations WHERE registration_id = $1`, registrationID,
	)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return domain.ErrRegistrationNotFound
	}
	return tx.Commit()
}

// CheckIn: 状态守卫放在 UPDATE 的 WHERE 里，重复报到不会覆盖 checked_in_at
func (r *PostgresRegistrationsRepository) CheckIn(ctx context.Context, registrationID string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE registrations
		SET status = $1, checked_in_at = $2
		WHERE registration_id = $3 AND status = $4
	`, domain.RegistrationStatusCheckedIn, at, registrationID, domain.RegistrationStatusRegistered)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 1 {
		return nil
	}

	// 没更新到行：区分"不存在"和"已报到"
	var status string
	err = r.db.QueryRowContext(ctx,
		`SELECT status FROM registrations WHERE registration_id = $1`, registrationID,
	).Scan(&status)
	if err == sql.ErrNoRows {
		return domain.ErrRegistrationNotFound
	}
	if err != nil {
		return err
	}
	if status == domain.RegistrationStatusCheckedIn {
		return domain.ErrAlreadyCheckedIn
	}
	return fmt.Errorf("registration %s cannot check in from status %q", registrationID, status)
}

func (r *PostgresRegistrationsRepository) ListForExport(ctx context.Context, eventTypeID string) ([]*RegistrationExportRow, error) {
	where := "1=1"
	args := []any{}
	if eventTypeID != "" {
		where = "reg.event_type_id = $1"
		args = append(args, eventTypeID)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT
			reg.name,
			reg.gender,
			COALESCE(reg.phone, ''),
			COALESCE(reg.locality, ''),
			reg.status,
			reg.checked_in_at,
			COALESCE(g.name, ''),
			COALESCE(room.room_name, ''),
			a.bed_number
		FROM registrations reg
		LEFT JOIN groups g ON g.group_id = reg.group_id
		LEFT JOIN assignments a ON a.registration_id = reg.registration_id
		LEFT JOIN rooms room ON room.room_id = a.room_id
		WHERE `+where+`
		ORDER BY reg.name, reg.registration_id
	`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*RegistrationExportRow{}
	for rows.Next() {
		var row RegistrationExportRow
		var checkedInAt sql.NullTime
		var bedNumber sql.NullInt64
		if err := rows.Scan(
			&row.Name,
			&row.Gender,
			&row.Phone,
			&row.Locality,
			&row.Status,
			&checkedInAt,
			&row.GroupName,
			&row.RoomName,
			&bedNumber,
		); err != nil {
			return nil, err
		}
		if checkedInAt.Valid {
			t := checkedInAt.Time
			row.CheckedInAt = &t
		}
		if bedNumber.Valid {
			n := bedNumber.Int64
			row.BedNumber = &n
		}
		out = append(out, &row)
	}
	return out, rows.Err()
}

func scanRegistrationRow(rows *sql.Rows) (*domain.Registration, error) {
	var reg domain.Registration
	if err := rows.Scan(
		&reg.RegistrationID,
		&reg.Name,
		&reg.Gender,
		&reg.Phone,
		&reg.Email,
		&reg.Locality,
		&reg.EventTypeID,
		&reg.Status,
		&reg.CheckedInAt,
		&reg.GroupID,
		&reg.Notes,
		&reg.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &reg, nil
}
