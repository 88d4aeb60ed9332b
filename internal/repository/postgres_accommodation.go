package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"eventreg-data/internal/domain"
)

type PostgresAccommodationRepository struct {
	db *sql.DB
}

func NewPostgresAccommodationRepository(db *sql.DB) *PostgresAccommodationRepository {
	return &PostgresAccommodationRepository{db: db}
}

// ============================================
// Room 操作
// ============================================

func (r *PostgresAccommodationRepository) ListRooms(ctx context.Context, filter RoomFilters, page, size int) ([]*domain.Room, int, error) {
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
		where += fmt.Sprintf(" AND room_name ILIKE $%d", argIdx)
		args = append(args, "%"+filter.Search+"%")
		argIdx++
	}
	if filter.IsActive != nil {
		where += fmt.Sprintf(" AND is_active = $%d", argIdx)
		args = append(args, *filter.IsActive)
		argIdx++
	}
	if filter.EventTypeID != "" {
		where += fmt.Sprintf(" AND event_type_id = $%d", argIdx)
		args = append(args, filter.EventTypeID)
		argIdx++
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM rooms WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	// 排序字段走允许列表，未识别的 key 回退 created_at
	sortCol, ok := RoomSortColumns[filter.SortBy]
	if !ok {
		sortCol = "created_at"
	}
	dir := "ASC"
	if filter.SortDesc {
		dir = "DESC"
	}

	q := fmt.Sprintf(`
		SELECT
			room_id::text,
			room_name,
			description,
			bed_count,
			max_occupancy,
			current_occupancy,
			is_active,
			event_type_id::text,
			created_at
		FROM rooms
		WHERE %s
		ORDER BY %s %s, room_id
		LIMIT $%d OFFSET $%d
	`, where, sortCol, dir, argIdx, argIdx+1)
	args = append(args, size, (page-1)*size)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []*domain.Room{}
	for rows.Next() {
		var room domain.Room
		if err := rows.Scan(
			&room.RoomID,
			&room.RoomName,
			&room.Description,
			&room.BedCount,
			&room.MaxOccupancy,
			&room.CurrentOccupancy,
			&room.IsActive,
			&room.EventTypeID,
			&room.CreatedAt,
		); err != nil {
			return nil, 0, err
		}
		out = append(out, &room)
	}
	return out, total, rows.Err()
}

func (r *PostgresAccommodationRepository) GetRoom(ctx context.Context, roomID string) (*domain.Room, error) {
	return scanRoom(r.db.QueryRowContext(ctx, `
		SELECT
			room_id::text,
			room_name,
			description,
			bed_count,
			max_occupancy,
			current_occupancy,
			is_active,
			event_type_id::text,
			created_at
		FROM rooms
		WHERE room_id = $1
	`, roomID))
}

func (r *PostgresAccommodationRepository) CreateRoom(ctx context.Context, room *domain.Room) (string, error) {
	id := uuid.NewString()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO rooms (room_id, room_name, description, bed_count, max_occupancy, current_occupancy, is_active, event_type_id)
		VALUES ($1, $2, $3, $4, $5, 0, $6, $7)
	`, id, room.RoomName, room.Description, room.BedCount, room.MaxOccupancy, room.IsActive, room.EventTypeID)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *PostgresAccommodationRepository) UpdateRoom(ctx context.Context, roomID string, room *domain.Room) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE rooms
		SET room_name = $1,
		    description = $2,
		    bed_count = $3,
		    max_occupancy = $4,
		    is_active = $5,
		    event_type_id = $6
		WHERE room_id = $7
	`, room.RoomName, room.Description, room.BedCount, room.MaxOccupancy, room.IsActive, room.EventTypeID, roomID)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return domain.ErrRoomNotFound
	}
	return nil
}

// DeleteRoom: 和 assignment 计数检查放在同一事务里，
// 避免检查后、删除前有新的 assignment 插入
func (r *PostgresAccommodationRepository) DeleteRoom(ctx context.Context, roomID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var exists bool
	if err := tx.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM rooms WHERE room_id = $1 FOR UPDATE)`, roomID,
	).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return domain.ErrRoomNotFound
	}

	var count int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM assignments WHERE room_id = $1`, roomID,
	).Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return domain.ErrRoomHasAssignments
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM rooms WHERE room_id = $1`, roomID); err != nil {
		return err
	}
	return tx.Commit()
}

// ============================================
// Assignment 操作
// ============================================

// CreateAssignment: 单事务执行全部前置条件检查和写入
// FOR UPDATE 锁住房间行，并发的两个 CreateAssignment 会串行通过容量检查，
// current_occupancy 不可能超过 max_occupancy
func (r *PostgresAccommodationRepository) CreateAssignment(ctx context.Context, a *domain.Assignment) (string, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	// 1. 报名者未持有分配
	var existing string
	err = tx.QueryRowContext(ctx,
		`SELECT assignment_id::text FROM assignments WHERE registration_id = $1`, a.RegistrationID,
	).Scan(&existing)
	if err == nil {
		return "", domain.ErrAlreadyAssigned
	}
	if err != sql.ErrNoRows {
		return "", err
	}

	// 2+3. 房间存在且未满（锁行）
	var current, maxOcc int
	err = tx.QueryRowContext(ctx,
		`SELECT current_occupancy, max_occupancy FROM rooms WHERE room_id = $1 FOR UPDATE`, a.RoomID,
	).Scan(&current, &maxOcc)
	if err == sql.ErrNoRows {
		return "", domain.ErrRoomNotFound
	}
	if err != nil {
		return "", err
	}
	if current >= maxOcc {
		return "", domain.ErrRoomAtCapacity
	}

	// 4. 床位号未被占用
	if a.BedNumber.Valid {
		var taken bool
		if err := tx.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM assignments WHERE room_id = $1 AND bed_number = $2)`,
			a.RoomID, a.BedNumber.Int64,
		).Scan(&taken); err != nil {
			return "", err
		}
		if taken {
			return "", fmt.Errorf("bed %d: %w", a.BedNumber.Int64, domain.ErrBedNumberTaken)
		}
	}

	id := uuid.NewString()
	assignedAt := a.AssignedAt
	if assignedAt.IsZero() {
		assignedAt = time.Now().UTC()
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO assignments (assignment_id, room_id, registration_id, bed_number, assigned_at, assigned_by, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, id, a.RoomID, a.RegistrationID, a.BedNumber, assignedAt, a.AssignedBy, a.Notes); err != nil {
		return "", err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE rooms SET current_occupancy = current_occupancy + 1 WHERE room_id = $1`, a.RoomID,
	); err != nil {
		return "", err
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return id, nil
}

// RemoveAssignment: 删除与计数递减在同一事务
func (r *PostgresAccommodationRepository) RemoveAssignment(ctx context.Context, assignmentID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var roomID string
	err = tx.QueryRowContext(ctx,
		`SELECT room_id::text FROM assignments WHERE assignment_id = $1`, assignmentID,
	).Scan(&roomID)
	if err == sql.ErrNoRows {
		return domain.ErrAssignmentNotFound
	}
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM assignments WHERE assignment_id = $1`, assignmentID,
	); err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE rooms SET current_occupancy = current_occupancy - 1 WHERE room_id = $1 AND current_occupancy > 0`, roomID,
	)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		// 计数已经是 0 却还有 assignment 行可删，说明计数漂移了
		return domain.ErrOccupancyUnderflow
	}

	return tx.Commit()
}

func (r *PostgresAccommodationRepository) GetAssignment(ctx context.Context, assignmentID string) (*domain.Assignment, error) {
	return scanAssignment(r.db.QueryRowContext(ctx, `
		SELECT assignment_id::text, room_id::text, registration_id::text, bed_number, assigned_at, assigned_by, notes
		FROM assignments
		WHERE assignment_id = $1
	`, assignmentID))
}

func (r *PostgresAccommodationRepository) GetAssignmentByRegistration(ctx context.Context, registrationID string) (*domain.Assignment, error) {
	return scanAssignment(r.db.QueryRowContext(ctx, `
		SELECT assignment_id::text, room_id::text, registration_id::text, bed_number, assigned_at, assigned_by, notes
		FROM assignments
		WHERE registration_id = $1
	`, registrationID))
}

func (r *PostgresAccommodationRepository) ListAssignments(ctx context.Context, roomID string, page, size int) ([]*AssignmentWithRegistration, int, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 500 {
		size = 50
	}

	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM assignments WHERE room_id = $1`, roomID,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT
			a.assignment_id::text,
			a.room_id::text,
			a.registration_id::text,
			a.bed_number,
			a.assigned_at,
			a.assigned_by,
			a.notes,
			reg.name,
			COALESCE(reg.locality, '')
		FROM assignments a
		JOIN registrations reg ON reg.registration_id = a.registration_id
		WHERE a.room_id = $1
		ORDER BY a.bed_number NULLS LAST, a.assigned_at
		LIMIT $2 OFFSET $3
	`, roomID, size, (page-1)*size)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []*AssignmentWithRegistration{}
	for rows.Next() {
		var a domain.Assignment
		var item AssignmentWithRegistration
		if err := rows.Scan(
			&a.AssignmentID,
			&a.RoomID,
			&a.RegistrationID,
			&a.BedNumber,
			&a.AssignedAt,
			&a.AssignedBy,
			&a.Notes,
			&item.RegistrationName,
			&item.Locality,
		); err != nil {
			return nil, 0, err
		}
		item.Assignment = &a
		out = append(out, &item)
	}
	return out, total, rows.Err()
}

// ============================================
// 统计
// ============================================

func (r *PostgresAccommodationRepository) GetStatistics(ctx context.Context, eventTypeID string) (*AccommodationStats, error) {
	where := "is_active = TRUE"
	args := []any{}
	if eventTypeID != "" {
		where += " AND event_type_id = $1"
		args = append(args, eventTypeID)
	}

	stats := &AccommodationStats{}
	err := r.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(bed_count), 0),
			COALESCE(SUM(current_occupancy), 0)
		FROM rooms
		WHERE `+where, args...,
	).Scan(&stats.TotalRooms, &stats.TotalBeds, &stats.OccupiedBeds)
	if err != nil {
		return nil, err
	}
	stats.AvailableBeds = stats.TotalBeds - stats.OccupiedBeds

	countQ := `SELECT COUNT(*) FROM assignments`
	if eventTypeID != "" {
		countQ = `SELECT COUNT(*) FROM assignments a JOIN rooms r ON r.room_id = a.room_id WHERE r.event_type_id = $1`
	}
	if err := r.db.QueryRowContext(ctx, countQ, args...).Scan(&stats.TotalAssignments); err != nil {
		return nil, err
	}
	return stats, nil
}

// ============================================
// scan helpers
// ============================================

func scanRoom(row *sql.Row) (*domain.Room, error) {
	var room domain.Room
	err := row.Scan(
		&room.RoomID,
		&room.RoomName,
		&room.Description,
		&room.BedCount,
		&room.MaxOccupancy,
		&room.CurrentOccupancy,
		&room.IsActive,
		&room.EventTypeID,
		&room.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, domain.ErrRoomNotFound
	}
	if err != nil {
		return nil, err
	}
	return &room, nil
}

func scanAssignment(row *sql.Row) (*domain.Assignment, error) {
	var a domain.Assignment
	err := row.Scan(
		&a.AssignmentID,
		&a.RoomID,
		&a.RegistrationID,
		&a.BedNumber,
		&a.AssignedAt,
		&a.AssignedBy,
		&a.Notes,
	)
	if err == sql.ErrNoRows {
		return nil, domain.ErrAssignmentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}
