package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"eventreg-data/internal/domain"
)

type PostgresGroupsRepository struct {
	db *sql.DB
}

func NewPostgresGroupsRepository(db *sql.DB) *PostgresGroupsRepository {
	return &PostgresGroupsRepository{db: db}
}

func (r *PostgresGroupsRepository) ListGroups(ctx context.Context, filter GroupsFilter, page, size int) ([]*GroupWithCount, int, error) {
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
		where += fmt.Sprintf(" AND g.name ILIKE $%d", argIdx)
		args = append(args, "%"+filter.Search+"%")
		argIdx++
	}
	if filter.IsActive != nil {
		where += fmt.Sprintf(" AND g.is_active = $%d", argIdx)
		args = append(args, *filter.IsActive)
		argIdx++
	}

	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM groups g WHERE `+where, args...,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	// 成员数实时 COUNT，不存计数列
	q := fmt.Sprintf(`
		SELECT
			g.group_id::text,
			g.name,
			g.description,
			g.max_members,
			g.is_active,
			g.created_at,
			COUNT(reg.registration_id)
		FROM groups g
		LEFT JOIN registrations reg ON reg.group_id = g.group_id
		WHERE %s
		GROUP BY g.group_id
		ORDER BY g.name, g.group_id
		LIMIT $%d OFFSET $%d
	`, where, argIdx, argIdx+1)
	args = append(args, size, (page-1)*size)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []*GroupWithCount{}
	for rows.Next() {
		var g domain.Group
		var item GroupWithCount
		if err := rows.Scan(
			&g.GroupID,
			&g.Name,
			&g.Description,
			&g.MaxMembers,
			&g.IsActive,
			&g.CreatedAt,
			&item.MemberCount,
		); err != nil {
			return nil, 0, err
		}
		item.Group = &g
		out = append(out, &item)
	}
	return out, total, rows.Err()
}

func (r *PostgresGroupsRepository) GetGroup(ctx context.Context, groupID string) (*domain.Group, error) {
	var g domain.Group
	err := r.db.QueryRowContext(ctx, `
		SELECT group_id::text, name, description, max_members, is_active, created_at
		FROM groups
		WHERE group_id = $1
	`, groupID).Scan(&g.GroupID, &g.Name, &g.Description, &g.MaxMembers, &g.IsActive, &g.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, domain.ErrGroupNotFound
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func (r *PostgresGroupsRepository) CreateGroup(ctx context.Context, group *domain.Group) (string, error) {
	id := uuid.NewString()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO groups (group_id, name, description, max_members, is_active)
		VALUES ($1, $2, $3, $4, $5)
	`, id, group.Name, group.Description, group.MaxMembers, group.IsActive)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *PostgresGroupsRepository) UpdateGroup(ctx context.Context, groupID string, group *domain.Group) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE groups
		SET name = $1, description = $2, max_members = $3, is_active = $4
		WHERE group_id = $5
	`, group.Name, group.Description, group.MaxMembers, group.IsActive, groupID)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return domain.ErrGroupNotFound
	}
	return nil
}

// DeleteGroup: 有成员软删除，无成员硬删除（判定和删除同一事务）
func (r *PostgresGroupsRepository) DeleteGroup(ctx context.Context, groupID string) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	var exists bool
	if err := tx.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM groups WHERE group_id = $1 FOR UPDATE)`, groupID,
	).Scan(&exists); err != nil {
		return false, err
	}
	if !exists {
		return false, domain.ErrGroupNotFound
	}

	var members int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM registrations WHERE group_id = $1`, groupID,
	).Scan(&members); err != nil {
		return false, err
	}

	if members > 0 {
		if _, err := tx.ExecContext(ctx,
			`UPDATE groups SET is_active = FALSE WHERE group_id = $1`, groupID,
		); err != nil {
			return false, err
		}
		return true, tx.Commit()
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM groups WHERE group_id = $1`, groupID,
	); err != nil {
		return false, err
	}
	return false, tx.Commit()
}

// AssignToGroup: FOR UPDATE 锁 group 行，容量检查和 FK 写入串行化
func (r *PostgresGroupsRepository) AssignToGroup(ctx context.Context, registrationID, groupID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// 1+2. 分组存在且启用
	var isActive bool
	var maxMembers sql.NullInt64
	err = tx.QueryRowContext(ctx,
		`SELECT is_active, max_members FROM groups WHERE group_id = $1 FOR UPDATE`, groupID,
	).Scan(&isActive, &maxMembers)
	if err == sql.ErrNoRows {
		return domain.ErrGroupNotFound
	}
	if err != nil {
		return err
	}
	if !isActive {
		return domain.ErrGroupInactive
	}

	// 3. 容量（实时 COUNT）
	if maxMembers.Valid {
		var members int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM registrations WHERE group_id = $1`, groupID,
		).Scan(&members); err != nil {
			return err
		}
		if int64(members) >= maxMembers.Int64 {
			return domain.ErrGroupAtCapacity
		}
	}

	// 4. 报名者存在且未属于任何分组
	var currentGroup sql.NullString
	err = tx.QueryRowContext(ctx,
		`SELECT group_id::text FROM registrations WHERE registration_id = $1`, registrationID,
	).Scan(&currentGroup)
	if err == sql.ErrNoRows {
		return domain.ErrRegistrationNotFound
	}
	if err != nil {
		return err
	}
	if currentGroup.Valid {
		return domain.ErrAlreadyInGroup
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE registrations SET group_id = $1 WHERE registration_id = $2`, groupID, registrationID,
	); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *PostgresGroupsRepository) RemoveFromGroup(ctx context.Context, registrationID string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE registrations SET group_id = NULL WHERE registration_id = $1`, registrationID,
	)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return domain.ErrRegistrationNotFound
	}
	return nil
}

func (r *PostgresGroupsRepository) CountMembers(ctx context.Context, groupID string) (int, error) {
	var members int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM registrations WHERE group_id = $1`, groupID,
	).Scan(&members)
	return members, err
}
