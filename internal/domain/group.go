package domain

import (
	"database/sql"
	"time"
)

// Group 分组领域模型（对应 groups 表）
// 成员数不做反范式计数，始终 COUNT(registrations.group_id)，
// 与 Room.current_occupancy 的设计刻意不同（不会漂移）
type Group struct {
	GroupID     string         `db:"group_id"`
	Name        string         `db:"name"` // NOT NULL
	Description sql.NullString `db:"description"`
	MaxMembers  sql.NullInt64  `db:"max_members"` // nullable, > 0; NULL 表示不限
	IsActive    bool           `db:"is_active"`   // NOT NULL, DEFAULT true
	CreatedAt   time.Time      `db:"created_at"`
}
