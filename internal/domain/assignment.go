package domain

import (
	"database/sql"
	"time"
)

// Assignment 床位分配领域模型（对应 assignments 表）
// 唯一约束：
//   - registration_id 全表唯一（一个报名者同一时间只能占一个房间）
//   - (room_id, bed_number) 在 bed_number 非空时唯一
type Assignment struct {
	AssignmentID   string         `db:"assignment_id"`
	RoomID         string         `db:"room_id"`         // NOT NULL, FK rooms
	RegistrationID string         `db:"registration_id"` // NOT NULL, UNIQUE, FK registrations
	BedNumber      sql.NullInt64  `db:"bed_number"`      // nullable, > 0
	AssignedAt     time.Time      `db:"assigned_at"`
	AssignedBy     sql.NullString `db:"assigned_by"` // nullable, 操作者ID（来自 auth provider）
	Notes          sql.NullString `db:"notes"`       // nullable
}
