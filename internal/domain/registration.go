package domain

import (
	"database/sql"
	"time"
)

// 报名状态
const (
	RegistrationStatusRegistered = "registered"
	RegistrationStatusCheckedIn  = "checked_in"
	RegistrationStatusCancelled  = "cancelled"
)

// Registration 报名者领域模型（对应 registrations 表）
// group_id 是可空外键：一个报名者最多属于一个分组
type Registration struct {
	RegistrationID string         `db:"registration_id"`
	Name           string         `db:"name"`   // NOT NULL
	Gender         string         `db:"gender"` // NOT NULL, 'male' | 'female'
	Phone          sql.NullString `db:"phone"`
	Email          sql.NullString `db:"email"`
	Locality       sql.NullString `db:"locality"`      // 所在地方召会/会所
	EventTypeID    sql.NullString `db:"event_type_id"` // nullable, FK event_types
	Status         string         `db:"status"`        // NOT NULL, DEFAULT 'registered'
	CheckedInAt    sql.NullTime   `db:"checked_in_at"` // 仅 checked_in 状态时有值
	GroupID        sql.NullString `db:"group_id"`      // nullable, FK groups
	Notes          sql.NullString `db:"notes"`
	CreatedAt      time.Time      `db:"created_at"`
}
