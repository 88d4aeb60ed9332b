package domain

import (
	"database/sql"
	"time"
)

// EventType 聚会类别领域模型（对应 event_types 表）
// 房间和报名记录可选引用一个类别；被引用时不允许删除
type EventType struct {
	EventTypeID string         `db:"event_type_id"`
	Name        string         `db:"name"` // NOT NULL
	Description sql.NullString `db:"description"`
	IsActive    bool           `db:"is_active"` // NOT NULL, DEFAULT true
	CreatedAt   time.Time      `db:"created_at"`
}
