package domain

import (
	"database/sql"
	"time"
)

// Room 房间领域模型（对应 rooms 表）
// current_occupancy 是反范式计数，必须与 assignments 行数保持一致，
// 只允许在同一事务内随 assignment 的插入/删除一起更新
type Room struct {
	RoomID           string         `db:"room_id"`
	RoomName         string         `db:"room_name"`
	Description      sql.NullString `db:"description"` // nullable
	BedCount         int            `db:"bed_count"`         // NOT NULL, > 0
	MaxOccupancy     int            `db:"max_occupancy"`     // NOT NULL, > 0, <= bed_count（Service 层校验）
	CurrentOccupancy int            `db:"current_occupancy"` // NOT NULL, DEFAULT 0
	IsActive         bool           `db:"is_active"`         // NOT NULL, DEFAULT true
	EventTypeID      sql.NullString `db:"event_type_id"`     // nullable, NULL 表示通用房间
	CreatedAt        time.Time      `db:"created_at"`
}
