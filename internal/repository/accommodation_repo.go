package repository

import (
	"context"

	"eventreg-data/internal/domain"
)

// AccommodationRepository 住宿Repository接口（Room + Assignment）
// 使用强类型领域模型，不使用map[string]any
// 设计原则：
//   - 所有 check-then-write 序列（容量检查、床位唯一性检查、计数更新）
//     必须在同一事务内完成，Service 层不做二次读写
//   - 业务规则拒绝返回 domain.Err* 哨兵错误，调用方用 errors.Is 区分
type AccommodationRepository interface {
	// ========== Room 操作 ==========
	ListRooms(ctx context.Context, filter RoomFilters, page, size int) ([]*domain.Room, int, error)
	GetRoom(ctx context.Context, roomID string) (*domain.Room, error)
	CreateRoom(ctx context.Context, room *domain.Room) (string, error)
	UpdateRoom(ctx context.Context, roomID string, room *domain.Room) error

	// DeleteRoom 删除房间
	// 注意：房间下仍有 assignment 时返回 domain.ErrRoomHasAssignments（硬删除被阻止）
	DeleteRoom(ctx context.Context, roomID string) error

	// ========== Assignment 操作 ==========
	// CreateAssignment 创建床位分配（单事务：锁房间行 -> 校验 -> 插入 -> current_occupancy+1）
	// 前置条件按顺序检查：
	//   1. 报名者未持有分配        -> domain.ErrAlreadyAssigned
	//   2. 房间存在               -> domain.ErrRoomNotFound
	//   3. current < max_occupancy -> domain.ErrRoomAtCapacity
	//   4. bed_number 未被占用     -> domain.ErrBedNumberTaken（消息带床位号）
	CreateAssignment(ctx context.Context, a *domain.Assignment) (string, error)

	// RemoveAssignment 删除床位分配（单事务：删除 -> current_occupancy-1）
	// 计数已为 0 还要递减时返回 domain.ErrOccupancyUnderflow（不静默钳位）
	RemoveAssignment(ctx context.Context, assignmentID string) error

	GetAssignment(ctx context.Context, assignmentID string) (*domain.Assignment, error)
	GetAssignmentByRegistration(ctx context.Context, registrationID string) (*domain.Assignment, error)

	// ListAssignments 查询某房间的分配列表（分页独立于房间列表的分页）
	ListAssignments(ctx context.Context, roomID string, page, size int) ([]*AssignmentWithRegistration, int, error)

	// ========== 统计 ==========
	// GetStatistics 住宿统计（仅统计 is_active 的房间；eventTypeID 为空表示不过滤）
	GetStatistics(ctx context.Context, eventTypeID string) (*AccommodationStats, error)
}

// RoomFilters 房间查询过滤器
type RoomFilters struct {
	Search      string // 可选，room_name 模糊匹配（大小写不敏感）
	IsActive    *bool  // 可选，nil 表示未提供
	EventTypeID string // 可选
	SortBy      string // name | bed_count | max_occupancy | current_occupancy | created_at
	SortDesc    bool
}

// RoomSortColumns 排序字段允许列表（未识别的 key 回退 created_at）
var RoomSortColumns = map[string]string{
	"name":              "room_name",
	"bed_count":         "bed_count",
	"max_occupancy":     "max_occupancy",
	"current_occupancy": "current_occupancy",
	"created_at":        "created_at",
}

// AssignmentWithRegistration 分配及报名者摘要（用于房间详情页）
type AssignmentWithRegistration struct {
	Assignment       *domain.Assignment
	RegistrationName string
	Locality         string
}

// AccommodationStats 住宿统计汇总
type AccommodationStats struct {
	TotalRooms       int `json:"total_rooms"`
	TotalBeds        int `json:"total_beds"`
	OccupiedBeds     int `json:"occupied_beds"`
	AvailableBeds    int `json:"available_beds"`
	TotalAssignments int `json:"total_assignments"`
}
