package domain

import "errors"

// 业务规则错误（全部是前置条件被拒，不是瞬时故障，不重试）
// Repository 在事务内检测并返回，Service/Handler 用 errors.Is 区分
var (
	// 床位分配
	ErrAlreadyAssigned    = errors.New("registration already holds a room assignment")
	ErrRoomNotFound       = errors.New("room not found")
	ErrAssignmentNotFound = errors.New("assignment not found")
	ErrRoomAtCapacity     = errors.New("room is at max occupancy")
	ErrBedNumberTaken     = errors.New("bed number already taken in this room")
	ErrRoomHasAssignments = errors.New("room still has assignments")

	// 分组
	ErrGroupNotFound   = errors.New("group not found")
	ErrGroupInactive   = errors.New("group is inactive")
	ErrGroupAtCapacity = errors.New("group is at max members")
	ErrAlreadyInGroup  = errors.New("registration already belongs to a group")

	// 报名
	ErrRegistrationNotFound = errors.New("registration not found")
	ErrRegistrationAssigned = errors.New("registration still has a room assignment")
	ErrAlreadyCheckedIn     = errors.New("registration already checked in")

	// 聚会类别
	ErrEventTypeNotFound = errors.New("event type not found")
	ErrEventTypeInUse    = errors.New("event type is referenced by rooms or registrations")

	// 输入校验（Service 层在不变量检查之前拒绝畸形输入）
	ErrInvalidInput = errors.New("invalid input")

	// current_occupancy 在 0 时被继续递减意味着计数已经漂移，
	// 必须作为不变量破坏暴露出来，不允许静默钳位
	ErrOccupancyUnderflow = errors.New("room occupancy counter underflow")
)
