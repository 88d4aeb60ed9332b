package repository

import (
	"context"

	"eventreg-data/internal/domain"
)

// GroupsRepository 分组Repository接口
// 注意：
//   - 成员数永远是 COUNT(registrations.group_id)，没有反范式计数
//   - AssignToGroup 的容量检查在事务内（FOR UPDATE 锁 group 行）
type GroupsRepository interface {
	ListGroups(ctx context.Context, filter GroupsFilter, page, size int) ([]*GroupWithCount, int, error)
	GetGroup(ctx context.Context, groupID string) (*domain.Group, error)
	CreateGroup(ctx context.Context, group *domain.Group) (string, error)
	UpdateGroup(ctx context.Context, groupID string, group *domain.Group) error

	// DeleteGroup 删除分组
	// 有成员时软删除（is_active=false），无成员时硬删除
	// 返回值 softDeleted 表示走了软删除分支
	DeleteGroup(ctx context.Context, groupID string) (softDeleted bool, err error)

	// AssignToGroup 把报名者加入分组（单事务）
	// 前置条件按顺序检查：
	//   1. 分组存在            -> domain.ErrGroupNotFound
	//   2. 分组 is_active      -> domain.ErrGroupInactive
	//   3. 成员数 < max_members -> domain.ErrGroupAtCapacity（max_members 为 NULL 不限）
	//   4. 报名者未属于任何分组  -> domain.ErrAlreadyInGroup
	AssignToGroup(ctx context.Context, registrationID, groupID string) error

	// RemoveFromGroup 清空报名者的 group_id（没有计数需要回补）
	RemoveFromGroup(ctx context.Context, registrationID string) error

	CountMembers(ctx context.Context, groupID string) (int, error)
}

// GroupsFilter 分组查询过滤器
type GroupsFilter struct {
	Search   string // 可选，name 模糊匹配
	IsActive *bool  // 可选
}

// GroupWithCount 分组及实时成员数
type GroupWithCount struct {
	Group       *domain.Group
	MemberCount int
}
