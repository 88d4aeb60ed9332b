package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"eventreg-data/internal/domain"
)

// MemoryGroupsRepository: 分组的内存实现
// group_id 外键存在 members 映射里（registrationID -> groupID），
// 对应 Postgres 实现里 registrations.group_id 列
type MemoryGroupsRepository struct {
	mu sync.Mutex

	groups  map[string]*domain.Group // groupID -> group
	members map[string]string        // registrationID -> groupID

	// 校验报名者存在（内存模式下由 registration 侧同步）
	knownRegs map[string]bool

	now func() time.Time
}

func NewMemoryGroupsRepository() *MemoryGroupsRepository {
	return &MemoryGroupsRepository{
		groups:    map[string]*domain.Group{},
		members:   map[string]string{},
		knownRegs: map[string]bool{},
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// RegisterRegistration 登记报名者ID（内存模式下模拟 FK 目标）
func (r *MemoryGroupsRepository) RegisterRegistration(registrationID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.knownRegs[registrationID] = true
}

func (r *MemoryGroupsRepository) ListGroups(_ context.Context, filter GroupsFilter, page, size int) ([]*GroupWithCount, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if page < 1 {
		page = 1
	}
	if size < 1 || size > 500 {
		size = 100
	}

	matched := []*GroupWithCount{}
	for id, g := range r.groups {
		if filter.Search != "" && !strings.Contains(strings.ToLower(g.Name), strings.ToLower(filter.Search)) {
			continue
		}
		if filter.IsActive != nil && g.IsActive != *filter.IsActive {
			continue
		}
		c := *g
		matched = append(matched, &GroupWithCount{Group: &c, MemberCount: r.countMembersLocked(id)})
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].Group.Name < matched[j].Group.Name
	})

	total := len(matched)
	start := (page - 1) * size
	if start >= total {
		return []*GroupWithCount{}, total, nil
	}
	end := start + size
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func (r *MemoryGroupsRepository) GetGroup(_ context.Context, groupID string) (*domain.Group, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.groups[groupID]
	if !ok {
		return nil, domain.ErrGroupNotFound
	}
	c := *g
	return &c, nil
}

func (r *MemoryGroupsRepository) CreateGroup(_ context.Context, group *domain.Group) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := uuid.NewString()
	c := *group
	c.GroupID = id
	c.CreatedAt = r.now()
	r.groups[id] = &c
	return id, nil
}

func (r *MemoryGroupsRepository) UpdateGroup(_ context.Context, groupID string, group *domain.Group) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.groups[groupID]
	if !ok {
		return domain.ErrGroupNotFound
	}
	existing.Name = group.Name
	existing.Description = group.Description
	existing.MaxMembers = group.MaxMembers
	existing.IsActive = group.IsActive
	return nil
}

func (r *MemoryGroupsRepository) DeleteGroup(_ context.Context, groupID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, ok := r.groups[groupID]
	if !ok {
		return false, domain.ErrGroupNotFound
	}
	if r.countMembersLocked(groupID) > 0 {
		g.IsActive = false
		return true, nil
	}
	delete(r.groups, groupID)
	return false, nil
}

func (r *MemoryGroupsRepository) AssignToGroup(_ context.Context, registrationID, groupID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// 前置条件检查顺序与 Postgres 实现一致
	g, ok := r.groups[groupID]
	if !ok {
		return domain.ErrGroupNotFound
	}
	if !g.IsActive {
		return domain.ErrGroupInactive
	}
	if g.MaxMembers.Valid && int64(r.countMembersLocked(groupID)) >= g.MaxMembers.Int64 {
		return domain.ErrGroupAtCapacity
	}
	if !r.knownRegs[registrationID] {
		return domain.ErrRegistrationNotFound
	}
	if _, in := r.members[registrationID]; in {
		return domain.ErrAlreadyInGroup
	}

	r.members[registrationID] = groupID
	return nil
}

func (r *MemoryGroupsRepository) RemoveFromGroup(_ context.Context, registrationID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.knownRegs[registrationID] {
		return domain.ErrRegistrationNotFound
	}
	delete(r.members, registrationID)
	return nil
}

func (r *MemoryGroupsRepository) CountMembers(_ context.Context, groupID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.countMembersLocked(groupID), nil
}

func (r *MemoryGroupsRepository) countMembersLocked(groupID string) int {
	n := 0
	for _, gid := range r.members {
		if gid == groupID {
			n++
		}
	}
	return n
}

// GroupOf 查询报名者当前分组（测试辅助）
func (r *MemoryGroupsRepository) GroupOf(registrationID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	gid, ok := r.members[registrationID]
	return gid, ok
}
