package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"eventreg-data/internal/domain"
	"eventreg-data/internal/repository"
)

func newTestGroupService() (GroupService, *repository.MemoryGroupsRepository) {
	repo := repository.NewMemoryGroupsRepository()
	svc := NewGroupService(repo, zap.NewNop())
	return svc, repo
}

func createTestGroup(t *testing.T, svc GroupService, name string, maxMembers *int64) string {
	t.Helper()
	resp, err := svc.CreateGroup(context.Background(), CreateGroupRequest{
		Name:       name,
		MaxMembers: maxMembers,
		IsActive:   true,
	})
	require.NoError(t, err)
	return resp.GroupID
}

func TestCreateGroup_Validation(t *testing.T) {
	svc, _ := newTestGroupService()
	ctx := context.Background()

	_, err := svc.CreateGroup(ctx, CreateGroupRequest{})
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	zero := int64(0)
	_, err = svc.CreateGroup(ctx, CreateGroupRequest{Name: "A", MaxMembers: &zero})
	require.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestAssignToGroup_Capacity(t *testing.T) {
	svc, repo := newTestGroupService()
	ctx := context.Background()

	limit := int64(2)
	groupID := createTestGroup(t, svc, "Small", &limit)

	for _, reg := range []string{"reg-1", "reg-2", "reg-3"} {
		repo.RegisterRegistration(reg)
	}

	_, err := svc.AssignToGroup(ctx, AssignToGroupRequest{RegistrationID: "reg-1", GroupID: groupID})
	require.NoError(t, err)
	_, err = svc.AssignToGroup(ctx, AssignToGroupRequest{RegistrationID: "reg-2", GroupID: groupID})
	require.NoError(t, err)

	// 满员后拒绝
	_, err = svc.AssignToGroup(ctx, AssignToGroupRequest{RegistrationID: "reg-3", GroupID: groupID})
	require.ErrorIs(t, err, domain.ErrGroupAtCapacity)

	// 移出一人后腾出名额
	_, err = svc.RemoveFromGroup(ctx, RemoveFromGroupRequest{RegistrationID: "reg-1"})
	require.NoError(t, err)
	_, err = svc.AssignToGroup(ctx, AssignToGroupRequest{RegistrationID: "reg-3", GroupID: groupID})
	require.NoError(t, err)
}

func TestAssignToGroup_UnlimitedWhenNoMax(t *testing.T) {
	svc, repo := newTestGroupService()
	ctx := context.Background()

	groupID := createTestGroup(t, svc, "Open", nil)

	for i := 0; i < 20; i++ {
		reg := string(rune('a' + i))
		repo.RegisterRegistration(reg)
		_, err := svc.AssignToGroup(ctx, AssignToGroupRequest{RegistrationID: reg, GroupID: groupID})
		require.NoError(t, err)
	}

	got, err := svc.GetGroup(ctx, GetGroupRequest{GroupID: groupID})
	require.NoError(t, err)
	require.Equal(t, 20, got.MemberCount)
}

func TestAssignToGroup_Preconditions(t *testing.T) {
	svc, repo := newTestGroupService()
	ctx := context.Background()

	groupID := createTestGroup(t, svc, "A", nil)
	otherID := createTestGroup(t, svc, "B", nil)
	repo.RegisterRegistration("reg-1")

	_, err := svc.AssignToGroup(ctx, AssignToGroupRequest{RegistrationID: "reg-1", GroupID: "missing"})
	require.ErrorIs(t, err, domain.ErrGroupNotFound)

	_, err = svc.AssignToGroup(ctx, AssignToGroupRequest{RegistrationID: "missing", GroupID: groupID})
	require.ErrorIs(t, err, domain.ErrRegistrationNotFound)

	_, err = svc.AssignToGroup(ctx, AssignToGroupRequest{RegistrationID: "reg-1", GroupID: groupID})
	require.NoError(t, err)

	// 已在一个组里就不能再加入其它组（先移出）
	_, err = svc.AssignToGroup(ctx, AssignToGroupRequest{RegistrationID: "reg-1", GroupID: otherID})
	require.ErrorIs(t, err, domain.ErrAlreadyInGroup)
}

func TestAssignToGroup_InactiveGroup(t *testing.T) {
	svc, repo := newTestGroupService()
	ctx := context.Background()

	resp, err := svc.CreateGroup(ctx, CreateGroupRequest{Name: "Closed", IsActive: false})
	require.NoError(t, err)
	repo.RegisterRegistration("reg-1")

	_, err = svc.AssignToGroup(ctx, AssignToGroupRequest{RegistrationID: "reg-1", GroupID: resp.GroupID})
	require.ErrorIs(t, err, domain.ErrGroupInactive)
}

func TestDeleteGroup_SoftDeleteWithMembers(t *testing.T) {
	svc, repo := newTestGroupService()
	ctx := context.Background()

	groupID := createTestGroup(t, svc, "G", nil)
	repo.RegisterRegistration("reg-1")
	_, err := svc.AssignToGroup(ctx, AssignToGroupRequest{RegistrationID: "reg-1", GroupID: groupID})
	require.NoError(t, err)

	// 有成员：只停用
	resp, err := svc.DeleteGroup(ctx, DeleteGroupRequest{GroupID: groupID})
	require.NoError(t, err)
	require.True(t, resp.SoftDeleted)

	got, err := svc.GetGroup(ctx, GetGroupRequest{GroupID: groupID})
	require.NoError(t, err)
	require.False(t, got.Group.IsActive)
	require.Equal(t, 1, got.MemberCount)

	// 成员清空后真正删除
	_, err = svc.RemoveFromGroup(ctx, RemoveFromGroupRequest{RegistrationID: "reg-1"})
	require.NoError(t, err)
	resp, err = svc.DeleteGroup(ctx, DeleteGroupRequest{GroupID: groupID})
	require.NoError(t, err)
	require.False(t, resp.SoftDeleted)

	_, err = svc.GetGroup(ctx, GetGroupRequest{GroupID: groupID})
	require.ErrorIs(t, err, domain.ErrGroupNotFound)
}

func TestListGroups_LiveMemberCount(t *testing.T) {
	svc, repo := newTestGroupService()
	ctx := context.Background()

	groupID := createTestGroup(t, svc, "Counted", nil)
	for _, reg := range []string{"reg-1", "reg-2"} {
		repo.RegisterRegistration(reg)
		_, err := svc.AssignToGroup(ctx, AssignToGroupRequest{RegistrationID: reg, GroupID: groupID})
		require.NoError(t, err)
	}

	resp, err := svc.ListGroups(ctx, ListGroupsRequest{})
	require.NoError(t, err)
	require.Equal(t, 1, resp.Total)
	require.Equal(t, 2, resp.Items[0].MemberCount)

	// 移出后列表立即反映（没有反范式计数可漂移）
	_, err = svc.RemoveFromGroup(ctx, RemoveFromGroupRequest{RegistrationID: "reg-1"})
	require.NoError(t, err)

	resp, err = svc.ListGroups(ctx, ListGroupsRequest{})
	require.NoError(t, err)
	require.Equal(t, 1, resp.Items[0].MemberCount)
}
