package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"eventreg-data/internal/domain"
	"eventreg-data/internal/repository"
)

// 内存 repo 全家桶，跨表约束（FK、占用检查）互相挂钩
type memoryRepos struct {
	acc    *repository.MemoryAccommodationRepository
	groups *repository.MemoryGroupsRepository
	regs   *repository.MemoryRegistrationsRepository
	et     *repository.MemoryEventTypesRepository
}

func newMemoryRepos() *memoryRepos {
	acc := repository.NewMemoryAccommodationRepository()
	groups := repository.NewMemoryGroupsRepository()
	regs := repository.NewMemoryRegistrationsRepository()
	et := repository.NewMemoryEventTypesRepository()
	regs.Wire(acc, groups)
	et.Wire(acc, regs)
	return &memoryRepos{acc: acc, groups: groups, regs: regs, et: et}
}

func newTestRegistrationService() (RegistrationService, *memoryRepos) {
	repos := newMemoryRepos()
	svc := NewRegistrationService(repos.regs, nil, zap.NewNop())
	return svc, repos
}

func createTestRegistration(t *testing.T, svc RegistrationService, name string) string {
	t.Helper()
	resp, err := svc.CreateRegistration(context.Background(), CreateRegistrationRequest{
		Name:   name,
		Gender: "male",
	})
	require.NoError(t, err)
	return resp.RegistrationID
}

func TestCreateRegistration_Validation(t *testing.T) {
	svc, _ := newTestRegistrationService()
	ctx := context.Background()

	_, err := svc.CreateRegistration(ctx, CreateRegistrationRequest{Gender: "male"})
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = svc.CreateRegistration(ctx, CreateRegistrationRequest{Name: "张三", Gender: "unknown"})
	require.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestCheckIn(t *testing.T) {
	svc, _ := newTestRegistrationService()
	ctx := context.Background()

	regID := createTestRegistration(t, svc, "张三")

	resp, err := svc.CheckIn(ctx, CheckInRequest{RegistrationID: regID})
	require.NoError(t, err)
	require.False(t, resp.CheckedInAt.IsZero())

	got, err := svc.GetRegistration(ctx, GetRegistrationRequest{RegistrationID: regID})
	require.NoError(t, err)
	require.Equal(t, domain.RegistrationStatusCheckedIn, got.Registration.Status)
	require.True(t, got.Registration.CheckedInAt.Valid)

	// 重复报到拒绝
	_, err = svc.CheckIn(ctx, CheckInRequest{RegistrationID: regID})
	require.ErrorIs(t, err, domain.ErrAlreadyCheckedIn)

	_, err = svc.CheckIn(ctx, CheckInRequest{RegistrationID: "missing"})
	require.ErrorIs(t, err, domain.ErrRegistrationNotFound)
}

func TestDeleteRegistration_BlockedWhileAssigned(t *testing.T) {
	repos := newMemoryRepos()
	regSvc := NewRegistrationService(repos.regs, nil, zap.NewNop())
	accSvc := NewAccommodationService(repos.acc, nil, nil, zap.NewNop())
	ctx := context.Background()

	regID := createTestRegistration(t, regSvc, "李四")
	roomResp, err := accSvc.CreateRoom(ctx, CreateRoomRequest{RoomName: "101", BedCount: 2, MaxOccupancy: 2, IsActive: true})
	require.NoError(t, err)
	assignResp, err := accSvc.CreateAssignment(ctx, CreateAssignmentRequest{RoomID: roomResp.RoomID, RegistrationID: regID})
	require.NoError(t, err)

	// 占着床位不能删报名
	_, err = regSvc.DeleteRegistration(ctx, DeleteRegistrationRequest{RegistrationID: regID})
	require.ErrorIs(t, err, domain.ErrRegistrationAssigned)

	_, err = accSvc.RemoveAssignment(ctx, RemoveAssignmentRequest{AssignmentID: assignResp.AssignmentID})
	require.NoError(t, err)
	_, err = regSvc.DeleteRegistration(ctx, DeleteRegistrationRequest{RegistrationID: regID})
	require.NoError(t, err)
}

func TestListRegistrations_Filters(t *testing.T) {
	svc, repos := newTestRegistrationService()
	groupSvc := NewGroupService(repos.groups, zap.NewNop())
	ctx := context.Background()

	aliceID := createTestRegistration(t, svc, "Alice")
	createTestRegistration(t, svc, "Bob")

	_, err := svc.CheckIn(ctx, CheckInRequest{RegistrationID: aliceID})
	require.NoError(t, err)

	resp, err := svc.ListRegistrations(ctx, ListRegistrationsRequest{Status: domain.RegistrationStatusCheckedIn})
	require.NoError(t, err)
	require.Equal(t, 1, resp.Total)
	require.Equal(t, "Alice", resp.Items[0].Name)

	groupResp, err := groupSvc.CreateGroup(ctx, CreateGroupRequest{Name: "G1", IsActive: true})
	require.NoError(t, err)
	_, err = groupSvc.AssignToGroup(ctx, AssignToGroupRequest{RegistrationID: aliceID, GroupID: groupResp.GroupID})
	require.NoError(t, err)

	resp, err = svc.ListRegistrations(ctx, ListRegistrationsRequest{GroupID: groupResp.GroupID})
	require.NoError(t, err)
	require.Equal(t, 1, resp.Total)
	require.Equal(t, aliceID, resp.Items[0].RegistrationID)
	require.True(t, resp.Items[0].GroupID.Valid)
	require.Equal(t, groupResp.GroupID, resp.Items[0].GroupID.String)
}

func TestExportRows(t *testing.T) {
	repos := newMemoryRepos()
	regSvc := NewRegistrationService(repos.regs, nil, zap.NewNop())
	accSvc := NewAccommodationService(repos.acc, nil, nil, zap.NewNop())
	groupSvc := NewGroupService(repos.groups, zap.NewNop())
	ctx := context.Background()

	regResp, err := regSvc.CreateRegistration(ctx, CreateRegistrationRequest{
		Name:     "王五",
		Gender:   "female",
		Phone:    "13800000000",
		Locality: "台北市召会",
	})
	require.NoError(t, err)

	groupResp, err := groupSvc.CreateGroup(ctx, CreateGroupRequest{Name: "第一组", IsActive: true})
	require.NoError(t, err)
	_, err = groupSvc.AssignToGroup(ctx, AssignToGroupRequest{RegistrationID: regResp.RegistrationID, GroupID: groupResp.GroupID})
	require.NoError(t, err)

	roomResp, err := accSvc.CreateRoom(ctx, CreateRoomRequest{RoomName: "201", BedCount: 4, MaxOccupancy: 4, IsActive: true})
	require.NoError(t, err)
	bed := int64(3)
	_, err = accSvc.CreateAssignment(ctx, CreateAssignmentRequest{
		RoomID:         roomResp.RoomID,
		RegistrationID: regResp.RegistrationID,
		BedNumber:      &bed,
	})
	require.NoError(t, err)

	_, err = regSvc.CheckIn(ctx, CheckInRequest{RegistrationID: regResp.RegistrationID})
	require.NoError(t, err)

	rows, err := regSvc.ExportRows(ctx, ExportRowsRequest{})
	require.NoError(t, err)
	require.Len(t, rows, 1)

	row := rows[0]
	require.Equal(t, "王五", row.Name)
	require.Equal(t, "female", row.Gender)
	require.Equal(t, "13800000000", row.Phone)
	require.Equal(t, "台北市召会", row.Locality)
	require.Equal(t, domain.RegistrationStatusCheckedIn, row.Status)
	require.NotNil(t, row.CheckedInAt)
	require.Equal(t, "第一组", row.GroupName)
	require.Equal(t, "201", row.RoomName)
	require.NotNil(t, row.BedNumber)
	require.Equal(t, int64(3), *row.BedNumber)
}
