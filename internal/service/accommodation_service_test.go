package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"eventreg-data/internal/domain"
	"eventreg-data/internal/repository"
)

func newTestAccommodationService() (AccommodationService, *repository.MemoryAccommodationRepository) {
	repo := repository.NewMemoryAccommodationRepository()
	svc := NewAccommodationService(repo, nil, nil, zap.NewNop())
	return svc, repo
}

func createTestRoom(t *testing.T, svc AccommodationService, name string, bedCount, maxOccupancy int) string {
	t.Helper()
	resp, err := svc.CreateRoom(context.Background(), CreateRoomRequest{
		RoomName:     name,
		BedCount:     bedCount,
		MaxOccupancy: maxOccupancy,
		IsActive:     true,
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.RoomID)
	return resp.RoomID
}

func TestCreateRoom_Validation(t *testing.T) {
	svc, _ := newTestAccommodationService()
	ctx := context.Background()

	_, err := svc.CreateRoom(ctx, CreateRoomRequest{BedCount: 4, MaxOccupancy: 4})
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = svc.CreateRoom(ctx, CreateRoomRequest{RoomName: "101", BedCount: 0, MaxOccupancy: 1})
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = svc.CreateRoom(ctx, CreateRoomRequest{RoomName: "101", BedCount: 4, MaxOccupancy: -1})
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	// max_occupancy 不能超过 bed_count
	_, err = svc.CreateRoom(ctx, CreateRoomRequest{RoomName: "101", BedCount: 4, MaxOccupancy: 5})
	require.ErrorIs(t, err, domain.ErrInvalidInput)
	require.Contains(t, err.Error(), "max_occupancy")

	// 上限等于床位数是允许的
	_, err = svc.CreateRoom(ctx, CreateRoomRequest{RoomName: "101", BedCount: 4, MaxOccupancy: 4, IsActive: true})
	require.NoError(t, err)
}

func TestCreateAssignment_OccupancyConsistency(t *testing.T) {
	svc, _ := newTestAccommodationService()
	ctx := context.Background()

	roomID := createTestRoom(t, svc, "201", 4, 4)

	assignmentIDs := []string{}
	for i := 0; i < 3; i++ {
		resp, err := svc.CreateAssignment(ctx, CreateAssignmentRequest{
			RoomID:         roomID,
			RegistrationID: fmt.Sprintf("reg-%d", i),
		})
		require.NoError(t, err)
		assignmentIDs = append(assignmentIDs, resp.AssignmentID)
	}

	got, err := svc.GetRoom(ctx, GetRoomRequest{RoomID: roomID})
	require.NoError(t, err)
	require.Equal(t, 3, got.Room.CurrentOccupancy)
	require.Equal(t, 3, got.AssignmentsTotal)

	// 解除一个分配后计数同步递减
	_, err = svc.RemoveAssignment(ctx, RemoveAssignmentRequest{AssignmentID: assignmentIDs[0]})
	require.NoError(t, err)

	got, err = svc.GetRoom(ctx, GetRoomRequest{RoomID: roomID})
	require.NoError(t, err)
	require.Equal(t, 2, got.Room.CurrentOccupancy)
	require.Equal(t, 2, got.AssignmentsTotal)
}

func TestCreateAssignment_RoomAtCapacity(t *testing.T) {
	svc, _ := newTestAccommodationService()
	ctx := context.Background()

	// 4 张床但上限 2
	roomID := createTestRoom(t, svc, "202", 4, 2)

	for i := 0; i < 2; i++ {
		_, err := svc.CreateAssignment(ctx, CreateAssignmentRequest{
			RoomID:         roomID,
			RegistrationID: fmt.Sprintf("reg-%d", i),
		})
		require.NoError(t, err)
	}

	_, err := svc.CreateAssignment(ctx, CreateAssignmentRequest{
		RoomID:         roomID,
		RegistrationID: "reg-overflow",
	})
	require.ErrorIs(t, err, domain.ErrRoomAtCapacity)
}

func TestCreateAssignment_ConcurrentNeverExceedsCapacity(t *testing.T) {
	svc, _ := newTestAccommodationService()
	ctx := context.Background()

	const maxOccupancy = 5
	const attempts = 50

	roomID := createTestRoom(t, svc, "203", maxOccupancy, maxOccupancy)

	var wg sync.WaitGroup
	errCh := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := svc.CreateAssignment(ctx, CreateAssignmentRequest{
				RoomID:         roomID,
				RegistrationID: fmt.Sprintf("reg-%d", n),
			})
			errCh <- err
		}(i)
	}
	wg.Wait()
	close(errCh)

	succeeded := 0
	for err := range errCh {
		if err == nil {
			succeeded++
		} else {
			require.ErrorIs(t, err, domain.ErrRoomAtCapacity)
		}
	}
	require.Equal(t, maxOccupancy, succeeded)

	got, err := svc.GetRoom(ctx, GetRoomRequest{RoomID: roomID})
	require.NoError(t, err)
	require.Equal(t, maxOccupancy, got.Room.CurrentOccupancy)
	require.Equal(t, maxOccupancy, got.AssignmentsTotal)
}

func TestCreateAssignment_RegistrationOnlyOnce(t *testing.T) {
	svc, _ := newTestAccommodationService()
	ctx := context.Background()

	roomA := createTestRoom(t, svc, "204-A", 4, 4)
	roomB := createTestRoom(t, svc, "204-B", 4, 4)

	_, err := svc.CreateAssignment(ctx, CreateAssignmentRequest{RoomID: roomA, RegistrationID: "reg-1"})
	require.NoError(t, err)

	// 同一报名者不能再占用任何房间（包括同一间）
	_, err = svc.CreateAssignment(ctx, CreateAssignmentRequest{RoomID: roomA, RegistrationID: "reg-1"})
	require.ErrorIs(t, err, domain.ErrAlreadyAssigned)
	_, err = svc.CreateAssignment(ctx, CreateAssignmentRequest{RoomID: roomB, RegistrationID: "reg-1"})
	require.ErrorIs(t, err, domain.ErrAlreadyAssigned)

	// 重复分配的检查先于房间存在性检查
	_, err = svc.CreateAssignment(ctx, CreateAssignmentRequest{RoomID: "missing", RegistrationID: "reg-1"})
	require.ErrorIs(t, err, domain.ErrAlreadyAssigned)
}

func TestCreateAssignment_BedNumberUnique(t *testing.T) {
	svc, _ := newTestAccommodationService()
	ctx := context.Background()

	roomA := createTestRoom(t, svc, "205-A", 4, 4)
	roomB := createTestRoom(t, svc, "205-B", 4, 4)

	bed := int64(2)
	_, err := svc.CreateAssignment(ctx, CreateAssignmentRequest{RoomID: roomA, RegistrationID: "reg-1", BedNumber: &bed})
	require.NoError(t, err)

	// 同一房间同一床位号冲突，错误消息带床位号
	_, err = svc.CreateAssignment(ctx, CreateAssignmentRequest{RoomID: roomA, RegistrationID: "reg-2", BedNumber: &bed})
	require.ErrorIs(t, err, domain.ErrBedNumberTaken)
	require.Contains(t, err.Error(), "bed 2")

	// 不同房间的同一床位号互不影响
	_, err = svc.CreateAssignment(ctx, CreateAssignmentRequest{RoomID: roomB, RegistrationID: "reg-2", BedNumber: &bed})
	require.NoError(t, err)

	// 未指定床位号的分配不受床位唯一性限制
	_, err = svc.CreateAssignment(ctx, CreateAssignmentRequest{RoomID: roomA, RegistrationID: "reg-3"})
	require.NoError(t, err)
	_, err = svc.CreateAssignment(ctx, CreateAssignmentRequest{RoomID: roomA, RegistrationID: "reg-4"})
	require.NoError(t, err)

	// 床位号必须为正
	bad := int64(0)
	_, err = svc.CreateAssignment(ctx, CreateAssignmentRequest{RoomID: roomA, RegistrationID: "reg-5", BedNumber: &bad})
	require.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestCreateAssignment_RoomNotFound(t *testing.T) {
	svc, _ := newTestAccommodationService()

	_, err := svc.CreateAssignment(context.Background(), CreateAssignmentRequest{
		RoomID:         "missing",
		RegistrationID: "reg-1",
	})
	require.ErrorIs(t, err, domain.ErrRoomNotFound)
}

func TestRemoveAssignment_NotFound(t *testing.T) {
	svc, _ := newTestAccommodationService()

	_, err := svc.RemoveAssignment(context.Background(), RemoveAssignmentRequest{AssignmentID: "missing"})
	require.ErrorIs(t, err, domain.ErrAssignmentNotFound)
}

func TestDeleteRoom_BlockedByAssignments(t *testing.T) {
	svc, _ := newTestAccommodationService()
	ctx := context.Background()

	roomID := createTestRoom(t, svc, "206", 2, 2)
	resp, err := svc.CreateAssignment(ctx, CreateAssignmentRequest{RoomID: roomID, RegistrationID: "reg-1"})
	require.NoError(t, err)

	_, err = svc.DeleteRoom(ctx, DeleteRoomRequest{RoomID: roomID})
	require.ErrorIs(t, err, domain.ErrRoomHasAssignments)

	// 分配清空后可以删除
	_, err = svc.RemoveAssignment(ctx, RemoveAssignmentRequest{AssignmentID: resp.AssignmentID})
	require.NoError(t, err)
	_, err = svc.DeleteRoom(ctx, DeleteRoomRequest{RoomID: roomID})
	require.NoError(t, err)

	_, err = svc.GetRoom(ctx, GetRoomRequest{RoomID: roomID})
	require.ErrorIs(t, err, domain.ErrRoomNotFound)
}

func TestGetStatistics(t *testing.T) {
	svc, _ := newTestAccommodationService()
	ctx := context.Background()

	roomA := createTestRoom(t, svc, "301", 4, 4)
	createTestRoom(t, svc, "302", 2, 2)

	// 停用的房间不计入统计
	_, err := svc.CreateRoom(ctx, CreateRoomRequest{RoomName: "303", BedCount: 10, MaxOccupancy: 10, IsActive: false})
	require.NoError(t, err)

	_, err = svc.CreateAssignment(ctx, CreateAssignmentRequest{RoomID: roomA, RegistrationID: "reg-1"})
	require.NoError(t, err)

	resp, err := svc.GetStatistics(ctx, GetStatisticsRequest{})
	require.NoError(t, err)
	require.Equal(t, 2, resp.Stats.TotalRooms)
	require.Equal(t, 6, resp.Stats.TotalBeds)
	require.Equal(t, 1, resp.Stats.OccupiedBeds)
	require.Equal(t, 5, resp.Stats.AvailableBeds)
	require.Equal(t, 1, resp.Stats.TotalAssignments)
}

// fakeKV 内存 KV，用于验证统计缓存的读写和失效
type fakeKV struct {
	mu   sync.Mutex
	data map[string]string
	gets int
	sets int
	dels int
}

func newFakeKV() *fakeKV {
	return &fakeKV{data: map[string]string{}}
}

func (f *fakeKV) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	v, ok := f.data[key]
	if !ok {
		return "", errors.New("cache miss")
	}
	return v, nil
}

func (f *fakeKV) Set(_ context.Context, key, value string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sets++
	f.data[key] = value
	return nil
}

func (f *fakeKV) Delete(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dels++
	for _, k := range keys {
		delete(f.data, k)
	}
	return nil
}

func TestGetStatistics_CacheInvalidation(t *testing.T) {
	repo := repository.NewMemoryAccommodationRepository()
	kv := newFakeKV()
	svc := NewAccommodationService(repo, kv, nil, zap.NewNop())
	ctx := context.Background()

	roomID := createTestRoom(t, svc, "401", 4, 4)

	// 第一次查询落库并写缓存
	resp, err := svc.GetStatistics(ctx, GetStatisticsRequest{})
	require.NoError(t, err)
	require.Equal(t, 0, resp.Stats.OccupiedBeds)
	require.Equal(t, 1, kv.sets)

	// 第二次命中缓存
	resp, err = svc.GetStatistics(ctx, GetStatisticsRequest{})
	require.NoError(t, err)
	require.Equal(t, 0, resp.Stats.OccupiedBeds)
	require.Equal(t, 1, kv.sets)

	// 分配后缓存失效，统计反映新状态
	_, err = svc.CreateAssignment(ctx, CreateAssignmentRequest{RoomID: roomID, RegistrationID: "reg-1"})
	require.NoError(t, err)

	resp, err = svc.GetStatistics(ctx, GetStatisticsRequest{})
	require.NoError(t, err)
	require.Equal(t, 1, resp.Stats.OccupiedBeds)
}

// occupancyUnderflowRepo 模拟计数已经漂移到 0 的房间
type occupancyUnderflowRepo struct {
	repository.AccommodationRepository
}

func (r *occupancyUnderflowRepo) RemoveAssignment(context.Context, string) error {
	return domain.ErrOccupancyUnderflow
}

func TestRemoveAssignment_UnderflowSurfaces(t *testing.T) {
	svc := NewAccommodationService(&occupancyUnderflowRepo{}, nil, nil, zap.NewNop())

	// 计数下溢必须上抛，不允许静默截断为 0
	_, err := svc.RemoveAssignment(context.Background(), RemoveAssignmentRequest{AssignmentID: "a-1"})
	require.ErrorIs(t, err, domain.ErrOccupancyUnderflow)
}

func TestListRooms_FilterAndSort(t *testing.T) {
	svc, _ := newTestAccommodationService()
	ctx := context.Background()

	createTestRoom(t, svc, "Alpha", 2, 2)
	createTestRoom(t, svc, "Beta", 6, 6)
	createTestRoom(t, svc, "Gamma", 4, 4)

	resp, err := svc.ListRooms(ctx, ListRoomsRequest{SortBy: "bed_count", SortDesc: true})
	require.NoError(t, err)
	require.Equal(t, 3, resp.Total)
	require.Equal(t, "Beta", resp.Items[0].RoomName)
	require.Equal(t, "Alpha", resp.Items[2].RoomName)

	resp, err = svc.ListRooms(ctx, ListRoomsRequest{Search: "amm"})
	require.NoError(t, err)
	require.Equal(t, 1, resp.Total)
	require.Equal(t, "Gamma", resp.Items[0].RoomName)

	// 分页
	resp, err = svc.ListRooms(ctx, ListRoomsRequest{SortBy: "name", Page: 2, Size: 2})
	require.NoError(t, err)
	require.Equal(t, 3, resp.Total)
	require.Len(t, resp.Items, 1)
}
