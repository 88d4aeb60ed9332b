package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"eventreg-data/internal/domain"
)

// MemoryAccommodationRepository: 用于 DB 未就绪时的联测和单元测试
// - 互斥锁提供与 Postgres 事务等价的原子性（check-then-write 不会交错）
// - 错误语义与 PostgresAccommodationRepository 完全一致
type MemoryAccommodationRepository struct {
	mu sync.Mutex

	rooms       map[string]*domain.Room       // roomID -> room
	assignments map[string]*domain.Assignment // assignmentID -> assignment
	byReg       map[string]string             // registrationID -> assignmentID

	// 报名者名字查表（房间详情需要；由 MemoryRegistrationsRepository 共享写入）
	regNames map[string]string

	now func() time.Time
}

func NewMemoryAccommodationRepository() *MemoryAccommodationRepository {
	return &MemoryAccommodationRepository{
		rooms:       map[string]*domain.Room{},
		assignments: map[string]*domain.Assignment{},
		byReg:       map[string]string{},
		regNames:    map[string]string{},
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// SetRegistrationName 登记报名者名字（内存模式下由 registration 侧同步）
func (r *MemoryAccommodationRepository) SetRegistrationName(registrationID, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.regNames[registrationID] = name
}

// ---- Room ----

func (r *MemoryAccommodationRepository) ListRooms(_ context.Context, filter RoomFilters, page, size int) ([]*domain.Room, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if page < 1 {
		page = 1
	}
	if size < 1 || size > 500 {
		size = 100
	}

	matched := []*domain.Room{}
	for _, room := range r.rooms {
		if filter.Search != "" && !strings.Contains(strings.ToLower(room.RoomName), strings.ToLower(filter.Search)) {
			continue
		}
		if filter.IsActive != nil && room.IsActive != *filter.IsActive {
			continue
		}
		if filter.EventTypeID != "" && (!room.EventTypeID.Valid || room.EventTypeID.String != filter.EventTypeID) {
			continue
		}
		c := *room
		matched = append(matched, &c)
	}

	sortKey := filter.SortBy
	if _, ok := RoomSortColumns[sortKey]; !ok {
		sortKey = "created_at"
	}
	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		var less bool
		switch sortKey {
		case "name":
			less = a.RoomName < b.RoomName
		case "bed_count":
			less = a.BedCount < b.BedCount
		case "max_occupancy":
			less = a.MaxOccupancy < b.MaxOccupancy
		case "current_occupancy":
			less = a.CurrentOccupancy < b.CurrentOccupancy
		default:
			less = a.CreatedAt.Before(b.CreatedAt)
		}
		if filter.SortDesc {
			return !less && !equalRooms(a, b, sortKey)
		}
		return less
	})

	total := len(matched)
	start := (page - 1) * size
	if start >= total {
		return []*domain.Room{}, total, nil
	}
	end := start + size
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func equalRooms(a, b *domain.Room, key string) bool {
	switch key {
	case "name":
		return a.RoomName == b.RoomName
	case "bed_count":
		return a.BedCount == b.BedCount
	case "max_occupancy":
		return a.MaxOccupancy == b.MaxOccupancy
	case "current_occupancy":
		return a.CurrentOccupancy == b.CurrentOccupancy
	default:
		return a.CreatedAt.Equal(b.CreatedAt)
	}
}

func (r *MemoryAccommodationRepository) GetRoom(_ context.Context, roomID string) (*domain.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[roomID]
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	c := *room
	return &c, nil
}

func (r *MemoryAccommodationRepository) CreateRoom(_ context.Context, room *domain.Room) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := uuid.NewString()
	c := *room
	c.RoomID = id
	c.CurrentOccupancy = 0
	c.CreatedAt = r.now()
	r.rooms[id] = &c
	return id, nil
}

func (r *MemoryAccommodationRepository) UpdateRoom(_ context.Context, roomID string, room *domain.Room) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.rooms[roomID]
	if !ok {
		return domain.ErrRoomNotFound
	}
	existing.RoomName = room.RoomName
	existing.Description = room.Description
	existing.BedCount = room.BedCount
	existing.MaxOccupancy = room.MaxOccupancy
	existing.IsActive = room.IsActive
	existing.EventTypeID = room.EventTypeID
	return nil
}

func (r *MemoryAccommodationRepository) DeleteRoom(_ context.Context, roomID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rooms[roomID]; !ok {
		return domain.ErrRoomNotFound
	}
	for _, a := range r.assignments {
		if a.RoomID == roomID {
			return domain.ErrRoomHasAssignments
		}
	}
	delete(r.rooms, roomID)
	return nil
}

// ---- Assignment ----

func (r *MemoryAccommodationRepository) CreateAssignment(_ context.Context, a *domain.Assignment) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// 前置条件检查顺序与 Postgres 实现一致
	if _, held := r.byReg[a.RegistrationID]; held {
		return "", domain.ErrAlreadyAssigned
	}
	room, ok := r.rooms[a.RoomID]
	if !ok {
		return "", domain.ErrRoomNotFound
	}
	if room.CurrentOccupancy >= room.MaxOccupancy {
		return "", domain.ErrRoomAtCapacity
	}
	if a.BedNumber.Valid {
		for _, existing := range r.assignments {
			if existing.RoomID == a.RoomID && existing.BedNumber.Valid && existing.BedNumber.Int64 == a.BedNumber.Int64 {
				return "", fmt.Errorf("bed %d: %w", a.BedNumber.Int64, domain.ErrBedNumberTaken)
			}
		}
	}

	id := uuid.NewString()
	c := *a
	c.AssignmentID = id
	if c.AssignedAt.IsZero() {
		c.AssignedAt = r.now()
	}
	r.assignments[id] = &c
	r.byReg[c.RegistrationID] = id
	room.CurrentOccupancy++
	return id, nil
}

func (r *MemoryAccommodationRepository) RemoveAssignment(_ context.Context, assignmentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.assignments[assignmentID]
	if !ok {
		return domain.ErrAssignmentNotFound
	}
	room, ok := r.rooms[a.RoomID]
	if ok && room.CurrentOccupancy == 0 {
		return domain.ErrOccupancyUnderflow
	}
	delete(r.assignments, assignmentID)
	delete(r.byReg, a.RegistrationID)
	if ok {
		room.CurrentOccupancy--
	}
	return nil
}

func (r *MemoryAccommodationRepository) GetAssignment(_ context.Context, assignmentID string) (*domain.Assignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.assignments[assignmentID]
	if !ok {
		return nil, domain.ErrAssignmentNotFound
	}
	c := *a
	return &c, nil
}

func (r *MemoryAccommodationRepository) GetAssignmentByRegistration(_ context.Context, registrationID string) (*domain.Assignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byReg[registrationID]
	if !ok {
		return nil, domain.ErrAssignmentNotFound
	}
	c := *r.assignments[id]
	return &c, nil
}

func (r *MemoryAccommodationRepository) ListAssignments(_ context.Context, roomID string, page, size int) ([]*AssignmentWithRegistration, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if page < 1 {
		page = 1
	}
	if size < 1 || size > 500 {
		size = 50
	}

	matched := []*AssignmentWithRegistration{}
	for _, a := range r.assignments {
		if a.RoomID != roomID {
			continue
		}
		c := *a
		matched = append(matched, &AssignmentWithRegistration{
			Assignment:       &c,
			RegistrationName: r.regNames[a.RegistrationID],
		})
	}
	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i].Assignment, matched[j].Assignment
		if a.BedNumber.Valid != b.BedNumber.Valid {
			return a.BedNumber.Valid // bed_number NULLS LAST
		}
		if a.BedNumber.Valid && a.BedNumber.Int64 != b.BedNumber.Int64 {
			return a.BedNumber.Int64 < b.BedNumber.Int64
		}
		return a.AssignedAt.Before(b.AssignedAt)
	})

	total := len(matched)
	start := (page - 1) * size
	if start >= total {
		return []*AssignmentWithRegistration{}, total, nil
	}
	end := start + size
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

// ---- 统计 ----

func (r *MemoryAccommodationRepository) GetStatistics(_ context.Context, eventTypeID string) (*AccommodationStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := &AccommodationStats{}
	scoped := map[string]bool{}
	for id, room := range r.rooms {
		if eventTypeID != "" && (!room.EventTypeID.Valid || room.EventTypeID.String != eventTypeID) {
			continue
		}
		scoped[id] = true
		if !room.IsActive {
			continue
		}
		stats.TotalRooms++
		stats.TotalBeds += room.BedCount
		stats.OccupiedBeds += room.CurrentOccupancy
	}
	stats.AvailableBeds = stats.TotalBeds - stats.OccupiedBeds
	for _, a := range r.assignments {
		if eventTypeID != "" && !scoped[a.RoomID] {
			continue
		}
		stats.TotalAssignments++
	}
	return stats, nil
}
