package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"eventreg-data/internal/domain"
)

// MemoryEventTypesRepository: 聚会类别的内存实现
type MemoryEventTypesRepository struct {
	mu sync.Mutex

	eventTypes map[string]*domain.EventType

	accommodation *MemoryAccommodationRepository // 可选，用于删除时的引用检查
	registrations *MemoryRegistrationsRepository // 可选

	now func() time.Time
}

func NewMemoryEventTypesRepository() *MemoryEventTypesRepository {
	return &MemoryEventTypesRepository{
		eventTypes: map[string]*domain.EventType{},
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Wire 关联其它内存 repo（模拟跨表约束）
func (r *MemoryEventTypesRepository) Wire(acc *MemoryAccommodationRepository, regs *MemoryRegistrationsRepository) {
	r.accommodation = acc
	r.registrations = regs
}

func (r *MemoryEventTypesRepository) ListEventTypes(_ context.Context, includeInactive bool) ([]*domain.EventType, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := []*domain.EventType{}
	for _, et := range r.eventTypes {
		if !includeInactive && !et.IsActive {
			continue
		}
		c := *et
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *MemoryEventTypesRepository) GetEventType(_ context.Context, eventTypeID string) (*domain.EventType, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	et, ok := r.eventTypes[eventTypeID]
	if !ok {
		return nil, domain.ErrEventTypeNotFound
	}
	c := *et
	return &c, nil
}

func (r *MemoryEventTypesRepository) CreateEventType(_ context.Context, et *domain.EventType) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := uuid.NewString()
	c := *et
	c.EventTypeID = id
	c.CreatedAt = r.now()
	r.eventTypes[id] = &c
	return id, nil
}

func (r *MemoryEventTypesRepository) UpdateEventType(_ context.Context, eventTypeID string, et *domain.EventType) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.eventTypes[eventTypeID]
	if !ok {
		return domain.ErrEventTypeNotFound
	}
	existing.Name = et.Name
	existing.Description = et.Description
	existing.IsActive = et.IsActive
	return nil
}

func (r *MemoryEventTypesRepository) DeleteEventType(ctx context.Context, eventTypeID string) error {
	if r.accommodation != nil {
		rooms, _, err := r.accommodation.ListRooms(ctx, RoomFilters{EventTypeID: eventTypeID}, 1, 1)
		if err != nil {
			return err
		}
		if len(rooms) > 0 {
			return domain.ErrEventTypeInUse
		}
	}
	if r.registrations != nil {
		regs, _, err := r.registrations.ListRegistrations(ctx, RegistrationsFilter{EventTypeID: eventTypeID}, 1, 1)
		if err != nil {
			return err
		}
		if len(regs) > 0 {
			return domain.ErrEventTypeInUse
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.eventTypes[eventTypeID]; !ok {
		return domain.ErrEventTypeNotFound
	}
	delete(r.eventTypes, eventTypeID)
	return nil
}
