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

// MemoryRegistrationsRepository: 报名的内存实现
// 与 MemoryAccommodationRepository / MemoryGroupsRepository 协作时，
// 通过可选的挂钩同步名字和 FK 目标（内存模式没有真正的外键）
type MemoryRegistrationsRepository struct {
	mu sync.Mutex

	registrations map[string]*domain.Registration

	accommodation *MemoryAccommodationRepository // 可选
	groups        *MemoryGroupsRepository        // 可选

	now func() time.Time
}

func NewMemoryRegistrationsRepository() *MemoryRegistrationsRepository {
	return &MemoryRegistrationsRepository{
		registrations: map[string]*domain.Registration{},
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Wire 关联其它内存 repo（模拟跨表约束）
func (r *MemoryRegistrationsRepository) Wire(acc *MemoryAccommodationRepository, groups *MemoryGroupsRepository) {
	r.accommodation = acc
	r.groups = groups
}

func (r *MemoryRegistrationsRepository) ListRegistrations(_ context.Context, filter RegistrationsFilter, page, size int) ([]*domain.Registration, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if page < 1 {
		page = 1
	}
	if size < 1 || size > 500 {
		size = 100
	}

	matched := []*domain.Registration{}
	for _, reg := range r.registrations {
		if filter.Search != "" {
			s := strings.ToLower(filter.Search)
			if !strings.Contains(strings.ToLower(reg.Name), s) &&
				!(reg.Locality.Valid && strings.Contains(strings.ToLower(reg.Locality.String), s)) {
				continue
			}
		}
		if filter.Status != "" && reg.Status != filter.Status {
			continue
		}
		if filter.GroupID != "" && r.groupOfLocked(reg.RegistrationID) != filter.GroupID {
			continue
		}
		if filter.EventTypeID != "" && (!reg.EventTypeID.Valid || reg.EventTypeID.String != filter.EventTypeID) {
			continue
		}
		c := r.withGroupLocked(reg)
		matched = append(matched, c)
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].RegistrationID < matched[j].RegistrationID
	})

	total := len(matched)
	start := (page - 1) * size
	if start >= total {
		return []*domain.Registration{}, total, nil
	}
	end := start + size
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func (r *MemoryRegistrationsRepository) GetRegistration(_ context.Context, registrationID string) (*domain.Registration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg, ok := r.registrations[registrationID]
	if !ok {
		return nil, domain.ErrRegistrationNotFound
	}
	return r.withGroupLocked(reg), nil
}

func (r *MemoryRegistrationsRepository) CreateRegistration(_ context.Context, reg *domain.Registration) (string, error) {
	r.mu.Lock()
	id := uuid.NewString()
	c := *reg
	c.RegistrationID = id
	if c.Status == "" {
		c.Status = domain.RegistrationStatusRegistered
	}
	c.CreatedAt = r.now()
	r.registrations[id] = &c
	r.mu.Unlock()

	if r.accommodation != nil {
		r.accommodation.SetRegistrationName(id, c.Name)
	}
	if r.groups != nil {
		r.groups.RegisterRegistration(id)
	}
	return id, nil
}

func (r *MemoryRegistrationsRepository) UpdateRegistration(_ context.Context, registrationID string, reg *domain.Registration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.registrations[registrationID]
	if !ok {
		return domain.ErrRegistrationNotFound
	}
	existing.Name = reg.Name
	existing.Gender = reg.Gender
	existing.Phone = reg.Phone
	existing.Email = reg.Email
	existing.Locality = reg.Locality
	existing.EventTypeID = reg.EventTypeID
	existing.Notes = reg.Notes
	return nil
}

func (r *MemoryRegistrationsRepository) DeleteRegistration(ctx context.Context, registrationID string) error {
	if r.accommodation != nil {
		if _, err := r.accommodation.GetAssignmentByRegistration(ctx, registrationID); err == nil {
			return domain.ErrRegistrationAssigned
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.registrations[registrationID]; !ok {
		return domain.ErrRegistrationNotFound
	}
	delete(r.registrations, registrationID)
	return nil
}

func (r *MemoryRegistrationsRepository) CheckIn(_ context.Context, registrationID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	reg, ok := r.registrations[registrationID]
	if !ok {
		return domain.ErrRegistrationNotFound
	}
	switch reg.Status {
	case domain.RegistrationStatusRegistered:
		reg.Status = domain.RegistrationStatusCheckedIn
		reg.CheckedInAt.Valid = true
		reg.CheckedInAt.Time = at
		return nil
	case domain.RegistrationStatusCheckedIn:
		return domain.ErrAlreadyCheckedIn
	default:
		return fmt.Errorf("registration %s cannot check in from status %q", registrationID, reg.Status)
	}
}

func (r *MemoryRegistrationsRepository) ListForExport(ctx context.Context, eventTypeID string) ([]*RegistrationExportRow, error) {
	r.mu.Lock()
	regs := []*domain.Registration{}
	for _, reg := range r.registrations {
		if eventTypeID != "" && (!reg.EventTypeID.Valid || reg.EventTypeID.String != eventTypeID) {
			continue
		}
		c := *reg
		regs = append(regs, &c)
	}
	r.mu.Unlock()

	sort.Slice(regs, func(i, j int) bool { return regs[i].Name < regs[j].Name })

	out := []*RegistrationExportRow{}
	for _, reg := range regs {
		row := &RegistrationExportRow{
			Name:     reg.Name,
			Gender:   reg.Gender,
			Phone:    reg.Phone.String,
			Locality: reg.Locality.String,
			Status:   reg.Status,
		}
		if reg.CheckedInAt.Valid {
			t := reg.CheckedInAt.Time
			row.CheckedInAt = &t
		}
		if r.groups != nil {
			if gid, ok := r.groups.GroupOf(reg.RegistrationID); ok {
				if g, err := r.groups.GetGroup(ctx, gid); err == nil {
					row.GroupName = g.Name
				}
			}
		}
		if r.accommodation != nil {
			if a, err := r.accommodation.GetAssignmentByRegistration(ctx, reg.RegistrationID); err == nil {
				if room, err := r.accommodation.GetRoom(ctx, a.RoomID); err == nil {
					row.RoomName = room.RoomName
				}
				if a.BedNumber.Valid {
					n := a.BedNumber.Int64
					row.BedNumber = &n
				}
			}
		}
		out = append(out, row)
	}
	return out, nil
}

func (r *MemoryRegistrationsRepository) groupOfLocked(registrationID string) string {
	if r.groups == nil {
		return ""
	}
	gid, _ := r.groups.GroupOf(registrationID)
	return gid
}

// withGroupLocked 返回带实时 group_id 的拷贝（group FK 由 MemoryGroupsRepository 持有）
func (r *MemoryRegistrationsRepository) withGroupLocked(reg *domain.Registration) *domain.Registration {
	c := *reg
	if gid := r.groupOfLocked(reg.RegistrationID); gid != "" {
		c.GroupID.Valid = true
		c.GroupID.String = gid
	} else {
		c.GroupID.Valid = false
		c.GroupID.String = ""
	}
	return &c
}
