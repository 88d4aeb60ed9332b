package repository

import (
	"context"
	"time"

	"eventreg-data/internal/domain"
)

// RegistrationsRepository 报名Repository接口
type RegistrationsRepository interface {
	ListRegistrations(ctx context.Context, filter RegistrationsFilter, page, size int) ([]*domain.Registration, int, error)
	GetRegistration(ctx context.Context, registrationID string) (*domain.Registration, error)
	CreateRegistration(ctx context.Context, reg *domain.Registration) (string, error)
	UpdateRegistration(ctx context.Context, registrationID string, reg *domain.Registration) error

	// DeleteRegistration 删除报名记录
	// 注意：仍持有床位分配时返回 domain.ErrRegistrationAssigned（先退房再删）
	DeleteRegistration(ctx context.Context, registrationID string) error

	// CheckIn 报到（registered -> checked_in，写入 checked_in_at）
	// 重复报到返回 domain.ErrAlreadyCheckedIn
	CheckIn(ctx context.Context, registrationID string, at time.Time) error

	// ListForExport 导出用明细（报名 LEFT JOIN 分配/房间/分组）
	ListForExport(ctx context.Context, eventTypeID string) ([]*RegistrationExportRow, error)
}

// RegistrationsFilter 报名查询过滤器
type RegistrationsFilter struct {
	Search      string // 可选，name/locality 模糊匹配
	Status      string // 可选，registered | checked_in | cancelled
	GroupID     string // 可选
	EventTypeID string // 可选
}

// RegistrationExportRow 导出明细行（已摊平，直接写 XLSX）
type RegistrationExportRow struct {
	Name        string
	Gender      string
	Phone       string
	Locality    string
	Status      string
	CheckedInAt *time.Time
	GroupName   string
	RoomName    string
	BedNumber   *int64
}
