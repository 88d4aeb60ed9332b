package repository

import (
	"context"

	"eventreg-data/internal/domain"
)

// EventTypesRepository 聚会类别Repository接口
type EventTypesRepository interface {
	ListEventTypes(ctx context.Context, includeInactive bool) ([]*domain.EventType, error)
	GetEventType(ctx context.Context, eventTypeID string) (*domain.EventType, error)
	CreateEventType(ctx context.Context, et *domain.EventType) (string, error)
	UpdateEventType(ctx context.Context, eventTypeID string, et *domain.EventType) error

	// DeleteEventType 删除类别
	// 被 rooms 或 registrations 引用时返回 domain.ErrEventTypeInUse
	DeleteEventType(ctx context.Context, eventTypeID string) error
}
