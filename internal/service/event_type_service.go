package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"eventreg-data/internal/domain"
	"eventreg-data/internal/repository"
)

// EventTypeService 聚会类别管理服务接口
type EventTypeService interface {
	ListEventTypes(ctx context.Context, req ListEventTypesRequest) (*ListEventTypesResponse, error)
	GetEventType(ctx context.Context, req GetEventTypeRequest) (*GetEventTypeResponse, error)
	CreateEventType(ctx context.Context, req CreateEventTypeRequest) (*CreateEventTypeResponse, error)
	UpdateEventType(ctx context.Context, req UpdateEventTypeRequest) (*UpdateEventTypeResponse, error)
	DeleteEventType(ctx context.Context, req DeleteEventTypeRequest) (*DeleteEventTypeResponse, error)
}

type eventTypeService struct {
	repo   repository.EventTypesRepository
	logger *zap.Logger
}

// NewEventTypeService 创建 EventTypeService 实例
func NewEventTypeService(repo repository.EventTypesRepository, logger *zap.Logger) EventTypeService {
	return &eventTypeService{repo: repo, logger: logger}
}

type ListEventTypesRequest struct {
	IncludeInactive bool
}

type ListEventTypesResponse struct {
	Items []*domain.EventType `json:"items"`
}

type GetEventTypeRequest struct {
	EventTypeID string // 必填
}

type GetEventTypeResponse struct {
	EventType *domain.EventType `json:"event_type"`
}

type CreateEventTypeRequest struct {
	Name        string // 必填
	Description string // 可选
	IsActive    bool
}

type CreateEventTypeResponse struct {
	EventTypeID string `json:"event_type_id"`
}

type UpdateEventTypeRequest struct {
	EventTypeID string // 必填
	Name        string // 必填
	Description string // 可选
	IsActive    bool
}

type UpdateEventTypeResponse struct {
	Success bool `json:"success"`
}

type DeleteEventTypeRequest struct {
	EventTypeID string // 必填
}

type DeleteEventTypeResponse struct {
	Success bool `json:"success"`
}

func (s *eventTypeService) ListEventTypes(ctx context.Context, req ListEventTypesRequest) (*ListEventTypesResponse, error) {
	items, err := s.repo.ListEventTypes(ctx, req.IncludeInactive)
	if err != nil {
		return nil, err
	}
	return &ListEventTypesResponse{Items: items}, nil
}

func (s *eventTypeService) GetEventType(ctx context.Context, req GetEventTypeRequest) (*GetEventTypeResponse, error) {
	if req.EventTypeID == "" {
		return nil, fmt.Errorf("event_type_id is required: %w", domain.ErrInvalidInput)
	}
	et, err := s.repo.GetEventType(ctx, req.EventTypeID)
	if err != nil {
		return nil, err
	}
	return &GetEventTypeResponse{EventType: et}, nil
}

func (s *eventTypeService) CreateEventType(ctx context.Context, req CreateEventTypeRequest) (*CreateEventTypeResponse, error) {
	if req.Name == "" {
		return nil, fmt.Errorf("name is required: %w", domain.ErrInvalidInput)
	}

	et := &domain.EventType{
		Name:        req.Name,
		Description: nullString(req.Description),
		IsActive:    req.IsActive,
	}
	id, err := s.repo.CreateEventType(ctx, et)
	if err != nil {
		return nil, err
	}
	s.logger.Info("event type created", zap.String("event_type_id", id), zap.String("name", req.Name))
	return &CreateEventTypeResponse{EventTypeID: id}, nil
}

func (s *eventTypeService) UpdateEventType(ctx context.Context, req UpdateEventTypeRequest) (*UpdateEventTypeResponse, error) {
	if req.EventTypeID == "" {
		return nil, fmt.Errorf("event_type_id is required: %w", domain.ErrInvalidInput)
	}
	if req.Name == "" {
		return nil, fmt.Errorf("name is required: %w", domain.ErrInvalidInput)
	}

	et := &domain.EventType{
		Name:        req.Name,
		Description: nullString(req.Description),
		IsActive:    req.IsActive,
	}
	if err := s.repo.UpdateEventType(ctx, req.EventTypeID, et); err != nil {
		return nil, err
	}
	return &UpdateEventTypeResponse{Success: true}, nil
}

func (s *eventTypeService) DeleteEventType(ctx context.Context, req DeleteEventTypeRequest) (*DeleteEventTypeResponse, error) {
	if req.EventTypeID == "" {
		return nil, fmt.Errorf("event_type_id is required: %w", domain.ErrInvalidInput)
	}
	if err := s.repo.DeleteEventType(ctx, req.EventTypeID); err != nil {
		return nil, err
	}
	s.logger.Info("event type deleted", zap.String("event_type_id", req.EventTypeID))
	return &DeleteEventTypeResponse{Success: true}, nil
}
