package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"eventreg-data/internal/domain"
	"eventreg-data/internal/repository"
	"eventreg-data/internal/stream"
)

// RegistrationService 报名管理服务接口
type RegistrationService interface {
	ListRegistrations(ctx context.Context, req ListRegistrationsRequest) (*ListRegistrationsResponse, error)
	GetRegistration(ctx context.Context, req GetRegistrationRequest) (*GetRegistrationResponse, error)
	CreateRegistration(ctx context.Context, req CreateRegistrationRequest) (*CreateRegistrationResponse, error)
	UpdateRegistration(ctx context.Context, req UpdateRegistrationRequest) (*UpdateRegistrationResponse, error)
	DeleteRegistration(ctx context.Context, req DeleteRegistrationRequest) (*DeleteRegistrationResponse, error)

	// CheckIn 报到
	CheckIn(ctx context.Context, req CheckInRequest) (*CheckInResponse, error)

	// ExportRows 导出明细（XLSX 渲染在 Handler 层）
	ExportRows(ctx context.Context, req ExportRowsRequest) ([]*repository.RegistrationExportRow, error)
}

type registrationService struct {
	repo      repository.RegistrationsRepository
	publisher *stream.Publisher // 可选
	logger    *zap.Logger
	now       func() time.Time
}

// NewRegistrationService 创建 RegistrationService 实例
func NewRegistrationService(repo repository.RegistrationsRepository, publisher *stream.Publisher, logger *zap.Logger) RegistrationService {
	return &registrationService{
		repo:      repo,
		publisher: publisher,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// ============================================
// 请求/响应结构
// ============================================

type ListRegistrationsRequest struct {
	Search      string // 可选，name/locality 模糊匹配
	Status      string // 可选
	GroupID     string // 可选
	EventTypeID string // 可选
	Page        int    // 可选，默认 1
	Size        int    // 可选，默认 100
}

type ListRegistrationsResponse struct {
	Items []*domain.Registration `json:"items"`
	Total int                    `json:"total"`
}

type GetRegistrationRequest struct {
	RegistrationID string // 必填
}

type GetRegistrationResponse struct {
	Registration *domain.Registration `json:"registration"`
}

type CreateRegistrationRequest struct {
	Name        string // 必填
	Gender      string // 必填，male | female
	Phone       string // 可选
	Email       string // 可选
	Locality    string // 可选
	EventTypeID string // 可选
	Notes       string // 可选
}

type CreateRegistrationResponse struct {
	RegistrationID string `json:"registration_id"`
}

type UpdateRegistrationRequest struct {
	RegistrationID string // 必填
	Name           string // 必填
	Gender         string // 必填
	Phone          string // 可选
	Email          string // 可选
	Locality       string // 可选
	EventTypeID    string // 可选
	Notes          string // 可选
}

type UpdateRegistrationResponse struct {
	Success bool `json:"success"`
}

type DeleteRegistrationRequest struct {
	RegistrationID string // 必填
}

type DeleteRegistrationResponse struct {
	Success bool `json:"success"`
}

type CheckInRequest struct {
	RegistrationID string // 必填
}

type CheckInResponse struct {
	CheckedInAt time.Time `json:"checked_in_at"`
}

type ExportRowsRequest struct {
	EventTypeID string // 可选
}

// ============================================
// 实现
// ============================================

func (s *registrationService) ListRegistrations(ctx context.Context, req ListRegistrationsRequest) (*ListRegistrationsResponse, error) {
	page := req.Page
	if page < 1 {
		page = 1
	}
	size := req.Size
	if size < 1 {
		size = 100
	}

	items, total, err := s.repo.ListRegistrations(ctx, repository.RegistrationsFilter{
		Search:      req.Search,
		Status:      req.Status,
		GroupID:     req.GroupID,
		EventTypeID: req.EventTypeID,
	}, page, size)
	if err != nil {
		return nil, err
	}
	return &ListRegistrationsResponse{Items: items, Total: total}, nil
}

func (s *registrationService) GetRegistration(ctx context.Context, req GetRegistrationRequest) (*GetRegistrationResponse, error) {
	if req.RegistrationID == "" {
		return nil, fmt.Errorf("registration_id is required: %w", domain.ErrInvalidInput)
	}
	reg, err := s.repo.GetRegistration(ctx, req.RegistrationID)
	if err != nil {
		return nil, err
	}
	return &GetRegistrationResponse{Registration: reg}, nil
}

func (s *registrationService) CreateRegistration(ctx context.Context, req CreateRegistrationRequest) (*CreateRegistrationResponse, error) {
	if err := validateRegistrationFields(req.Name, req.Gender); err != nil {
		return nil, err
	}

	reg := &domain.Registration{
		Name:        req.Name,
		Gender:      req.Gender,
		Phone:       nullString(req.Phone),
		Email:       nullString(req.Email),
		Locality:    nullString(req.Locality),
		EventTypeID: nullString(req.EventTypeID),
		Notes:       nullString(req.Notes),
	}
	id, err := s.repo.CreateRegistration(ctx, reg)
	if err != nil {
		return nil, err
	}

	s.logger.Info("registration created", zap.String("registration_id", id), zap.String("name", req.Name))
	return &CreateRegistrationResponse{RegistrationID: id}, nil
}

func (s *registrationService) UpdateRegistration(ctx context.Context, req UpdateRegistrationRequest) (*UpdateRegistrationResponse, error) {
	if req.RegistrationID == "" {
		return nil, fmt.Errorf("registration_id is required: %w", domain.ErrInvalidInput)
	}
	if err := validateRegistrationFields(req.Name, req.Gender); err != nil {
		return nil, err
	}

	reg := &domain.Registration{
		Name:        req.Name,
		Gender:      req.Gender,
		Phone:       nullString(req.Phone),
		Email:       nullString(req.Email),
		Locality:    nullString(req.Locality),
		EventTypeID: nullString(req.EventTypeID),
		Notes:       nullString(req.Notes),
	}
	if err := s.repo.UpdateRegistration(ctx, req.RegistrationID, reg); err != nil {
		return nil, err
	}
	return &UpdateRegistrationResponse{Success: true}, nil
}

func (s *registrationService) DeleteRegistration(ctx context.Context, req DeleteRegistrationRequest) (*DeleteRegistrationResponse, error) {
	if req.RegistrationID == "" {
		return nil, fmt.Errorf("registration_id is required: %w", domain.ErrInvalidInput)
	}
	if err := s.repo.DeleteRegistration(ctx, req.RegistrationID); err != nil {
		return nil, err
	}
	s.logger.Info("registration deleted", zap.String("registration_id", req.RegistrationID))
	return &DeleteRegistrationResponse{Success: true}, nil
}

func (s *registrationService) CheckIn(ctx context.Context, req CheckInRequest) (*CheckInResponse, error) {
	if req.RegistrationID == "" {
		return nil, fmt.Errorf("registration_id is required: %w", domain.ErrInvalidInput)
	}

	at := s.now()
	if err := s.repo.CheckIn(ctx, req.RegistrationID, at); err != nil {
		return nil, err
	}

	s.publisher.Publish(ctx, stream.EventRegistrationCheckIn, map[string]any{
		"registration_id": req.RegistrationID,
		"checked_in_at":   at.Format(time.RFC3339),
	})
	s.logger.Info("registration checked in", zap.String("registration_id", req.RegistrationID))
	return &CheckInResponse{CheckedInAt: at}, nil
}

func (s *registrationService) ExportRows(ctx context.Context, req ExportRowsRequest) ([]*repository.RegistrationExportRow, error) {
	return s.repo.ListForExport(ctx, req.EventTypeID)
}

func validateRegistrationFields(name, gender string) error {
	if name == "" {
		return fmt.Errorf("name is required: %w", domain.ErrInvalidInput)
	}
	if gender != "male" && gender != "female" {
		return fmt.Errorf("gender must be 'male' or 'female': %w", domain.ErrInvalidInput)
	}
	return nil
}
