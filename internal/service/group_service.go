package service

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"eventreg-data/internal/domain"
	"eventreg-data/internal/repository"
)

// GroupService 分组管理服务接口
// 和 AccommodationService 的结构平行，但容量检查基于实时 COUNT
// 而不是反范式计数（没有可漂移的计数列）
type GroupService interface {
	ListGroups(ctx context.Context, req ListGroupsRequest) (*ListGroupsResponse, error)
	GetGroup(ctx context.Context, req GetGroupRequest) (*GetGroupResponse, error)
	CreateGroup(ctx context.Context, req CreateGroupRequest) (*CreateGroupResponse, error)
	UpdateGroup(ctx context.Context, req UpdateGroupRequest) (*UpdateGroupResponse, error)
	DeleteGroup(ctx context.Context, req DeleteGroupRequest) (*DeleteGroupResponse, error)

	AssignToGroup(ctx context.Context, req AssignToGroupRequest) (*AssignToGroupResponse, error)
	RemoveFromGroup(ctx context.Context, req RemoveFromGroupRequest) (*RemoveFromGroupResponse, error)
}

type groupService struct {
	repo   repository.GroupsRepository
	logger *zap.Logger
}

// NewGroupService 创建 GroupService 实例
func NewGroupService(repo repository.GroupsRepository, logger *zap.Logger) GroupService {
	return &groupService{repo: repo, logger: logger}
}

// ============================================
// 请求/响应结构
// ============================================

type ListGroupsRequest struct {
	Search   string // 可选
	IsActive *bool  // 可选
	Page     int    // 可选，默认 1
	Size     int    // 可选，默认 100
}

type ListGroupsResponse struct {
	Items []*repository.GroupWithCount `json:"items"`
	Total int                          `json:"total"`
}

type GetGroupRequest struct {
	GroupID string // 必填
}

type GetGroupResponse struct {
	Group       *domain.Group `json:"group"`
	MemberCount int           `json:"member_count"`
}

type CreateGroupRequest struct {
	Name        string // 必填
	Description string // 可选
	MaxMembers  *int64 // 可选，> 0；nil 表示不限
	IsActive    bool
}

type CreateGroupResponse struct {
	GroupID string `json:"group_id"`
}

type UpdateGroupRequest struct {
	GroupID     string // 必填
	Name        string // 必填
	Description string // 可选
	MaxMembers  *int64 // 可选
	IsActive    bool
}

type UpdateGroupResponse struct {
	Success bool `json:"success"`
}

type DeleteGroupRequest struct {
	GroupID string // 必填
}

type DeleteGroupResponse struct {
	// SoftDeleted 为 true 表示组内仍有成员，只做了停用
	SoftDeleted bool `json:"soft_deleted"`
}

type AssignToGroupRequest struct {
	RegistrationID string // 必填
	GroupID        string // 必填
}

type AssignToGroupResponse struct {
	Success bool `json:"success"`
}

type RemoveFromGroupRequest struct {
	RegistrationID string // 必填
}

type RemoveFromGroupResponse struct {
	Success bool `json:"success"`
}

// ============================================
// 实现
// ============================================

func (s *groupService) ListGroups(ctx context.Context, req ListGroupsRequest) (*ListGroupsResponse, error) {
	page := req.Page
	if page < 1 {
		page = 1
	}
	size := req.Size
	if size < 1 {
		size = 100
	}

	items, total, err := s.repo.ListGroups(ctx, repository.GroupsFilter{
		Search:   req.Search,
		IsActive: req.IsActive,
	}, page, size)
	if err != nil {
		return nil, err
	}
	return &ListGroupsResponse{Items: items, Total: total}, nil
}

func (s *groupService) GetGroup(ctx context.Context, req GetGroupRequest) (*GetGroupResponse, error) {
	if req.GroupID == "" {
		return nil, fmt.Errorf("group_id is required: %w", domain.ErrInvalidInput)
	}

	group, err := s.repo.GetGroup(ctx, req.GroupID)
	if err != nil {
		return nil, err
	}
	count, err := s.repo.CountMembers(ctx, req.GroupID)
	if err != nil {
		return nil, err
	}
	return &GetGroupResponse{Group: group, MemberCount: count}, nil
}

func (s *groupService) CreateGroup(ctx context.Context, req CreateGroupRequest) (*CreateGroupResponse, error) {
	if err := validateGroupFields(req.Name, req.MaxMembers); err != nil {
		return nil, err
	}

	group := &domain.Group{
		Name:        req.Name,
		Description: nullString(req.Description),
		IsActive:    req.IsActive,
	}
	if req.MaxMembers != nil {
		group.MaxMembers = sql.NullInt64{Int64: *req.MaxMembers, Valid: true}
	}
	id, err := s.repo.CreateGroup(ctx, group)
	if err != nil {
		return nil, err
	}

	s.logger.Info("group created", zap.String("group_id", id), zap.String("name", req.Name))
	return &CreateGroupResponse{GroupID: id}, nil
}

func (s *groupService) UpdateGroup(ctx context.Context, req UpdateGroupRequest) (*UpdateGroupResponse, error) {
	if req.GroupID == "" {
		return nil, fmt.Errorf("group_id is required: %w", domain.ErrInvalidInput)
	}
	if err := validateGroupFields(req.Name, req.MaxMembers); err != nil {
		return nil, err
	}

	group := &domain.Group{
		Name:        req.Name,
		Description: nullString(req.Description),
		IsActive:    req.IsActive,
	}
	if req.MaxMembers != nil {
		group.MaxMembers = sql.NullInt64{Int64: *req.MaxMembers, Valid: true}
	}
	if err := s.repo.UpdateGroup(ctx, req.GroupID, group); err != nil {
		return nil, err
	}
	return &UpdateGroupResponse{Success: true}, nil
}

func (s *groupService) DeleteGroup(ctx context.Context, req DeleteGroupRequest) (*DeleteGroupResponse, error) {
	if req.GroupID == "" {
		return nil, fmt.Errorf("group_id is required: %w", domain.ErrInvalidInput)
	}

	soft, err := s.repo.DeleteGroup(ctx, req.GroupID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("group deleted", zap.String("group_id", req.GroupID), zap.Bool("soft", soft))
	return &DeleteGroupResponse{SoftDeleted: soft}, nil
}

func (s *groupService) AssignToGroup(ctx context.Context, req AssignToGroupRequest) (*AssignToGroupResponse, error) {
	if req.RegistrationID == "" {
		return nil, fmt.Errorf("registration_id is required: %w", domain.ErrInvalidInput)
	}
	if req.GroupID == "" {
		return nil, fmt.Errorf("group_id is required: %w", domain.ErrInvalidInput)
	}

	if err := s.repo.AssignToGroup(ctx, req.RegistrationID, req.GroupID); err != nil {
		return nil, err
	}
	s.logger.Info("registration assigned to group",
		zap.String("registration_id", req.RegistrationID),
		zap.String("group_id", req.GroupID))
	return &AssignToGroupResponse{Success: true}, nil
}

func (s *groupService) RemoveFromGroup(ctx context.Context, req RemoveFromGroupRequest) (*RemoveFromGroupResponse, error) {
	if req.RegistrationID == "" {
		return nil, fmt.Errorf("registration_id is required: %w", domain.ErrInvalidInput)
	}

	if err := s.repo.RemoveFromGroup(ctx, req.RegistrationID); err != nil {
		return nil, err
	}
	return &RemoveFromGroupResponse{Success: true}, nil
}

func validateGroupFields(name string, maxMembers *int64) error {
	if name == "" {
		return fmt.Errorf("name is required: %w", domain.ErrInvalidInput)
	}
	if maxMembers != nil && *maxMembers <= 0 {
		return fmt.Errorf("max_members must be a positive integer: %w", domain.ErrInvalidInput)
	}
	return nil
}
