package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"eventreg-data/internal/domain"
	"eventreg-data/internal/repository"
	"eventreg-data/internal/store"
	"eventreg-data/internal/stream"
)

// AccommodationService 住宿管理服务接口（Room + Assignment + 统计）
type AccommodationService interface {
	// Room 管理
	ListRooms(ctx context.Context, req ListRoomsRequest) (*ListRoomsResponse, error)
	GetRoom(ctx context.Context, req GetRoomRequest) (*GetRoomResponse, error)
	CreateRoom(ctx context.Context, req CreateRoomRequest) (*CreateRoomResponse, error)
	UpdateRoom(ctx context.Context, req UpdateRoomRequest) (*UpdateRoomResponse, error)
	DeleteRoom(ctx context.Context, req DeleteRoomRequest) (*DeleteRoomResponse, error)

	// Assignment 管理
	CreateAssignment(ctx context.Context, req CreateAssignmentRequest) (*CreateAssignmentResponse, error)
	RemoveAssignment(ctx context.Context, req RemoveAssignmentRequest) (*RemoveAssignmentResponse, error)

	// 统计
	GetStatistics(ctx context.Context, req GetStatisticsRequest) (*GetStatisticsResponse, error)
}

// accommodationService 实现
type accommodationService struct {
	repo      repository.AccommodationRepository
	cache     store.KV          // 可选，统计缓存
	publisher *stream.Publisher // 可选，领域事件
	logger    *zap.Logger
}

// NewAccommodationService 创建 AccommodationService 实例
// cache 和 publisher 允许为 nil（本地开发无 Redis）
func NewAccommodationService(repo repository.AccommodationRepository, cache store.KV, publisher *stream.Publisher, logger *zap.Logger) AccommodationService {
	return &accommodationService{
		repo:      repo,
		cache:     cache,
		publisher: publisher,
		logger:    logger,
	}
}

// 统计缓存 TTL：统计页的刷新频率远低于分配操作的频率
const statsCacheTTL = 30 * time.Second

// ============================================
// Room 相关请求/响应结构
// ============================================

type ListRoomsRequest struct {
	Search      string // 可选，room_name 模糊匹配
	IsActive    *bool  // 可选
	EventTypeID string // 可选
	SortBy      string // 可选，未识别回退 created_at
	SortDesc    bool
	Page        int // 可选，默认 1
	Size        int // 可选，默认 100
}

type ListRoomsResponse struct {
	Items []*domain.Room `json:"items"`
	Total int            `json:"total"`
}

type GetRoomRequest struct {
	RoomID string // 必填
	// assignment 列表的分页独立于房间列表的分页
	AssignmentPage int // 可选，默认 1
	AssignmentSize int // 可选，默认 50
}

type GetRoomResponse struct {
	Room             *domain.Room
	Assignments      []*repository.AssignmentWithRegistration
	AssignmentsTotal int
}

type CreateRoomRequest struct {
	RoomName     string // 必填
	Description  string // 可选
	BedCount     int    // 必填，> 0
	MaxOccupancy int    // 必填，> 0，<= BedCount
	IsActive     bool
	EventTypeID  string // 可选
}

type CreateRoomResponse struct {
	RoomID string `json:"room_id"`
}

type UpdateRoomRequest struct {
	RoomID       string // 必填
	RoomName     string // 必填
	Description  string // 可选
	BedCount     int    // 必填，> 0
	MaxOccupancy int    // 必填，> 0，<= BedCount
	IsActive     bool
	EventTypeID  string // 可选
}

type UpdateRoomResponse struct {
	Success bool `json:"success"`
}

type DeleteRoomRequest struct {
	RoomID string // 必填
}

type DeleteRoomResponse struct {
	Success bool `json:"success"`
}

// ============================================
// Assignment 相关请求/响应结构
// ============================================

type CreateAssignmentRequest struct {
	RoomID         string // 必填
	RegistrationID string // 必填
	BedNumber      *int64 // 可选，> 0
	Notes          string // 可选
	AssignedBy     string // 可选，操作者ID（来自 auth provider）
}

type CreateAssignmentResponse struct {
	AssignmentID string `json:"assignment_id"`
}

type RemoveAssignmentRequest struct {
	AssignmentID string // 必填
}

type RemoveAssignmentResponse struct {
	Success bool `json:"success"`
}

type GetStatisticsRequest struct {
	EventTypeID string // 可选，空表示全部
}

type GetStatisticsResponse struct {
	Stats *repository.AccommodationStats `json:"stats"`
}

// ============================================
// Room 管理
// ============================================

func (s *accommodationService) ListRooms(ctx context.Context, req ListRoomsRequest) (*ListRoomsResponse, error) {
	page := req.Page
	if page < 1 {
		page = 1
	}
	size := req.Size
	if size < 1 {
		size = 100
	}

	items, total, err := s.repo.ListRooms(ctx, repository.RoomFilters{
		Search:      req.Search,
		IsActive:    req.IsActive,
		EventTypeID: req.EventTypeID,
		SortBy:      req.SortBy,
		SortDesc:    req.SortDesc,
	}, page, size)
	if err != nil {
		return nil, err
	}
	return &ListRoomsResponse{Items: items, Total: total}, nil
}

func (s *accommodationService) GetRoom(ctx context.Context, req GetRoomRequest) (*GetRoomResponse, error) {
	if req.RoomID == "" {
		return nil, fmt.Errorf("room_id is required: %w", domain.ErrInvalidInput)
	}

	room, err := s.repo.GetRoom(ctx, req.RoomID)
	if err != nil {
		return nil, err
	}

	page := req.AssignmentPage
	if page < 1 {
		page = 1
	}
	size := req.AssignmentSize
	if size < 1 {
		size = 50
	}
	assignments, total, err := s.repo.ListAssignments(ctx, req.RoomID, page, size)
	if err != nil {
		return nil, err
	}

	return &GetRoomResponse{
		Room:             room,
		Assignments:      assignments,
		AssignmentsTotal: total,
	}, nil
}

func (s *accommodationService) CreateRoom(ctx context.Context, req CreateRoomRequest) (*CreateRoomResponse, error) {
	if err := validateRoomFields(req.RoomName, req.BedCount, req.MaxOccupancy); err != nil {
		return nil, err
	}

	room := &domain.Room{
		RoomName:     req.RoomName,
		Description:  nullString(req.Description),
		BedCount:     req.BedCount,
		MaxOccupancy: req.MaxOccupancy,
		IsActive:     req.IsActive,
		EventTypeID:  nullString(req.EventTypeID),
	}
	id, err := s.repo.CreateRoom(ctx, room)
	if err != nil {
		return nil, err
	}

	s.invalidateStats(ctx, req.EventTypeID)
	s.logger.Info("room created",
		zap.String("room_id", id),
		zap.String("room_name", req.RoomName),
		zap.Int("bed_count", req.BedCount),
		zap.Int("max_occupancy", req.MaxOccupancy))
	return &CreateRoomResponse{RoomID: id}, nil
}

func (s *accommodationService) UpdateRoom(ctx context.Context, req UpdateRoomRequest) (*UpdateRoomResponse, error) {
	if req.RoomID == "" {
		return nil, fmt.Errorf("room_id is required: %w", domain.ErrInvalidInput)
	}
	if err := validateRoomFields(req.RoomName, req.BedCount, req.MaxOccupancy); err != nil {
		return nil, err
	}

	room := &domain.Room{
		RoomName:     req.RoomName,
		Description:  nullString(req.Description),
		BedCount:     req.BedCount,
		MaxOccupancy: req.MaxOccupancy,
		IsActive:     req.IsActive,
		EventTypeID:  nullString(req.EventTypeID),
	}
	if err := s.repo.UpdateRoom(ctx, req.RoomID, room); err != nil {
		return nil, err
	}

	s.invalidateStats(ctx, req.EventTypeID)
	return &UpdateRoomResponse{Success: true}, nil
}

func (s *accommodationService) DeleteRoom(ctx context.Context, req DeleteRoomRequest) (*DeleteRoomResponse, error) {
	if req.RoomID == "" {
		return nil, fmt.Errorf("room_id is required: %w", domain.ErrInvalidInput)
	}

	if err := s.repo.DeleteRoom(ctx, req.RoomID); err != nil {
		return nil, err
	}

	s.invalidateStats(ctx, "")
	s.logger.Info("room deleted", zap.String("room_id", req.RoomID))
	return &DeleteRoomResponse{Success: true}, nil
}

// validateRoomFields: max_occupancy <= bed_count 在 Service 层强制
// （不依赖前端校验，也不依赖数据库约束）
func validateRoomFields(name string, bedCount, maxOccupancy int) error {
	if name == "" {
		return fmt.Errorf("room_name is required: %w", domain.ErrInvalidInput)
	}
	if bedCount <= 0 {
		return fmt.Errorf("bed_count must be a positive integer: %w", domain.ErrInvalidInput)
	}
	if maxOccupancy <= 0 {
		return fmt.Errorf("max_occupancy must be a positive integer: %w", domain.ErrInvalidInput)
	}
	if maxOccupancy > bedCount {
		return fmt.Errorf("max_occupancy (%d) cannot exceed bed_count (%d): %w", maxOccupancy, bedCount, domain.ErrInvalidInput)
	}
	return nil
}

// ============================================
// Assignment 管理
// ============================================

func (s *accommodationService) CreateAssignment(ctx context.Context, req CreateAssignmentRequest) (*CreateAssignmentResponse, error) {
	if req.RoomID == "" {
		return nil, fmt.Errorf("room_id is required: %w", domain.ErrInvalidInput)
	}
	if req.RegistrationID == "" {
		return nil, fmt.Errorf("registration_id is required: %w", domain.ErrInvalidInput)
	}
	if req.BedNumber != nil && *req.BedNumber <= 0 {
		return nil, fmt.Errorf("bed_number must be a positive integer: %w", domain.ErrInvalidInput)
	}

	a := &domain.Assignment{
		RoomID:         req.RoomID,
		RegistrationID: req.RegistrationID,
		Notes:          nullString(req.Notes),
		AssignedBy:     nullString(req.AssignedBy),
	}
	if req.BedNumber != nil {
		a.BedNumber = sql.NullInt64{Int64: *req.BedNumber, Valid: true}
	}

	// 全部不变量检查在 repo 事务内完成
	id, err := s.repo.CreateAssignment(ctx, a)
	if err != nil {
		return nil, err
	}

	s.invalidateStats(ctx, "")
	s.publisher.Publish(ctx, stream.EventAssignmentCreated, map[string]any{
		"assignment_id":   id,
		"room_id":         req.RoomID,
		"registration_id": req.RegistrationID,
	})
	s.logger.Info("assignment created",
		zap.String("assignment_id", id),
		zap.String("room_id", req.RoomID),
		zap.String("registration_id", req.RegistrationID))
	return &CreateAssignmentResponse{AssignmentID: id}, nil
}

func (s *accommodationService) RemoveAssignment(ctx context.Context, req RemoveAssignmentRequest) (*RemoveAssignmentResponse, error) {
	if req.AssignmentID == "" {
		return nil, fmt.Errorf("assignment_id is required: %w", domain.ErrInvalidInput)
	}

	if err := s.repo.RemoveAssignment(ctx, req.AssignmentID); err != nil {
		return nil, err
	}

	s.invalidateStats(ctx, "")
	s.publisher.Publish(ctx, stream.EventAssignmentRemoved, map[string]any{
		"assignment_id": req.AssignmentID,
	})
	s.logger.Info("assignment removed", zap.String("assignment_id", req.AssignmentID))
	return &RemoveAssignmentResponse{Success: true}, nil
}

// ============================================
// 统计
// ============================================

func (s *accommodationService) GetStatistics(ctx context.Context, req GetStatisticsRequest) (*GetStatisticsResponse, error) {
	key := statsCacheKey(req.EventTypeID)

	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, key); err == nil {
			var stats repository.AccommodationStats
			if err := json.Unmarshal([]byte(cached), &stats); err == nil {
				return &GetStatisticsResponse{Stats: &stats}, nil
			}
		}
	}

	stats, err := s.repo.GetStatistics(ctx, req.EventTypeID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if data, err := json.Marshal(stats); err == nil {
			if err := s.cache.Set(ctx, key, string(data), statsCacheTTL); err != nil {
				s.logger.Warn("stats cache set failed", zap.Error(err))
			}
		}
	}
	return &GetStatisticsResponse{Stats: stats}, nil
}

func statsCacheKey(eventTypeID string) string {
	if eventTypeID == "" {
		return "accommodation:stats:all"
	}
	return "accommodation:stats:" + eventTypeID
}

// invalidateStats: 突变后删除统计缓存（TTL 只是兜底）
func (s *accommodationService) invalidateStats(ctx context.Context, eventTypeID string) {
	if s.cache == nil {
		return
	}
	keys := []string{statsCacheKey("")}
	if eventTypeID != "" {
		keys = append(keys, statsCacheKey(eventTypeID))
	}
	if err := s.cache.Delete(ctx, keys...); err != nil {
		s.logger.Warn("stats cache invalidation failed", zap.Error(err))
	}
}

// nullString 空串 -> NULL
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
