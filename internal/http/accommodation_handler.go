package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"eventreg-data/internal/domain"
	"eventreg-data/internal/repository"
	"eventreg-data/internal/service"
)

// AccommodationHandler 住宿管理 Handler（Room, Assignment, 统计）
type AccommodationHandler struct {
	accService service.AccommodationService
	identity   service.IdentityClient
	logger     *zap.Logger
}

// NewAccommodationHandler 创建住宿管理 Handler
func NewAccommodationHandler(accService service.AccommodationService, identity service.IdentityClient, logger *zap.Logger) *AccommodationHandler {
	return &AccommodationHandler{
		accService: accService,
		identity:   identity,
		logger:     logger,
	}
}

// ServeHTTP 实现 http.Handler 接口
func (h *AccommodationHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// 路由分发
	switch {
	// Rooms
	case r.URL.Path == "/admin/api/v1/rooms" && r.Method == http.MethodGet:
		h.ListRooms(w, r)
	case r.URL.Path == "/admin/api/v1/rooms" && r.Method == http.MethodPost:
		h.CreateRoom(w, r)
	case strings.HasPrefix(r.URL.Path, "/admin/api/v1/rooms/") && r.Method == http.MethodGet:
		h.GetRoom(w, r)
	case strings.HasPrefix(r.URL.Path, "/admin/api/v1/rooms/") && r.Method == http.MethodPut:
		h.UpdateRoom(w, r)
	case strings.HasPrefix(r.URL.Path, "/admin/api/v1/rooms/") && r.Method == http.MethodDelete:
		h.DeleteRoom(w, r)

	// Assignments
	case r.URL.Path == "/admin/api/v1/assignments" && r.Method == http.MethodPost:
		h.CreateAssignment(w, r)
	case strings.HasPrefix(r.URL.Path, "/admin/api/v1/assignments/") && r.Method == http.MethodDelete:
		h.RemoveAssignment(w, r)

	// 统计
	case r.URL.Path == "/admin/api/v1/accommodations/statistics" && r.Method == http.MethodGet:
		h.GetStatistics(w, r)

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// ============================================
// Room 方法
// ============================================

// ListRooms 查询房间列表（支持过滤、排序、分页）
func (h *AccommodationHandler) ListRooms(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	req := service.ListRoomsRequest{
		Search:      q.Get("search"),
		EventTypeID: q.Get("event_type_id"),
		SortBy:      q.Get("sort"),
		SortDesc:    strings.EqualFold(q.Get("direction"), "desc"),
		Page:        parseInt(q.Get("page"), 1),
		Size:        parseInt(q.Get("size"), 100),
	}
	if v := q.Get("is_active"); v != "" {
		b := v == "true" || v == "1"
		req.IsActive = &b
	}

	resp, err := h.accService.ListRooms(ctx, req)
	if err != nil {
		writeError(w, h.logger, "ListRooms", err)
		return
	}

	out := make([]any, 0, len(resp.Items))
	for _, room := range resp.Items {
		out = append(out, roomToJSON(room))
	}

	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"items": out,
		"total": resp.Total,
	}))
}

// GetRoom 获取房间详情（含分配列表，分页独立于房间列表）
func (h *AccommodationHandler) GetRoom(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	roomID := strings.TrimPrefix(r.URL.Path, "/admin/api/v1/rooms/")
	if roomID == "" || strings.Contains(roomID, "/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	q := r.URL.Query()
	req := service.GetRoomRequest{
		RoomID:         roomID,
		AssignmentPage: parseInt(q.Get("assignment_page"), 1),
		AssignmentSize: parseInt(q.Get("assignment_size"), 50),
	}

	resp, err := h.accService.GetRoom(ctx, req)
	if err != nil {
		writeError(w, h.logger, "GetRoom", err)
		return
	}

	assignments := make([]any, 0, len(resp.Assignments))
	for _, a := range resp.Assignments {
		assignments = append(assignments, assignmentWithRegToJSON(a))
	}

	out := roomToJSON(resp.Room)
	out["assignments"] = assignments
	out["assignments_total"] = resp.AssignmentsTotal

	writeJSON(w, http.StatusOK, Ok(out))
}

// CreateRoom 创建房间
func (h *AccommodationHandler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var payload map[string]any
	if err := readBodyJSON(r, 1<<20, &payload); err != nil {
		writeJSON(w, http.StatusOK, Fail("invalid body"))
		return
	}

	req := service.CreateRoomRequest{
		RoomName:     getString(payload, "room_name"),
		Description:  getString(payload, "description"),
		BedCount:     getInt(payload, "bed_count"),
		MaxOccupancy: getInt(payload, "max_occupancy"),
		IsActive:     getBoolDefault(payload, "is_active", true),
		EventTypeID:  getString(payload, "event_type_id"),
	}

	resp, err := h.accService.CreateRoom(ctx, req)
	if err != nil {
		writeError(w, h.logger, "CreateRoom", err)
		return
	}

	// 与前端约定：创建后返回完整房间对象
	getResp, err := h.accService.GetRoom(ctx, service.GetRoomRequest{RoomID: resp.RoomID})
	if err != nil {
		writeError(w, h.logger, "GetRoom after CreateRoom", err)
		return
	}

	writeJSON(w, http.StatusOK, Ok(roomToJSON(getResp.Room)))
}

// UpdateRoom 更新房间
func (h *AccommodationHandler) UpdateRoom(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	roomID := strings.TrimPrefix(r.URL.Path, "/admin/api/v1/rooms/")
	if roomID == "" || strings.Contains(roomID, "/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	var payload map[string]any
	if err := readBodyJSON(r, 1<<20, &payload); err != nil {
		writeJSON(w, http.StatusOK, Fail("invalid body"))
		return
	}

	req := service.UpdateRoomRequest{
		RoomID:       roomID,
		RoomName:     getString(payload, "room_name"),
		Description:  getString(payload, "description"),
		BedCount:     getInt(payload, "bed_count"),
		MaxOccupancy: getInt(payload, "max_occupancy"),
		IsActive:     getBoolDefault(payload, "is_active", true),
		EventTypeID:  getString(payload, "event_type_id"),
	}

	if _, err := h.accService.UpdateRoom(ctx, req); err != nil {
		writeError(w, h.logger, "UpdateRoom", err)
		return
	}

	getResp, err := h.accService.GetRoom(ctx, service.GetRoomRequest{RoomID: roomID})
	if err != nil {
		writeError(w, h.logger, "GetRoom after UpdateRoom", err)
		return
	}

	writeJSON(w, http.StatusOK, Ok(roomToJSON(getResp.Room)))
}

// DeleteRoom 删除房间（仍有分配时拒绝）
func (h *AccommodationHandler) DeleteRoom(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	roomID := strings.TrimPrefix(r.URL.Path, "/admin/api/v1/rooms/")
	if roomID == "" || strings.Contains(roomID, "/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	if _, err := h.accService.DeleteRoom(ctx, service.DeleteRoomRequest{RoomID: roomID}); err != nil {
		writeError(w, h.logger, "DeleteRoom", err)
		return
	}

	writeJSON(w, http.StatusOK, Ok[any](nil))
}

// ============================================
// Assignment 方法
// ============================================

// CreateAssignment 把报名者分配到房间（可指定床位号）
func (h *AccommodationHandler) CreateAssignment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var payload map[string]any
	if err := readBodyJSON(r, 1<<20, &payload); err != nil {
		writeJSON(w, http.StatusOK, Fail("invalid body"))
		return
	}

	req := service.CreateAssignmentRequest{
		RoomID:         getString(payload, "room_id"),
		RegistrationID: getString(payload, "registration_id"),
		BedNumber:      getInt64Ptr(payload, "bed_number"),
		Notes:          getString(payload, "notes"),
		AssignedBy:     h.actorFromReq(r),
	}

	resp, err := h.accService.CreateAssignment(ctx, req)
	if err != nil {
		writeError(w, h.logger, "CreateAssignment", err)
		return
	}

	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"assignment_id": resp.AssignmentID,
	}))
}

// RemoveAssignment 解除分配（事务内同步递减房间占用计数）
func (h *AccommodationHandler) RemoveAssignment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	assignmentID := strings.TrimPrefix(r.URL.Path, "/admin/api/v1/assignments/")
	if assignmentID == "" || strings.Contains(assignmentID, "/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	if _, err := h.accService.RemoveAssignment(ctx, service.RemoveAssignmentRequest{AssignmentID: assignmentID}); err != nil {
		writeError(w, h.logger, "RemoveAssignment", err)
		return
	}

	writeJSON(w, http.StatusOK, Ok[any](nil))
}

// ============================================
// 统计
// ============================================

// GetStatistics 住宿总览统计（可按聚会类别过滤）
func (h *AccommodationHandler) GetStatistics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req := service.GetStatisticsRequest{
		EventTypeID: r.URL.Query().Get("event_type_id"),
	}

	resp, err := h.accService.GetStatistics(ctx, req)
	if err != nil {
		writeError(w, h.logger, "GetStatistics", err)
		return
	}

	writeJSON(w, http.StatusOK, Ok(resp.Stats))
}

// actorFromReq 从 Authorization 头解析操作者ID（用于 assigned_by 审计）
// token 缺失或校验失败不阻断业务，只是审计字段为空
func (h *AccommodationHandler) actorFromReq(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return ""
	}
	token := strings.TrimPrefix(auth, "Bearer ")
	if token == "" {
		return ""
	}
	actor, err := h.identity.ResolveActor(r.Context(), token)
	if err != nil {
		h.logger.Warn("ResolveActor failed", zap.Error(err))
		return ""
	}
	return actor.UserID
}

// ============================================
// 辅助方法
// ============================================

// 辅助函数：从 map 中获取字符串值
func getString(payload map[string]any, key string) string {
	if v, ok := payload[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
		if num, ok := v.(float64); ok {
			return fmt.Sprintf("%.0f", num)
		}
	}
	return ""
}

// 辅助函数：从 map 中获取整数值（JSON 数字解码为 float64）
func getInt(payload map[string]any, key string) int {
	if v, ok := payload[key]; ok {
		if num, ok := v.(float64); ok {
			return int(num)
		}
	}
	return 0
}

// 辅助函数：从 map 中获取 int64 指针（用于可选字段，区分"未提供"和 0）
func getInt64Ptr(payload map[string]any, key string) *int64 {
	if v, ok := payload[key]; ok {
		if num, ok := v.(float64); ok {
			n := int64(num)
			return &n
		}
	}
	return nil
}

// 辅助函数：从 map 中获取布尔值，未提供时回退默认值
func getBoolDefault(payload map[string]any, key string, def bool) bool {
	if v, ok := payload[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

// 辅助函数：转换 Room 为 JSON
func roomToJSON(room *domain.Room) map[string]any {
	m := map[string]any{
		"room_id":           room.RoomID,
		"room_name":         room.RoomName,
		"bed_count":         room.BedCount,
		"max_occupancy":     room.MaxOccupancy,
		"current_occupancy": room.CurrentOccupancy,
		"is_active":         room.IsActive,
		"created_at":        room.CreatedAt,
	}
	if room.Description.Valid {
		m["description"] = room.Description.String
	}
	if room.EventTypeID.Valid {
		m["event_type_id"] = room.EventTypeID.String
	}
	return m
}

// 辅助函数：转换 Assignment 为 JSON
func assignmentToJSON(a *domain.Assignment) map[string]any {
	m := map[string]any{
		"assignment_id":   a.AssignmentID,
		"room_id":         a.RoomID,
		"registration_id": a.RegistrationID,
		"assigned_at":     a.AssignedAt,
	}
	if a.BedNumber.Valid {
		m["bed_number"] = a.BedNumber.Int64
	}
	if a.AssignedBy.Valid {
		m["assigned_by"] = a.AssignedBy.String
	}
	if a.Notes.Valid {
		m["notes"] = a.Notes.String
	}
	return m
}

// 辅助函数：转换分配及报名者摘要为 JSON（房间详情页）
func assignmentWithRegToJSON(ar *repository.AssignmentWithRegistration) map[string]any {
	m := assignmentToJSON(ar.Assignment)
	m["registration_name"] = ar.RegistrationName
	if ar.Locality != "" {
		m["locality"] = ar.Locality
	}
	return m
}
