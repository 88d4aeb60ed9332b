package httpapi

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"eventreg-data/internal/domain"
	"eventreg-data/internal/service"
)

// EventTypeHandler 聚会类别管理 Handler
type EventTypeHandler struct {
	etService service.EventTypeService
	logger    *zap.Logger
}

// NewEventTypeHandler 创建聚会类别管理 Handler
func NewEventTypeHandler(etService service.EventTypeService, logger *zap.Logger) *EventTypeHandler {
	return &EventTypeHandler{
		etService: etService,
		logger:    logger,
	}
}

// ServeHTTP 实现 http.Handler 接口
func (h *EventTypeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// 路由分发
	switch {
	case r.URL.Path == "/admin/api/v1/event-types" && r.Method == http.MethodGet:
		h.ListEventTypes(w, r)
	case r.URL.Path == "/admin/api/v1/event-types" && r.Method == http.MethodPost:
		h.CreateEventType(w, r)
	case strings.HasPrefix(r.URL.Path, "/admin/api/v1/event-types/") && r.Method == http.MethodGet:
		h.GetEventType(w, r)
	case strings.HasPrefix(r.URL.Path, "/admin/api/v1/event-types/") && r.Method == http.MethodPut:
		h.UpdateEventType(w, r)
	case strings.HasPrefix(r.URL.Path, "/admin/api/v1/event-types/") && r.Method == http.MethodDelete:
		h.DeleteEventType(w, r)

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// ListEventTypes 查询类别列表（默认只返回启用的）
func (h *EventTypeHandler) ListEventTypes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req := service.ListEventTypesRequest{
		IncludeInactive: r.URL.Query().Get("include_inactive") == "true",
	}

	resp, err := h.etService.ListEventTypes(ctx, req)
	if err != nil {
		writeError(w, h.logger, "ListEventTypes", err)
		return
	}

	out := make([]any, 0, len(resp.Items))
	for _, et := range resp.Items {
		out = append(out, eventTypeToJSON(et))
	}

	writeJSON(w, http.StatusOK, Ok(out))
}

// GetEventType 获取类别详情
func (h *EventTypeHandler) GetEventType(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	eventTypeID := strings.TrimPrefix(r.URL.Path, "/admin/api/v1/event-types/")
	if eventTypeID == "" || strings.Contains(eventTypeID, "/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	resp, err := h.etService.GetEventType(ctx, service.GetEventTypeRequest{EventTypeID: eventTypeID})
	if err != nil {
		writeError(w, h.logger, "GetEventType", err)
		return
	}

	writeJSON(w, http.StatusOK, Ok(eventTypeToJSON(resp.EventType)))
}

// CreateEventType 创建类别
func (h *EventTypeHandler) CreateEventType(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var payload map[string]any
	if err := readBodyJSON(r, 1<<20, &payload); err != nil {
		writeJSON(w, http.StatusOK, Fail("invalid body"))
		return
	}

	req := service.CreateEventTypeRequest{
		Name:        getString(payload, "name"),
		Description: getString(payload, "description"),
		IsActive:    getBoolDefault(payload, "is_active", true),
	}

	resp, err := h.etService.CreateEventType(ctx, req)
	if err != nil {
		writeError(w, h.logger, "CreateEventType", err)
		return
	}

	getResp, err := h.etService.GetEventType(ctx, service.GetEventTypeRequest{EventTypeID: resp.EventTypeID})
	if err != nil {
		writeError(w, h.logger, "GetEventType after CreateEventType", err)
		return
	}

	writeJSON(w, http.StatusOK, Ok(eventTypeToJSON(getResp.EventType)))
}

// UpdateEventType 更新类别
func (h *EventTypeHandler) UpdateEventType(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	eventTypeID := strings.TrimPrefix(r.URL.Path, "/admin/api/v1/event-types/")
	if eventTypeID == "" || strings.Contains(eventTypeID, "/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	var payload map[string]any
	if err := readBodyJSON(r, 1<<20, &payload); err != nil {
		writeJSON(w, http.StatusOK, Fail("invalid body"))
		return
	}

	req := service.UpdateEventTypeRequest{
		EventTypeID: eventTypeID,
		Name:        getString(payload, "name"),
		Description: getString(payload, "description"),
		IsActive:    getBoolDefault(payload, "is_active", true),
	}

	if _, err := h.etService.UpdateEventType(ctx, req); err != nil {
		writeError(w, h.logger, "UpdateEventType", err)
		return
	}

	getResp, err := h.etService.GetEventType(ctx, service.GetEventTypeRequest{EventTypeID: eventTypeID})
	if err != nil {
		writeError(w, h.logger, "GetEventType after UpdateEventType", err)
		return
	}

	writeJSON(w, http.StatusOK, Ok(eventTypeToJSON(getResp.EventType)))
}

// DeleteEventType 删除类别（被房间或报名引用时拒绝）
func (h *EventTypeHandler) DeleteEventType(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	eventTypeID := strings.TrimPrefix(r.URL.Path, "/admin/api/v1/event-types/")
	if eventTypeID == "" || strings.Contains(eventTypeID, "/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	if _, err := h.etService.DeleteEventType(ctx, service.DeleteEventTypeRequest{EventTypeID: eventTypeID}); err != nil {
		writeError(w, h.logger, "DeleteEventType", err)
		return
	}

	writeJSON(w, http.StatusOK, Ok[any](nil))
}

// 辅助函数：转换 EventType 为 JSON
func eventTypeToJSON(et *domain.EventType) map[string]any {
	m := map[string]any{
		"event_type_id": et.EventTypeID,
		"name":          et.Name,
		"is_active":     et.IsActive,
		"created_at":    et.CreatedAt,
	}
	if et.Description.Valid {
		m["description"] = et.Description.String
	}
	return m
}
