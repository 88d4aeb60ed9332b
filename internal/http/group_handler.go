package httpapi

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"eventreg-data/internal/domain"
	"eventreg-data/internal/service"
)

// GroupHandler 分组管理 Handler
type GroupHandler struct {
	groupService service.GroupService
	logger       *zap.Logger
}

// NewGroupHandler 创建分组管理 Handler
func NewGroupHandler(groupService service.GroupService, logger *zap.Logger) *GroupHandler {
	return &GroupHandler{
		groupService: groupService,
		logger:       logger,
	}
}

// ServeHTTP 实现 http.Handler 接口
func (h *GroupHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// 路由分发
	switch {
	// Group 成员（先于 /groups/ 前缀匹配）
	case r.URL.Path == "/admin/api/v1/group-members" && r.Method == http.MethodPost:
		h.AssignToGroup(w, r)
	case strings.HasPrefix(r.URL.Path, "/admin/api/v1/group-members/") && r.Method == http.MethodDelete:
		h.RemoveFromGroup(w, r)

	// Groups
	case r.URL.Path == "/admin/api/v1/groups" && r.Method == http.MethodGet:
		h.ListGroups(w, r)
	case r.URL.Path == "/admin/api/v1/groups" && r.Method == http.MethodPost:
		h.CreateGroup(w, r)
	case strings.HasPrefix(r.URL.Path, "/admin/api/v1/groups/") && r.Method == http.MethodGet:
		h.GetGroup(w, r)
	case strings.HasPrefix(r.URL.Path, "/admin/api/v1/groups/") && r.Method == http.MethodPut:
		h.UpdateGroup(w, r)
	case strings.HasPrefix(r.URL.Path, "/admin/api/v1/groups/") && r.Method == http.MethodDelete:
		h.DeleteGroup(w, r)

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// ============================================
// Group 方法
// ============================================

// ListGroups 查询分组列表（成员数为实时 COUNT）
func (h *GroupHandler) ListGroups(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	req := service.ListGroupsRequest{
		Search: q.Get("search"),
		Page:   parseInt(q.Get("page"), 1),
		Size:   parseInt(q.Get("size"), 100),
	}
	if v := q.Get("is_active"); v != "" {
		b := v == "true" || v == "1"
		req.IsActive = &b
	}

	resp, err := h.groupService.ListGroups(ctx, req)
	if err != nil {
		writeError(w, h.logger, "ListGroups", err)
		return
	}

	out := make([]any, 0, len(resp.Items))
	for _, g := range resp.Items {
		m := groupToJSON(g.Group)
		m["member_count"] = g.MemberCount
		out = append(out, m)
	}

	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"items": out,
		"total": resp.Total,
	}))
}

// GetGroup 获取分组详情
func (h *GroupHandler) GetGroup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	groupID := strings.TrimPrefix(r.URL.Path, "/admin/api/v1/groups/")
	if groupID == "" || strings.Contains(groupID, "/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	resp, err := h.groupService.GetGroup(ctx, service.GetGroupRequest{GroupID: groupID})
	if err != nil {
		writeError(w, h.logger, "GetGroup", err)
		return
	}

	out := groupToJSON(resp.Group)
	out["member_count"] = resp.MemberCount

	writeJSON(w, http.StatusOK, Ok(out))
}

// CreateGroup 创建分组
func (h *GroupHandler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var payload map[string]any
	if err := readBodyJSON(r, 1<<20, &payload); err != nil {
		writeJSON(w, http.StatusOK, Fail("invalid body"))
		return
	}

	req := service.CreateGroupRequest{
		Name:        getString(payload, "name"),
		Description: getString(payload, "description"),
		MaxMembers:  getInt64Ptr(payload, "max_members"),
		IsActive:    getBoolDefault(payload, "is_active", true),
	}

	resp, err := h.groupService.CreateGroup(ctx, req)
	if err != nil {
		writeError(w, h.logger, "CreateGroup", err)
		return
	}

	getResp, err := h.groupService.GetGroup(ctx, service.GetGroupRequest{GroupID: resp.GroupID})
	if err != nil {
		writeError(w, h.logger, "GetGroup after CreateGroup", err)
		return
	}

	writeJSON(w, http.StatusOK, Ok(groupToJSON(getResp.Group)))
}

// UpdateGroup 更新分组
func (h *GroupHandler) UpdateGroup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	groupID := strings.TrimPrefix(r.URL.Path, "/admin/api/v1/groups/")
	if groupID == "" || strings.Contains(groupID, "/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	var payload map[string]any
	if err := readBodyJSON(r, 1<<20, &payload); err != nil {
		writeJSON(w, http.StatusOK, Fail("invalid body"))
		return
	}

	req := service.UpdateGroupRequest{
		GroupID:     groupID,
		Name:        getString(payload, "name"),
		Description: getString(payload, "description"),
		MaxMembers:  getInt64Ptr(payload, "max_members"),
		IsActive:    getBoolDefault(payload, "is_active", true),
	}

	if _, err := h.groupService.UpdateGroup(ctx, req); err != nil {
		writeError(w, h.logger, "UpdateGroup", err)
		return
	}

	getResp, err := h.groupService.GetGroup(ctx, service.GetGroupRequest{GroupID: groupID})
	if err != nil {
		writeError(w, h.logger, "GetGroup after UpdateGroup", err)
		return
	}

	writeJSON(w, http.StatusOK, Ok(groupToJSON(getResp.Group)))
}

// DeleteGroup 删除分组
// 组内仍有成员时只停用（软删除），响应里带 soft_deleted 标记
func (h *GroupHandler) DeleteGroup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	groupID := strings.TrimPrefix(r.URL.Path, "/admin/api/v1/groups/")
	if groupID == "" || strings.Contains(groupID, "/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	resp, err := h.groupService.DeleteGroup(ctx, service.DeleteGroupRequest{GroupID: groupID})
	if err != nil {
		writeError(w, h.logger, "DeleteGroup", err)
		return
	}

	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"soft_deleted": resp.SoftDeleted,
	}))
}

// ============================================
// Group 成员方法
// ============================================

// AssignToGroup 把报名者加入分组
func (h *GroupHandler) AssignToGroup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var payload map[string]any
	if err := readBodyJSON(r, 1<<20, &payload); err != nil {
		writeJSON(w, http.StatusOK, Fail("invalid body"))
		return
	}

	req := service.AssignToGroupRequest{
		RegistrationID: getString(payload, "registration_id"),
		GroupID:        getString(payload, "group_id"),
	}

	if _, err := h.groupService.AssignToGroup(ctx, req); err != nil {
		writeError(w, h.logger, "AssignToGroup", err)
		return
	}

	writeJSON(w, http.StatusOK, Ok[any](nil))
}

// RemoveFromGroup 把报名者移出当前分组
func (h *GroupHandler) RemoveFromGroup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	registrationID := strings.TrimPrefix(r.URL.Path, "/admin/api/v1/group-members/")
	if registrationID == "" || strings.Contains(registrationID, "/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	if _, err := h.groupService.RemoveFromGroup(ctx, service.RemoveFromGroupRequest{RegistrationID: registrationID}); err != nil {
		writeError(w, h.logger, "RemoveFromGroup", err)
		return
	}

	writeJSON(w, http.StatusOK, Ok[any](nil))
}

// 辅助函数：转换 Group 为 JSON
func groupToJSON(g *domain.Group) map[string]any {
	m := map[string]any{
		"group_id":   g.GroupID,
		"name":       g.Name,
		"is_active":  g.IsActive,
		"created_at": g.CreatedAt,
	}
	if g.Description.Valid {
		m["description"] = g.Description.String
	}
	if g.MaxMembers.Valid {
		m["max_members"] = g.MaxMembers.Int64
	}
	return m
}
