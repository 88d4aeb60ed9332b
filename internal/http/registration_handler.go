package httpapi

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"eventreg-data/internal/domain"
	"eventreg-data/internal/service"
)

// RegistrationHandler 报名管理 Handler（列表/详情/报到/导出）
type RegistrationHandler struct {
	regService service.RegistrationService
	logger     *zap.Logger
}

// NewRegistrationHandler 创建报名管理 Handler
func NewRegistrationHandler(regService service.RegistrationService, logger *zap.Logger) *RegistrationHandler {
	return &RegistrationHandler{
		regService: regService,
		logger:     logger,
	}
}

// ServeHTTP 实现 http.Handler 接口
func (h *RegistrationHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// 路由分发
	switch {
	case r.URL.Path == "/admin/api/v1/registrations" && r.Method == http.MethodGet:
		h.ListRegistrations(w, r)
	case r.URL.Path == "/admin/api/v1/registrations" && r.Method == http.MethodPost:
		h.CreateRegistration(w, r)

	// 导出（先于 /{id} 匹配）
	case r.URL.Path == "/admin/api/v1/registrations/export" && r.Method == http.MethodGet:
		h.ExportRegistrations(w, r)

	// 报到
	case strings.HasPrefix(r.URL.Path, "/admin/api/v1/registrations/") &&
		strings.HasSuffix(r.URL.Path, "/check-in") && r.Method == http.MethodPost:
		h.CheckIn(w, r)

	case strings.HasPrefix(r.URL.Path, "/admin/api/v1/registrations/") && r.Method == http.MethodGet:
		h.GetRegistration(w, r)
	case strings.HasPrefix(r.URL.Path, "/admin/api/v1/registrations/") && r.Method == http.MethodPut:
		h.UpdateRegistration(w, r)
	case strings.HasPrefix(r.URL.Path, "/admin/api/v1/registrations/") && r.Method == http.MethodDelete:
		h.DeleteRegistration(w, r)

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// ============================================
// Registration 方法
// ============================================

// ListRegistrations 查询报名列表（支持状态、分组、类别过滤）
func (h *RegistrationHandler) ListRegistrations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	req := service.ListRegistrationsRequest{
		Search:      q.Get("search"),
		Status:      q.Get("status"),
		GroupID:     q.Get("group_id"),
		EventTypeID: q.Get("event_type_id"),
		Page:        parseInt(q.Get("page"), 1),
		Size:        parseInt(q.Get("size"), 100),
	}

	resp, err := h.regService.ListRegistrations(ctx, req)
	if err != nil {
		writeError(w, h.logger, "ListRegistrations", err)
		return
	}

	out := make([]any, 0, len(resp.Items))
	for _, reg := range resp.Items {
		out = append(out, registrationToJSON(reg))
	}

	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"items": out,
		"total": resp.Total,
	}))
}

// GetRegistration 获取报名详情
func (h *RegistrationHandler) GetRegistration(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	registrationID := strings.TrimPrefix(r.URL.Path, "/admin/api/v1/registrations/")
	if registrationID == "" || strings.Contains(registrationID, "/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	resp, err := h.regService.GetRegistration(ctx, service.GetRegistrationRequest{RegistrationID: registrationID})
	if err != nil {
		writeError(w, h.logger, "GetRegistration", err)
		return
	}

	writeJSON(w, http.StatusOK, Ok(registrationToJSON(resp.Registration)))
}

// CreateRegistration 创建报名
func (h *RegistrationHandler) CreateRegistration(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var payload map[string]any
	if err := readBodyJSON(r, 1<<20, &payload); err != nil {
		writeJSON(w, http.StatusOK, Fail("invalid body"))
		return
	}

	req := service.CreateRegistrationRequest{
		Name:        getString(payload, "name"),
		Gender:      getString(payload, "gender"),
		Phone:       getString(payload, "phone"),
		Email:       getString(payload, "email"),
		Locality:    getString(payload, "locality"),
		EventTypeID: getString(payload, "event_type_id"),
		Notes:       getString(payload, "notes"),
	}

	resp, err := h.regService.CreateRegistration(ctx, req)
	if err != nil {
		writeError(w, h.logger, "CreateRegistration", err)
		return
	}

	getResp, err := h.regService.GetRegistration(ctx, service.GetRegistrationRequest{RegistrationID: resp.RegistrationID})
	if err != nil {
		writeError(w, h.logger, "GetRegistration after CreateRegistration", err)
		return
	}

	writeJSON(w, http.StatusOK, Ok(registrationToJSON(getResp.Registration)))
}

// UpdateRegistration 更新报名信息（不含分组和状态，二者走专用接口）
func (h *RegistrationHandler) UpdateRegistration(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	registrationID := strings.TrimPrefix(r.URL.Path, "/admin/api/v1/registrations/")
	if registrationID == "" || strings.Contains(registrationID, "/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	var payload map[string]any
	if err := readBodyJSON(r, 1<<20, &payload); err != nil {
		writeJSON(w, http.StatusOK, Fail("invalid body"))
		return
	}

	req := service.UpdateRegistrationRequest{
		RegistrationID: registrationID,
		Name:           getString(payload, "name"),
		Gender:         getString(payload, "gender"),
		Phone:          getString(payload, "phone"),
		Email:          getString(payload, "email"),
		Locality:       getString(payload, "locality"),
		EventTypeID:    getString(payload, "event_type_id"),
		Notes:          getString(payload, "notes"),
	}

	if _, err := h.regService.UpdateRegistration(ctx, req); err != nil {
		writeError(w, h.logger, "UpdateRegistration", err)
		return
	}

	getResp, err := h.regService.GetRegistration(ctx, service.GetRegistrationRequest{RegistrationID: registrationID})
	if err != nil {
		writeError(w, h.logger, "GetRegistration after UpdateRegistration", err)
		return
	}

	writeJSON(w, http.StatusOK, Ok(registrationToJSON(getResp.Registration)))
}

// DeleteRegistration 删除报名（仍占用床位时拒绝）
func (h *RegistrationHandler) DeleteRegistration(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	registrationID := strings.TrimPrefix(r.URL.Path, "/admin/api/v1/registrations/")
	if registrationID == "" || strings.Contains(registrationID, "/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	if _, err := h.regService.DeleteRegistration(ctx, service.DeleteRegistrationRequest{RegistrationID: registrationID}); err != nil {
		writeError(w, h.logger, "DeleteRegistration", err)
		return
	}

	writeJSON(w, http.StatusOK, Ok[any](nil))
}

// CheckIn 现场报到：registered -> checked_in，重复报到拒绝
func (h *RegistrationHandler) CheckIn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	path := strings.TrimPrefix(r.URL.Path, "/admin/api/v1/registrations/")
	registrationID := strings.TrimSuffix(path, "/check-in")
	if registrationID == "" || registrationID == path || strings.Contains(registrationID, "/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	resp, err := h.regService.CheckIn(ctx, service.CheckInRequest{RegistrationID: registrationID})
	if err != nil {
		writeError(w, h.logger, "CheckIn", err)
		return
	}

	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"checked_in_at": resp.CheckedInAt,
	}))
}

// ExportRegistrations 导出报名明细 Excel（含分组和住宿信息）
func (h *RegistrationHandler) ExportRegistrations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	rows, err := h.regService.ExportRows(ctx, service.ExportRowsRequest{
		EventTypeID: r.URL.Query().Get("event_type_id"),
	})
	if err != nil {
		writeError(w, h.logger, "ExportRegistrations", err)
		return
	}

	excelData, err := GenerateRegistrationExport(rows)
	if err != nil {
		h.logger.Error("GenerateRegistrationExport failed", zap.Error(err))
		writeJSON(w, http.StatusOK, Fail("export failed"))
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", "attachment; filename=registrations-export.xlsx")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(excelData)
}

// 辅助函数：转换 Registration 为 JSON
func registrationToJSON(reg *domain.Registration) map[string]any {
	m := map[string]any{
		"registration_id": reg.RegistrationID,
		"name":            reg.Name,
		"gender":          reg.Gender,
		"status":          reg.Status,
		"created_at":      reg.CreatedAt,
	}
	if reg.Phone.Valid {
		m["phone"] = reg.Phone.String
	}
	if reg.Email.Valid {
		m["email"] = reg.Email.String
	}
	if reg.Locality.Valid {
		m["locality"] = reg.Locality.String
	}
	if reg.EventTypeID.Valid {
		m["event_type_id"] = reg.EventTypeID.String
	}
	if reg.CheckedInAt.Valid {
		m["checked_in_at"] = reg.CheckedInAt.Time
	}
	if reg.GroupID.Valid {
		m["group_id"] = reg.GroupID.String
	}
	if reg.Notes.Valid {
		m["notes"] = reg.Notes.String
	}
	return m
}
