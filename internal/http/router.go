package httpapi

import (
	"net/http"

	"go.uber.org/zap"
)

// Router 使用标准库 http.ServeMux（避免引入第三方路由依赖）
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		logger: logger,
	}
}

func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, h)
}

// HandleHandler 支持 http.Handler 接口
func (r *Router) HandleHandler(pattern string, h http.Handler) {
	r.mux.Handle(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// RegisterAccommodationRoutes 注册住宿管理路由（Room, Assignment, 统计）
func (r *Router) RegisterAccommodationRoutes(h *AccommodationHandler) {
	r.HandleHandler("/admin/api/v1/rooms", h)
	r.HandleHandler("/admin/api/v1/rooms/", h)
	r.HandleHandler("/admin/api/v1/assignments", h)
	r.HandleHandler("/admin/api/v1/assignments/", h)
	r.HandleHandler("/admin/api/v1/accommodations/statistics", h)
}

// RegisterGroupRoutes 注册分组管理路由
func (r *Router) RegisterGroupRoutes(h *GroupHandler) {
	r.HandleHandler("/admin/api/v1/groups", h)
	r.HandleHandler("/admin/api/v1/groups/", h)
	r.HandleHandler("/admin/api/v1/group-members", h)
	r.HandleHandler("/admin/api/v1/group-members/", h)
}

// RegisterRegistrationRoutes 注册报名管理路由（含报到和导出）
func (r *Router) RegisterRegistrationRoutes(h *RegistrationHandler) {
	r.HandleHandler("/admin/api/v1/registrations", h)
	r.HandleHandler("/admin/api/v1/registrations/", h)
}

// RegisterEventTypeRoutes 注册聚会类别路由
func (r *Router) RegisterEventTypeRoutes(h *EventTypeHandler) {
	r.HandleHandler("/admin/api/v1/event-types", h)
	r.HandleHandler("/admin/api/v1/event-types/", h)
}

// RegisterHealthRoute 健康检查
func (r *Router) RegisterHealthRoute() {
	r.Handle("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
}
