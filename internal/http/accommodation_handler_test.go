package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"eventreg-data/internal/repository"
	"eventreg-data/internal/service"
)

// 内存 repo 全栈：handler -> service -> memory repository
func newTestRouter() *Router {
	logger := zap.NewNop()

	acc := repository.NewMemoryAccommodationRepository()
	groups := repository.NewMemoryGroupsRepository()
	regs := repository.NewMemoryRegistrationsRepository()
	et := repository.NewMemoryEventTypesRepository()
	regs.Wire(acc, groups)
	et.Wire(acc, regs)

	accSvc := service.NewAccommodationService(acc, nil, nil, logger)
	groupSvc := service.NewGroupService(groups, logger)
	regSvc := service.NewRegistrationService(regs, nil, logger)
	etSvc := service.NewEventTypeService(et, logger)

	router := NewRouter(logger)
	router.RegisterAccommodationRoutes(NewAccommodationHandler(accSvc, service.NoopIdentityClient{}, logger))
	router.RegisterGroupRoutes(NewGroupHandler(groupSvc, logger))
	router.RegisterRegistrationRoutes(NewRegistrationHandler(regSvc, logger))
	router.RegisterEventTypeRoutes(NewEventTypeHandler(etSvc, logger))
	return router
}

type envelope struct {
	Code    int             `json:"code"`
	Type    string          `json:"type"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

func doRequest(t *testing.T, router *Router, method, path string, body any) envelope {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func createRoomViaAPI(t *testing.T, router *Router, name string, bedCount, maxOccupancy int) string {
	t.Helper()
	env := doRequest(t, router, http.MethodPost, "/admin/api/v1/rooms", map[string]any{
		"room_name":     name,
		"bed_count":     bedCount,
		"max_occupancy": maxOccupancy,
	})
	require.Equal(t, ResultSuccess, env.Code)

	var room map[string]any
	require.NoError(t, json.Unmarshal(env.Result, &room))
	return room["room_id"].(string)
}

func createRegistrationViaAPI(t *testing.T, router *Router, name string) string {
	t.Helper()
	env := doRequest(t, router, http.MethodPost, "/admin/api/v1/registrations", map[string]any{
		"name":   name,
		"gender": "male",
	})
	require.Equal(t, ResultSuccess, env.Code)

	var reg map[string]any
	require.NoError(t, json.Unmarshal(env.Result, &reg))
	return reg["registration_id"].(string)
}

func TestRoomLifecycleViaAPI(t *testing.T) {
	router := newTestRouter()

	roomID := createRoomViaAPI(t, router, "101", 4, 4)

	env := doRequest(t, router, http.MethodGet, "/admin/api/v1/rooms/"+roomID, nil)
	require.Equal(t, ResultSuccess, env.Code)

	var room map[string]any
	require.NoError(t, json.Unmarshal(env.Result, &room))
	require.Equal(t, "101", room["room_name"])
	require.Equal(t, float64(0), room["current_occupancy"])

	// 校验失败的消息回给前端
	env = doRequest(t, router, http.MethodPost, "/admin/api/v1/rooms", map[string]any{
		"room_name":     "102",
		"bed_count":     2,
		"max_occupancy": 3,
	})
	require.Equal(t, ResultError, env.Code)
	require.Contains(t, env.Message, "max_occupancy")

	env = doRequest(t, router, http.MethodDelete, "/admin/api/v1/rooms/"+roomID, nil)
	require.Equal(t, ResultSuccess, env.Code)

	env = doRequest(t, router, http.MethodGet, "/admin/api/v1/rooms/"+roomID, nil)
	require.Equal(t, ResultError, env.Code)
}

func TestAssignmentFlowViaAPI(t *testing.T) {
	router := newTestRouter()

	roomID := createRoomViaAPI(t, router, "201", 2, 2)
	regA := createRegistrationViaAPI(t, router, "Alice")
	regB := createRegistrationViaAPI(t, router, "Bob")
	regC := createRegistrationViaAPI(t, router, "Carol")

	env := doRequest(t, router, http.MethodPost, "/admin/api/v1/assignments", map[string]any{
		"room_id":         roomID,
		"registration_id": regA,
		"bed_number":      1,
	})
	require.Equal(t, ResultSuccess, env.Code)

	// 床位冲突的业务错误原样返回
	env = doRequest(t, router, http.MethodPost, "/admin/api/v1/assignments", map[string]any{
		"room_id":         roomID,
		"registration_id": regB,
		"bed_number":      1,
	})
	require.Equal(t, ResultError, env.Code)
	require.Contains(t, env.Message, "bed 1")

	env = doRequest(t, router, http.MethodPost, "/admin/api/v1/assignments", map[string]any{
		"room_id":         roomID,
		"registration_id": regB,
		"bed_number":      2,
	})
	require.Equal(t, ResultSuccess, env.Code)

	// 满员
	env = doRequest(t, router, http.MethodPost, "/admin/api/v1/assignments", map[string]any{
		"room_id":         roomID,
		"registration_id": regC,
	})
	require.Equal(t, ResultError, env.Code)

	// 房间详情带分配列表（按床位号排序）
	env = doRequest(t, router, http.MethodGet, "/admin/api/v1/rooms/"+roomID, nil)
	require.Equal(t, ResultSuccess, env.Code)

	var room struct {
		CurrentOccupancy int              `json:"current_occupancy"`
		Assignments      []map[string]any `json:"assignments"`
		AssignmentsTotal int              `json:"assignments_total"`
	}
	require.NoError(t, json.Unmarshal(env.Result, &room))
	require.Equal(t, 2, room.CurrentOccupancy)
	require.Equal(t, 2, room.AssignmentsTotal)
	require.Equal(t, "Alice", room.Assignments[0]["registration_name"])

	// 统计
	env = doRequest(t, router, http.MethodGet, "/admin/api/v1/accommodations/statistics", nil)
	require.Equal(t, ResultSuccess, env.Code)

	var stats repository.AccommodationStats
	require.NoError(t, json.Unmarshal(env.Result, &stats))
	require.Equal(t, 1, stats.TotalRooms)
	require.Equal(t, 2, stats.OccupiedBeds)
	require.Equal(t, 0, stats.AvailableBeds)
}

func TestCheckInAndExportViaAPI(t *testing.T) {
	router := newTestRouter()

	regID := createRegistrationViaAPI(t, router, "Dave")

	env := doRequest(t, router, http.MethodPost, fmt.Sprintf("/admin/api/v1/registrations/%s/check-in", regID), nil)
	require.Equal(t, ResultSuccess, env.Code)

	env = doRequest(t, router, http.MethodPost, fmt.Sprintf("/admin/api/v1/registrations/%s/check-in", regID), nil)
	require.Equal(t, ResultError, env.Code)
	require.Contains(t, env.Message, "checked in")

	// 导出返回 xlsx（zip 容器，PK 魔数开头）
	req := httptest.NewRequest(http.MethodGet, "/admin/api/v1/registrations/export", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", rec.Header().Get("Content-Type"))
	require.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")))
}

func TestGroupFlowViaAPI(t *testing.T) {
	router := newTestRouter()

	env := doRequest(t, router, http.MethodPost, "/admin/api/v1/groups", map[string]any{
		"name":        "第一组",
		"max_members": 1,
	})
	require.Equal(t, ResultSuccess, env.Code)

	var group map[string]any
	require.NoError(t, json.Unmarshal(env.Result, &group))
	groupID := group["group_id"].(string)

	regA := createRegistrationViaAPI(t, router, "Eve")
	regB := createRegistrationViaAPI(t, router, "Frank")

	env = doRequest(t, router, http.MethodPost, "/admin/api/v1/group-members", map[string]any{
		"registration_id": regA,
		"group_id":        groupID,
	})
	require.Equal(t, ResultSuccess, env.Code)

	env = doRequest(t, router, http.MethodPost, "/admin/api/v1/group-members", map[string]any{
		"registration_id": regB,
		"group_id":        groupID,
	})
	require.Equal(t, ResultError, env.Code)

	env = doRequest(t, router, http.MethodDelete, "/admin/api/v1/group-members/"+regA, nil)
	require.Equal(t, ResultSuccess, env.Code)

	env = doRequest(t, router, http.MethodGet, "/admin/api/v1/groups/"+groupID, nil)
	require.Equal(t, ResultSuccess, env.Code)
	var got map[string]any
	require.NoError(t, json.Unmarshal(env.Result, &got))
	require.Equal(t, float64(0), got["member_count"])
}
