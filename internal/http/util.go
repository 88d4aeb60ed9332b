package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"eventreg-data/internal/domain"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}

func readBodyJSON(r *http.Request, maxBytes int64, out any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBytes))
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return nil
	}
	return json.Unmarshal(body, out)
}

// businessErrors 面向操作者的业务规则拒绝，消息原样回给前端
var businessErrors = []error{
	domain.ErrAlreadyAssigned,
	domain.ErrRoomNotFound,
	domain.ErrAssignmentNotFound,
	domain.ErrRoomAtCapacity,
	domain.ErrBedNumberTaken,
	domain.ErrRoomHasAssignments,
	domain.ErrGroupNotFound,
	domain.ErrGroupInactive,
	domain.ErrGroupAtCapacity,
	domain.ErrAlreadyInGroup,
	domain.ErrRegistrationNotFound,
	domain.ErrRegistrationAssigned,
	domain.ErrAlreadyCheckedIn,
	domain.ErrEventTypeNotFound,
	domain.ErrEventTypeInUse,
	domain.ErrInvalidInput,
}

func isBusinessError(err error) bool {
	for _, be := range businessErrors {
		if errors.Is(err, be) {
			return true
		}
	}
	return false
}

// writeError: 业务拒绝带原始消息返回；持久层故障只回通用消息，细节进日志
// （domain.ErrOccupancyUnderflow 属于后者：计数漂移是内部缺陷，不是操作错误）
func writeError(w http.ResponseWriter, logger *zap.Logger, op string, err error) {
	if isBusinessError(err) {
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}
	logger.Error(op+" failed", zap.Error(err))
	writeJSON(w, http.StatusOK, Fail("operation failed"))
}
