package stream

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// 领域事件类型（下游消费者：通知、报表）
const (
	EventAssignmentCreated   = "assignment.created"
	EventAssignmentRemoved   = "assignment.removed"
	EventRegistrationCheckIn = "registration.checked_in"
)

// Publisher 把领域事件发布到 Redis Streams
// client 为 nil 时发布是 no-op（本地无 Redis 也能跑）
type Publisher struct {
	client *redis.Client
	stream string
	logger *zap.Logger
}

func NewPublisher(client *redis.Client, stream string, logger *zap.Logger) *Publisher {
	return &Publisher{client: client, stream: stream, logger: logger}
}

// Publish 发布一条事件（JSON 负载 + 事件类型 + 时间戳）
// 发布失败只记日志不回传：事件流是旁路，不允许影响主流程
func (p *Publisher) Publish(ctx context.Context, eventType string, payload any) {
	if p == nil || p.client == nil {
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		p.logger.Warn("stream payload marshal failed", zap.String("event", eventType), zap.Error(err))
		return
	}

	_, err = p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{
			"event":     eventType,
			"data":      string(data),
			"timestamp": time.Now().Unix(),
		},
	}).Result()
	if err != nil {
		p.logger.Warn("stream publish failed", zap.String("event", eventType), zap.Error(err))
	}
}
