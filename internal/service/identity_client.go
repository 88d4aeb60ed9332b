package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Actor 认证服务返回的操作者信息
type Actor struct {
	UserID   string `json:"user_id"`
	Nickname string `json:"nickname"`
	Role     string `json:"role"`
}

// IdentityClient 外部认证服务客户端
// 认证/会话由 auth provider 托管，本服务只拿 token 换操作者ID
// （用于 assignment.assigned_by 审计字段）
type IdentityClient interface {
	ResolveActor(ctx context.Context, token string) (*Actor, error)
}

type identityClient struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

// NewIdentityClient 创建认证服务客户端
func NewIdentityClient(baseURL string, logger *zap.Logger) IdentityClient {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(5 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(200 * time.Millisecond).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &identityClient{httpClient: client, logger: logger}
}

type verifyResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Result  *Actor `json:"result"`
}

// ResolveActor 校验 bearer token，返回操作者
// token 无效或 auth 服务不可达都返回 error，调用方自行决定降级策略
func (c *identityClient) ResolveActor(ctx context.Context, token string) (*Actor, error) {
	var out verifyResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetResult(&out).
		Get("/auth/api/v1/verify")
	if err != nil {
		return nil, fmt.Errorf("auth provider unreachable: %w", err)
	}
	if resp.StatusCode() != 200 || out.Result == nil {
		return nil, fmt.Errorf("token rejected by auth provider (status %d)", resp.StatusCode())
	}
	return out.Result, nil
}

// NoopIdentityClient 认证关闭时的空实现（actor 永远为空）
type NoopIdentityClient struct{}

func (NoopIdentityClient) ResolveActor(context.Context, string) (*Actor, error) {
	return &Actor{}, nil
}
