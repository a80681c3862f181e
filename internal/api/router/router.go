package router

import (
	"context"
	"errors"

	"ats-engine/internal/api/handler"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/hertz-contrib/keyauth"
)

var errInvalidAPIKey = errors.New("invalid api key")

// RegisterRoutes 注册 API 路由。apiKeys 非空时除健康检查外的接口需要
// Authorization: Bearer <key>
func RegisterRoutes(h *server.Hertz, eh *handler.EvaluationHandler, apiKeys []string) {
	api := h.Group("/api/v1")
	api.GET("/health", eh.HandleHealth)

	var middlewares []app.HandlerFunc
	if len(apiKeys) > 0 {
		middlewares = append(middlewares, APIKeyAuth(apiKeys))
	}
	secured := api.Group("", middlewares...)

	secured.POST("/evaluate", eh.HandleEvaluate)
	secured.POST("/jobs/:job_id/rescore", eh.HandleRescore)
	secured.POST("/jobs/:job_id/candidates/:candidate_id/scan", eh.HandleScan)
	secured.GET("/batch-runs/:run_id", eh.HandleBatchProgress)
}

// APIKeyAuth 校验 Bearer API Key
func APIKeyAuth(keys []string) app.HandlerFunc {
	allowed := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		allowed[k] = struct{}{}
	}
	return keyauth.New(
		keyauth.WithKeyLookUp("header:Authorization", "Bearer"),
		keyauth.WithValidator(func(ctx context.Context, c *app.RequestContext, key string) (bool, error) {
			if _, ok := allowed[key]; ok {
				return true, nil
			}
			return false, errInvalidAPIKey
		}),
		keyauth.WithErrorHandler(func(ctx context.Context, c *app.RequestContext, err error) {
			c.AbortWithStatusJSON(consts.StatusUnauthorized, utils.H{"error": "未授权"})
		}),
	)
}
