package utils

import (
	"context"

	"github.com/mmdatafocus/compensacao_backend/appctx"
)

var (
	ContextKeyToken         = appctx.ContextKeyToken
	ContextKeyOperatorId    = appctx.ContextKeyOperatorId
	ContextKeyOperatorName  = appctx.ContextKeyOperatorName
	ContextKeyCorrelationId = appctx.ContextKeyCorrelationId
)

func GetTokenFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyToken)
}

func GetOperatorIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyOperatorId)
}

func GetOperatorNameFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyOperatorName)
}

func GetCorrelationIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyCorrelationId)
}

func SetTokenInContext(ctx context.Context, token string) context.Context {
	return appctx.Set(ctx, ContextKeyToken, token)
}

func SetOperatorIdInContext(ctx context.Context, operatorId string) context.Context {
	return appctx.Set(ctx, ContextKeyOperatorId, operatorId)
}

func SetOperatorNameInContext(ctx context.Context, operatorName string) context.Context {
	return appctx.Set(ctx, ContextKeyOperatorName, operatorName)
}

func SetCorrelationIdInContext(ctx context.Context, correlationId string) context.Context {
	return appctx.Set(ctx, ContextKeyCorrelationId, correlationId)
}
