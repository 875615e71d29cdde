// Package logctx carries a scoped logger on a context, so components can
// log into the logger of the unit of work that called them.
package logctx

import (
	"context"

	"go.uber.org/zap"
)

type loggerKey struct{}

func With(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// From returns the logger carried by ctx, or fallback when there is none.
func From(ctx context.Context, fallback *zap.Logger) *zap.Logger {
	if logger, ok := ctx.Value(loggerKey{}).(*zap.Logger); ok && logger != nil {
		return logger
	}
	return fallback
}
