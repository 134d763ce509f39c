package clog

import (
	"context"
	"log/slog"
)

// extractContextFields 按配置从 ctx 中取值，缺失的键直接跳过
func extractContextFields(ctx context.Context, fields []ContextField) []slog.Attr {
	if ctx == nil || len(fields) == 0 {
		return nil
	}

	attrs := make([]slog.Attr, 0, len(fields))
	for _, cf := range fields {
		val := ctx.Value(cf.Key)
		if val == nil {
			continue
		}
		attrs = append(attrs, slog.Any(cf.FieldName, val))
	}
	return attrs
}
