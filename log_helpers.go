package bulk_duplicator

import (
	"context"

	"github.com/pnvasko/bulk-duplicator/common"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// SetLogError logs err, marks the span in ctx as failed and returns err.
func SetLogError(ctx context.Context, description string, err error, logger *common.Logger, fields ...zap.Field) error {
	fields = append(fields, zap.Error(err))
	logger.Ctx(ctx).Error(description, fields...)
	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		span.RecordError(err)
		span.SetStatus(codes.Error, description+": "+err.Error())
	}
	return err
}
