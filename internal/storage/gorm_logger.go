package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	logger "github.com/Gopher0727/TeamMatch/middleware/log"
)

// ZapGormLogger implements gorm's logger.Interface on top of the service
// logger, so SQL lines carry the request's trace id.
type ZapGormLogger struct {
	log                       *logger.Logger
	LogLevel                  gormlogger.LogLevel
	SlowThreshold             time.Duration // 0 disables slow query warnings
	IgnoreRecordNotFoundError bool
}

func NewZapGormLogger(log *logger.Logger, level gormlogger.LogLevel, slowThreshold time.Duration, ignoreRecordNotFound bool) *ZapGormLogger {
	return &ZapGormLogger{
		log:                       log,
		LogLevel:                  level,
		SlowThreshold:             slowThreshold,
		IgnoreRecordNotFoundError: ignoreRecordNotFound,
	}
}

func (z *ZapGormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *z
	clone.LogLevel = level
	return &clone
}

func (z *ZapGormLogger) Info(ctx context.Context, msg string, data ...any) {
	if z.LogLevel >= gormlogger.Info {
		z.log.InfoContext(ctx, fmt.Sprintf(msg, data...))
	}
}

func (z *ZapGormLogger) Warn(ctx context.Context, msg string, data ...any) {
	if z.LogLevel >= gormlogger.Warn {
		z.log.WarnContext(ctx, fmt.Sprintf(msg, data...))
	}
}

func (z *ZapGormLogger) Error(ctx context.Context, msg string, data ...any) {
	if z.LogLevel >= gormlogger.Error {
		z.log.ErrorContext(ctx, fmt.Sprintf(msg, data...))
	}
}

// Trace logs failed statements at Error, slow ones at Warn and the rest at
// Info when the level allows it.
func (z *ZapGormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if z.LogLevel <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	switch {
	case err != nil && z.LogLevel >= gormlogger.Error &&
		(!z.IgnoreRecordNotFoundError || !errors.Is(err, gorm.ErrRecordNotFound)):
		sql, rows := fc()
		z.log.ErrorContext(ctx, "gorm query failed",
			zap.Error(err),
			zap.Duration("elapsed", elapsed),
			zap.String("sql", sql),
			zap.Int64("rows", rows),
		)
	case z.SlowThreshold != 0 && elapsed > z.SlowThreshold && z.LogLevel >= gormlogger.Warn:
		sql, rows := fc()
		z.log.WarnContext(ctx, "gorm slow query",
			zap.Duration("elapsed", elapsed),
			zap.Duration("threshold", z.SlowThreshold),
			zap.String("sql", sql),
			zap.Int64("rows", rows),
		)
	case z.LogLevel >= gormlogger.Info:
		sql, rows := fc()
		z.log.DebugContext(ctx, "gorm query",
			zap.Duration("elapsed", elapsed),
			zap.String("sql", sql),
			zap.Int64("rows", rows),
		)
	}
}
