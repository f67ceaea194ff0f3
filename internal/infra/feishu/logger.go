package feishu

import (
	"context"
	"fmt"

	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	"go.uber.org/zap"
)

// larkZapLogger routes SDK logs into zap
type larkZapLogger struct {
	logger *zap.Logger
}

func newLarkZapLogger(logger *zap.Logger) larkcore.Logger {
	return &larkZapLogger{logger: logger.Named("sdk")}
}

func (l *larkZapLogger) Debug(_ context.Context, args ...any) {
	l.logger.Debug(fmt.Sprint(args...))
}

func (l *larkZapLogger) Info(_ context.Context, args ...any) {
	l.logger.Info(fmt.Sprint(args...))
}

func (l *larkZapLogger) Warn(_ context.Context, args ...any) {
	l.logger.Warn(fmt.Sprint(args...))
}

func (l *larkZapLogger) Error(_ context.Context, args ...any) {
	l.logger.Error(fmt.Sprint(args...))
}
