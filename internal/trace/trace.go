// Package trace 在 context 中传递 trace ID，日志每行带 TRACE=id 便于排查；日志一律写 stderr。
package trace

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type ctxKey int

const traceIDKey ctxKey = 0

var logger = newLogger(os.Stderr)

func newLogger(w io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "2006-01-02 15:04:05"})
	return l
}

// Setup 设置日志级别与输出；级别无法解析时用 info。
func Setup(level string, w io.Writer) {
	if w != nil {
		logger.SetOutput(w)
	}
	lvl, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)
}

// Logger 暴露底层 logrus，供 gin 等组件复用同一输出。
func Logger() *logrus.Logger {
	return logger
}

func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceIDKey, id)
}

func TraceID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(traceIDKey).(string); ok {
		return id
	}
	return ""
}

// NewTraceID 取 uuid 前 8 位，足够区分一次运行。
func NewTraceID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// Log 打日志，消息开头固定为 TRACE=id，便于一眼看到 trace 并 grep
func Log(ctx context.Context, format string, args ...interface{}) {
	logger.Info(prefix(ctx) + fmt.Sprintf(format, args...))
}

// Warn 失败原因等需要关注的信息。
func Warn(ctx context.Context, format string, args ...interface{}) {
	logger.Warn(prefix(ctx) + fmt.Sprintf(format, args...))
}

func Debug(ctx context.Context, format string, args ...interface{}) {
	logger.Debug(prefix(ctx) + fmt.Sprintf(format, args...))
}

func prefix(ctx context.Context) string {
	id := TraceID(ctx)
	if id == "" {
		id = "-"
	}
	return "TRACE=" + id + " | "
}
