package logger

import (
	"sync"

	"go.uber.org/zap"
)

// Operational events (resolution traces, module state changes, imports) are
// reported through zap. Diagnostics about user code go through Log instead.

var (
	zapLogger *zap.Logger
	zapMutex  sync.RWMutex
)

// Zap returns the operational logger. It is a no-op logger until SetZap is
// called.
func Zap() *zap.Logger {
	zapMutex.RLock()
	l := zapLogger
	zapMutex.RUnlock()
	if l == nil {
		return zap.NewNop()
	}
	return l
}

func SetZap(l *zap.Logger) {
	zapMutex.Lock()
	defer zapMutex.Unlock()
	zapLogger = l
}

// MsgFields converts a diagnostic into zap fields so compile failures can be
// reported on the operational log as well.
func MsgFields(msg Msg) []zap.Field {
	fields := []zap.Field{zap.String("kind", msg.Kind.String()), zap.String("text", msg.Text)}
	if loc := msg.Location; loc != nil {
		fields = append(fields,
			zap.String("file", loc.File),
			zap.Int("line", loc.Line),
			zap.Int("column", loc.Column))
	}
	return fields
}
