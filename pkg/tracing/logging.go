package tracing

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

var (
	_ Tracer = LoggingTracer{}
	_ Span   = (*loggingSpan)(nil)
)

// LoggingTracer is a [Tracer] that logs finished spans at debug level.
type LoggingTracer struct {
	logger *slog.Logger
}

func NewLoggingTracer(logger *slog.Logger) *LoggingTracer {
	return &LoggingTracer{
		logger: logger,
	}
}

//nolint:ireturn
func (l LoggingTracer) StartSpan(operationName string) Span {
	return &loggingSpan{
		logger:        l.logger,
		operationName: operationName,
		baggage:       make(map[string]any),
		start:         time.Now(),
	}
}

type loggingSpan struct {
	logger        *slog.Logger
	baggage       map[string]any
	start         time.Time
	operationName string
	mu            sync.Mutex
}

func (s *loggingSpan) Finish() {
	s.mu.Lock()
	attrs := baggageToAttrs(s.baggage)
	s.mu.Unlock()

	attrs = append(attrs,
		slog.String("operation_name", s.operationName),
		slog.Float64("time_ms", time.Since(s.start).Seconds()*1e3),
	)
	s.logger.LogAttrs(context.Background(), slog.LevelDebug, "trace", attrs...)
}

// SetBaggageItem may be called from any goroutine.
func (s *loggingSpan) SetBaggageItem(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.baggage[key] = value
}

func baggageToAttrs(baggage map[string]any) []slog.Attr {
	result := make([]slog.Attr, 0, len(baggage)+2)
	for k, v := range baggage {
		result = append(result, slog.Any(k, v))
	}

	return result
}
