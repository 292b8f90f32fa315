// Package tracing provides lightweight spans for timing operations.
package tracing

// Tracer starts spans.
type Tracer interface {
	StartSpan(operationName string) Span
}

// Span times a single operation. Baggage items are attached to the span
// when it finishes.
type Span interface {
	SetBaggageItem(key string, value any)
	Finish()
}
