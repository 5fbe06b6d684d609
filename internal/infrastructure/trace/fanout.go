package trace

import (
	"context"
	"errors"

	"github.com/kirillkom/email-thread-rag/internal/core/domain"
	"github.com/kirillkom/email-thread-rag/internal/core/ports"
)

// Fanout forwards every record to all sinks. A failing sink never
// stops the others; the joined error is returned so the caller can
// log it.
type Fanout struct {
	sinks []ports.TraceSink
}

func NewFanout(sinks ...ports.TraceSink) *Fanout {
	return &Fanout{sinks: sinks}
}

func (f *Fanout) Append(ctx context.Context, record domain.TraceRecord) error {
	var errs []error
	for _, sink := range f.sinks {
		if err := sink.Append(ctx, record); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
