package source

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// FallbackFlag toggles the sample-data fallback at runtime.
const FallbackFlag = "transaction_source_sample_fallback"

// FallbackSource serves the first sample page whenever the primary source fails.
// enabled is consulted per fetch; a nil func means always on.
type FallbackSource struct {
	primary Source
	enabled func(ctx context.Context) bool
}

func NewFallbackSource(primary Source, enabled func(ctx context.Context) bool) *FallbackSource {
	return &FallbackSource{primary: primary, enabled: enabled}
}

func (s *FallbackSource) Fetch(ctx context.Context, start, end time.Time) (*Batch, error) {
	batch, err := s.primary.Fetch(ctx, start, end)
	if err == nil {
		return batch, nil
	}

	// a cancelled caller gets its own error back, not sample data
	if errors.Is(err, context.Canceled) || ctx.Err() != nil {
		return nil, err
	}
	if s.enabled != nil && !s.enabled(ctx) {
		return nil, err
	}

	fallbacksUsed.Inc()
	zap.L().Warn("upstream transaction source unavailable, serving sample data",
		zap.Time("start", start),
		zap.Time("end", end),
		zap.Error(err),
	)

	page := SamplePage(1, SamplePageSize)
	return &Batch{
		Items:    page.Items,
		Meta:     page.Meta,
		Fallback: true,
	}, nil
}
