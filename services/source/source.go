package source

import (
	"context"
	"time"
)

//go:generate mockgen -source=source.go -destination=mock/source_mock.go -package=mock

// Source returns every transaction created in [start, end).
type Source interface {
	Fetch(ctx context.Context, start, end time.Time) (*Batch, error)
}
