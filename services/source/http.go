package source

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const (
	// DefaultMaxPages bounds a single fetch against an upstream that never stops paginating.
	DefaultMaxPages = 100

	transactionsPath = "/transactions"
	timeLayout       = "2006-01-02T15:04:05.000Z07:00"
)

type HTTPSource struct {
	client   *resty.Client
	maxPages int
}

type HTTPOption func(*HTTPSource)

func WithMaxPages(n int) HTTPOption {
	return func(s *HTTPSource) {
		if n > 0 {
			s.maxPages = n
		}
	}
}

func NewHTTPSource(baseURL string, timeout time.Duration, opts ...HTTPOption) *HTTPSource {
	client := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Accept", "application/json")
	if timeout > 0 {
		client.SetTimeout(timeout)
	}

	s := &HTTPSource{client: client, maxPages: DefaultMaxPages}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Fetch walks pages sequentially from 1 until the reported last page or the
// page ceiling, whichever comes first.
func (s *HTTPSource) Fetch(ctx context.Context, start, end time.Time) (*Batch, error) {
	pages := make([]Page, 0, 1)
	for page := 1; ; page++ {
		p, err := s.fetchPage(ctx, start, end, page)
		if err != nil {
			return nil, err
		}
		pagesFetched.Inc()
		pages = append(pages, *p)

		if page >= p.Meta.TotalPages {
			break
		}
		if page >= s.maxPages {
			ceilingHits.Inc()
			zap.L().Warn("page ceiling reached, returning partial window",
				zap.Int("max_pages", s.maxPages),
				zap.Int("total_pages", p.Meta.TotalPages),
				zap.Time("start", start),
				zap.Time("end", end),
			)
			break
		}
	}

	batch := Flatten(pages...)
	zap.L().Info("fetched transactions",
		zap.Int("items", len(batch.Items)),
		zap.Int("pages", batch.Pages),
	)
	return batch, nil
}

func (s *HTTPSource) fetchPage(ctx context.Context, start, end time.Time, page int) (*Page, error) {
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"startDate": start.UTC().Format(timeLayout),
			"endDate":   end.UTC().Format(timeLayout),
			"page":      strconv.Itoa(page),
		}).
		Get(transactionsPath)
	if err != nil {
		return nil, fmt.Errorf("fetch transactions page %d: %w", page, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fetch transactions page %d: upstream returned %s", page, resp.Status())
	}

	var p Page
	if err := json.Unmarshal(resp.Body(), &p); err != nil {
		return nil, fmt.Errorf("decode transactions page %d: %w", page, err)
	}
	return &p, nil
}
