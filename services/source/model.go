package source

import (
	"time"

	"github.com/shopspring/decimal"
)

// Item is one upstream transaction as delivered on the wire.
type Item struct {
	ID        string          `json:"id"`
	UserID    string          `json:"userId"`
	CreatedAt time.Time       `json:"createdAt"`
	Type      string          `json:"type"`
	Amount    decimal.Decimal `json:"amount"`
}

type Meta struct {
	TotalItems   int `json:"totalItems"`
	ItemCount    int `json:"itemCount"`
	ItemsPerPage int `json:"itemsPerPage"`
	TotalPages   int `json:"totalPages"`
	CurrentPage  int `json:"currentPage"`
}

type Page struct {
	Items []Item `json:"items"`
	Meta  Meta   `json:"meta"`
}

// Batch is every page of one window flattened into a single page.
type Batch struct {
	Items []Item `json:"items"`
	Meta  Meta   `json:"meta"`
	// Fallback is set when the items come from the built-in sample set.
	Fallback bool `json:"fallback"`
	// Pages counts physical requests made to upstream.
	Pages int `json:"pages"`
}

// Flatten merges pages into one logical batch with single-page meta.
func Flatten(pages ...Page) *Batch {
	items := make([]Item, 0)
	for _, p := range pages {
		items = append(items, p.Items...)
	}
	return &Batch{
		Items: items,
		Meta: Meta{
			TotalItems:   len(items),
			ItemCount:    len(items),
			ItemsPerPage: len(items),
			TotalPages:   1,
			CurrentPage:  1,
		},
		Pages: len(pages),
	}
}
