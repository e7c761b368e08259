package source

import (
	"time"

	"github.com/shopspring/decimal"
)

// SamplePageSize matches the page size the upstream API uses.
const SamplePageSize = 5

func sampleItem(id, userID, createdAt, typ, amount string) Item {
	ts, _ := time.Parse(time.RFC3339, createdAt)
	return Item{
		ID:        id,
		UserID:    userID,
		CreatedAt: ts,
		Type:      typ,
		Amount:    decimal.RequireFromString(amount),
	}
}

// SampleItems returns the built-in development data set.
func SampleItems() []Item {
	return []Item{
		sampleItem("41bbdf81-735c-4aea-beb3-3e5f433a30c5", "074092", "2023-03-16T12:33:11.000Z", "payout", "30"),
		sampleItem("41bbdf81-735c-4aea-beb3-3e5fasfsdfef", "074092", "2023-03-12T12:33:11.000Z", "spent", "12"),
		sampleItem("41bbdf81-735c-4aea-beb3-342jhj234nj234", "074092", "2023-03-15T12:33:11.000Z", "earned", "1.2"),
		sampleItem("41bbdf81-735c-4aea-beb3-3e5f433a30c6", "074093", "2023-03-16T12:33:11.000Z", "earned", "50"),
		sampleItem("41bbdf81-735c-4aea-beb3-3e5f433a30c7", "074093", "2023-03-17T12:33:11.000Z", "payout", "25"),
		sampleItem("41bbdf81-735c-4aea-beb3-3e5f433a30c8", "074094", "2023-03-18T12:33:11.000Z", "earned", "100"),
		sampleItem("41bbdf81-735c-4aea-beb3-3e5f433a30c9", "074094", "2023-03-19T12:33:11.000Z", "spent", "25"),
	}
}

// SamplePage slices the sample set the way upstream paginates; pages are 1-based.
func SamplePage(page, perPage int) Page {
	items := SampleItems()
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = SamplePageSize
	}

	from := (page - 1) * perPage
	if from > len(items) {
		from = len(items)
	}
	to := from + perPage
	if to > len(items) {
		to = len(items)
	}

	return Page{
		Items: items[from:to],
		Meta: Meta{
			TotalItems:   len(items),
			ItemCount:    to - from,
			ItemsPerPage: perPage,
			TotalPages:   (len(items) + perPage - 1) / perPage,
			CurrentPage:  page,
		},
	}
}
