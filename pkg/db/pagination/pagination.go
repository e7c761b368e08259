package pagination

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
)

var ErrInvalidCursor = errors.New("invalid cursor")

// Cursor is the keyset position of the last row on a page.
type Cursor struct {
	CreatedAt time.Time `json:"created_at"`
	ID        string    `json:"id"`
}

type PageInfo struct {
	NextCursor string `json:"next_cursor,omitempty"`
	HasMore    bool   `json:"has_more"`
}

func EncodeCursor(data Cursor) (string, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return "", err
	}

	return base64.RawURLEncoding.EncodeToString(b), nil
}

func DecodeCursor(data string) (*Cursor, error) {
	b, err := base64.RawURLEncoding.DecodeString(data)
	if err != nil {
		return nil, ErrInvalidCursor
	}

	var cursor Cursor
	if err := json.Unmarshal(b, &cursor); err != nil || cursor.ID == "" {
		return nil, ErrInvalidCursor
	}

	return &cursor, nil
}

// Before restricts a newest-first query to rows strictly after the cursor.
func Before(timeColumn string, c *Cursor) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if c == nil {
			return db
		}
		return db.Where(
			timeColumn+" < ? OR ("+timeColumn+" = ? AND id < ?)",
			c.CreatedAt, c.CreatedAt, c.ID,
		)
	}
}

// Trim cuts a limit+1 result down to limit rows and reports whether more remain.
func Trim[T any](data []*T, limit int, cursorOf func(*T) Cursor) ([]*T, *PageInfo) {
	if len(data) <= limit || limit <= 0 {
		return data, &PageInfo{HasMore: false}
	}

	data = data[:limit]
	next, _ := EncodeCursor(cursorOf(data[len(data)-1]))
	return data, &PageInfo{HasMore: true, NextCursor: next}
}
