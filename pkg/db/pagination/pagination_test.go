package pagination

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type row struct {
	ID string
	At time.Time
}

func TestCursorRoundTrip(t *testing.T) {
	at := time.Date(2023, 3, 16, 12, 33, 11, 0, time.UTC)
	encoded, err := EncodeCursor(Cursor{CreatedAt: at, ID: "42"})
	require.NoError(t, err)

	decoded, err := DecodeCursor(encoded)
	require.NoError(t, err)
	require.Equal(t, "42", decoded.ID)
	require.True(t, decoded.CreatedAt.Equal(at))
}

func TestDecodeCursorRejectsGarbage(t *testing.T) {
	_, err := DecodeCursor("not base64!")
	require.ErrorIs(t, err, ErrInvalidCursor)

	_, err = DecodeCursor("e30") // {}
	require.ErrorIs(t, err, ErrInvalidCursor)
}

func TestTrim(t *testing.T) {
	rows := []*row{{ID: "3"}, {ID: "2"}, {ID: "1"}}
	cursorOf := func(r *row) Cursor { return Cursor{ID: r.ID, CreatedAt: r.At} }

	page, info := Trim(rows, 2, cursorOf)
	require.Len(t, page, 2)
	require.True(t, info.HasMore)

	next, err := DecodeCursor(info.NextCursor)
	require.NoError(t, err)
	require.Equal(t, "2", next.ID)

	page, info = Trim(rows, 5, cursorOf)
	require.Len(t, page, 3)
	require.False(t, info.HasMore)
	require.Empty(t, info.NextCursor)
}
