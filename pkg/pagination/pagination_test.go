package pagination

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestNormalizeLimit(t *testing.T) {
	require.Equal(t, DefaultLimit, NormalizeLimit(0))
	require.Equal(t, MaxLimit, NormalizeLimit(MaxLimit+50))
	require.Equal(t, 10, NormalizeLimit(10))
	require.Equal(t, 11, LimitWithBuffer(10))
}

func TestCursorRoundTripKeepsPipesInKey(t *testing.T) {
	id := uuid.New()
	encoded := EncodeCursor(Cursor{Key: "war|peace", ID: id})
	decoded, err := ParseCursor(encoded)
	require.NoError(t, err)
	require.Equal(t, "war|peace", decoded.Key)
	require.Equal(t, id, decoded.ID)
}

func TestCursorTimeKey(t *testing.T) {
	at := time.Date(2026, 5, 1, 12, 30, 0, 1500, time.FixedZone("x", 3600))
	c := Cursor{Key: TimeKey(at)}
	got, err := c.Time()
	require.NoError(t, err)
	require.True(t, got.Equal(at))
	require.Equal(t, time.UTC, got.Location())
}

func TestParseCursorRejectsGarbage(t *testing.T) {
	c, err := ParseCursor("   ")
	require.NoError(t, err)
	require.Nil(t, c)

	_, err = ParseCursor("%%%")
	require.Error(t, err)

	_, err = ParseCursor(EncodeCursor(Cursor{Key: "k"})[:4])
	require.Error(t, err)
}

func TestTrim(t *testing.T) {
	rows := []int{1, 2, 3}
	page := Trim(rows, 2, func(v int) Cursor { return Cursor{Key: "k", ID: uuid.Nil} })
	require.Equal(t, []int{1, 2}, page.Items)
	require.NotEmpty(t, page.NextCursor)

	page = Trim(rows[:2], 2, func(v int) Cursor { return Cursor{} })
	require.Len(t, page.Items, 2)
	require.Empty(t, page.NextCursor)

	empty := Trim[int](nil, 5, nil)
	require.NotNil(t, empty.Items)
}
