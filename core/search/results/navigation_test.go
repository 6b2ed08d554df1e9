package results

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func exampleIndex() *Index {
	idx := NewIndex()
	idx.Insert(2, rects(1, 2))
	idx.Insert(5, rects(3))
	return idx
}

func TestFind_EmptyIndex(t *testing.T) {
	_, ok := Find(NewIndex(), -1, 1, Next)
	assert.False(t, ok)

	_, ok = Find(nil, 0, 1, Previous)
	assert.False(t, ok)
}

func TestFind_FromPage(t *testing.T) {
	idx := exampleIndex()

	tests := []struct {
		name string
		page int
		dir  Direction
		want int
	}{
		{name: "next before first page", page: 1, dir: Next, want: 0},
		{name: "next on page with matches", page: 2, dir: Next, want: 0},
		{name: "next between pages", page: 3, dir: Next, want: 2},
		{name: "next after last page wraps", page: 6, dir: Next, want: 0},
		{name: "previous after last page", page: 9, dir: Previous, want: 2},
		{name: "previous on page with matches", page: 2, dir: Previous, want: 1},
		{name: "previous between pages", page: 4, dir: Previous, want: 1},
		{name: "previous before first page wraps", page: 1, dir: Previous, want: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row, ok := Find(idx, -1, tt.page, tt.dir)
			assert.True(t, ok)
			assert.Equal(t, tt.want, row)
		})
	}
}

func TestFind_StepsAndWraps(t *testing.T) {
	idx := exampleIndex()

	row, ok := Find(idx, 2, 5, Next)
	assert.True(t, ok)
	assert.Equal(t, 0, row, "next from the last match wraps to the first")

	row, _ = Find(idx, 0, 2, Previous)
	assert.Equal(t, 2, row, "previous from the first match wraps to the last")

	row, _ = Find(idx, 0, 99, Next)
	assert.Equal(t, 1, row, "current match takes precedence over page")
}

func TestFind_OutOfRangeCurrentUsesPage(t *testing.T) {
	idx := exampleIndex()

	row, ok := Find(idx, 3, 3, Next)
	assert.True(t, ok)
	assert.Equal(t, 2, row)
}

func TestFind_CircularProperty(t *testing.T) {
	idx := NewIndex()
	for page := 1; page <= 9; page += 2 {
		idx.Insert(page, rects(page, page+1))
	}
	count := idx.Len()

	for _, dir := range []Direction{Next, Previous} {
		for start := 0; start < count; start++ {
			row := start
			for i := 0; i < count; i++ {
				row, _ = Find(idx, row, 0, dir)
			}
			assert.Equal(t, start, row, "%s from %d", dir, start)
		}
	}
}

func TestParseDirection(t *testing.T) {
	d, ok := ParseDirection("prev")
	assert.True(t, ok)
	assert.Equal(t, Previous, d)

	d, ok = ParseDirection("next")
	assert.True(t, ok)
	assert.Equal(t, Next, d)

	_, ok = ParseDirection("sideways")
	assert.False(t, ok)
	assert.Equal(t, "unknown", Direction(9).String())
}
