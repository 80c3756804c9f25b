package orders

import (
	"github.com/stretchr/testify/assert"
	"testing"
)

func TestListFilterNormalize(t *testing.T) {
	cases := []struct {
		in, limit, offset int
	}{
		{0, 20, 0},
		{-3, 20, 0},
		{1, 1, 0},
		{50, 50, 0},
		{100, 100, 0},
		{101, 100, 0},
		{500, 100, 0},
	}
	for _, c := range cases {
		got := ListFilter{Limit: c.in}.Normalize()
		assert.Equal(t, c.limit, got.Limit, "limit %d", c.in)
		assert.Equal(t, c.offset, got.Offset)
	}

	got := ListFilter{Limit: 10, Offset: -5}.Normalize()
	assert.Equal(t, 0, got.Offset)
}
