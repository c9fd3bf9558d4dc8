package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestColumns(t *testing.T) {
	cols := Columns()
	assert.Len(t, cols, NumColumns)
	assert.Equal(t, Image, cols[0])
	assert.Equal(t, ImageSize, cols[10])
	assert.Equal(t, ArticleJournal, cols[14])

	cols[0] = "mutated"
	assert.Equal(t, Image, Columns()[0], "Columns returns a copy")
}

func TestRowSetGet(t *testing.T) {
	var r Row
	for _, v := range r.Strings() {
		assert.Equal(t, "", v)
	}

	r.Set(Caption, "a caption")
	r.Set("not_a_column", "ignored")
	assert.Equal(t, "a caption", r.Get(Caption))
	assert.Equal(t, "", r.Get("not_a_column"))

	i, ok := Position(Caption)
	assert.True(t, ok)
	assert.Equal(t, "a caption", r.Strings()[i])

	_, ok = Position("nope")
	assert.False(t, ok)
}
