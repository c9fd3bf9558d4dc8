package records

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindString(t *testing.T) {
	assert.Equal(t, "blob", KindBlob.String())
	assert.Equal(t, "unsupported", KindUnsupported.String())
	assert.Equal(t, "kind(200)", Kind(200).String())
}

func TestMember(t *testing.T) {
	v := Struct(Field{Name: "bytes", Value: Blob([]byte{1})}, Field{Name: "path", Value: Null()})

	b, ok := v.Member("bytes")
	assert.True(t, ok)
	assert.Equal(t, KindBlob, b.Kind)

	p, ok := v.Member("path")
	assert.True(t, ok)
	assert.True(t, p.IsNull())

	_, ok = v.Member("missing")
	assert.False(t, ok)

	_, ok = Text("x").Member("bytes")
	assert.False(t, ok)
}

func TestRecordGet(t *testing.T) {
	r := Record{"caption": Null()}
	v, ok := r.Get("caption")
	assert.True(t, ok, "present null is not absent")
	assert.True(t, v.IsNull())

	_, ok = r.Get("answer_1")
	assert.False(t, ok)
}
