package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCode(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "sub-code 1211 collapses to parent", in: "1211", want: "121"},
		{name: "sub-code 1212 collapses to parent", in: "1212", want: "121"},
		{name: "parent code passes through", in: "121", want: "121"},
		{name: "unmapped code passes through", in: "512", want: "512"},
		{name: "float attribute coerced", in: "1211.0", want: "121"},
		{name: "padded dbf value", in: "  211\x00\x00", want: "211"},
		{name: "empty maps to unknown sentinel", in: "", want: UnknownCode},
		{name: "whitespace maps to unknown sentinel", in: "   ", want: UnknownCode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Code(tt.in))
		})
	}
}

func TestCoerce(t *testing.T) {
	assert.Equal(t, "121", Coerce("121.00"))
	assert.Equal(t, "121.5", Coerce("121.5")) // non-integral stays verbatim
	assert.Equal(t, "", Coerce("\x00\x00"))
	assert.Equal(t, "abc", Coerce("abc"))
}
