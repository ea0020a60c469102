package priority

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLookupPrecedence(t *testing.T) {
	tbl := New()
	tbl.Set("211", 5)    // single rule
	tbl.Set("112124", 2) // pair rule for source 112, neighbor 124
	tbl.Set("124", 7)    // single rule shadowed by the pair above

	tests := []struct {
		name     string
		source   string
		neighbor string
		want     int
	}{
		{name: "pair rule wins over single rule", source: "112", neighbor: "124", want: 2},
		{name: "single rule when no pair matches", source: "999", neighbor: "124", want: 7},
		{name: "single rule only", source: "112", neighbor: "211", want: 5},
		{name: "absent resolves to default", source: "112", neighbor: "333", want: Default},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tbl.Lookup(tt.source, tt.neighbor))
		})
	}
}

func TestLookupIsPure(t *testing.T) {
	tbl := New()
	tbl.Set("211", 5)
	for i := 0; i < 3; i++ {
		assert.Equal(t, 5, tbl.Lookup("112", "211"))
	}
	assert.Equal(t, 1, tbl.Len())
}

func TestDuplicateCodeLastWins(t *testing.T) {
	tbl := New()
	tbl.Set("211", 5)
	tbl.Set("211", 9)
	assert.Equal(t, 9, tbl.Lookup("112", "211"))
}

func TestEntriesSorted(t *testing.T) {
	tbl := New()
	tbl.Set("311", 1)
	tbl.Set("112", 3)
	entries := tbl.Entries()
	assert.Equal(t, []Entry{{Code: "112", Pri: 3}, {Code: "311", Pri: 1}}, entries)
}
