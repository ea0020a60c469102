package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseNeighborMode(t *testing.T) {
	tests := []struct {
		in      string
		want    NeighborMode
		wantErr bool
	}{
		{in: "touches", want: ModeTouches},
		{in: "shares-segment", want: ModeSharesSegment},
		{in: "intersects", want: ModeIntersects},
		{in: "BOUNDARY_TOUCHES", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseNeighborMode(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
