package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   Params
		want Params
	}{
		{name: "defaults", in: Params{}, want: Params{Page: 0, Size: DefaultSize}},
		{name: "negative page", in: Params{Page: -3, Size: 5}, want: Params{Page: 0, Size: 5}},
		{name: "size capped", in: Params{Page: 2, Size: 1000}, want: Params{Page: 2, Size: MaxSize}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestPageHasNext(t *testing.T) {
	assert.True(t, Page[int]{TotalPages: 3, Number: 1}.HasNext())
	assert.False(t, Page[int]{TotalPages: 3, Number: 2}.HasNext())
	assert.False(t, Page[int]{}.HasNext())
}
