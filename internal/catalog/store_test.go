package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContainsPattern(t *testing.T) {
	tests := []struct {
		term string
		want string
	}{
		{"cala", `%cala%`},
		{"100%", `%100\%%`},
		{"gmt_ii", `%gmt\_ii%`},
		{`a\b`, `%a\\b%`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, containsPattern(tt.term), tt.term)
	}
}
