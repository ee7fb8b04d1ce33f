package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseKeyPoints(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{
			name: "mixed markers",
			raw:  "• one\n- two\n* three\n4. four\n12) twelve",
			want: []string{"one", "two", "three", "four", "twelve"},
		},
		{
			name: "decimal numbers and bold headings are not markers",
			raw:  "**Key Points:**\n• Revenue grew 20%\n3.5 million users joined this quarter overall\n- Churn fell",
			want: []string{"Revenue grew 20%", "Churn fell"},
		},
		{
			name: "decimal line alone falls back intact",
			raw:  "3.5 million users joined this quarter overall",
			want: []string{"3.5 million users joined this quarter overall"},
		},
		{
			name: "blank bullets dropped",
			raw:  "•   \n• real\n-",
			want: []string{"real"},
		},
		{
			name: "capped at seven",
			raw:  "• 1\n• 2\n• 3\n• 4\n• 5\n• 6\n• 7\n• 8\n• 9",
			want: []string{"1", "2", "3", "4", "5", "6", "7"},
		},
		{
			name: "fallback to long lines",
			raw:  "Here are the points\nshort\nThe budget grew by ten percent\n\nok",
			want: []string{"Here are the points", "The budget grew by ten percent"},
		},
		{
			name: "fallback ignores ten characters exactly",
			raw:  "0123456789\n0123456789a",
			want: []string{"0123456789a"},
		},
		{
			name: "crlf",
			raw:  "• a\r\n• b\r\n",
			want: []string{"a", "b"},
		},
		{
			name: "nothing usable",
			raw:  "tiny\nbits",
			want: []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseKeyPoints(tt.raw))
		})
	}
}
