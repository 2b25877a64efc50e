package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLabel(t *testing.T) {
	cases := []struct {
		in   string
		want Label
	}{
		{"positive", Positive},
		{"Positive", Positive},
		{" positive\n", Positive},
		{"The expression is positive.", Positive},
		{"negative", Negative},
		{"NEGATIVE", Negative},
		{"neutral", Neutral},
		{"", Neutral},
		{"I cannot tell", Neutral},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, parseLabel(tc.in), "input %q", tc.in)
	}
}
