package revit

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseLength(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"12.5", 12.5},
		{"0", 0},
		{`2'`, 2},
		{`6"`, 0.5},
		{`2' 3"`, 2.25},
		{`2'3"`, 2.25},
		{`2' 3.6"`, 2.3},
		{`1' 1 1/2"`, 1.125},
		{`1/2"`, 1.0 / 24.0},
	}
	for _, tc := range cases {
		got, err := ParseLength(tc.in)
		require.NoError(t, err, "input %q", tc.in)
		require.InDelta(t, tc.want, got, 1e-9, "input %q", tc.in)
	}
}

func TestParseLengthRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "abc", `x'`, `2' y"`, `2' 3`, `1 0/0"`} {
		_, err := ParseLength(in)
		require.Error(t, err, "input %q", in)
	}
}
