package revit

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveCategory(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"OST_Windows", "OST_Windows"},
		{"windows", "OST_Windows"},
		{"Windows", "OST_Windows"},
		{"WINDOWS", "OST_Windows"},
		{"window", "OST_Windows"},   // singular maps to plural
		{"Wall", "OST_Walls"},
		{"walls", "OST_Walls"},
		{"ost_doors", "OST_Doors"},
		{"structural framing", "OST_StructuralFraming"},
	}
	for _, tc := range cases {
		got, ok := ResolveCategory(tc.in)
		require.True(t, ok, "input %q", tc.in)
		require.Equal(t, tc.want, got, "input %q", tc.in)
	}
}

func TestResolveCategoryUnknown(t *testing.T) {
	for _, in := range []string{"", "spaceships", "OST_Nope"} {
		_, ok := ResolveCategory(in)
		require.False(t, ok, "input %q", in)
	}
}
