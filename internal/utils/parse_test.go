package utils

import "testing"

func TestAtoiDefault(t *testing.T) {
	cases := []struct {
		in        string
		def, want int
	}{
		{"42", 0, 42},
		{"", 10, 10},
		{"nope", 5, 5},
		{"-3", 0, -3},
		{"12.5", 7, 7},
	}
	for _, tc := range cases {
		if got := AtoiDefault(tc.in, tc.def); got != tc.want {
			t.Fatalf("AtoiDefault(%q, %d) = %d, want %d", tc.in, tc.def, got, tc.want)
		}
	}
}
