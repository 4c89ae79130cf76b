package utils

import (
	"errors"
	"testing"
)

func TestParseLimit(t *testing.T) {
	cases := []struct {
		s       string
		max     int
		want    int
		wantErr bool
	}{
		{"", 100, 0, false},
		{"   ", 100, 0, false},
		{"5", 100, 5, false},
		{" 12 ", 100, 12, false},
		{"0", 100, 0, false},
		{"250", 100, 100, false},
		{"250", 0, 250, false}, // no cap
		{"-3", 100, 0, true},
		{"x", 100, 0, true},
		{"1.5", 100, 0, true},
		{"999999999999999999999999", 100, 0, true},
	}

	for _, tc := range cases {
		got, err := ParseLimit(tc.s, tc.max)
		if tc.wantErr {
			if !errors.Is(err, ErrInvalidLimit) {
				t.Fatalf("ParseLimit(%q, %d) err = %v; want ErrInvalidLimit", tc.s, tc.max, err)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Fatalf("ParseLimit(%q, %d) = %d, %v; want %d", tc.s, tc.max, got, err, tc.want)
		}
	}
}
