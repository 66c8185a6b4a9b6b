package main

import "testing"

func TestReadColorMode(t *testing.T) {
	cases := []struct {
		in   string
		want colorMode
	}{
		{"", colorModeAuto},
		{"auto", colorModeAuto},
		{"on", colorModeOn},
		{"OFF", colorModeOff},
		{" on ", colorModeOn},
	}
	for _, tc := range cases {
		got, err := readColorMode(tc.in)
		if err != nil || got != tc.want {
			t.Errorf("readColorMode(%q) = %q, %v; want %q", tc.in, got, err, tc.want)
		}
	}

	if _, err := readColorMode("rainbow"); err == nil {
		t.Fatal("invalid mode accepted")
	}
}
