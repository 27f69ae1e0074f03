package common

import "testing"

func TestMaskSecret(t *testing.T) {
	tests := map[string]string{
		"":                 "",
		"abc":              "***",
		"abcd":             "****",
		"abcde":            "abcd********",
		"0123456789abcdef": "0123********",
	}
	for in, want := range tests {
		if got := MaskSecret(in); got != want {
			t.Errorf("MaskSecret(%q) = %q, want %q", in, got, want)
		}
	}
}
