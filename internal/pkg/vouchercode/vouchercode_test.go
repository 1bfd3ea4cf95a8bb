package vouchercode

import (
	"strings"
	"testing"
)

func TestGenerate_LengthAndAlphabet(t *testing.T) {
	t.Parallel()

	code, err := Generate()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(code) != CodeLength {
		t.Fatalf("expected code length %d, got %d", CodeLength, len(code))
	}

	for i := 0; i < len(code); i++ {
		if strings.IndexByte(alphabet, code[i]) == -1 {
			t.Fatalf("code contains invalid character %q", code[i])
		}
	}
}

func TestGenerate_InvalidLength(t *testing.T) {
	t.Parallel()

	if _, err := generate(0); err == nil {
		t.Fatalf("expected error for invalid length")
	}
}

func TestGenerate_Unique(t *testing.T) {
	t.Parallel()

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		code, err := Generate()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if seen[code] {
			t.Fatalf("duplicate code generated: %s", code)
		}
		seen[code] = true
	}
}

func TestFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		code     string
		expected string
	}{
		{"WX7K9P2M4QZT", "WX7K-9P2M-4QZT"},
		{"ABCDE", "ABCD-E"},
		{"ABCD", "ABCD"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := Format(tt.code); got != tt.expected {
			t.Fatalf("Format(%q) = %q, expected %q", tt.code, got, tt.expected)
		}
	}
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		expected string
	}{
		{"WX7K-9P2M-4QZT", "WX7K9P2M4QZT"},
		{"wx7k 9p2m 4qzt", "WX7K9P2M4QZT"},
		{" wx7k-9P2M\t4qzt ", "WX7K9P2M4QZT"},
		{"PLAIN", "PLAIN"},
	}

	for _, tt := range tests {
		if got := Normalize(tt.input); got != tt.expected {
			t.Fatalf("Normalize(%q) = %q, expected %q", tt.input, got, tt.expected)
		}
	}
}

func TestFormatNormalizeRoundTrip(t *testing.T) {
	t.Parallel()

	code, err := Generate()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := Normalize(Format(code)); got != code {
		t.Fatalf("round trip changed code: %q -> %q", code, got)
	}
}
