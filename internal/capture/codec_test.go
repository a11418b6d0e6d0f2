// Package capture tests for the value transport encoding.
package capture

import "testing"

// =====================================================
// Value Encoding Tests
// =====================================================

// TestEncodeValue covers the five storage classes plus the driver quirks.
func TestEncodeValue(t *testing.T) {
	tests := []struct {
		name string
		in   interface{}
		want string
	}{
		{"null", nil, "NULL"},
		{"integer", int64(42), "42"},
		{"negative integer", int64(-7), "-7"},
		{"plain int", 13, "13"},
		{"real", float64(3.5), "3.5"},
		{"real whole", float64(2), "2"},
		{"real no exponent", float64(0.0000001), "0.0000001"},
		{"text", "hello", "hello"},
		{"empty text", "", ""},
		{"blob", []byte{1, 2, 3}, "AQID"},
		{"empty blob", []byte{}, ""},
		{"bool true", true, "1"},
		{"bool false", false, "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EncodeValue(tt.in); got != tt.want {
				t.Errorf("EncodeValue(%v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

// TestEncodeValue_textPassthrough verifies text keeps bytes that look like
// other encodings.
func TestEncodeValue_textPassthrough(t *testing.T) {
	if got := EncodeValue("NULL"); got != "NULL" {
		t.Errorf("EncodeValue(\"NULL\") = %q, want the literal text back", got)
	}
	if got := EncodeValue("42"); got != "42" {
		t.Errorf("EncodeValue(\"42\") = %q, want \"42\"", got)
	}
}
