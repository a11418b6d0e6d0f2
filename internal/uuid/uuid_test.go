// Package uuid tests for UUID utilities.
package uuid

import "testing"

// TestNew verifies generated UUIDs are valid and unique.
func TestNew(t *testing.T) {
	a := New()
	b := New()

	if a == b {
		t.Error("two generated UUIDs should differ")
	}
	if !IsValid(a) {
		t.Errorf("generated UUID %q should be valid", a)
	}
}

// TestIsValid verifies validation of well-formed and malformed strings.
func TestIsValid(t *testing.T) {
	if !IsValid("123e4567-e89b-42d3-a456-426614174000") {
		t.Error("well-formed UUID should be valid")
	}
	if IsValid("not-a-uuid") {
		t.Error("malformed string should be invalid")
	}
	if IsValid("") {
		t.Error("empty string should be invalid")
	}
}

// TestParse verifies parse errors surface for malformed input.
func TestParse(t *testing.T) {
	if _, err := Parse("123e4567-e89b-42d3-a456-426614174000"); err != nil {
		t.Errorf("Parse() error = %v, want nil", err)
	}
	if _, err := Parse("nope"); err == nil {
		t.Error("Parse() should fail for malformed input")
	}
}

// TestValidate verifies the error form of validation.
func TestValidate(t *testing.T) {
	if err := Validate("123e4567-e89b-42d3-a456-426614174000"); err != nil {
		t.Errorf("Validate() error = %v, want nil", err)
	}
	if err := Validate("nope"); err == nil {
		t.Error("Validate() should fail for malformed input")
	}
}
