package units

import (
	"math"
	"testing"
)

func TestIsValid(t *testing.T) {
	tests := []struct {
		name     string
		unit     string
		expected bool
	}{
		{"valid mps", MPS, true},
		{"valid mph", MPH, true},
		{"valid kmph", KMPH, true},
		{"valid kph", KPH, true},
		{"invalid unit", "knots", false},
		{"empty unit", "", false},
		{"uppercase KMPH", "KMPH", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValid(tt.unit); got != tt.expected {
				t.Errorf("IsValid(%s) = %v, want %v", tt.unit, got, tt.expected)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	if err := Validate(KMPH); err != nil {
		t.Errorf("Validate(kmph) returned %v", err)
	}
	if err := Validate("knots"); err == nil {
		t.Error("Validate(knots) should fail")
	}
}

func TestConvertSpeed(t *testing.T) {
	tests := []struct {
		unit     string
		mps      float64
		expected float64
	}{
		{MPS, 10, 10},
		{KMPH, 10, 36},
		{KPH, 2.5, 9},
		{MPH, 10, 22.369362920544},
		{"unknown", 7, 7},
	}

	for _, tt := range tests {
		t.Run(tt.unit, func(t *testing.T) {
			got := ConvertSpeed(tt.mps, tt.unit)
			if math.Abs(got-tt.expected) > 1e-9 {
				t.Errorf("ConvertSpeed(%v, %s) = %v, want %v", tt.mps, tt.unit, got, tt.expected)
			}
		})
	}
}

func TestMPSToKMPH(t *testing.T) {
	if got := MPSToKMPH(1); math.Abs(got-3.6) > 1e-12 {
		t.Errorf("MPSToKMPH(1) = %v, want 3.6", got)
	}
}
