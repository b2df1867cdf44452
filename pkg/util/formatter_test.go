package util

import "testing"

func TestFormatPolar(t *testing.T) {
	got := FormatPolar("V(2)", 0.97873, -0.040881)
	want := "V(2)= 0.97873< -2.342deg"
	if got != want {
		t.Errorf("FormatPolar = %q, want %q", got, want)
	}
}

func TestFormatPerUnitSmallValues(t *testing.T) {
	if got := FormatPerUnit(5.43e-05); got != "5.43e-05" {
		t.Errorf("FormatPerUnit = %q", got)
	}
}

func TestMax(t *testing.T) {
	if Max(1.5, 2.5) != 2.5 || Max(3, 2) != 3 {
		t.Error("Max returned the smaller value")
	}
}
