package util

import (
	"fmt"
	"math"
)

func FormatPerUnit(value float64) string {
	if math.Abs(value) >= 1000 || (math.Abs(value) < 0.001 && value != 0) {
		return fmt.Sprintf("%8.2e", value) // e.g., "1.00e+03" or "5.43e-05"
	}
	return fmt.Sprintf("%8.5f", value) // e.g., " 0.97873"
}

func FormatAngleDeg(rad float64) string {
	return fmt.Sprintf("%7.3f", rad*180.0/math.Pi) // e.g., " -2.342"
}

// FormatPolar renders a voltage phasor as "name=0.97873<-2.342deg".
func FormatPolar(name string, magnitude, angleRad float64) string {
	return fmt.Sprintf("%s=%s<%sdeg", name, FormatPerUnit(magnitude), FormatAngleDeg(angleRad))
}

func FormatMismatch(value float64) string {
	return fmt.Sprintf("%.3e", value)
}
