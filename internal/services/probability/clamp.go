package probability

import "math"

// Clamp bounds p to [lo, hi]. NaN maps to lo.
func Clamp(p, lo, hi float64) float64 {
	if math.IsNaN(p) {
		return lo
	}
	return math.Max(lo, math.Min(hi, p))
}

// FahrenheitToCelsius converts °F to °C.
func FahrenheitToCelsius(f float64) float64 {
	return (f - 32) * 5 / 9
}

// CelsiusToFahrenheit converts °C to °F.
func CelsiusToFahrenheit(c float64) float64 {
	return c*9/5 + 32
}

// InchesToMillimeters converts inches to millimetres.
func InchesToMillimeters(in float64) float64 {
	return in * 25.4
}

// InchesToCentimeters converts inches to centimetres.
func InchesToCentimeters(in float64) float64 {
	return in * 2.54
}
