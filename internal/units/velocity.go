// Package units provides speed unit constants and conversion for published records.
package units

import "fmt"

// Unit constants
const (
	MPS  = "mps"
	MPH  = "mph"
	KMPH = "kmph"
	KPH  = "kph"
)

// ValidUnits contains all valid unit values
var ValidUnits = []string{MPS, MPH, KMPH, KPH}

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// Validate returns an error naming the accepted units when unit is unknown.
func Validate(unit string) error {
	if IsValid(unit) {
		return nil
	}
	return fmt.Errorf("invalid speed unit %q (valid: mps, mph, kmph, kph)", unit)
}

// ConvertSpeed converts a speed from meters per second to the target units
func ConvertSpeed(speedMPS float64, targetUnits string) float64 {
	switch targetUnits {
	case MPS:
		return speedMPS
	case MPH:
		return speedMPS * 2.2369362920544
	case KMPH, KPH:
		return speedMPS * 3.6
	default:
		return speedMPS
	}
}

// MPSToKMPH is the conversion used for the target velocity array.
func MPSToKMPH(speedMPS float64) float64 {
	return ConvertSpeed(speedMPS, KMPH)
}
