package enums

import "fmt"

// FreightType selects the shipping option of an order.
type FreightType string

const (
	FreightTypeStandard FreightType = "standard"
	FreightTypeExpress  FreightType = "express"
)

var validFreightTypes = []FreightType{
	FreightTypeStandard,
	FreightTypeExpress,
}

// String implements fmt.Stringer.
func (f FreightType) String() string {
	return string(f)
}

// IsValid reports whether the value is a known FreightType.
func (f FreightType) IsValid() bool {
	for _, candidate := range validFreightTypes {
		if candidate == f {
			return true
		}
	}
	return false
}

// ParseFreightType converts raw input into a FreightType. Empty input means standard.
func ParseFreightType(value string) (FreightType, error) {
	if value == "" {
		return FreightTypeStandard, nil
	}
	for _, candidate := range validFreightTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid freight type %q", value)
}
