package domain

import "strings"

// Unit is the unit a nutrient amount is expressed in.
type Unit string

const (
	UnitKCal Unit = "KCAL"
	UnitG    Unit = "G"
	UnitMG   Unit = "MG"
	UnitUG   Unit = "UG"
	UnitIU   Unit = "IU"
)

var gramsPerUnit = map[Unit]float64{
	UnitUG: 1e-6,
	UnitMG: 1e-3,
	UnitG:  1,
}

// grams per IU, by nutrient name
var gramsPerIU = map[string]float64{
	"Vitamin A": 0.3e-6,
	"Vitamin D": 0.025e-6,
}

// fdcUnits maps FDC unit names that are not plain units.
var fdcUnits = map[string]Unit{
	"MCG_RE": UnitUG,
	"MG_GAE": UnitMG,
	"MG_ATE": UnitMG,
	"MCG":    UnitUG,
}

// Valid reports whether u is one of the supported units.
func (u Unit) Valid() bool {
	switch u {
	case UnitKCal, UnitG, UnitMG, UnitUG, UnitIU:
		return true
	}
	return false
}

// ConversionFactor returns the factor f such that an amount in `from`
// equals amount*f in `to`. IU factors depend on nutrientName.
func ConversionFactor(from, to Unit, nutrientName string) (float64, error) {
	if from == to {
		return 1.0, nil
	}
	f, err := unitGrams(from, nutrientName)
	if err != nil {
		return 0, err
	}
	t, err := unitGrams(to, nutrientName)
	if err != nil {
		return 0, err
	}
	return f / t, nil
}

func unitGrams(u Unit, nutrientName string) (float64, error) {
	if u == UnitIU {
		if g, ok := gramsPerIU[nutrientName]; ok {
			return g, nil
		}
		return 0, &UnrecognizedUnitError{Unit: u}
	}
	if g, ok := gramsPerUnit[u]; ok {
		return g, nil
	}
	return 0, &UnrecognizedUnitError{Unit: u}
}

// IsEnergyMismatch reports whether exactly one of the units is KCAL.
func IsEnergyMismatch(a, b Unit) bool {
	return (a == UnitKCal) != (b == UnitKCal)
}

// NormalizeFDCUnit converts an FDC unit_name into a Unit.
func NormalizeFDCUnit(s string) Unit {
	s = strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "µ", "MC"))
	if u, ok := fdcUnits[s]; ok {
		return u
	}
	return Unit(s)
}
