package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConversionFactor(t *testing.T) {
	tests := []struct {
		name     string
		from, to Unit
		nutrient string
		want     float64
	}{
		{"same unit", UnitMG, UnitMG, "", 1},
		{"same energy unit", UnitKCal, UnitKCal, "", 1},
		{"grams to milligrams", UnitG, UnitMG, "", 1000},
		{"milligrams to grams", UnitMG, UnitG, "", 0.001},
		{"micrograms to milligrams", UnitUG, UnitMG, "", 0.001},
		{"vitamin A IU to micrograms", UnitIU, UnitUG, "Vitamin A", 0.3},
		{"vitamin D micrograms to IU", UnitUG, UnitIU, "Vitamin D", 40},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ConversionFactor(tt.from, tt.to, tt.nutrient)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestConversionFactor_RoundTrip(t *testing.T) {
	units := []Unit{UnitUG, UnitMG, UnitG, UnitIU}

	for _, name := range []string{"Vitamin A", "Vitamin D"} {
		for _, u1 := range units {
			for _, u2 := range units {
				there, err := ConversionFactor(u1, u2, name)
				require.NoError(t, err)
				back, err := ConversionFactor(u2, u1, name)
				require.NoError(t, err)
				assert.InDelta(t, 1.0, there*back, 1e-9, "%s %s<->%s", name, u1, u2)
			}
		}
	}
}

func TestConversionFactor_Unrecognized(t *testing.T) {
	tests := []struct {
		name     string
		from, to Unit
		nutrient string
		bad      Unit
	}{
		{"IU for unknown nutrient", UnitIU, UnitMG, "Vitamin C", UnitIU},
		{"energy to mass", UnitKCal, UnitG, "", UnitKCal},
		{"mass to energy", UnitG, UnitKCal, "", UnitKCal},
		{"unknown unit", UnitG, Unit("OZ"), "", Unit("OZ")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ConversionFactor(tt.from, tt.to, tt.nutrient)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrUnrecognizedUnit)

			var unitErr *UnrecognizedUnitError
			require.True(t, errors.As(err, &unitErr))
			assert.Equal(t, tt.bad, unitErr.Unit)
			assert.Contains(t, err.Error(), string(tt.bad))
		})
	}
}

func TestIsEnergyMismatch(t *testing.T) {
	assert.True(t, IsEnergyMismatch(UnitKCal, UnitG))
	assert.True(t, IsEnergyMismatch(UnitIU, UnitKCal))
	assert.False(t, IsEnergyMismatch(UnitKCal, UnitKCal))
	assert.False(t, IsEnergyMismatch(UnitMG, UnitG))
}

func TestNormalizeFDCUnit(t *testing.T) {
	assert.Equal(t, UnitUG, NormalizeFDCUnit("MCG_RE"))
	assert.Equal(t, UnitMG, NormalizeFDCUnit("MG_GAE"))
	assert.Equal(t, UnitMG, NormalizeFDCUnit("MG_ATE"))
	assert.Equal(t, UnitUG, NormalizeFDCUnit("µg"))
	assert.Equal(t, UnitG, NormalizeFDCUnit(" g "))
	assert.Equal(t, UnitKCal, NormalizeFDCUnit("kcal"))
	assert.True(t, NormalizeFDCUnit("IU").Valid())
	assert.False(t, NormalizeFDCUnit("kJ").Valid())
}
