package domain

import (
	"fmt"
	"math"
)

// eerCoefficients is one age/sex bracket of the EER equation.
type eerCoefficients struct {
	startConst float64
	ageC       float64
	weightC    float64
	heightC    float64
	pa         map[ActivityLevel]float64
}

var (
	eerInfant = eerCoefficients{
		weightC: 89,
		pa:      map[ActivityLevel]float64{Sedentary: 1, LowActive: 1, Active: 1, VeryActive: 1},
	}
	eerChild = map[Sex]eerCoefficients{
		SexMale: {
			startConst: 88.5, ageC: 61.9, weightC: 26.7, heightC: 903,
			pa: map[ActivityLevel]float64{Sedentary: 1, LowActive: 1.13, Active: 1.26, VeryActive: 1.42},
		},
		SexFemale: {
			startConst: 135.3, ageC: 30.8, weightC: 10, heightC: 934,
			pa: map[ActivityLevel]float64{Sedentary: 1, LowActive: 1.16, Active: 1.31, VeryActive: 1.56},
		},
	}
	eerAdult = map[Sex]eerCoefficients{
		SexMale: {
			startConst: 662, ageC: 9.53, weightC: 15.91, heightC: 539.6,
			pa: map[ActivityLevel]float64{Sedentary: 1, LowActive: 1.11, Active: 1.25, VeryActive: 1.48},
		},
		SexFemale: {
			startConst: 354, ageC: 6.91, weightC: 9.36, heightC: 726,
			pa: map[ActivityLevel]float64{Sedentary: 1, LowActive: 1.12, Active: 1.27, VeryActive: 1.45},
		},
	}
)

// CalculateEnergy returns the Estimated Energy Requirement in kcal/day.
func CalculateEnergy(age int, sex Sex, weightKg, heightCm float64, level ActivityLevel) (int, error) {
	if age < 0 || weightKg < 0 || heightCm < 0 {
		return 0, fmt.Errorf("%w: negative age, weight or height", ErrInvalidProfile)
	}
	if sex != SexMale && sex != SexFemale {
		return 0, fmt.Errorf("%w: sex %q", ErrInvalidProfile, sex)
	}

	var (
		c        eerCoefficients
		endConst float64
	)
	switch {
	case age < 3:
		c = eerInfant
		endConst = -80
		if age < 1 {
			endConst = -78
		}
	case age < 19:
		c = eerChild[sex]
		endConst = 25
		if age < 9 {
			endConst = 20
		}
	default:
		c = eerAdult[sex]
	}

	pa, ok := c.pa[level]
	if !ok {
		return 0, fmt.Errorf("%w: activity level %q", ErrInvalidProfile, level)
	}

	result := c.startConst - c.ageC*float64(age) +
		pa*(c.weightC*weightKg+c.heightC*heightCm/100) + endConst
	return int(math.RoundToEven(result)), nil
}

// ProfileEnergy computes the EER for p.
func ProfileEnergy(p Profile) (int, error) {
	return CalculateEnergy(p.Age, p.Sex, p.Weight, p.Height, p.ActivityLevel)
}
