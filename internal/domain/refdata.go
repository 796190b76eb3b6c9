package domain

import "fmt"

// ReferenceData is the nutrient reference set loaded before any FDC import:
// nutrients with their recommendations, types and components.
type ReferenceData struct {
	Types     []ReferenceType     `yaml:"types"`
	Nutrients []ReferenceNutrient `yaml:"nutrients"`
}

// ReferenceType describes a nutrient type. ParentNutrient names a nutrient.
type ReferenceType struct {
	Name           string  `yaml:"name"`
	DisplayedName  *string `yaml:"displayed_name"`
	ParentNutrient string  `yaml:"parent_nutrient"`
}

// ReferenceNutrient describes a nutrient. Types and Components hold names.
type ReferenceNutrient struct {
	Name            string                    `yaml:"name"`
	Unit            Unit                      `yaml:"unit"`
	Energy          float64                   `yaml:"energy"`
	Types           []string                  `yaml:"types"`
	Components      []string                  `yaml:"components"`
	Recommendations []ReferenceRecommendation `yaml:"recommendations"`
}

// ReferenceRecommendation describes an intake recommendation of its nutrient.
type ReferenceRecommendation struct {
	DRIType   DRIType  `yaml:"dri_type"`
	Sex       Sex      `yaml:"sex"`
	AgeMin    int      `yaml:"age_min"`
	AgeMax    *int     `yaml:"age_max"`
	AmountMin *float64 `yaml:"amount_min"`
	AmountMax *float64 `yaml:"amount_max"`
}

var driTypes = map[DRIType]bool{
	DRIAI: true, DRIAIK: true, DRIAIKG: true, DRIALAP: true,
	DRIAMDR: true, DRIRDA: true, DRIRDAKG: true, DRIUL: true,
}

// Validate checks the fields the loader cannot repair.
func (d *ReferenceData) Validate() error {
	seen := make(map[string]bool, len(d.Nutrients))
	for _, n := range d.Nutrients {
		if n.Name == "" {
			return fmt.Errorf("%w: nutrient without a name", ErrInvalidRequest)
		}
		if seen[n.Name] {
			return fmt.Errorf("%w: nutrient %q listed twice", ErrInvalidRequest, n.Name)
		}
		seen[n.Name] = true
		if !n.Unit.Valid() {
			return fmt.Errorf("nutrient %q: %w", n.Name, &UnrecognizedUnitError{Unit: n.Unit})
		}
		if n.Energy < 0 {
			return fmt.Errorf("%w: nutrient %q has negative energy", ErrInvalidRequest, n.Name)
		}
		for _, r := range n.Recommendations {
			if !driTypes[r.DRIType] {
				return fmt.Errorf("%w: nutrient %q: unknown dri_type %q", ErrInvalidRequest, n.Name, r.DRIType)
			}
			if r.Sex != SexMale && r.Sex != SexFemale && r.Sex != SexBoth {
				return fmt.Errorf("%w: nutrient %q: unknown sex %q", ErrInvalidRequest, n.Name, r.Sex)
			}
			if r.AgeMax != nil && *r.AgeMax < r.AgeMin {
				return fmt.Errorf("%w: nutrient %q: age_max below age_min", ErrInvalidRequest, n.Name)
			}
			if r.AmountMin != nil && r.AmountMax != nil && *r.AmountMin > *r.AmountMax {
				return fmt.Errorf("%w: nutrient %q: amount_max below amount_min", ErrInvalidRequest, n.Name)
			}
		}
	}
	for _, t := range d.Types {
		if t.Name == "" {
			return fmt.Errorf("%w: nutrient type without a name", ErrInvalidRequest)
		}
	}
	return nil
}

// TypeNames returns the names of all types declared or referenced, in order
// of first appearance.
func (d *ReferenceData) TypeNames() []string {
	seen := make(map[string]bool)
	var names []string
	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	for _, t := range d.Types {
		add(t.Name)
	}
	for _, n := range d.Nutrients {
		for _, t := range n.Types {
			add(t)
		}
	}
	return names
}
