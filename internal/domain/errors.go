package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when a requested record does not exist
	ErrNotFound = errors.New("record not found")

	// ErrUnrecognizedUnit is returned when a unit cannot be converted
	ErrUnrecognizedUnit = errors.New("unit was not recognized")

	// ErrMissingNutrients is returned when an import finds none of the nutrients it depends on
	ErrMissingNutrients = errors.New("required nutrients not found")

	// ErrNutrientTypeHierarchy is returned when saving a type would nest parent nutrients
	ErrNutrientTypeHierarchy = errors.New("nutrient type hierarchy violation")

	// ErrSelfComponent is returned when a nutrient is made a component of itself
	ErrSelfComponent = errors.New("nutrient cannot be a component of itself")

	// ErrDuplicateComponent is returned when a component edge already exists
	ErrDuplicateComponent = errors.New("nutrient component already exists")

	// ErrProfileRequired is returned when a recommendation is evaluated without a profile
	ErrProfileRequired = errors.New("recommendation evaluation requires a profile")

	// ErrInvalidProfile is returned when profile attributes are out of range
	ErrInvalidProfile = errors.New("invalid profile")

	// ErrInvalidDataset is returned for an unknown FDC dataset tag
	ErrInvalidDataset = errors.New("unrecognized FDC dataset")

	// ErrOwnerMismatch is returned when a meal references another profile's recipe
	ErrOwnerMismatch = errors.New("meal and recipe owners differ")

	// ErrInvalidRequest is returned when request parameters are invalid
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrRateLimited is returned when rate limit is exceeded
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrFDCAPIFailure is returned when an FDC API request fails
	ErrFDCAPIFailure = errors.New("FDC API request failed")
)

// UnrecognizedUnitError names the unit a conversion could not handle.
type UnrecognizedUnitError struct {
	Unit Unit
}

func (e *UnrecognizedUnitError) Error() string {
	return fmt.Sprintf("unit %q was not recognized", string(e.Unit))
}

func (e *UnrecognizedUnitError) Unwrap() error { return ErrUnrecognizedUnit }

// MissingNutrientsError lists the nutrients an import needs loaded first.
type MissingNutrientsError struct {
	Required []string
}

func (e *MissingNutrientsError) Error() string {
	return fmt.Sprintf("%v: none of [%s] exist; load nutrient reference data first",
		ErrMissingNutrients, strings.Join(e.Required, ", "))
}

func (e *MissingNutrientsError) Unwrap() error { return ErrMissingNutrients }
