package domain

import "context"

// FDCClient defines the interface for interacting with the FoodData Central API
type FDCClient interface {
	GetFood(ctx context.Context, fdcID int) (*FDCFoodRecords, error)
}

// FoodNutrientSource yields food_nutrient rows one at a time.
// Next returns io.EOF when the source is exhausted.
type FoodNutrientSource interface {
	Next() (FDCFoodNutrient, error)
}
