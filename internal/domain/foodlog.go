package domain

import (
	"time"

	"gorm.io/datatypes"
)

// Sex of a profile, or of the population a recommendation targets.
type Sex string

const (
	SexMale   Sex = "M"
	SexFemale Sex = "F"
	SexBoth   Sex = "B"
)

// ActivityLevel is the physical activity category used by the EER equations.
type ActivityLevel string

const (
	Sedentary  ActivityLevel = "S"
	LowActive  ActivityLevel = "LA"
	Active     ActivityLevel = "A"
	VeryActive ActivityLevel = "VA"
)

// Profile holds the physiology recommendations are personalized to.
// EnergyRequirement is derived and recomputed on every save.
type Profile struct {
	ID                uint          `gorm:"primaryKey" json:"id"`
	Age               int           `gorm:"not null" json:"age"`
	Height            float64       `gorm:"not null" json:"height"` // cm
	Weight            float64       `gorm:"not null" json:"weight"` // kg
	Sex               Sex           `gorm:"size:1;not null" json:"sex"`
	ActivityLevel     ActivityLevel `gorm:"size:2;not null" json:"activityLevel"`
	EnergyRequirement int           `gorm:"not null" json:"energyRequirement"`
}

// WeightMeasurement is one recorded body weight.
type WeightMeasurement struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	ProfileID uint           `gorm:"not null;index" json:"profileId"`
	Value     float64        `gorm:"not null" json:"value"`
	Date      datatypes.Date `gorm:"not null" json:"date"`
}

// Recipe is a composition of ingredients. With no FinalWeight its weight is
// the sum of its ingredient amounts.
type Recipe struct {
	ID          uint               `gorm:"primaryKey" json:"id"`
	OwnerID     uint               `gorm:"not null;index" json:"ownerId"`
	Name        string             `gorm:"size:50;not null" json:"name"`
	FinalWeight *float64           `json:"finalWeight,omitempty"`
	Ingredients []RecipeIngredient `gorm:"foreignKey:RecipeID" json:"ingredients,omitempty"`
}

// RecipeIngredient is an amount in grams of an ingredient in a recipe.
type RecipeIngredient struct {
	ID           uint    `gorm:"primaryKey" json:"id"`
	RecipeID     uint    `gorm:"not null;uniqueIndex:idx_recipe_ingredient" json:"recipeId"`
	IngredientID uint    `gorm:"not null;uniqueIndex:idx_recipe_ingredient" json:"ingredientId"`
	Amount       float64 `gorm:"not null" json:"amount"`
}

// Weight returns the recipe's final weight in grams, or the sum of its
// ingredient amounts when no positive final weight is set.
func (r Recipe) Weight() float64 {
	if r.FinalWeight != nil && *r.FinalWeight > 0 {
		return *r.FinalWeight
	}
	var total float64
	for _, ri := range r.Ingredients {
		total += ri.Amount
	}
	return total
}

// Meal is everything a profile ate on one date.
type Meal struct {
	ID          uint             `gorm:"primaryKey" json:"id"`
	OwnerID     uint             `gorm:"not null;uniqueIndex:idx_meal_owner_date" json:"ownerId"`
	Date        datatypes.Date   `gorm:"not null;uniqueIndex:idx_meal_owner_date" json:"date"`
	Ingredients []MealIngredient `gorm:"foreignKey:MealID" json:"ingredients,omitempty"`
	Recipes     []MealRecipe     `gorm:"foreignKey:MealID" json:"recipes,omitempty"`
}

// MealIngredient is an amount in grams of an ingredient eaten in a meal.
type MealIngredient struct {
	ID           uint    `gorm:"primaryKey" json:"id"`
	MealID       uint    `gorm:"not null;index" json:"mealId"`
	IngredientID uint    `gorm:"not null" json:"ingredientId"`
	Amount       float64 `gorm:"not null" json:"amount"`
}

// MealRecipe is an amount in grams of a recipe eaten in a meal.
type MealRecipe struct {
	ID       uint    `gorm:"primaryKey" json:"id"`
	MealID   uint    `gorm:"not null;index" json:"mealId"`
	RecipeID uint    `gorm:"not null" json:"recipeId"`
	Amount   float64 `gorm:"not null" json:"amount"`
}

// DateLayout is the layout of date keys in time series.
const DateLayout = "2006-01-02"

// DateKey formats the calendar date of d.
func DateKey(d datatypes.Date) string {
	return time.Time(d).Format(DateLayout)
}

// NewDate returns the datatypes.Date for a calendar day.
func NewDate(year int, month time.Month, day int) datatypes.Date {
	return datatypes.Date(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// DateRange is an inclusive, optionally open-ended window of dates.
type DateRange struct {
	Min *time.Time
	Max *time.Time
}

// DateOf returns the calendar date of t in t's location, stored as UTC
// midnight like every other date.
func DateOf(t time.Time) datatypes.Date {
	y, m, d := t.Date()
	return NewDate(y, m, d)
}
