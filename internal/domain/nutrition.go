package domain

// Nutrient is a canonical nutrient. Energy is kcal per one Unit.
type Nutrient struct {
	ID     uint           `gorm:"primaryKey" json:"id"`
	Name   string         `gorm:"size:64;not null;uniqueIndex" json:"name"`
	Unit   Unit           `gorm:"size:8;not null" json:"unit"`
	Energy float64        `gorm:"not null" json:"energy"`
	Types  []NutrientType `gorm:"many2many:nutrient_type_memberships;" json:"types,omitempty"`
}

// NutrientType groups nutrients. Members of a type with a parent nutrient
// are considered part of that parent for energy breakdowns.
type NutrientType struct {
	ID               uint    `gorm:"primaryKey" json:"id"`
	Name             string  `gorm:"size:32;not null;uniqueIndex" json:"name"`
	DisplayedName    *string `gorm:"size:32" json:"displayedName,omitempty"`
	ParentNutrientID *uint   `gorm:"uniqueIndex" json:"parentNutrientId,omitempty"`
}

// NutrientComponent is a directed edge: Component contributes to the compound Target.
type NutrientComponent struct {
	ID          uint `gorm:"primaryKey" json:"id"`
	TargetID    uint `gorm:"not null;uniqueIndex:idx_nutrient_component" json:"targetId"`
	ComponentID uint `gorm:"not null;uniqueIndex:idx_nutrient_component" json:"componentId"`
}

// FoodDataSource is the origin of imported ingredients (e.g. "FDC").
type FoodDataSource struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `gorm:"size:32;not null;uniqueIndex" json:"name"`
}

// Ingredient is a food with per-100g nutrient amounts.
type Ingredient struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	DataSourceID uint   `gorm:"not null;uniqueIndex:idx_ingredient_external" json:"dataSourceId"`
	ExternalID   int    `gorm:"not null;uniqueIndex:idx_ingredient_external" json:"externalId"`
	Name         string `gorm:"not null" json:"name"`
	Dataset      string `gorm:"size:32" json:"dataset"`
}

// IngredientNutrient is the amount of a nutrient per 100 g of an ingredient,
// expressed in the nutrient's unit.
type IngredientNutrient struct {
	ID           uint    `gorm:"primaryKey" json:"id"`
	IngredientID uint    `gorm:"not null;uniqueIndex:idx_ingredient_nutrient" json:"ingredientId"`
	NutrientID   uint    `gorm:"not null;uniqueIndex:idx_ingredient_nutrient;index" json:"nutrientId"`
	Amount       float64 `gorm:"not null" json:"amount"`
}

// Intakes maps nutrient ids to amounts.
type Intakes map[uint]float64

// Add accumulates other into i.
func (i Intakes) Add(other Intakes) {
	for id, v := range other {
		i[id] += v
	}
}

// Scale returns a copy of i with every amount multiplied by f.
func (i Intakes) Scale(f float64) Intakes {
	out := make(Intakes, len(i))
	for id, v := range i {
		out[id] = v * f
	}
	return out
}

// CalorieShare is one nutrient's percentage of total calories.
type CalorieShare struct {
	Nutrient string  `json:"nutrient"`
	Percent  float64 `json:"percent"`
}
