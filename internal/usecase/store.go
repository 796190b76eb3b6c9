package usecase

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/nutritrack/backend/internal/domain"
)

// maxInsertRows bounds the rows in one INSERT statement, independent of
// any import batch size.
const maxInsertRows = 500

var amountConflict = clause.OnConflict{
	Columns:   []clause.Column{{Name: "ingredient_id"}, {Name: "nutrient_id"}},
	DoUpdates: clause.AssignmentColumns([]string{"amount"}),
}

// upsertAmounts inserts rows, updating the amount of existing (ingredient, nutrient) pairs.
func upsertAmounts(db *gorm.DB, rows []domain.IngredientNutrient) error {
	if len(rows) == 0 {
		return nil
	}
	if err := db.Clauses(amountConflict).CreateInBatches(&rows, maxInsertRows).Error; err != nil {
		return fmt.Errorf("upsert ingredient nutrients: %w", err)
	}
	return nil
}

func getNutrient(ctx context.Context, db *gorm.DB, id uint) (domain.Nutrient, error) {
	var n domain.Nutrient
	if err := db.WithContext(ctx).Take(&n, id).Error; err != nil {
		return n, notFound(err, "nutrient", id)
	}
	return n, nil
}

// notFound translates gorm.ErrRecordNotFound into domain.ErrNotFound.
func notFound(err error, what string, id interface{}) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s %v", domain.ErrNotFound, what, id)
	}
	return fmt.Errorf("load %s %v: %w", what, id, err)
}

// componentIDs selects the component ids of a compound.
func componentIDs(db *gorm.DB, compoundID uint) *gorm.DB {
	return db.Model(&domain.NutrientComponent{}).Select("component_id").Where("target_id = ?", compoundID)
}

// compoundIDs selects the ids of compounds containing a component.
func compoundIDs(db *gorm.DB, componentID uint) *gorm.DB {
	return db.Model(&domain.NutrientComponent{}).Select("target_id").Where("component_id = ?", componentID)
}

// parentedNutrientIDs selects nutrients carrying a type with a parent nutrient.
func parentedNutrientIDs(db *gorm.DB) *gorm.DB {
	return db.Table("nutrient_type_memberships").
		Select("nutrient_type_memberships.nutrient_id").
		Joins("JOIN nutrient_types ON nutrient_types.id = nutrient_type_memberships.nutrient_type_id").
		Where("nutrient_types.parent_nutrient_id IS NOT NULL")
}

// withinDates restricts a date column to the inclusive bounds of r.
func withinDates(column string, r domain.DateRange) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if r.Min != nil {
			db = db.Where(column+" >= ?", domain.DateOf(*r.Min))
		}
		if r.Max != nil {
			db = db.Where(column+" <= ?", domain.DateOf(*r.Max))
		}
		return db
	}
}
