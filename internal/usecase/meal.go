package usecase

import (
	"context"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/nutritrack/backend/internal/domain"
	"github.com/nutritrack/backend/internal/pkg/logger"
)

// minMealAmount is the smallest amount in grams accepted in meals.
const minMealAmount = 0.1

// MealService records what profiles eat.
type MealService struct {
	db     *gorm.DB
	logger *logger.Logger
}

// NewMealService creates a new meal service
func NewMealService(db *gorm.DB, log *logger.Logger) *MealService {
	return &MealService{db: db, logger: log.With("component", "meal")}
}

// GetOrCreate returns the profile's meal on date, creating it if needed.
func (s *MealService) GetOrCreate(ctx context.Context, ownerID uint, date datatypes.Date) (*domain.Meal, error) {
	var meal domain.Meal
	err := s.db.WithContext(ctx).
		Where("owner_id = ? AND date = ?", ownerID, date).
		Attrs(domain.Meal{OwnerID: ownerID, Date: date}).
		FirstOrCreate(&meal).Error
	if err != nil {
		return nil, fmt.Errorf("get meal of profile %d on %s: %w", ownerID, domain.DateKey(date), err)
	}
	return &meal, nil
}

// AddIngredient adds grams of an ingredient to a meal.
func (s *MealService) AddIngredient(ctx context.Context, mealID, ingredientID uint, amount float64) (*domain.MealIngredient, error) {
	if amount < minMealAmount {
		return nil, fmt.Errorf("%w: amount must be at least %v g", domain.ErrInvalidRequest, minMealAmount)
	}
	mi := domain.MealIngredient{MealID: mealID, IngredientID: ingredientID, Amount: amount}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Take(&domain.Meal{}, mealID).Error; err != nil {
			return notFound(err, "meal", mealID)
		}
		if err := tx.Take(&domain.Ingredient{}, ingredientID).Error; err != nil {
			return notFound(err, "ingredient", ingredientID)
		}
		return tx.Create(&mi).Error
	})
	if err != nil {
		return nil, err
	}
	return &mi, nil
}

// AddRecipe adds grams of a recipe to a meal. The recipe must belong to the
// meal's owner.
func (s *MealService) AddRecipe(ctx context.Context, mealID, recipeID uint, amount float64) (*domain.MealRecipe, error) {
	if amount < minMealAmount {
		return nil, fmt.Errorf("%w: amount must be at least %v g", domain.ErrInvalidRequest, minMealAmount)
	}
	mr := domain.MealRecipe{MealID: mealID, RecipeID: recipeID, Amount: amount}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var meal domain.Meal
		if err := tx.Take(&meal, mealID).Error; err != nil {
			return notFound(err, "meal", mealID)
		}
		var recipe domain.Recipe
		if err := tx.Take(&recipe, recipeID).Error; err != nil {
			return notFound(err, "recipe", recipeID)
		}
		if meal.OwnerID != recipe.OwnerID {
			return fmt.Errorf("%w: meal %d, recipe %d", domain.ErrOwnerMismatch, mealID, recipeID)
		}
		return tx.Create(&mr).Error
	})
	if err != nil {
		return nil, err
	}
	return &mr, nil
}

// ClearEmptyMeals deletes meals without ingredients and recipes, except the
// meals in keep. It returns the number of deleted meals.
func (s *MealService) ClearEmptyMeals(ctx context.Context, keep ...uint) (int64, error) {
	q := s.db.WithContext(ctx).
		Where("id NOT IN (?)", s.db.Model(&domain.MealIngredient{}).Select("meal_id")).
		Where("id NOT IN (?)", s.db.Model(&domain.MealRecipe{}).Select("meal_id"))
	if len(keep) > 0 {
		q = q.Where("id NOT IN ?", keep)
	}

	res := q.Delete(&domain.Meal{})
	if res.Error != nil {
		return 0, fmt.Errorf("clear empty meals: %w", res.Error)
	}
	s.logger.Info("cleared empty meals", "deleted", res.RowsAffected, "kept", len(keep))
	return res.RowsAffected, nil
}
