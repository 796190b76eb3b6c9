package usecase

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/nutritrack/backend/internal/domain"
	"github.com/nutritrack/backend/internal/pkg/logger"
)

// NutrientService performs nutrient writes and propagates them to compound
// nutrients. Each write reads the current value, applies the change and
// recomputes dependents in one transaction. Writes to the same ingredient or
// nutrient must be serialized by the caller.
type NutrientService struct {
	db        *gorm.DB
	compounds *CompoundService
	logger    *logger.Logger
}

// NewNutrientService creates a new nutrient service
func NewNutrientService(db *gorm.DB, compounds *CompoundService, log *logger.Logger) *NutrientService {
	return &NutrientService{db: db, compounds: compounds, logger: log.With("component", "nutrient")}
}

func (s *NutrientService) transaction(ctx context.Context, fn func(tx *gorm.DB, compounds *CompoundService) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(tx, s.compounds.WithTx(tx))
	})
}

// recomputeCompoundsOf recomputes the amounts of every compound containing nutrientID.
func recomputeCompoundsOf(ctx context.Context, compounds *CompoundService, nutrientID uint, clearOld bool) error {
	targets, err := compounds.CompoundsOf(ctx, nutrientID)
	if err != nil {
		return err
	}
	for _, c := range targets {
		if _, err := compounds.Recompute(ctx, c, RecomputeOptions{Commit: true, ClearOld: clearOld}); err != nil {
			return err
		}
	}
	return nil
}

// SetIngredientNutrient stores the per-100g amount of a nutrient in an ingredient.
// Compounds containing the nutrient are recomputed when the amount changed.
func (s *NutrientService) SetIngredientNutrient(ctx context.Context, ingredientID, nutrientID uint, amount float64) error {
	return s.transaction(ctx, func(tx *gorm.DB, compounds *CompoundService) error {
		var current domain.IngredientNutrient
		err := tx.Where("ingredient_id = ? AND nutrient_id = ?", ingredientID, nutrientID).Take(&current).Error
		switch {
		case err == nil:
			if current.Amount == amount {
				return nil
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
		default:
			return fmt.Errorf("load ingredient nutrient: %w", err)
		}

		row := domain.IngredientNutrient{IngredientID: ingredientID, NutrientID: nutrientID, Amount: amount}
		if err := upsertAmounts(tx, []domain.IngredientNutrient{row}); err != nil {
			return err
		}
		return recomputeCompoundsOf(ctx, compounds, nutrientID, false)
	})
}

// DeleteIngredientNutrient removes a nutrient from an ingredient and clears
// its contribution from compounds.
func (s *NutrientService) DeleteIngredientNutrient(ctx context.Context, ingredientID, nutrientID uint) error {
	return s.transaction(ctx, func(tx *gorm.DB, compounds *CompoundService) error {
		res := tx.Where("ingredient_id = ? AND nutrient_id = ?", ingredientID, nutrientID).
			Delete(&domain.IngredientNutrient{})
		if res.Error != nil {
			return fmt.Errorf("delete ingredient nutrient: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: nutrient %d of ingredient %d", domain.ErrNotFound, nutrientID, ingredientID)
		}
		return recomputeCompoundsOf(ctx, compounds, nutrientID, true)
	})
}

// AddComponent makes componentID a component of the compound targetID.
func (s *NutrientService) AddComponent(ctx context.Context, targetID, componentID uint) error {
	if targetID == componentID {
		return fmt.Errorf("%w: nutrient %d", domain.ErrSelfComponent, targetID)
	}
	return s.transaction(ctx, func(tx *gorm.DB, compounds *CompoundService) error {
		target, err := getNutrient(ctx, tx, targetID)
		if err != nil {
			return err
		}
		if _, err := getNutrient(ctx, tx, componentID); err != nil {
			return err
		}

		var n int64
		err = tx.Model(&domain.NutrientComponent{}).
			Where("target_id = ? AND component_id = ?", targetID, componentID).
			Count(&n).Error
		if err != nil {
			return fmt.Errorf("check component: %w", err)
		}
		if n > 0 {
			return fmt.Errorf("%w: %d in %d", domain.ErrDuplicateComponent, componentID, targetID)
		}

		edge := domain.NutrientComponent{TargetID: targetID, ComponentID: componentID}
		if err := tx.Create(&edge).Error; err != nil {
			return fmt.Errorf("create component: %w", err)
		}

		if target.Energy, err = compounds.RecomputeEnergy(ctx, target); err != nil {
			return err
		}
		_, err = compounds.Recompute(ctx, target, RecomputeOptions{Commit: true})
		return err
	})
}

// RemoveComponent deletes a component edge. The target's energy drops to 0
// when it has no components left; its amounts are recomputed.
func (s *NutrientService) RemoveComponent(ctx context.Context, targetID, componentID uint) error {
	return s.transaction(ctx, func(tx *gorm.DB, compounds *CompoundService) error {
		target, err := getNutrient(ctx, tx, targetID)
		if err != nil {
			return err
		}

		res := tx.Where("target_id = ? AND component_id = ?", targetID, componentID).
			Delete(&domain.NutrientComponent{})
		if res.Error != nil {
			return fmt.Errorf("delete component: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: component %d of %d", domain.ErrNotFound, componentID, targetID)
		}

		// with no components left the energy becomes 0
		if target.Energy, err = compounds.RecomputeEnergy(ctx, target); err != nil {
			return err
		}
		_, err = compounds.Recompute(ctx, target, RecomputeOptions{Commit: true, ClearOld: true})
		return err
	})
}

// UpdateNutrientEnergy sets a nutrient's kcal per unit and refreshes the
// energy of compounds containing it.
func (s *NutrientService) UpdateNutrientEnergy(ctx context.Context, nutrientID uint, energy float64) error {
	if energy < 0 {
		return fmt.Errorf("%w: negative energy", domain.ErrInvalidRequest)
	}
	return s.transaction(ctx, func(tx *gorm.DB, compounds *CompoundService) error {
		if _, err := getNutrient(ctx, tx, nutrientID); err != nil {
			return err
		}
		err := tx.Model(&domain.Nutrient{}).Where("id = ?", nutrientID).Update("energy", energy).Error
		if err != nil {
			return fmt.Errorf("update energy: %w", err)
		}

		targets, err := compounds.CompoundsOf(ctx, nutrientID)
		if err != nil {
			return err
		}
		for _, c := range targets {
			if _, err := compounds.RecomputeEnergy(ctx, c); err != nil {
				return err
			}
		}
		return nil
	})
}

// UpdateNutrientUnit changes a nutrient's unit. With updateAmounts, stored
// ingredient amounts, recommendation amounts and energy are rescaled so they
// describe the same physical quantities in the new unit.
func (s *NutrientService) UpdateNutrientUnit(ctx context.Context, nutrientID uint, unit domain.Unit, updateAmounts bool) error {
	if !unit.Valid() {
		return &domain.UnrecognizedUnitError{Unit: unit}
	}
	return s.transaction(ctx, func(tx *gorm.DB, compounds *CompoundService) error {
		n, err := getNutrient(ctx, tx, nutrientID)
		if err != nil {
			return err
		}
		if n.Unit == unit {
			return nil
		}

		updates := map[string]interface{}{"unit": unit}
		if updateAmounts {
			f, err := domain.ConversionFactor(n.Unit, unit, n.Name)
			if err != nil {
				return fmt.Errorf("change unit of %s: %w", n.Name, err)
			}
			err = tx.Model(&domain.IngredientNutrient{}).
				Where("nutrient_id = ?", nutrientID).
				Update("amount", gorm.Expr("amount * ?", f)).Error
			if err != nil {
				return fmt.Errorf("rescale ingredient amounts: %w", err)
			}
			err = tx.Model(&domain.IntakeRecommendation{}).
				Where("nutrient_id = ?", nutrientID).
				UpdateColumns(map[string]interface{}{
					"amount_min": gorm.Expr("amount_min * ?", f),
					"amount_max": gorm.Expr("amount_max * ?", f),
				}).Error
			if err != nil {
				return fmt.Errorf("rescale recommendations: %w", err)
			}
			updates["energy"] = n.Energy / f
		}

		if err := tx.Model(&domain.Nutrient{}).Where("id = ?", nutrientID).Updates(updates).Error; err != nil {
			return fmt.Errorf("update unit: %w", err)
		}
		s.logger.Info("nutrient unit changed", "nutrient", n.Name, "from", n.Unit, "to", unit, "rescaled", updateAmounts)

		n.Unit = unit
		if e, ok := updates["energy"].(float64); ok {
			n.Energy = e
		}

		// the nutrient may itself be a compound
		comps, err := compounds.Components(ctx, n.ID)
		if err != nil {
			return err
		}
		if len(comps) > 0 {
			if _, err := compounds.RecomputeEnergy(ctx, n); err != nil {
				return err
			}
			if _, err := compounds.Recompute(ctx, n, RecomputeOptions{Commit: true}); err != nil {
				return err
			}
		}

		targets, err := compounds.CompoundsOf(ctx, nutrientID)
		if err != nil {
			return err
		}
		for _, c := range targets {
			if _, err := compounds.RecomputeEnergy(ctx, c); err != nil {
				return err
			}
			if _, err := compounds.Recompute(ctx, c, RecomputeOptions{Commit: true}); err != nil {
				return err
			}
		}
		return nil
	})
}
