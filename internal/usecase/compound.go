package usecase

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/nutritrack/backend/internal/domain"
	"github.com/nutritrack/backend/internal/pkg/logger"
)

// RecomputeOptions controls how a compound's amounts are written.
type RecomputeOptions struct {
	// Commit persists the recomputed rows. Without it rows are only returned.
	Commit bool
	// ClearOld removes rows of ingredients that no longer have any component.
	ClearOld bool
}

// CompoundService keeps compound nutrient amounts and energies equal to the
// converted sums of their components.
type CompoundService struct {
	db     *gorm.DB
	logger *logger.Logger
}

// NewCompoundService creates a new compound propagator
func NewCompoundService(db *gorm.DB, log *logger.Logger) *CompoundService {
	return &CompoundService{db: db, logger: log.With("component", "compound")}
}

// WithTx returns a copy of the service bound to tx.
func (s *CompoundService) WithTx(tx *gorm.DB) *CompoundService {
	c := *s
	c.db = tx
	return &c
}

// Components returns the component nutrients of a compound.
func (s *CompoundService) Components(ctx context.Context, compoundID uint) ([]domain.Nutrient, error) {
	var comps []domain.Nutrient
	err := s.db.WithContext(ctx).
		Where("id IN (?)", componentIDs(s.db, compoundID)).
		Order("id").
		Find(&comps).Error
	if err != nil {
		return nil, fmt.Errorf("load components of %d: %w", compoundID, err)
	}
	return comps, nil
}

// CompoundsOf returns the compounds that nutrientID is a component of.
func (s *CompoundService) CompoundsOf(ctx context.Context, nutrientID uint) ([]domain.Nutrient, error) {
	var compounds []domain.Nutrient
	err := s.db.WithContext(ctx).
		Where("id IN (?)", compoundIDs(s.db, nutrientID)).
		Order("id").
		Find(&compounds).Error
	if err != nil {
		return nil, fmt.Errorf("load compounds of %d: %w", nutrientID, err)
	}
	return compounds, nil
}

// Compounds returns every nutrient that has at least one component.
func (s *CompoundService) Compounds(ctx context.Context) ([]domain.Nutrient, error) {
	var compounds []domain.Nutrient
	err := s.db.WithContext(ctx).
		Where("id IN (?)", s.db.Model(&domain.NutrientComponent{}).Select("target_id")).
		Order("id").
		Find(&compounds).Error
	if err != nil {
		return nil, fmt.Errorf("load compounds: %w", err)
	}
	return compounds, nil
}

// factors returns, per component id, the conversion factor from the
// component's unit to `to`. Components that would convert between energy and
// mass are left out with a warning.
func (s *CompoundService) factors(compound domain.Nutrient, comps []domain.Nutrient, toCompound bool) (map[uint]float64, error) {
	out := make(map[uint]float64, len(comps))
	for _, c := range comps {
		from, to := c.Unit, compound.Unit
		if !toCompound {
			from, to = compound.Unit, c.Unit
		}
		f, err := domain.ConversionFactor(from, to, compound.Name)
		if err != nil {
			if domain.IsEnergyMismatch(c.Unit, compound.Unit) {
				s.logger.Warn("skipping component with incompatible energy unit",
					"compound", compound.Name, "component", c.Name,
					"component_unit", c.Unit, "compound_unit", compound.Unit)
				continue
			}
			return nil, fmt.Errorf("convert %s to %s: %w", c.Name, compound.Name, err)
		}
		out[c.ID] = f
	}
	return out, nil
}

// Recompute sets the compound's amount for every ingredient to the converted
// sum of its components' amounts and returns the affected rows.
func (s *CompoundService) Recompute(ctx context.Context, compound domain.Nutrient, opts RecomputeOptions) ([]domain.IngredientNutrient, error) {
	comps, err := s.Components(ctx, compound.ID)
	if err != nil {
		return nil, err
	}
	factors, err := s.factors(compound, comps, true)
	if err != nil {
		return nil, err
	}

	ids := make([]uint, 0, len(factors))
	for id := range factors {
		ids = append(ids, id)
	}

	var (
		totals = make(map[uint]float64)
		order  []uint
	)
	if len(ids) > 0 {
		var rows []domain.IngredientNutrient
		err := s.db.WithContext(ctx).
			Where("nutrient_id IN ?", ids).
			Order("ingredient_id").
			Find(&rows).Error
		if err != nil {
			return nil, fmt.Errorf("load component amounts of %s: %w", compound.Name, err)
		}
		for _, r := range rows {
			if _, ok := totals[r.IngredientID]; !ok {
				order = append(order, r.IngredientID)
			}
			totals[r.IngredientID] += r.Amount * factors[r.NutrientID]
		}
	}

	result := make([]domain.IngredientNutrient, 0, len(order))
	for _, ingredientID := range order {
		result = append(result, domain.IngredientNutrient{
			IngredientID: ingredientID,
			NutrientID:   compound.ID,
			Amount:       totals[ingredientID],
		})
	}

	if !opts.Commit {
		return result, nil
	}

	if err := upsertAmounts(s.db.WithContext(ctx), result); err != nil {
		return nil, err
	}

	if opts.ClearOld {
		q := s.db.WithContext(ctx).Where("nutrient_id = ?", compound.ID)
		if len(ids) > 0 {
			contributing := s.db.Model(&domain.IngredientNutrient{}).
				Select("ingredient_id").
				Where("nutrient_id IN ?", ids)
			q = q.Where("ingredient_id NOT IN (?)", contributing)
		}
		if err := q.Delete(&domain.IngredientNutrient{}).Error; err != nil {
			return nil, fmt.Errorf("clear stale amounts of %s: %w", compound.Name, err)
		}
	}

	s.logger.Debug("recomputed compound", "compound", compound.Name, "ingredients", len(result))
	return result, nil
}

// RecomputeAll recomputes every compound nutrient and returns how many there were.
func (s *CompoundService) RecomputeAll(ctx context.Context) (int, error) {
	compounds, err := s.Compounds(ctx)
	if err != nil {
		return 0, err
	}
	for _, c := range compounds {
		if _, err := s.Recompute(ctx, c, RecomputeOptions{Commit: true}); err != nil {
			return 0, err
		}
	}
	return len(compounds), nil
}

// RecomputeEnergy sets a compound's energy to the mean of its components'
// energies, each converted to kcal per unit of the compound.
func (s *CompoundService) RecomputeEnergy(ctx context.Context, compound domain.Nutrient) (float64, error) {
	comps, err := s.Components(ctx, compound.ID)
	if err != nil {
		return 0, err
	}
	factors, err := s.factors(compound, comps, false)
	if err != nil {
		return 0, err
	}

	var energy float64
	if len(factors) > 0 {
		var sum float64
		for _, c := range comps {
			if f, ok := factors[c.ID]; ok {
				sum += c.Energy * f
			}
		}
		energy = sum / float64(len(factors))
	}

	err = s.db.WithContext(ctx).
		Model(&domain.Nutrient{}).
		Where("id = ?", compound.ID).
		Update("energy", energy).Error
	if err != nil {
		return 0, fmt.Errorf("update energy of %s: %w", compound.Name, err)
	}
	return energy, nil
}
