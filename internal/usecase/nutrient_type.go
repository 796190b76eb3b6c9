package usecase

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/nutritrack/backend/internal/domain"
	"github.com/nutritrack/backend/internal/pkg/logger"
)

// NutrientTypeService manages nutrient types and their one-level parent hierarchy.
type NutrientTypeService struct {
	db     *gorm.DB
	logger *logger.Logger
}

// NewNutrientTypeService creates a new nutrient type service
func NewNutrientTypeService(db *gorm.DB, log *logger.Logger) *NutrientTypeService {
	return &NutrientTypeService{db: db, logger: log.With("component", "nutrient_type")}
}

// WithTx returns a copy of the service bound to tx.
func (s *NutrientTypeService) WithTx(tx *gorm.DB) *NutrientTypeService {
	c := *s
	c.db = tx
	return &c
}

// Save creates or updates t. A parent nutrient that itself carries a type
// with a parent nutrient is rejected with ErrNutrientTypeHierarchy.
func (s *NutrientTypeService) Save(ctx context.Context, t *domain.NutrientType) error {
	db := s.db.WithContext(ctx)
	if t.ParentNutrientID != nil {
		var n int64
		err := db.Model(&domain.NutrientType{}).
			Joins("JOIN nutrient_type_memberships ON nutrient_type_memberships.nutrient_type_id = nutrient_types.id").
			Where("nutrient_type_memberships.nutrient_id = ?", *t.ParentNutrientID).
			Where("nutrient_types.parent_nutrient_id IS NOT NULL").
			Count(&n).Error
		if err != nil {
			return fmt.Errorf("check type hierarchy: %w", err)
		}
		if n > 0 {
			return fmt.Errorf("%w: parent nutrient %d of type %q already belongs to a type with a parent nutrient",
				domain.ErrNutrientTypeHierarchy, *t.ParentNutrientID, t.Name)
		}
	}

	if err := db.Save(t).Error; err != nil {
		return fmt.Errorf("save nutrient type %q: %w", t.Name, err)
	}
	return nil
}

// AssignType adds a type to a nutrient. A type with a parent nutrient cannot
// be assigned to a nutrient that is itself the parent of a type.
func (s *NutrientTypeService) AssignType(ctx context.Context, nutrientID, typeID uint) error {
	db := s.db.WithContext(ctx)
	nutrient, err := getNutrient(ctx, db, nutrientID)
	if err != nil {
		return err
	}
	var t domain.NutrientType
	if err := db.Take(&t, typeID).Error; err != nil {
		return notFound(err, "nutrient type", typeID)
	}
	if t.ParentNutrientID != nil {
		var n int64
		if err := db.Model(&domain.NutrientType{}).Where("parent_nutrient_id = ?", nutrientID).Count(&n).Error; err != nil {
			return fmt.Errorf("check type hierarchy: %w", err)
		}
		if n > 0 {
			return fmt.Errorf("%w: %s is the parent nutrient of a type and cannot take type %q",
				domain.ErrNutrientTypeHierarchy, nutrient.Name, t.Name)
		}
	}
	if err := db.Model(&nutrient).Association("Types").Append(&t); err != nil {
		return fmt.Errorf("assign type %q to %s: %w", t.Name, nutrient.Name, err)
	}
	return nil
}

// QualifyingNutrients returns the nutrients counted in calorie breakdowns:
// energy above zero, no components, and no type with a parent nutrient.
func (s *NutrientTypeService) QualifyingNutrients(ctx context.Context) (map[uint]domain.Nutrient, error) {
	return qualifyingNutrients(ctx, s.db)
}

func qualifyingNutrients(ctx context.Context, db *gorm.DB) (map[uint]domain.Nutrient, error) {
	var nutrients []domain.Nutrient
	err := db.WithContext(ctx).
		Where("energy > 0").
		Where("id NOT IN (?)", db.Model(&domain.NutrientComponent{}).Select("target_id")).
		Where("id NOT IN (?)", parentedNutrientIDs(db)).
		Find(&nutrients).Error
	if err != nil {
		return nil, fmt.Errorf("load qualifying nutrients: %w", err)
	}
	out := make(map[uint]domain.Nutrient, len(nutrients))
	for _, n := range nutrients {
		out[n.ID] = n
	}
	return out, nil
}
