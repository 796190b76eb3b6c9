package usecase

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/nutritrack/backend/internal/domain"
	"github.com/nutritrack/backend/internal/pkg/logger"
)

// LoadResult counts the records a reference data load created.
type LoadResult struct {
	Nutrients       int `json:"nutrients"`
	Recommendations int `json:"recommendations"`
	Types           int `json:"types"`
	Components      int `json:"components"`
	Compounds       int `json:"compounds"`
}

// ReferenceDataService loads nutrient reference data. Records that already
// exist are left untouched, so loading the same data twice is a no-op.
type ReferenceDataService struct {
	db        *gorm.DB
	types     *NutrientTypeService
	compounds *CompoundService
	logger    *logger.Logger
}

// NewReferenceDataService creates a new reference data loader
func NewReferenceDataService(db *gorm.DB, types *NutrientTypeService, compounds *CompoundService, log *logger.Logger) *ReferenceDataService {
	return &ReferenceDataService{
		db:        db,
		types:     types,
		compounds: compounds,
		logger:    log.With("component", "reference_data"),
	}
}

// Load creates the nutrients, recommendations, types and components in data,
// then recomputes compound amounts.
func (s *ReferenceDataService) Load(ctx context.Context, data *domain.ReferenceData) (*LoadResult, error) {
	if err := data.Validate(); err != nil {
		return nil, err
	}

	var result LoadResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		nutrients, err := s.createNutrients(tx, data, &result)
		if err != nil {
			return err
		}
		if err := s.createRecommendations(tx, data, nutrients, &result); err != nil {
			return err
		}
		if err := s.createTypes(ctx, tx, data, nutrients, &result); err != nil {
			return err
		}
		if err := s.createComponents(tx, data, nutrients, &result); err != nil {
			return err
		}
		result.Compounds, err = s.compounds.WithTx(tx).RecomputeAll(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("loaded nutrient reference data",
		"nutrients", result.Nutrients, "recommendations", result.Recommendations,
		"types", result.Types, "components", result.Components)
	return &result, nil
}

func (s *ReferenceDataService) createNutrients(tx *gorm.DB, data *domain.ReferenceData, result *LoadResult) (map[string]domain.Nutrient, error) {
	if len(data.Nutrients) == 0 {
		return map[string]domain.Nutrient{}, nil
	}
	rows := make([]domain.Nutrient, 0, len(data.Nutrients))
	names := make([]string, 0, len(data.Nutrients))
	for _, n := range data.Nutrients {
		rows = append(rows, domain.Nutrient{Name: n.Name, Unit: n.Unit, Energy: n.Energy})
		names = append(names, n.Name)
	}
	res := tx.Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(&rows, maxInsertRows)
	if res.Error != nil {
		return nil, fmt.Errorf("create nutrients: %w", res.Error)
	}
	result.Nutrients = int(res.RowsAffected)

	var stored []domain.Nutrient
	if err := tx.Where("name IN ?", names).Find(&stored).Error; err != nil {
		return nil, fmt.Errorf("load nutrients: %w", err)
	}
	out := make(map[string]domain.Nutrient, len(stored))
	for _, n := range stored {
		out[n.Name] = n
	}
	return out, nil
}

func (s *ReferenceDataService) createRecommendations(tx *gorm.DB, data *domain.ReferenceData, nutrients map[string]domain.Nutrient, result *LoadResult) error {
	var rows []domain.IntakeRecommendation
	for _, n := range data.Nutrients {
		nutrient, ok := nutrients[n.Name]
		if !ok {
			continue
		}
		for _, r := range n.Recommendations {
			rows = append(rows, domain.IntakeRecommendation{
				NutrientID: nutrient.ID,
				DRIType:    r.DRIType,
				Sex:        r.Sex,
				AgeMin:     r.AgeMin,
				AgeMax:     r.AgeMax,
				AmountMin:  r.AmountMin,
				AmountMax:  r.AmountMax,
			})
		}
	}
	if len(rows) == 0 {
		return nil
	}
	res := tx.Omit(clause.Associations).
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(&rows, maxInsertRows)
	if res.Error != nil {
		return fmt.Errorf("create recommendations: %w", res.Error)
	}
	result.Recommendations = int(res.RowsAffected)
	return nil
}

func (s *ReferenceDataService) createTypes(ctx context.Context, tx *gorm.DB, data *domain.ReferenceData, nutrients map[string]domain.Nutrient, result *LoadResult) error {
	types := s.types.WithTx(tx)
	declared := make(map[string]domain.ReferenceType, len(data.Types))
	for _, t := range data.Types {
		declared[t.Name] = t
	}

	byName := make(map[string]domain.NutrientType)
	for _, name := range data.TypeNames() {
		var existing domain.NutrientType
		res := tx.Where("name = ?", name).Limit(1).Find(&existing)
		if res.Error != nil {
			return fmt.Errorf("load nutrient type %q: %w", name, res.Error)
		}
		if res.RowsAffected > 0 {
			byName[name] = existing
			continue
		}

		t := domain.NutrientType{Name: name}
		if info, ok := declared[name]; ok {
			t.DisplayedName = info.DisplayedName
			if info.ParentNutrient != "" {
				if parent, ok := nutrients[info.ParentNutrient]; ok {
					t.ParentNutrientID = &parent.ID
				} else {
					s.logger.Warn("parent nutrient not found, saving type without parent",
						"type", name, "parent_nutrient", info.ParentNutrient)
				}
			}
		}
		if err := types.Save(ctx, &t); err != nil {
			return err
		}
		byName[name] = t
		result.Types++
	}

	for _, n := range data.Nutrients {
		nutrient, ok := nutrients[n.Name]
		if !ok {
			continue
		}
		for _, name := range n.Types {
			if err := types.AssignType(ctx, nutrient.ID, byName[name].ID); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *ReferenceDataService) createComponents(tx *gorm.DB, data *domain.ReferenceData, nutrients map[string]domain.Nutrient, result *LoadResult) error {
	var rows []domain.NutrientComponent
	for _, n := range data.Nutrients {
		target, ok := nutrients[n.Name]
		if !ok {
			continue
		}
		for _, name := range n.Components {
			component, ok := nutrients[name]
			if !ok {
				s.logger.Warn("component nutrient not found, skipping", "nutrient", n.Name, "component", name)
				continue
			}
			if component.ID == target.ID {
				return fmt.Errorf("nutrient %q: %w", n.Name, domain.ErrSelfComponent)
			}
			rows = append(rows, domain.NutrientComponent{TargetID: target.ID, ComponentID: component.ID})
		}
	}
	if len(rows) == 0 {
		return nil
	}
	res := tx.Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(&rows, maxInsertRows)
	if res.Error != nil {
		return fmt.Errorf("create nutrient components: %w", res.Error)
	}
	result.Components = int(res.RowsAffected)
	return nil
}
