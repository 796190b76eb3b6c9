package usecase

import (
	"context"
	"fmt"
	"math"
	"time"

	"gorm.io/gorm"

	"github.com/nutritrack/backend/internal/domain"
	"github.com/nutritrack/backend/internal/pkg/logger"
)

// RecommendationService personalizes intake recommendations to profiles.
type RecommendationService struct {
	db     *gorm.DB
	logger *logger.Logger
}

// NewRecommendationService creates a new recommendation evaluator
func NewRecommendationService(db *gorm.DB, log *logger.Logger) *RecommendationService {
	return &RecommendationService{db: db, logger: log.With("component", "recommendation")}
}

// ForProfile returns the recommendations targeting the profile's age and sex,
// with their nutrients loaded.
func (s *RecommendationService) ForProfile(ctx context.Context, p domain.Profile) ([]domain.IntakeRecommendation, error) {
	var recs []domain.IntakeRecommendation
	err := s.db.WithContext(ctx).
		Preload("Nutrient").
		Where("(age_max >= ? OR age_max IS NULL) AND age_min <= ?", p.Age, p.Age).
		Where("sex IN ?", []domain.Sex{p.Sex, domain.SexBoth}).
		Order("id").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("load recommendations for profile %d: %w", p.ID, err)
	}
	return recs, nil
}

// ProfileAmountMin returns the recommendation's minimum adjusted to p.
func (s *RecommendationService) ProfileAmountMin(rec domain.IntakeRecommendation, p domain.Profile) *float64 {
	return s.profileAmount(rec, rec.AmountMin, p)
}

// ProfileAmountMax returns the recommendation's maximum adjusted to p.
func (s *RecommendationService) ProfileAmountMax(rec domain.IntakeRecommendation, p domain.Profile) *float64 {
	return s.profileAmount(rec, rec.AmountMax, p)
}

func (s *RecommendationService) profileAmount(rec domain.IntakeRecommendation, amount *float64, p domain.Profile) *float64 {
	v, ok := rec.ProfileAmount(amount, p)
	if !ok {
		s.logger.Warn("AMDR recommendation for a nutrient without energy, using 0",
			"recommendation_id", rec.ID, "nutrient", rec.Nutrient.Name)
	}
	return v
}

// Evaluate computes the displayed amount, progress and limit state of rec for
// a profile and an optional observed intake.
func (s *RecommendationService) Evaluate(rec domain.IntakeRecommendation, p *domain.Profile, intake *float64) (domain.Evaluation, error) {
	if p == nil {
		return domain.Evaluation{}, fmt.Errorf("evaluate recommendation %d: %w", rec.ID, domain.ErrProfileRequired)
	}

	amountMin := s.ProfileAmountMin(rec, *p)
	amountMax := s.ProfileAmountMax(rec, *p)

	e := domain.Evaluation{
		RecommendationID: rec.ID,
		NutrientID:       rec.NutrientID,
		Nutrient:         rec.Nutrient.Name,
		DRIType:          rec.DRIType,
		AmountMin:        amountMin,
		AmountMax:        amountMax,
		Intake:           intake,
	}

	target := amountMin
	if rec.DRIType == domain.DRIUL {
		target = amountMax
	}
	if rec.DRIType != domain.DRIALAP {
		e.DisplayedAmount = target
	}

	// A zero maximum means no limit, as for AMDR on a nutrient without energy.
	if amountMax != nil && *amountMax > 0 && intake != nil {
		e.OverLimit = *intake >= *amountMax
	}

	if target != nil && *target != 0 && intake != nil {
		ratio := math.RoundToEven(100 * *intake / *target)
		progress := int(math.Min(ratio, 100))
		e.Progress = &progress
	}
	return e, nil
}

// EvaluateForDate evaluates every recommendation applying to p against the
// profile's intakes on date. Intakes are nil when nothing was eaten that day.
func (s *RecommendationService) EvaluateForDate(ctx context.Context, p domain.Profile, date time.Time) ([]domain.Evaluation, error) {
	recs, err := s.ForProfile(ctx, p)
	if err != nil {
		return nil, err
	}

	meals, err := profileMeals(ctx, s.db, p.ID, domain.DateRange{Min: &date, Max: &date})
	if err != nil {
		return nil, err
	}
	var intakes domain.Intakes
	if len(meals) > 0 {
		data, err := loadMealData(ctx, s.db, meals)
		if err != nil {
			return nil, err
		}
		intakes = make(domain.Intakes)
		for _, m := range meals {
			intakes.Add(data.intakes(m))
		}
	}

	out := make([]domain.Evaluation, 0, len(recs))
	for _, rec := range recs {
		var intake *float64
		if intakes != nil {
			v := intakes[rec.NutrientID]
			intake = &v
		}
		e, err := s.Evaluate(rec, &p, intake)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}
