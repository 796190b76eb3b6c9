package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/nutritrack/backend/internal/domain"
	"github.com/nutritrack/backend/internal/pkg/logger"
)

// currentWeightWindow is how far back from the latest measurement
// measurements count toward the current weight.
const currentWeightWindow = 7 * 24 * time.Hour

// SaveProfileOptions controls the side effects of ProfileService.Save.
type SaveProfileOptions struct {
	// AddMeasurement records the profile's weight as a measurement for today.
	// New profiles always get one.
	AddMeasurement bool
	// RecalculateWeight replaces the weight with the current weight derived
	// from measurements, if there are any.
	RecalculateWeight bool
}

// ProfileService stores profiles and keeps their energy requirement current.
type ProfileService struct {
	db     *gorm.DB
	logger *logger.Logger
	now    func() time.Time
}

// NewProfileService creates a new profile service
func NewProfileService(db *gorm.DB, log *logger.Logger) *ProfileService {
	return &ProfileService{db: db, logger: log.With("component", "profile"), now: time.Now}
}

func (s *ProfileService) today() datatypes.Date {
	y, m, d := s.now().Date()
	return domain.NewDate(y, m, d)
}

// Get returns a profile by id.
func (s *ProfileService) Get(ctx context.Context, id uint) (*domain.Profile, error) {
	var p domain.Profile
	if err := s.db.WithContext(ctx).Take(&p, id).Error; err != nil {
		return nil, notFound(err, "profile", id)
	}
	return &p, nil
}

// Save recomputes the profile's energy requirement and stores it.
func (s *ProfileService) Save(ctx context.Context, p *domain.Profile, opts SaveProfileOptions) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.save(ctx, tx, p, opts)
	})
}

func (s *ProfileService) save(ctx context.Context, tx *gorm.DB, p *domain.Profile, opts SaveProfileOptions) error {
	adding := p.ID == 0
	if !adding {
		if opts.AddMeasurement {
			if err := s.addMeasurement(tx, p.ID, p.Weight, s.today()); err != nil {
				return err
			}
		}
		if opts.RecalculateWeight {
			w, err := currentWeight(ctx, tx, p.ID)
			if err != nil {
				return err
			}
			if w != nil {
				p.Weight = *w
			}
		}
	}

	eer, err := domain.ProfileEnergy(*p)
	if err != nil {
		return err
	}
	p.EnergyRequirement = eer
	if err := tx.Save(p).Error; err != nil {
		return fmt.Errorf("save profile: %w", err)
	}

	if adding {
		if err := s.addMeasurement(tx, p.ID, p.Weight, s.today()); err != nil {
			return err
		}
	}
	s.logger.Debug("saved profile", "profile_id", p.ID, "energy_requirement", eer)
	return nil
}

func (s *ProfileService) addMeasurement(tx *gorm.DB, profileID uint, value float64, date datatypes.Date) error {
	wm := domain.WeightMeasurement{ProfileID: profileID, Value: value, Date: date}
	if err := tx.Create(&wm).Error; err != nil {
		return fmt.Errorf("create weight measurement: %w", err)
	}
	return nil
}

// CurrentWeight returns the mean of the measurements taken within a week of
// the latest one, or nil when the profile has no measurements.
func (s *ProfileService) CurrentWeight(ctx context.Context, profileID uint) (*float64, error) {
	return currentWeight(ctx, s.db, profileID)
}

func currentWeight(ctx context.Context, db *gorm.DB, profileID uint) (*float64, error) {
	var measurements []domain.WeightMeasurement
	if err := db.WithContext(ctx).Where("profile_id = ?", profileID).Find(&measurements).Error; err != nil {
		return nil, fmt.Errorf("load weight measurements of profile %d: %w", profileID, err)
	}
	if len(measurements) == 0 {
		return nil, nil
	}

	latest := time.Time(measurements[0].Date)
	for _, wm := range measurements[1:] {
		if d := time.Time(wm.Date); d.After(latest) {
			latest = d
		}
	}
	from := latest.Add(-currentWeightWindow)

	var sum float64
	var n int
	for _, wm := range measurements {
		if !time.Time(wm.Date).Before(from) {
			sum += wm.Value
			n++
		}
	}
	avg := sum / float64(n)
	return &avg, nil
}

// AddWeightMeasurement records a weight and updates the profile's weight from
// its measurements.
func (s *ProfileService) AddWeightMeasurement(ctx context.Context, profileID uint, value float64, date datatypes.Date) (*domain.WeightMeasurement, error) {
	if value <= 0 {
		return nil, fmt.Errorf("%w: weight must be positive", domain.ErrInvalidRequest)
	}
	wm := domain.WeightMeasurement{ProfileID: profileID, Value: value, Date: date}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p domain.Profile
		if err := tx.Take(&p, profileID).Error; err != nil {
			return notFound(err, "profile", profileID)
		}
		if err := tx.Create(&wm).Error; err != nil {
			return fmt.Errorf("create weight measurement: %w", err)
		}
		return s.save(ctx, tx, &p, SaveProfileOptions{RecalculateWeight: true})
	})
	if err != nil {
		return nil, err
	}
	return &wm, nil
}

// DeleteWeightMeasurement removes a measurement and updates the profile's
// weight from the remaining ones.
func (s *ProfileService) DeleteWeightMeasurement(ctx context.Context, measurementID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var wm domain.WeightMeasurement
		if err := tx.Take(&wm, measurementID).Error; err != nil {
			return notFound(err, "weight measurement", measurementID)
		}
		if err := tx.Delete(&wm).Error; err != nil {
			return fmt.Errorf("delete weight measurement: %w", err)
		}

		var p domain.Profile
		err := tx.Take(&p, wm.ProfileID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("load profile %d: %w", wm.ProfileID, err)
		}
		return s.save(ctx, tx, &p, SaveProfileOptions{RecalculateWeight: true})
	})
}

// EnergyProgress returns kcal intake as a percentage of the profile's energy
// requirement, capped at 100.
func (s *ProfileService) EnergyProgress(p domain.Profile, intake float64) int {
	if p.EnergyRequirement <= 0 {
		return 0
	}
	return int(math.Min(math.RoundToEven(100*intake/float64(p.EnergyRequirement)), 100))
}
