package usecase

import (
	"context"
	"fmt"
	"math"
	"sort"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/nutritrack/backend/internal/domain"
	"github.com/nutritrack/backend/internal/pkg/logger"
)

// AggregationService computes nutrient and calorie totals of ingredients,
// recipes, meals and profiles. It only reads and is safe for concurrent use.
type AggregationService struct {
	db              *gorm.DB
	recommendations *RecommendationService
	logger          *logger.Logger
}

// NewAggregationService creates a new aggregation service
func NewAggregationService(db *gorm.DB, recommendations *RecommendationService, log *logger.Logger) *AggregationService {
	return &AggregationService{
		db:              db,
		recommendations: recommendations,
		logger:          log.With("component", "aggregation"),
	}
}

// ProfileSummary is a profile's intake history over a date range.
type ProfileSummary struct {
	AverageIntakes domain.Intakes                `json:"averageIntakes"`
	CaloriesByDate map[string]map[string]float64 `json:"caloriesByDate"`
	WeightByDate   map[string]float64            `json:"weightByDate"`
}

// nutrientTable holds per-100 g nutrient amounts by ingredient id.
type nutrientTable map[uint]domain.Intakes

func loadNutrientTable(ctx context.Context, db *gorm.DB, ingredientIDs []uint) (nutrientTable, error) {
	table := make(nutrientTable, len(ingredientIDs))
	if len(ingredientIDs) == 0 {
		return table, nil
	}
	var rows []domain.IngredientNutrient
	if err := db.WithContext(ctx).Where("ingredient_id IN ?", ingredientIDs).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load ingredient nutrients: %w", err)
	}
	for _, r := range rows {
		if table[r.IngredientID] == nil {
			table[r.IngredientID] = make(domain.Intakes)
		}
		table[r.IngredientID][r.NutrientID] = r.Amount
	}
	return table, nil
}

// density returns the amount of each nutrient in one gram of the recipe. A
// recipe without weight has no density.
func (t nutrientTable) density(r domain.Recipe) domain.Intakes {
	out := make(domain.Intakes)
	weight := r.Weight()
	if weight == 0 {
		return out
	}
	for _, ri := range r.Ingredients {
		out.Add(t[ri.IngredientID].Scale(ri.Amount / 100 / weight))
	}
	return out
}

// mealData is everything needed to compute the intakes of a set of meals.
type mealData struct {
	recipes map[uint]domain.Recipe
	table   nutrientTable
}

func loadMealData(ctx context.Context, db *gorm.DB, meals []domain.Meal) (*mealData, error) {
	var recipeIDs []uint
	ingredientIDs := make(map[uint]bool)
	for _, m := range meals {
		for _, mi := range m.Ingredients {
			ingredientIDs[mi.IngredientID] = true
		}
		for _, mr := range m.Recipes {
			recipeIDs = append(recipeIDs, mr.RecipeID)
		}
	}

	data := &mealData{recipes: make(map[uint]domain.Recipe)}
	if len(recipeIDs) > 0 {
		var recipes []domain.Recipe
		if err := db.WithContext(ctx).Preload("Ingredients").Where("id IN ?", recipeIDs).Find(&recipes).Error; err != nil {
			return nil, fmt.Errorf("load recipes: %w", err)
		}
		for _, r := range recipes {
			data.recipes[r.ID] = r
			for _, ri := range r.Ingredients {
				ingredientIDs[ri.IngredientID] = true
			}
		}
	}

	ids := make([]uint, 0, len(ingredientIDs))
	for id := range ingredientIDs {
		ids = append(ids, id)
	}
	table, err := loadNutrientTable(ctx, db, ids)
	if err != nil {
		return nil, err
	}
	data.table = table
	return data, nil
}

func (d *mealData) ingredientIntakes(m domain.Meal) domain.Intakes {
	out := make(domain.Intakes)
	for _, mi := range m.Ingredients {
		out.Add(d.table[mi.IngredientID].Scale(mi.Amount / 100))
	}
	return out
}

func (d *mealData) recipeIntakes(m domain.Meal) domain.Intakes {
	out := make(domain.Intakes)
	for _, mr := range m.Recipes {
		out.Add(d.table.density(d.recipes[mr.RecipeID]).Scale(mr.Amount))
	}
	return out
}

func (d *mealData) intakes(m domain.Meal) domain.Intakes {
	out := d.ingredientIntakes(m)
	out.Add(d.recipeIntakes(m))
	return out
}

// profileMeals returns the profile's meals in r, ordered by date.
func profileMeals(ctx context.Context, db *gorm.DB, profileID uint, r domain.DateRange) ([]domain.Meal, error) {
	var meals []domain.Meal
	err := db.WithContext(ctx).
		Preload("Ingredients").
		Preload("Recipes").
		Where("owner_id = ?", profileID).
		Scopes(withinDates("meals.date", r)).
		Order("date").
		Find(&meals).Error
	if err != nil {
		return nil, fmt.Errorf("load meals of profile %d: %w", profileID, err)
	}
	return meals, nil
}

// calories converts intakes of qualifying nutrients to kcal by nutrient name.
func calories(intakes domain.Intakes, qualifying map[uint]domain.Nutrient) map[string]float64 {
	out := make(map[string]float64)
	for id, amount := range intakes {
		if n, ok := qualifying[id]; ok {
			out[n.Name] += amount * n.Energy
		}
	}
	return out
}

// CalorieRatio returns each nutrient's percentage of the total calories,
// rounded to one decimal and ordered from largest to smallest. When the total
// is zero the calories are returned unchanged.
func CalorieRatio(cal map[string]float64) []domain.CalorieShare {
	var total float64
	for _, v := range cal {
		total += v
	}

	out := make([]domain.CalorieShare, 0, len(cal))
	for name, v := range cal {
		if total != 0 {
			v = math.Round(v/total*1000) / 10
		}
		out = append(out, domain.CalorieShare{Nutrient: name, Percent: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Percent != out[j].Percent {
			return out[i].Percent > out[j].Percent
		}
		return out[i].Nutrient < out[j].Nutrient
	})
	return out
}

// IngredientNutritionalValue returns the ingredient's nutrient amounts per 100 g.
func (s *AggregationService) IngredientNutritionalValue(ctx context.Context, ingredientID uint) (domain.Intakes, error) {
	var ing domain.Ingredient
	if err := s.db.WithContext(ctx).Take(&ing, ingredientID).Error; err != nil {
		return nil, notFound(err, "ingredient", ingredientID)
	}
	table, err := loadNutrientTable(ctx, s.db, []uint{ingredientID})
	if err != nil {
		return nil, err
	}
	if table[ingredientID] == nil {
		return domain.Intakes{}, nil
	}
	return table[ingredientID], nil
}

// IngredientCalories returns kcal per 100 g of the ingredient by nutrient.
func (s *AggregationService) IngredientCalories(ctx context.Context, ingredientID uint) (map[string]float64, error) {
	values, err := s.IngredientNutritionalValue(ctx, ingredientID)
	if err != nil {
		return nil, err
	}
	qualifying, err := qualifyingNutrients(ctx, s.db)
	if err != nil {
		return nil, err
	}
	return calories(values, qualifying), nil
}

func (s *AggregationService) recipe(ctx context.Context, recipeID uint) (domain.Recipe, nutrientTable, error) {
	var r domain.Recipe
	if err := s.db.WithContext(ctx).Preload("Ingredients").Take(&r, recipeID).Error; err != nil {
		return r, nil, notFound(err, "recipe", recipeID)
	}
	ids := make([]uint, 0, len(r.Ingredients))
	for _, ri := range r.Ingredients {
		ids = append(ids, ri.IngredientID)
	}
	table, err := loadNutrientTable(ctx, s.db, ids)
	return r, table, err
}

// RecipeWeight returns the final weight of the recipe in grams.
func (s *AggregationService) RecipeWeight(ctx context.Context, recipeID uint) (float64, error) {
	r, _, err := s.recipe(ctx, recipeID)
	if err != nil {
		return 0, err
	}
	return r.Weight(), nil
}

// RecipeNutritionalValue returns the nutrient amounts in one gram of the recipe.
func (s *AggregationService) RecipeNutritionalValue(ctx context.Context, recipeID uint) (domain.Intakes, error) {
	r, table, err := s.recipe(ctx, recipeID)
	if err != nil {
		return nil, err
	}
	return table.density(r), nil
}

// RecipeIntakes returns the nutrient amounts in 100 g of the recipe.
func (s *AggregationService) RecipeIntakes(ctx context.Context, recipeID uint) (domain.Intakes, error) {
	density, err := s.RecipeNutritionalValue(ctx, recipeID)
	if err != nil {
		return nil, err
	}
	return density.Scale(100), nil
}

// RecipeCalories returns kcal per 100 g of the recipe by nutrient.
func (s *AggregationService) RecipeCalories(ctx context.Context, recipeID uint) (map[string]float64, error) {
	intakes, err := s.RecipeIntakes(ctx, recipeID)
	if err != nil {
		return nil, err
	}
	qualifying, err := qualifyingNutrients(ctx, s.db)
	if err != nil {
		return nil, err
	}
	return calories(intakes, qualifying), nil
}

func (s *AggregationService) meal(ctx context.Context, mealID uint) (domain.Meal, *mealData, error) {
	var m domain.Meal
	err := s.db.WithContext(ctx).Preload("Ingredients").Preload("Recipes").Take(&m, mealID).Error
	if err != nil {
		return m, nil, notFound(err, "meal", mealID)
	}
	data, err := loadMealData(ctx, s.db, []domain.Meal{m})
	return m, data, err
}

// MealIngredientIntakes returns the nutrients eaten through the meal's ingredients.
func (s *AggregationService) MealIngredientIntakes(ctx context.Context, mealID uint) (domain.Intakes, error) {
	m, data, err := s.meal(ctx, mealID)
	if err != nil {
		return nil, err
	}
	return data.ingredientIntakes(m), nil
}

// MealRecipeIntakes returns the nutrients eaten through the meal's recipes.
func (s *AggregationService) MealRecipeIntakes(ctx context.Context, mealID uint) (domain.Intakes, error) {
	m, data, err := s.meal(ctx, mealID)
	if err != nil {
		return nil, err
	}
	return data.recipeIntakes(m), nil
}

// MealIntakes returns all nutrients eaten in the meal.
func (s *AggregationService) MealIntakes(ctx context.Context, mealID uint) (domain.Intakes, error) {
	m, data, err := s.meal(ctx, mealID)
	if err != nil {
		return nil, err
	}
	return data.intakes(m), nil
}

// MealCalories returns the kcal eaten in the meal by nutrient.
func (s *AggregationService) MealCalories(ctx context.Context, mealID uint) (map[string]float64, error) {
	intakes, err := s.MealIntakes(ctx, mealID)
	if err != nil {
		return nil, err
	}
	qualifying, err := qualifyingNutrients(ctx, s.db)
	if err != nil {
		return nil, err
	}
	return calories(intakes, qualifying), nil
}

// dailyIntakes returns the profile's intakes by date key.
func (s *AggregationService) dailyIntakes(ctx context.Context, profileID uint, r domain.DateRange) (map[string]domain.Intakes, error) {
	meals, err := profileMeals(ctx, s.db, profileID, r)
	if err != nil {
		return nil, err
	}
	data, err := loadMealData(ctx, s.db, meals)
	if err != nil {
		return nil, err
	}
	out := make(map[string]domain.Intakes, len(meals))
	for _, m := range meals {
		key := domain.DateKey(m.Date)
		if out[key] == nil {
			out[key] = make(domain.Intakes)
		}
		out[key].Add(data.intakes(m))
	}
	return out, nil
}

// NutrientIntakesByDate returns the profile's intake of one nutrient on each
// date it was eaten.
func (s *AggregationService) NutrientIntakesByDate(ctx context.Context, profileID, nutrientID uint, r domain.DateRange) (map[string]float64, error) {
	daily, err := s.dailyIntakes(ctx, profileID, r)
	if err != nil {
		return nil, err
	}
	out := make(map[string]float64)
	for date, intakes := range daily {
		if v, ok := intakes[nutrientID]; ok {
			out[date] = v
		}
	}
	return out, nil
}

// CaloriesByDate returns the profile's kcal by nutrient on each date.
func (s *AggregationService) CaloriesByDate(ctx context.Context, profileID uint, r domain.DateRange) (map[string]map[string]float64, error) {
	daily, err := s.dailyIntakes(ctx, profileID, r)
	if err != nil {
		return nil, err
	}
	qualifying, err := qualifyingNutrients(ctx, s.db)
	if err != nil {
		return nil, err
	}
	out := make(map[string]map[string]float64)
	for date, intakes := range daily {
		if cal := calories(intakes, qualifying); len(cal) > 0 {
			out[date] = cal
		}
	}
	return out, nil
}

// AverageIntakes returns the profile's mean daily intake of each nutrient.
// Each nutrient is averaged over the dates on which it was eaten.
func (s *AggregationService) AverageIntakes(ctx context.Context, profileID uint, r domain.DateRange) (domain.Intakes, error) {
	daily, err := s.dailyIntakes(ctx, profileID, r)
	if err != nil {
		return nil, err
	}
	sums := make(domain.Intakes)
	days := make(map[uint]int)
	for _, intakes := range daily {
		for id, v := range intakes {
			sums[id] += v
			days[id]++
		}
	}
	for id := range sums {
		sums[id] /= float64(days[id])
	}
	return sums, nil
}

// WeightByDate returns the mean weight measurement of each date.
func (s *AggregationService) WeightByDate(ctx context.Context, profileID uint, r domain.DateRange) (map[string]float64, error) {
	var measurements []domain.WeightMeasurement
	err := s.db.WithContext(ctx).
		Where("profile_id = ?", profileID).
		Scopes(withinDates("weight_measurements.date", r)).
		Find(&measurements).Error
	if err != nil {
		return nil, fmt.Errorf("load weight measurements of profile %d: %w", profileID, err)
	}
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, wm := range measurements {
		key := domain.DateKey(wm.Date)
		sums[key] += wm.Value
		counts[key]++
	}
	for key := range sums {
		sums[key] /= float64(counts[key])
	}
	return sums, nil
}

// Malnutrition returns the relative deviation of the profile's average intakes
// from its recommendations, by nutrient id. Deficiencies are reported before
// excesses, and deviations below threshold are left out.
func (s *AggregationService) Malnutrition(ctx context.Context, p domain.Profile, r domain.DateRange, threshold *float64) (map[uint]float64, error) {
	intakes, err := s.AverageIntakes(ctx, p.ID, r)
	if err != nil {
		return nil, err
	}
	recs, err := s.recommendations.ForProfile(ctx, p)
	if err != nil {
		return nil, err
	}

	keep := func(magnitude float64) bool {
		return threshold == nil || magnitude >= *threshold
	}

	out := make(map[uint]float64)
	for _, rec := range recs {
		intake, ok := intakes[rec.NutrientID]
		if !ok {
			continue
		}

		if amountMin := s.recommendations.ProfileAmountMin(rec, p); amountMin != nil && *amountMin != 0 {
			if under := *amountMin - intake; under > 0 {
				if m := under / *amountMin; keep(m) {
					out[rec.NutrientID] = m
				}
				continue
			}
		}

		if amountMax := s.recommendations.ProfileAmountMax(rec, p); amountMax != nil && *amountMax != 0 {
			if over := intake - *amountMax; over > 0 {
				if m := over / *amountMax; keep(m) {
					out[rec.NutrientID] = m
				}
			}
		}
	}
	return out, nil
}

// ProfileSummary reads the profile's average intakes, calories by date and
// weight by date concurrently.
func (s *AggregationService) ProfileSummary(ctx context.Context, profileID uint, r domain.DateRange) (*ProfileSummary, error) {
	var summary ProfileSummary
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		v, err := s.AverageIntakes(gctx, profileID, r)
		summary.AverageIntakes = v
		return err
	})
	g.Go(func() error {
		v, err := s.CaloriesByDate(gctx, profileID, r)
		summary.CaloriesByDate = v
		return err
	})
	g.Go(func() error {
		v, err := s.WeightByDate(gctx, profileID, r)
		summary.WeightByDate = v
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	s.logger.Debug("built profile summary", "profile_id", profileID, "dates", len(summary.CaloriesByDate))
	return &summary, nil
}
