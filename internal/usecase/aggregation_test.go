package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/nutritrack/backend/internal/domain"
	"github.com/nutritrack/backend/internal/pkg/logger"
)

type foodLog struct {
	db       *gorm.DB
	svc      *AggregationService
	profile  domain.Profile
	protein  domain.Nutrient
	fat      domain.Nutrient
	carbs    domain.Nutrient
	iron     domain.Nutrient
	sat      domain.Nutrient
	fattyAcs domain.Nutrient
	oats     domain.Ingredient
	milk     domain.Ingredient
	porridge domain.Recipe
	day1     domain.Meal
	day2     domain.Meal
}

// newFoodLog builds a profile eating oats and porridge on 2024-01-01, milk on
// 2024-01-02 and nothing on 2024-01-10.
func newFoodLog(t *testing.T) *foodLog {
	t.Helper()
	db := newTestDB(t)
	log := logger.Nop()
	f := &foodLog{
		db:       db,
		svc:      NewAggregationService(db, NewRecommendationService(db, log), log),
		protein:  createNutrient(t, db, "Protein", domain.UnitG, 4),
		fat:      createNutrient(t, db, "Lipid", domain.UnitG, 9),
		carbs:    createNutrient(t, db, "Carbohydrate", domain.UnitG, 4),
		iron:     createNutrient(t, db, "Iron", domain.UnitMG, 0),
		sat:      createNutrient(t, db, "Saturated fatty acids", domain.UnitG, 9),
		fattyAcs: createNutrient(t, db, "Fatty acids", domain.UnitG, 9),
	}
	addEdge(t, db, f.fattyAcs, f.sat)
	fatType := domain.NutrientType{Name: "fatty_acid", ParentNutrientID: &f.fat.ID}
	require.NoError(t, db.Create(&fatType).Error)
	require.NoError(t, db.Model(&f.sat).Association("Types").Append(&fatType))

	f.oats = createIngredient(t, db, 1, "Oats")
	f.milk = createIngredient(t, db, 2, "Milk")
	setAmount(t, db, f.oats.ID, f.protein.ID, 10)
	setAmount(t, db, f.oats.ID, f.fat.ID, 5)
	setAmount(t, db, f.oats.ID, f.carbs.ID, 50)
	setAmount(t, db, f.oats.ID, f.iron.ID, 4)
	setAmount(t, db, f.oats.ID, f.sat.ID, 1)
	setAmount(t, db, f.oats.ID, f.fattyAcs.ID, 1)
	setAmount(t, db, f.milk.ID, f.protein.ID, 4)
	setAmount(t, db, f.milk.ID, f.fat.ID, 2)
	setAmount(t, db, f.milk.ID, f.carbs.ID, 5)

	f.profile = domain.Profile{Age: 30, Height: 180, Weight: 80, Sex: domain.SexMale, ActivityLevel: domain.Sedentary, EnergyRequirement: 2500}
	require.NoError(t, db.Create(&f.profile).Error)

	f.porridge = domain.Recipe{
		OwnerID: f.profile.ID,
		Name:    "Porridge",
		Ingredients: []domain.RecipeIngredient{
			{IngredientID: f.oats.ID, Amount: 50},
			{IngredientID: f.milk.ID, Amount: 200},
		},
	}
	require.NoError(t, db.Create(&f.porridge).Error)

	f.day1 = domain.Meal{
		OwnerID:     f.profile.ID,
		Date:        domain.NewDate(2024, time.January, 1),
		Ingredients: []domain.MealIngredient{{IngredientID: f.oats.ID, Amount: 100}},
		Recipes:     []domain.MealRecipe{{RecipeID: f.porridge.ID, Amount: 125}},
	}
	f.day2 = domain.Meal{
		OwnerID:     f.profile.ID,
		Date:        domain.NewDate(2024, time.January, 2),
		Ingredients: []domain.MealIngredient{{IngredientID: f.milk.ID, Amount: 500}},
	}
	empty := domain.Meal{OwnerID: f.profile.ID, Date: domain.NewDate(2024, time.January, 10)}
	require.NoError(t, db.Create(&f.day1).Error)
	require.NoError(t, db.Create(&f.day2).Error)
	require.NoError(t, db.Create(&empty).Error)
	return f
}

func day(d int) *time.Time {
	t := time.Date(2024, time.January, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func assertIntakes(t *testing.T, want, got domain.Intakes) {
	t.Helper()
	require.Len(t, got, len(want))
	for id, v := range want {
		assert.InDelta(t, v, got[id], 1e-9, "nutrient %d", id)
	}
}

func assertCalories(t *testing.T, want, got map[string]float64) {
	t.Helper()
	require.Len(t, got, len(want))
	for name, v := range want {
		assert.InDelta(t, v, got[name], 1e-9, name)
	}
}

func TestAggregationService_Ingredient(t *testing.T) {
	ctx := context.Background()
	f := newFoodLog(t)

	values, err := f.svc.IngredientNutritionalValue(ctx, f.milk.ID)
	require.NoError(t, err)
	assertIntakes(t, domain.Intakes{f.protein.ID: 4, f.fat.ID: 2, f.carbs.ID: 5}, values)

	cal, err := f.svc.IngredientCalories(ctx, f.oats.ID)
	require.NoError(t, err)
	assertCalories(t, map[string]float64{"Protein": 40, "Lipid": 45, "Carbohydrate": 200}, cal)

	_, err = f.svc.IngredientNutritionalValue(ctx, 999)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAggregationService_Recipe(t *testing.T) {
	ctx := context.Background()
	f := newFoodLog(t)

	weight, err := f.svc.RecipeWeight(ctx, f.porridge.ID)
	require.NoError(t, err)
	assert.Equal(t, 250.0, weight)

	density, err := f.svc.RecipeNutritionalValue(ctx, f.porridge.ID)
	require.NoError(t, err)
	assert.InDelta(t, 0.052, density[f.protein.ID], 1e-9)

	intakes, err := f.svc.RecipeIntakes(ctx, f.porridge.ID)
	require.NoError(t, err)
	assertIntakes(t, domain.Intakes{
		f.protein.ID:  5.2,
		f.fat.ID:      2.6,
		f.carbs.ID:    14,
		f.iron.ID:     0.8,
		f.sat.ID:      0.2,
		f.fattyAcs.ID: 0.2,
	}, intakes)

	cal, err := f.svc.RecipeCalories(ctx, f.porridge.ID)
	require.NoError(t, err)
	assertCalories(t, map[string]float64{"Protein": 20.8, "Lipid": 23.4, "Carbohydrate": 56}, cal)

	t.Run("final weight", func(t *testing.T) {
		require.NoError(t, f.db.Model(&f.porridge).Update("final_weight", 200).Error)

		weight, err := f.svc.RecipeWeight(ctx, f.porridge.ID)
		require.NoError(t, err)
		assert.Equal(t, 200.0, weight)

		intakes, err := f.svc.RecipeIntakes(ctx, f.porridge.ID)
		require.NoError(t, err)
		assert.InDelta(t, 6.5, intakes[f.protein.ID], 1e-9)
	})

	t.Run("no weight", func(t *testing.T) {
		empty := domain.Recipe{OwnerID: f.profile.ID, Name: "Nothing"}
		require.NoError(t, f.db.Create(&empty).Error)

		intakes, err := f.svc.RecipeIntakes(ctx, empty.ID)
		require.NoError(t, err)
		assert.Empty(t, intakes)
	})
}

func TestAggregationService_Meal(t *testing.T) {
	ctx := context.Background()
	f := newFoodLog(t)

	ingredient, err := f.svc.MealIngredientIntakes(ctx, f.day1.ID)
	require.NoError(t, err)
	assert.InDelta(t, 10, ingredient[f.protein.ID], 1e-9)
	assert.InDelta(t, 4, ingredient[f.iron.ID], 1e-9)

	recipe, err := f.svc.MealRecipeIntakes(ctx, f.day1.ID)
	require.NoError(t, err)
	assert.InDelta(t, 6.5, recipe[f.protein.ID], 1e-9)
	assert.InDelta(t, 1, recipe[f.iron.ID], 1e-9)

	total, err := f.svc.MealIntakes(ctx, f.day1.ID)
	require.NoError(t, err)
	assertIntakes(t, domain.Intakes{
		f.protein.ID:  16.5,
		f.fat.ID:      8.25,
		f.carbs.ID:    67.5,
		f.iron.ID:     5,
		f.sat.ID:      1.25,
		f.fattyAcs.ID: 1.25,
	}, total)

	cal, err := f.svc.MealCalories(ctx, f.day1.ID)
	require.NoError(t, err)
	assertCalories(t, map[string]float64{"Protein": 66, "Lipid": 74.25, "Carbohydrate": 270}, cal)

	_, err = f.svc.MealIntakes(ctx, 999)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCalorieRatio(t *testing.T) {
	tests := []struct {
		name string
		in   map[string]float64
		want []domain.CalorieShare
	}{
		{
			name: "percentages by descending share",
			in:   map[string]float64{"Protein": 40, "Lipid": 45, "Carbohydrate": 200},
			want: []domain.CalorieShare{
				{Nutrient: "Carbohydrate", Percent: 70.2},
				{Nutrient: "Lipid", Percent: 15.8},
				{Nutrient: "Protein", Percent: 14},
			},
		},
		{
			name: "zero total returns raw values",
			in:   map[string]float64{"Protein": 0, "Lipid": 0},
			want: []domain.CalorieShare{
				{Nutrient: "Lipid", Percent: 0},
				{Nutrient: "Protein", Percent: 0},
			},
		},
		{
			name: "empty",
			in:   map[string]float64{},
			want: []domain.CalorieShare{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CalorieRatio(tt.in))
		})
	}
}

func TestCalorieRatio_SumsToHundred(t *testing.T) {
	shares := CalorieRatio(map[string]float64{"Protein": 66, "Lipid": 74.25, "Carbohydrate": 270, "Alcohol": 13})
	var sum float64
	for _, s := range shares {
		sum += s.Percent
	}
	assert.InDelta(t, 100, sum, 0.2)
}

func TestAggregationService_ProfileSeries(t *testing.T) {
	ctx := context.Background()
	f := newFoodLog(t)
	all := domain.DateRange{}

	t.Run("nutrient intakes by date", func(t *testing.T) {
		got, err := f.svc.NutrientIntakesByDate(ctx, f.profile.ID, f.protein.ID, all)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.InDelta(t, 16.5, got["2024-01-01"], 1e-9)
		assert.InDelta(t, 20, got["2024-01-02"], 1e-9)

		iron, err := f.svc.NutrientIntakesByDate(ctx, f.profile.ID, f.iron.ID, all)
		require.NoError(t, err)
		assert.Len(t, iron, 1)

		got, err = f.svc.NutrientIntakesByDate(ctx, f.profile.ID, f.protein.ID, domain.DateRange{Min: day(2)})
		require.NoError(t, err)
		assert.Equal(t, []string{"2024-01-02"}, keys(got))
	})

	t.Run("calories by date", func(t *testing.T) {
		got, err := f.svc.CaloriesByDate(ctx, f.profile.ID, all)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assertCalories(t, map[string]float64{"Protein": 66, "Lipid": 74.25, "Carbohydrate": 270}, got["2024-01-01"])
		assertCalories(t, map[string]float64{"Protein": 80, "Lipid": 90, "Carbohydrate": 100}, got["2024-01-02"])

		got, err = f.svc.CaloriesByDate(ctx, f.profile.ID, domain.DateRange{Max: day(1)})
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})

	t.Run("average intakes count days a nutrient was eaten", func(t *testing.T) {
		got, err := f.svc.AverageIntakes(ctx, f.profile.ID, all)
		require.NoError(t, err)
		assert.InDelta(t, 18.25, got[f.protein.ID], 1e-9)
		assert.InDelta(t, 5, got[f.iron.ID], 1e-9)

		got, err = f.svc.AverageIntakes(ctx, f.profile.ID, domain.DateRange{Min: day(2), Max: day(31)})
		require.NoError(t, err)
		assert.InDelta(t, 20, got[f.protein.ID], 1e-9)
		assert.NotContains(t, got, f.iron.ID)
	})

	t.Run("date bounds are inclusive calendar days", func(t *testing.T) {
		got, err := f.svc.NutrientIntakesByDate(ctx, f.profile.ID, f.protein.ID, domain.DateRange{Min: day(2), Max: day(2)})
		require.NoError(t, err)
		assert.Equal(t, []string{"2024-01-02"}, keys(got))

		// late evening of Jan 1 in UTC-5 still bounds on Jan 1
		evening := time.Date(2024, time.January, 1, 22, 30, 0, 0, time.FixedZone("EST", -5*3600))
		got, err = f.svc.NutrientIntakesByDate(ctx, f.profile.ID, f.protein.ID, domain.DateRange{Min: &evening, Max: &evening})
		require.NoError(t, err)
		assert.Equal(t, []string{"2024-01-01"}, keys(got))
	})

	t.Run("weight by date", func(t *testing.T) {
		for _, wm := range []domain.WeightMeasurement{
			{ProfileID: f.profile.ID, Value: 80, Date: domain.NewDate(2024, time.January, 1)},
			{ProfileID: f.profile.ID, Value: 82, Date: domain.NewDate(2024, time.January, 1)},
			{ProfileID: f.profile.ID, Value: 79, Date: domain.NewDate(2024, time.January, 5)},
		} {
			require.NoError(t, f.db.Create(&wm).Error)
		}

		got, err := f.svc.WeightByDate(ctx, f.profile.ID, all)
		require.NoError(t, err)
		assert.Equal(t, map[string]float64{"2024-01-01": 81, "2024-01-05": 79}, got)

		got, err = f.svc.WeightByDate(ctx, f.profile.ID, domain.DateRange{Min: day(2)})
		require.NoError(t, err)
		assert.Equal(t, map[string]float64{"2024-01-05": 79}, got)
	})

	t.Run("summary", func(t *testing.T) {
		summary, err := f.svc.ProfileSummary(ctx, f.profile.ID, all)
		require.NoError(t, err)
		assert.InDelta(t, 18.25, summary.AverageIntakes[f.protein.ID], 1e-9)
		assert.Len(t, summary.CaloriesByDate, 2)
		assert.Len(t, summary.WeightByDate, 2)
	})
}

func TestAggregationService_Malnutrition(t *testing.T) {
	ctx := context.Background()
	f := newFoodLog(t)
	vitaminC := createNutrient(t, f.db, "Vitamin C", domain.UnitMG, 0)

	recs := []domain.IntakeRecommendation{
		// 0.8 g/kg for 80 kg is 64 g against 18.25 g eaten
		{NutrientID: f.protein.ID, DRIType: domain.DRIRDAKG, Sex: domain.SexBoth, AgeMin: 19, AmountMin: ptr(0.8)},
		// below the minimum, so the maximum is not checked
		{NutrientID: f.iron.ID, DRIType: domain.DRIRDA, Sex: domain.SexMale, AgeMin: 19, AgeMax: ptr(50), AmountMin: ptr(8.0), AmountMax: ptr(10.0)},
		{NutrientID: f.carbs.ID, DRIType: domain.DRIUL, Sex: domain.SexBoth, AgeMin: 19, AmountMax: ptr(40.0)},
		{NutrientID: vitaminC.ID, DRIType: domain.DRIRDA, Sex: domain.SexBoth, AgeMin: 19, AmountMin: ptr(90.0)},
		{NutrientID: f.fat.ID, DRIType: domain.DRIRDA, Sex: domain.SexFemale, AgeMin: 19, AmountMin: ptr(500.0)},
	}
	require.NoError(t, f.db.Create(&recs).Error)

	got, err := f.svc.Malnutrition(ctx, f.profile, domain.DateRange{}, nil)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.InDelta(t, (64-18.25)/64, got[f.protein.ID], 1e-9)
	assert.InDelta(t, 0.375, got[f.iron.ID], 1e-9)
	assert.InDelta(t, 0.15625, got[f.carbs.ID], 1e-9)

	got, err = f.svc.Malnutrition(ctx, f.profile, domain.DateRange{}, ptr(0.2))
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.NotContains(t, got, f.carbs.ID)
}

func keys(m map[string]float64) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
