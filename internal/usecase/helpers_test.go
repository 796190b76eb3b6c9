package usecase

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"

	"github.com/nutritrack/backend/internal/domain"
	"github.com/nutritrack/backend/internal/infrastructure/database"
	"github.com/nutritrack/backend/internal/pkg/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })
	return db
}

func newObservedLogger() (*logger.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return logger.FromZap(zap.New(core)), logs
}

func createNutrient(t *testing.T, db *gorm.DB, name string, unit domain.Unit, energy float64) domain.Nutrient {
	t.Helper()
	n := domain.Nutrient{Name: name, Unit: unit, Energy: energy}
	require.NoError(t, db.Create(&n).Error)
	return n
}

func createIngredient(t *testing.T, db *gorm.DB, externalID int, name string) domain.Ingredient {
	t.Helper()
	src := domain.FoodDataSource{Name: "FDC"}
	require.NoError(t, db.Where("name = ?", "FDC").FirstOrCreate(&src).Error)
	ing := domain.Ingredient{DataSourceID: src.ID, ExternalID: externalID, Name: name}
	require.NoError(t, db.Create(&ing).Error)
	return ing
}

func setAmount(t *testing.T, db *gorm.DB, ingredientID, nutrientID uint, amount float64) {
	t.Helper()
	require.NoError(t, upsertAmounts(db, []domain.IngredientNutrient{
		{IngredientID: ingredientID, NutrientID: nutrientID, Amount: amount},
	}))
}

func addEdge(t *testing.T, db *gorm.DB, target, component domain.Nutrient) {
	t.Helper()
	require.NoError(t, db.Create(&domain.NutrientComponent{TargetID: target.ID, ComponentID: component.ID}).Error)
}

// amountOf returns the stored amount and whether a row exists.
func amountOf(t *testing.T, db *gorm.DB, ingredientID, nutrientID uint) (float64, bool) {
	t.Helper()
	var rows []domain.IngredientNutrient
	require.NoError(t, db.Where("ingredient_id = ? AND nutrient_id = ?", ingredientID, nutrientID).Find(&rows).Error)
	if len(rows) == 0 {
		return 0, false
	}
	return rows[0].Amount, true
}

func reload(t *testing.T, db *gorm.DB, n domain.Nutrient) domain.Nutrient {
	t.Helper()
	var out domain.Nutrient
	require.NoError(t, db.Take(&out, n.ID).Error)
	return out
}

func ptr[T any](v T) *T { return &v }
