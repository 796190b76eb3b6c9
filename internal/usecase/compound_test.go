package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/nutritrack/backend/internal/domain"
	"github.com/nutritrack/backend/internal/pkg/logger"
)

type fattyAcidsFixture struct {
	total, saturated, mono domain.Nutrient
	a, b                   domain.Ingredient
}

// newFattyAcids creates a compound in grams with one gram and one milligram component.
func newFattyAcids(t *testing.T, svc *CompoundService) fattyAcidsFixture {
	db := svc.db
	f := fattyAcidsFixture{
		total:     createNutrient(t, db, "Fatty acids", domain.UnitG, 9),
		saturated: createNutrient(t, db, "Saturated fatty acids", domain.UnitG, 9),
		mono:      createNutrient(t, db, "Monounsaturated fatty acids", domain.UnitMG, 0.009),
		a:         createIngredient(t, db, 1001, "Butter"),
		b:         createIngredient(t, db, 1002, "Olive oil"),
	}
	addEdge(t, db, f.total, f.saturated)
	addEdge(t, db, f.total, f.mono)
	setAmount(t, db, f.a.ID, f.saturated.ID, 2)
	setAmount(t, db, f.a.ID, f.mono.ID, 500)
	setAmount(t, db, f.b.ID, f.mono.ID, 1000)
	return f
}

func TestCompoundService_Recompute(t *testing.T) {
	ctx := context.Background()

	t.Run("sums converted component amounts", func(t *testing.T) {
		db := newTestDB(t)
		svc := NewCompoundService(db, logger.Nop())
		f := newFattyAcids(t, svc)

		rows, err := svc.Recompute(ctx, f.total, RecomputeOptions{Commit: true})
		require.NoError(t, err)
		assert.Len(t, rows, 2)

		got, ok := amountOf(t, db, f.a.ID, f.total.ID)
		require.True(t, ok)
		assert.InDelta(t, 2.5, got, 1e-9)

		got, ok = amountOf(t, db, f.b.ID, f.total.ID)
		require.True(t, ok)
		assert.InDelta(t, 1.0, got, 1e-9)
	})

	t.Run("dry run does not persist", func(t *testing.T) {
		db := newTestDB(t)
		svc := NewCompoundService(db, logger.Nop())
		f := newFattyAcids(t, svc)

		rows, err := svc.Recompute(ctx, f.total, RecomputeOptions{})
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, f.total.ID, rows[0].NutrientID)

		_, ok := amountOf(t, db, f.a.ID, f.total.ID)
		assert.False(t, ok)
	})

	t.Run("is idempotent", func(t *testing.T) {
		db := newTestDB(t)
		svc := NewCompoundService(db, logger.Nop())
		f := newFattyAcids(t, svc)

		_, err := svc.Recompute(ctx, f.total, RecomputeOptions{Commit: true})
		require.NoError(t, err)
		first, _ := amountOf(t, db, f.a.ID, f.total.ID)

		_, err = svc.Recompute(ctx, f.total, RecomputeOptions{Commit: true})
		require.NoError(t, err)
		second, _ := amountOf(t, db, f.a.ID, f.total.ID)

		assert.Equal(t, first, second)
		var count int64
		require.NoError(t, db.Model(&domain.IngredientNutrient{}).Where("nutrient_id = ?", f.total.ID).Count(&count).Error)
		assert.Equal(t, int64(2), count)
	})

	t.Run("skips energy components with a warning", func(t *testing.T) {
		db := newTestDB(t)
		log, logs := newObservedLogger()
		svc := NewCompoundService(db, log)
		f := newFattyAcids(t, svc)
		energy := createNutrient(t, db, "Energy", domain.UnitKCal, 0)
		addEdge(t, db, f.total, energy)
		setAmount(t, db, f.a.ID, energy.ID, 700)

		_, err := svc.Recompute(ctx, f.total, RecomputeOptions{Commit: true})
		require.NoError(t, err)

		got, _ := amountOf(t, db, f.a.ID, f.total.ID)
		assert.InDelta(t, 2.5, got, 1e-9)
		assert.Equal(t, 1, logs.FilterLevelExact(zapcore.WarnLevel).Len())
	})

	t.Run("fails on other conversion errors", func(t *testing.T) {
		db := newTestDB(t)
		svc := NewCompoundService(db, logger.Nop())
		total := createNutrient(t, db, "Vitamin E", domain.UnitMG, 0)
		iu := createNutrient(t, db, "Vitamin E (IU)", domain.UnitIU, 0)
		addEdge(t, db, total, iu)

		_, err := svc.Recompute(ctx, total, RecomputeOptions{Commit: true})
		assert.ErrorIs(t, err, domain.ErrUnrecognizedUnit)
	})

	t.Run("clears ingredients that no longer contribute", func(t *testing.T) {
		db := newTestDB(t)
		svc := NewCompoundService(db, logger.Nop())
		f := newFattyAcids(t, svc)
		_, err := svc.Recompute(ctx, f.total, RecomputeOptions{Commit: true})
		require.NoError(t, err)

		require.NoError(t, db.Where("ingredient_id = ? AND nutrient_id = ?", f.b.ID, f.mono.ID).Delete(&domain.IngredientNutrient{}).Error)
		_, err = svc.Recompute(ctx, f.total, RecomputeOptions{Commit: true, ClearOld: true})
		require.NoError(t, err)

		_, ok := amountOf(t, db, f.b.ID, f.total.ID)
		assert.False(t, ok)
		got, ok := amountOf(t, db, f.a.ID, f.total.ID)
		assert.True(t, ok)
		assert.InDelta(t, 2.5, got, 1e-9)
	})
}

func TestCompoundService_RecomputeAll(t *testing.T) {
	db := newTestDB(t)
	svc := NewCompoundService(db, logger.Nop())
	f := newFattyAcids(t, svc)

	n, err := svc.RecomputeAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, ok := amountOf(t, db, f.b.ID, f.total.ID)
	require.True(t, ok)
	assert.InDelta(t, 1.0, got, 1e-9)
}

func TestCompoundService_RecomputeEnergy(t *testing.T) {
	ctx := context.Background()

	t.Run("averages converted component energies", func(t *testing.T) {
		db := newTestDB(t)
		svc := NewCompoundService(db, logger.Nop())
		f := newFattyAcids(t, svc)

		energy, err := svc.RecomputeEnergy(ctx, f.total)
		require.NoError(t, err)
		assert.InDelta(t, 9.0, energy, 1e-9)
		assert.InDelta(t, 9.0, reload(t, db, f.total).Energy, 1e-9)
	})

	t.Run("is zero without components", func(t *testing.T) {
		db := newTestDB(t)
		svc := NewCompoundService(db, logger.Nop())
		lone := createNutrient(t, db, "Lone", domain.UnitG, 4)

		energy, err := svc.RecomputeEnergy(ctx, lone)
		require.NoError(t, err)
		assert.Zero(t, energy)
		assert.Zero(t, reload(t, db, lone).Energy)
	})
}
