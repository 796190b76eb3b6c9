package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nutritrack/backend/internal/domain"
	"github.com/nutritrack/backend/internal/pkg/logger"
)

func TestNutrientTypeService_Save(t *testing.T) {
	ctx := context.Background()

	t.Run("rejects two level hierarchies", func(t *testing.T) {
		db := newTestDB(t)
		svc := NewNutrientTypeService(db, logger.Nop())
		n1 := createNutrient(t, db, "Vitamin D", domain.UnitUG, 0)
		n2 := createNutrient(t, db, "Vitamin D3", domain.UnitUG, 0)

		typeA := domain.NutrientType{Name: "vitamin_d", ParentNutrientID: &n1.ID}
		require.NoError(t, svc.Save(ctx, &typeA))
		require.NoError(t, svc.AssignType(ctx, n2.ID, typeA.ID))

		typeB := domain.NutrientType{Name: "vitamin_d3", ParentNutrientID: &n2.ID}
		err := svc.Save(ctx, &typeB)
		assert.ErrorIs(t, err, domain.ErrNutrientTypeHierarchy)
		assert.Zero(t, typeB.ID)

		var count int64
		require.NoError(t, db.Model(&domain.NutrientType{}).Count(&count).Error)
		assert.Equal(t, int64(1), count)
	})

	t.Run("rejects two level hierarchies built by assignment", func(t *testing.T) {
		db := newTestDB(t)
		svc := NewNutrientTypeService(db, logger.Nop())
		n1 := createNutrient(t, db, "Vitamin D", domain.UnitUG, 0)
		n2 := createNutrient(t, db, "Vitamin D3", domain.UnitUG, 0)

		typeB := domain.NutrientType{Name: "vitamin_d3", ParentNutrientID: &n2.ID}
		require.NoError(t, svc.Save(ctx, &typeB))
		typeA := domain.NutrientType{Name: "vitamin_d", ParentNutrientID: &n1.ID}
		require.NoError(t, svc.Save(ctx, &typeA))

		err := svc.AssignType(ctx, n2.ID, typeA.ID)
		assert.ErrorIs(t, err, domain.ErrNutrientTypeHierarchy)

		var count int64
		require.NoError(t, db.Table("nutrient_type_memberships").Where("nutrient_id = ?", n2.ID).Count(&count).Error)
		assert.Zero(t, count)

		plain := domain.NutrientType{Name: "vitamin"}
		require.NoError(t, svc.Save(ctx, &plain))
		assert.NoError(t, svc.AssignType(ctx, n2.ID, plain.ID))
	})

	t.Run("allows types without a parent on parented nutrients", func(t *testing.T) {
		db := newTestDB(t)
		svc := NewNutrientTypeService(db, logger.Nop())
		n1 := createNutrient(t, db, "Fat", domain.UnitG, 9)
		n2 := createNutrient(t, db, "Saturated fat", domain.UnitG, 9)

		fats := domain.NutrientType{Name: "fatty_acid", ParentNutrientID: &n1.ID}
		require.NoError(t, svc.Save(ctx, &fats))
		require.NoError(t, svc.AssignType(ctx, n2.ID, fats.ID))

		plain := domain.NutrientType{Name: "lipid"}
		require.NoError(t, svc.Save(ctx, &plain))
		require.NoError(t, svc.AssignType(ctx, n2.ID, plain.ID))

		// n1 carries no parented type, so it may parent another type
		other := domain.NutrientType{Name: "macronutrient"}
		require.NoError(t, svc.Save(ctx, &other))
		require.NoError(t, svc.AssignType(ctx, n1.ID, other.ID))
	})

	t.Run("assigning unknown records", func(t *testing.T) {
		db := newTestDB(t)
		svc := NewNutrientTypeService(db, logger.Nop())
		n := createNutrient(t, db, "Iron", domain.UnitMG, 0)

		assert.ErrorIs(t, svc.AssignType(ctx, n.ID, 42), domain.ErrNotFound)
		assert.ErrorIs(t, svc.AssignType(ctx, 42, 1), domain.ErrNotFound)
	})
}

func TestNutrientTypeService_QualifyingNutrients(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc := NewNutrientTypeService(db, logger.Nop())

	protein := createNutrient(t, db, "Protein", domain.UnitG, 4)
	fat := createNutrient(t, db, "Total lipid", domain.UnitG, 9)
	sat := createNutrient(t, db, "Saturated fatty acids", domain.UnitG, 9)
	compound := createNutrient(t, db, "Fatty acids", domain.UnitG, 9)
	createNutrient(t, db, "Iron", domain.UnitMG, 0)
	addEdge(t, db, compound, sat)

	fats := domain.NutrientType{Name: "fatty_acid", ParentNutrientID: &fat.ID}
	require.NoError(t, svc.Save(ctx, &fats))
	require.NoError(t, svc.AssignType(ctx, sat.ID, fats.ID))

	got, err := svc.QualifyingNutrients(ctx)
	require.NoError(t, err)

	assert.Len(t, got, 2)
	assert.Contains(t, got, protein.ID)
	assert.Contains(t, got, fat.ID)
}
