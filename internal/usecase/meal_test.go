package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nutritrack/backend/internal/domain"
	"github.com/nutritrack/backend/internal/pkg/logger"
)

func TestMealService_AddToMeal(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc := NewMealService(db, logger.Nop())

	alice := domain.Profile{Age: 30, Weight: 60, Height: 165, Sex: domain.SexFemale, ActivityLevel: domain.Active}
	bob := domain.Profile{Age: 30, Weight: 80, Height: 180, Sex: domain.SexMale, ActivityLevel: domain.Active}
	require.NoError(t, db.Create(&alice).Error)
	require.NoError(t, db.Create(&bob).Error)

	rice := createIngredient(t, db, 1, "Rice")
	alicesRecipe := domain.Recipe{OwnerID: alice.ID, Name: "Risotto"}
	bobsRecipe := domain.Recipe{OwnerID: bob.ID, Name: "Pilaf"}
	require.NoError(t, db.Create(&alicesRecipe).Error)
	require.NoError(t, db.Create(&bobsRecipe).Error)

	date := domain.NewDate(2024, time.March, 3)
	meal, err := svc.GetOrCreate(ctx, alice.ID, date)
	require.NoError(t, err)
	again, err := svc.GetOrCreate(ctx, alice.ID, date)
	require.NoError(t, err)
	assert.Equal(t, meal.ID, again.ID)

	_, err = svc.AddIngredient(ctx, meal.ID, rice.ID, 150)
	require.NoError(t, err)
	_, err = svc.AddRecipe(ctx, meal.ID, alicesRecipe.ID, 300)
	require.NoError(t, err)

	tests := []struct {
		name string
		call func() error
		want error
	}{
		{"recipe of another owner", func() error {
			_, err := svc.AddRecipe(ctx, meal.ID, bobsRecipe.ID, 100)
			return err
		}, domain.ErrOwnerMismatch},
		{"amount too small", func() error {
			_, err := svc.AddIngredient(ctx, meal.ID, rice.ID, 0.05)
			return err
		}, domain.ErrInvalidRequest},
		{"unknown meal", func() error {
			_, err := svc.AddRecipe(ctx, 999, alicesRecipe.ID, 100)
			return err
		}, domain.ErrNotFound},
		{"unknown ingredient", func() error {
			_, err := svc.AddIngredient(ctx, meal.ID, 999, 100)
			return err
		}, domain.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.call(), tt.want)
		})
	}

	var stored domain.Meal
	require.NoError(t, db.Preload("Ingredients").Preload("Recipes").Take(&stored, meal.ID).Error)
	assert.Len(t, stored.Ingredients, 1)
	assert.Len(t, stored.Recipes, 1)
}

func TestMealService_ClearEmptyMeals(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc := NewMealService(db, logger.Nop())

	owner := domain.Profile{Age: 30, Weight: 60, Height: 165, Sex: domain.SexFemale, ActivityLevel: domain.Active}
	require.NoError(t, db.Create(&owner).Error)
	rice := createIngredient(t, db, 1, "Rice")
	recipe := domain.Recipe{OwnerID: owner.ID, Name: "Risotto"}
	require.NoError(t, db.Create(&recipe).Error)

	meals := make([]*domain.Meal, 5)
	for i := range meals {
		m, err := svc.GetOrCreate(ctx, owner.ID, domain.NewDate(2024, time.March, i+1))
		require.NoError(t, err)
		meals[i] = m
	}
	_, err := svc.AddIngredient(ctx, meals[0].ID, rice.ID, 100)
	require.NoError(t, err)
	_, err = svc.AddRecipe(ctx, meals[1].ID, recipe.ID, 100)
	require.NoError(t, err)

	deleted, err := svc.ClearEmptyMeals(ctx, meals[4].ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	var remaining []uint
	require.NoError(t, db.Model(&domain.Meal{}).Order("id").Pluck("id", &remaining).Error)
	assert.Equal(t, []uint{meals[0].ID, meals[1].ID, meals[4].ID}, remaining)

	deleted, err = svc.ClearEmptyMeals(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}
