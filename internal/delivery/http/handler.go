package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nutritrack/backend/internal/domain"
	"github.com/nutritrack/backend/internal/pkg/logger"
	"github.com/nutritrack/backend/internal/usecase"
)

// Handler holds dependencies for HTTP handlers
type Handler struct {
	aggregation     *usecase.AggregationService
	recommendations *usecase.RecommendationService
	profiles        *usecase.ProfileService
	logger          *logger.Logger
}

// NewHandler creates a new HTTP handler. Nil services make their endpoints
// answer 501.
func NewHandler(aggregation *usecase.AggregationService, recommendations *usecase.RecommendationService, profiles *usecase.ProfileService, log *logger.Logger) *Handler {
	return &Handler{
		aggregation:     aggregation,
		recommendations: recommendations,
		profiles:        profiles,
		logger:          log.With("component", "http"),
	}
}

// NutritionResponse is the nutrient and calorie breakdown of a food log item.
type NutritionResponse struct {
	Intakes  domain.Intakes        `json:"intakes"`
	Calories map[string]float64    `json:"calories"`
	Ratio    []domain.CalorieShare `json:"ratio"`
	Weight   *float64              `json:"weight,omitempty"`
}

type energyRequest struct {
	Age           int                  `json:"age" binding:"min=0,max=150"`
	Sex           domain.Sex           `json:"sex" binding:"required,oneof=M F"`
	Weight        float64              `json:"weight" binding:"gte=0"`
	Height        float64              `json:"height" binding:"gte=0"`
	ActivityLevel domain.ActivityLevel `json:"activityLevel" binding:"required,oneof=S LA A VA"`
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "nutritrack-backend",
		"version": "1.0.0",
	})
}

// IngredientNutrition returns nutrients and calories per 100 g of an ingredient.
func (h *Handler) IngredientNutrition(c *gin.Context) {
	if !h.requireAggregation(c) {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	intakes, err := h.aggregation.IngredientNutritionalValue(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	cal, err := h.aggregation.IngredientCalories(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newNutritionResponse(intakes, cal))
}

// RecipeNutrition returns nutrients and calories per 100 g of a recipe.
func (h *Handler) RecipeNutrition(c *gin.Context) {
	if !h.requireAggregation(c) {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	weight, err := h.aggregation.RecipeWeight(ctx, id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	intakes, err := h.aggregation.RecipeIntakes(ctx, id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	cal, err := h.aggregation.RecipeCalories(ctx, id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	resp := newNutritionResponse(intakes, cal)
	resp.Weight = &weight
	c.JSON(http.StatusOK, resp)
}

// MealNutrition returns nutrients and calories eaten in a meal.
func (h *Handler) MealNutrition(c *gin.Context) {
	if !h.requireAggregation(c) {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	intakes, err := h.aggregation.MealIntakes(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	cal, err := h.aggregation.MealCalories(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newNutritionResponse(intakes, cal))
}

// ProfileSummary returns average intakes, calories and weight over a date range.
func (h *Handler) ProfileSummary(c *gin.Context) {
	if !h.requireAggregation(c) {
		return
	}
	p, ok := h.profile(c)
	if !ok {
		return
	}
	r, err := parseDateRange(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	summary, err := h.aggregation.ProfileSummary(c.Request.Context(), p.ID, r)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// Malnutrition returns the relative deviation from recommendations per nutrient.
func (h *Handler) Malnutrition(c *gin.Context) {
	if !h.requireAggregation(c) {
		return
	}
	p, ok := h.profile(c)
	if !ok {
		return
	}
	r, err := parseDateRange(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	var threshold *float64
	if raw := c.Query("threshold"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 {
			h.respondError(c, fmt.Errorf("%w: threshold %q", domain.ErrInvalidRequest, raw))
			return
		}
		threshold = &v
	}
	result, err := h.aggregation.Malnutrition(c.Request.Context(), *p, r, threshold)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"malnutrition": result})
}

// Recommendations evaluates the profile's recommendations against one day of intakes.
func (h *Handler) Recommendations(c *gin.Context) {
	if h.recommendations == nil {
		notConfigured(c, "recommendations")
		return
	}
	p, ok := h.profile(c)
	if !ok {
		return
	}
	date := time.Now().UTC()
	if raw := c.Query("date"); raw != "" {
		d, err := parseDate(raw)
		if err != nil {
			h.respondError(c, err)
			return
		}
		date = d
	}
	evaluations, err := h.recommendations.EvaluateForDate(c.Request.Context(), *p, date)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"date":            date.Format(domain.DateLayout),
		"recommendations": evaluations,
	})
}

// Energy computes an Estimated Energy Requirement without storing a profile.
func (h *Handler) Energy(c *gin.Context) {
	var req energyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err))
		return
	}
	eer, err := domain.CalculateEnergy(req.Age, req.Sex, req.Weight, req.Height, req.ActivityLevel)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"energyRequirement": eer})
}

func newNutritionResponse(intakes domain.Intakes, cal map[string]float64) NutritionResponse {
	return NutritionResponse{Intakes: intakes, Calories: cal, Ratio: usecase.CalorieRatio(cal)}
}

func (h *Handler) requireAggregation(c *gin.Context) bool {
	if h.aggregation == nil {
		notConfigured(c, "nutrition")
		return false
	}
	return true
}

func notConfigured(c *gin.Context, what string) {
	c.JSON(http.StatusNotImplemented, gin.H{"error": what + " service not configured"})
}

func (h *Handler) pathID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		h.respondError(c, fmt.Errorf("%w: id %q", domain.ErrInvalidRequest, c.Param("id")))
		return 0, false
	}
	return uint(id), true
}

func (h *Handler) profile(c *gin.Context) (*domain.Profile, bool) {
	if h.profiles == nil {
		notConfigured(c, "profile")
		return nil, false
	}
	id, ok := h.pathID(c)
	if !ok {
		return nil, false
	}
	p, err := h.profiles.Get(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return nil, false
	}
	return p, true
}

func parseDate(raw string) (time.Time, error) {
	d, err := time.Parse(domain.DateLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q, want YYYY-MM-DD", domain.ErrInvalidRequest, raw)
	}
	return d, nil
}

func parseDateRange(c *gin.Context) (domain.DateRange, error) {
	var r domain.DateRange
	if raw := c.Query("date_min"); raw != "" {
		d, err := parseDate(raw)
		if err != nil {
			return r, err
		}
		r.Min = &d
	}
	if raw := c.Query("date_max"); raw != "" {
		d, err := parseDate(raw)
		if err != nil {
			return r, err
		}
		r.Max = &d
	}
	if r.Min != nil && r.Max != nil && r.Max.Before(*r.Min) {
		return r, fmt.Errorf("%w: date_max before date_min", domain.ErrInvalidRequest)
	}
	return r, nil
}

// respondError maps domain errors to HTTP status codes.
func (h *Handler) respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidRequest),
		errors.Is(err, domain.ErrInvalidProfile),
		errors.Is(err, domain.ErrProfileRequired):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrRateLimited):
		status = http.StatusTooManyRequests
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", "path", c.FullPath(), "error", err)
		c.JSON(status, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
