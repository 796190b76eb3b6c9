package fdc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/nutritrack/backend/internal/domain"
	"github.com/nutritrack/backend/internal/infrastructure/cache"
	"github.com/nutritrack/backend/internal/pkg/logger"
)

const (
	maxAttempts  = 3
	maxErrorBody = 512
	defaultBurst = 10
)

// Client handles communication with the FoodData Central API
type Client struct {
	httpClient  *http.Client
	apiKey      string
	baseURL     string
	rateLimiter *rate.Limiter
	logger      *logger.Logger
	backoff     func(attempt int) time.Duration
	cache       *cache.MemoryCache[int, *domain.FDCFoodDetails]
}

// NewClient creates a new FDC API client allowing requestsPerHour requests.
func NewClient(apiKey, baseURL string, requestsPerHour int, log *logger.Logger) *Client {
	// rate.Limit is requests per second
	limit := rate.Limit(float64(requestsPerHour) / 3600)
	if requestsPerHour <= 0 {
		limit = rate.Inf
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		apiKey:      apiKey,
		baseURL:     baseURL,
		rateLimiter: rate.NewLimiter(limit, defaultBurst),
		logger:      log.With("component", "fdc_client"),
		backoff:     exponentialBackoff,
	}
}

// SetCache makes the client answer repeated lookups of a food from c.
func (c *Client) SetCache(foods *cache.MemoryCache[int, *domain.FDCFoodDetails]) {
	c.cache = foods
}

// exponentialBackoff returns the delay before retrying after the given attempt.
func exponentialBackoff(attempt int) time.Duration {
	return time.Duration(500<<(attempt-1)) * time.Millisecond
}

// readLimitedBody reads at most limit bytes of body.
func readLimitedBody(body io.Reader, limit int64) ([]byte, error) {
	return io.ReadAll(io.LimitReader(body, limit))
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}

// GetFoodDetails retrieves a food and its nutrients per 100 g by FDC ID.
// 5xx and 429 responses are retried with exponential backoff.
func (c *Client) GetFoodDetails(ctx context.Context, fdcID int) (*domain.FDCFoodDetails, error) {
	if c.cache != nil {
		if food, ok := c.cache.Get(fdcID); ok {
			c.logger.Debug("FDC cache hit", "fdc_id", fdcID)
			return food, nil
		}
	}

	params := url.Values{}
	params.Add("api_key", c.apiKey)
	reqURL := fmt.Sprintf("%s/v1/food/%d?%s", c.baseURL, fdcID, params.Encode())

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.backoff(attempt - 1)):
			}
		}
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter error: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("User-Agent", "NutriTrack/1.0")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %v", domain.ErrFDCAPIFailure, ctx.Err())
			}
			c.logger.Warn("FDC request failed", "fdc_id", fdcID, "attempt", attempt, "error", err)
			lastErr = fmt.Errorf("%w: %v", domain.ErrFDCAPIFailure, err)
			continue
		}

		if resp.StatusCode != http.StatusOK {
			body, _ := readLimitedBody(resp.Body, maxErrorBody)
			resp.Body.Close()

			if resp.StatusCode == http.StatusNotFound {
				return nil, fmt.Errorf("%w: FDC food %d", domain.ErrNotFound, fdcID)
			}
			lastErr = fmt.Errorf("%w: status %d, body: %s", domain.ErrFDCAPIFailure, resp.StatusCode, string(body))
			if !retryable(resp.StatusCode) {
				return nil, lastErr
			}
			c.logger.Warn("FDC API error", "fdc_id", fdcID, "attempt", attempt, "status", resp.StatusCode)
			continue
		}

		var food domain.FDCFoodDetails
		err = json.NewDecoder(resp.Body).Decode(&food)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}
		c.logger.Debug("fetched FDC food", "fdc_id", fdcID, "nutrients", len(food.FoodNutrients))
		if c.cache != nil {
			c.cache.Set(fdcID, &food)
		}
		return &food, nil
	}

	c.logger.Error("all FDC retries failed", "fdc_id", fdcID, "error", lastErr)
	return nil, lastErr
}

// GetFood retrieves a food as import records.
func (c *Client) GetFood(ctx context.Context, fdcID int) (*domain.FDCFoodRecords, error) {
	details, err := c.GetFoodDetails(ctx, fdcID)
	if err != nil {
		return nil, err
	}
	return MapFoodDetails(details), nil
}
