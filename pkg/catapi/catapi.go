package catapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

const DefaultURL = "https://api.thecatapi.com/v1/breeds"

type Breed struct {
	Id   string `json:"id"`
	Name string `json:"name"`
}

// BreedFetcher loads the complete breed list from a remote source.
type BreedFetcher interface {
	FetchBreeds(ctx context.Context) ([]Breed, error)
}

// BreedValidator answers whether a breed name is known.
type BreedValidator interface {
	IsValid(ctx context.Context, name string) (bool, error)
}

var ErrUnavailable = errors.New("breed directory is unavailable")

type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

type CatAPIClient struct {
	url        string
	httpClient *http.Client
	maxRetries int
	retryDelay time.Duration
	logger     *slog.Logger
}

func NewCatAPIClient(url string, maxRetries int, retryDelay, timeout time.Duration, logger *slog.Logger) *CatAPIClient {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &CatAPIClient{
		url: url,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		maxRetries: maxRetries,
		retryDelay: retryDelay,
		logger:     logger.With("component", "catapi"),
	}
}

func (c *CatAPIClient) FetchBreeds(ctx context.Context) ([]Breed, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.retryDelay * time.Duration(attempt)):
			}
		}

		breeds, err := c.makeGetAllBreedsRequest(ctx)
		if err == nil {
			return breeds, nil
		}

		lastErr = err

		var httpErr *HTTPError
		if errors.As(err, &httpErr) && !isRetryableStatus(httpErr.StatusCode) {
			break
		}
		if attempt < c.maxRetries {
			c.logger.Warn("breed request failed, retrying", "attempt", attempt+1, "error", err)
		}
	}

	return nil, fmt.Errorf("failed after %d attempts, last error: %w", c.maxRetries+1, lastErr)
}

func (c *CatAPIClient) makeGetAllBreedsRequest(ctx context.Context) ([]Breed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	response, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to the api failed: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return nil, &HTTPError{
			StatusCode: response.StatusCode,
			Message:    fmt.Sprintf("unexpected status code: %d", response.StatusCode),
		}
	}

	var breeds []Breed
	if err := json.NewDecoder(response.Body).Decode(&breeds); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return breeds, nil
}

// isRetryableStatus reports whether a non-200 answer is worth another attempt.
// Transport errors never reach it and are always retried.
func isRetryableStatus(statusCode int) bool {
	return statusCode >= 500 || statusCode == http.StatusRequestTimeout || statusCode == http.StatusTooManyRequests
}
