// retry.go - Retry logic and error categorization for Gemini API calls

package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/snapfind/product_scout_gemini/internal/common"
	"google.golang.org/api/googleapi"
)

// RetryConfig defines retry behavior for Gemini API calls
type RetryConfig struct {
	MaxAttempts     int
	InitialDelay    time.Duration
	MaxDelay        time.Duration
	BackoffMultiple float64
}

// DefaultRetryConfig provides sensible defaults for retry behavior
var DefaultRetryConfig = RetryConfig{
	MaxAttempts:     3,
	InitialDelay:    1 * time.Second,
	MaxDelay:        8 * time.Second,
	BackoffMultiple: 2.0,
}

// GeminiError represents a categorized Gemini API error
type GeminiError struct {
	OriginalError error
	Category      string
	StatusCode    int
	Message       string
	Retryable     bool
}

func (e *GeminiError) Error() string {
	return fmt.Sprintf("[%s] %s (status: %d, retryable: %v)", e.Category, e.Message, e.StatusCode, e.Retryable)
}

// categorizeGeminiError analyzes error and determines retry strategy
func categorizeGeminiError(err error) *GeminiError {
	if err == nil {
		return nil
	}

	geminiErr := &GeminiError{
		OriginalError: err,
		Category:      "unknown",
		Message:       err.Error(),
		Retryable:     false,
	}

	// Check if it's a Google API error
	if apiErr, ok := err.(*googleapi.Error); ok {
		geminiErr.StatusCode = apiErr.Code

		switch apiErr.Code {
		case 400:
			geminiErr.Category = "bad_request"
			geminiErr.Message = "Invalid request format or parameters"
		case 401:
			geminiErr.Category = "unauthorized"
			geminiErr.Message = "Invalid API key or authentication failed"
		case 403:
			geminiErr.Category = "forbidden"
			geminiErr.Message = "API key lacks required permissions"
		case 404:
			geminiErr.Category = "not_found"
			geminiErr.Message = "Model not found or invalid endpoint"
		case 413:
			geminiErr.Category = "payload_too_large"
			geminiErr.Message = "Request size exceeds limit (reduce image size)"
		case 429:
			geminiErr.Category = "rate_limit"
			geminiErr.Message = "Rate limit exceeded - too many requests"
			geminiErr.Retryable = true
		case 500, 502, 503, 504:
			geminiErr.Category = "server_error"
			geminiErr.Message = fmt.Sprintf("Gemini server error (%d)", apiErr.Code)
			geminiErr.Retryable = true
		default:
			geminiErr.Category = "unknown_api_error"
			geminiErr.Message = fmt.Sprintf("API error: %s", apiErr.Message)
			geminiErr.Retryable = apiErr.Code >= 500
		}

		return geminiErr
	}

	// Check for context errors
	if err == context.DeadlineExceeded {
		geminiErr.Category = "timeout"
		geminiErr.Message = "Request timeout - processing took too long"
		geminiErr.Retryable = true
		return geminiErr
	}

	if err == context.Canceled {
		geminiErr.Category = "canceled"
		geminiErr.Message = "Request was canceled"
		return geminiErr
	}

	// Check error message for common patterns
	errMsg := strings.ToLower(err.Error())

	if strings.Contains(errMsg, "quota") || strings.Contains(errMsg, "limit") {
		geminiErr.Category = "quota_exceeded"
		geminiErr.Message = "API quota exceeded - daily or monthly limit reached"
		return geminiErr
	}

	if strings.Contains(errMsg, "timeout") || strings.Contains(errMsg, "deadline") {
		geminiErr.Category = "timeout"
		geminiErr.Message = "Request timeout"
		geminiErr.Retryable = true
		return geminiErr
	}

	if strings.Contains(errMsg, "connection") || strings.Contains(errMsg, "network") {
		geminiErr.Category = "network_error"
		geminiErr.Message = "Network connection error"
		geminiErr.Retryable = true
		return geminiErr
	}

	return geminiErr
}

// callWithRetry executes a Gemini API call with retry logic
func callWithRetry(
	ctx context.Context,
	model *genai.GenerativeModel,
	reqCtx *common.RequestContext,
	config RetryConfig,
	parts ...genai.Part,
) (*genai.GenerateContentResponse, error) {

	var lastGeminiErr *GeminiError

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		if attempt > 1 {
			reqCtx.LogInfo("Retry attempt %d/%d", attempt, config.MaxAttempts)
		}

		resp, err := model.GenerateContent(ctx, parts...)
		if err == nil {
			if attempt > 1 {
				reqCtx.LogInfo("✅ Retry succeeded on attempt %d", attempt)
			}
			return resp, nil
		}

		lastGeminiErr = categorizeGeminiError(err)
		reqCtx.LogError("API call failed (attempt %d/%d): %s", attempt, config.MaxAttempts, lastGeminiErr.Error())

		if !lastGeminiErr.Retryable {
			reqCtx.LogError("Non-retryable error detected, aborting")
			return nil, lastGeminiErr
		}

		if attempt >= config.MaxAttempts {
			break
		}

		delay := calculateBackoff(attempt, config)

		// Rate limit gets a longer cool-down than ordinary server errors
		if lastGeminiErr.Category == "rate_limit" {
			delay = delay * 2
			reqCtx.LogWarning("Rate limit hit, waiting %v before retry", delay)
		} else {
			reqCtx.LogInfo("Waiting %v before retry", delay)
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("context canceled during retry wait: %w", ctx.Err())
		case <-time.After(delay):
		}
	}

	reqCtx.LogError("❌ All %d attempts failed, last error: %s", config.MaxAttempts, lastGeminiErr.Error())
	return nil, fmt.Errorf("gemini API call failed after %d attempts: %w", config.MaxAttempts, lastGeminiErr)
}

// calculateBackoff computes exponential backoff delay
func calculateBackoff(attempt int, config RetryConfig) time.Duration {
	delay := float64(config.InitialDelay)
	for i := 1; i < attempt; i++ {
		delay *= config.BackoffMultiple
	}

	if delay > float64(config.MaxDelay) {
		delay = float64(config.MaxDelay)
	}

	return time.Duration(delay)
}
