// request_context.go - Request tracking and logging system

package common

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/snapfind/product_scout_gemini/configs"
)

// RequestContext tracks one analysis request with timing and token costs.
// Every gateway call logs through it so failures stay diagnosable even though
// they are converted to nil results at the gateway boundary. The parallel
// lookup phase records usage from several goroutines at once, so all mutation
// goes through the mutex.
type RequestContext struct {
	RequestID string
	SessionID string
	StartTime time.Time

	mu               sync.Mutex
	Steps            []StepLog
	TotalTokens      TokenUsage
	CurrentStep      string
	CurrentStepStart time.Time
}

// StepLog represents a single pipeline step
type StepLog struct {
	Name      string      `json:"name"`
	StartTime time.Time   `json:"start_time"`
	Duration  int64       `json:"duration_ms"`
	Status    string      `json:"status"` // "success", "failed", "skipped"
	Tokens    *TokenUsage `json:"tokens,omitempty"`
	Error     string      `json:"error,omitempty"`
}

// TokenUsage tracks API token consumption
type TokenUsage struct {
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	TotalTokens  int     `json:"total_tokens"`
	CostUSD      float64 `json:"cost_usd"`
}

// NewRequestContext creates a new request tracking context
func NewRequestContext(sessionID string) *RequestContext {
	reqID := uuid.New().String()
	now := time.Now()

	log.Printf("[%s] 🚀 New analysis request | Session: %s", reqID, sessionID)

	return &RequestContext{
		RequestID: reqID,
		SessionID: sessionID,
		StartTime: now,
		Steps:     []StepLog{},
	}
}

// StartStep begins tracking a new pipeline step
func (rc *RequestContext) StartStep(stepName string) {
	rc.mu.Lock()
	rc.CurrentStep = stepName
	rc.CurrentStepStart = time.Now()
	rc.mu.Unlock()
	log.Printf("[%s] ┌── %s", rc.RequestID, stepName)
}

// EndStep completes the current step and records timing
func (rc *RequestContext) EndStep(status string, tokens *TokenUsage, err error) {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	duration := time.Since(rc.CurrentStepStart).Milliseconds()

	stepLog := StepLog{
		Name:      rc.CurrentStep,
		StartTime: rc.CurrentStepStart,
		Duration:  duration,
		Status:    status,
		Tokens:    tokens,
	}

	if err != nil {
		stepLog.Error = err.Error()
		log.Printf("[%s] └── ❌ %s failed (%.2fs): %v",
			rc.RequestID, rc.CurrentStep, float64(duration)/1000, err)
	} else {
		logMsg := fmt.Sprintf("[%s] └── ✅ %s (%.2fs)", rc.RequestID, rc.CurrentStep, float64(duration)/1000)
		if tokens != nil {
			logMsg += fmt.Sprintf(" | 🪙 %d in + %d out = %d | $%.4f",
				tokens.InputTokens, tokens.OutputTokens, tokens.TotalTokens, tokens.CostUSD)
		}
		log.Print(logMsg)
	}

	rc.Steps = append(rc.Steps, stepLog)
	rc.CurrentStep = ""
}

// AddTokens accumulates token usage from a single gateway call. Safe for
// concurrent use; the parallel lookups all record onto the same context.
func (rc *RequestContext) AddTokens(tokens TokenUsage) {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	rc.TotalTokens.InputTokens += tokens.InputTokens
	rc.TotalTokens.OutputTokens += tokens.OutputTokens
	rc.TotalTokens.TotalTokens += tokens.TotalTokens
	rc.TotalTokens.CostUSD += tokens.CostUSD
}

// CalculateTokenCost computes USD cost from token counts
func CalculateTokenCost(inputTokens, outputTokens int) TokenUsage {
	inputCost := float64(inputTokens) * configs.GEMINI_INPUT_PRICE_PER_MILLION / 1_000_000
	outputCost := float64(outputTokens) * configs.GEMINI_OUTPUT_PRICE_PER_MILLION / 1_000_000

	return TokenUsage{
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		TotalTokens:  inputTokens + outputTokens,
		CostUSD:      inputCost + outputCost,
	}
}

// GetSummary returns a final summary of the entire request
func (rc *RequestContext) GetSummary() map[string]interface{} {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	totalDuration := time.Since(rc.StartTime).Milliseconds()

	stepBreakdown := make(map[string]int64)
	for _, step := range rc.Steps {
		stepBreakdown[step.Name] = step.Duration
	}

	log.Printf("[%s] ═══ 🎯 Done in %.2fs | steps: %d | tokens: %d | cost: $%.4f ═══",
		rc.RequestID, float64(totalDuration)/1000, len(rc.Steps),
		rc.TotalTokens.TotalTokens, rc.TotalTokens.CostUSD)

	return map[string]interface{}{
		"request_id":        rc.RequestID,
		"session_id":        rc.SessionID,
		"total_duration_ms": totalDuration,
		"step_breakdown":    stepBreakdown,
		"total_steps":       len(rc.Steps),
		"token_usage":       rc.TotalTokens,
	}
}

// LogInfo logs info-level message with request ID prefix
func (rc *RequestContext) LogInfo(format string, args ...interface{}) {
	log.Printf("[%s] ℹ️  %s", rc.RequestID, fmt.Sprintf(format, args...))
}

// LogWarning logs warning-level message with request ID prefix
func (rc *RequestContext) LogWarning(format string, args ...interface{}) {
	log.Printf("[%s] ⚠️  %s", rc.RequestID, fmt.Sprintf(format, args...))
}

// LogError logs error-level message with request ID prefix
func (rc *RequestContext) LogError(format string, args ...interface{}) {
	log.Printf("[%s] ❌ %s", rc.RequestID, fmt.Sprintf(format, args...))
}
