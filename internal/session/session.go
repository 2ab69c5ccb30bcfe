// session.go - Explicit state holder for one analysis session.
//
// The four UI states of the client map onto Step. All mutation goes through
// the transition methods so state changes stay deterministic and testable;
// nothing else in the codebase writes session fields directly.

package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/snapfind/product_scout_gemini/internal/model"
)

// Step is the current phase of a session.
type Step string

const (
	StepUpload     Step = "upload"
	StepProcessing Step = "processing"
	StepResults    Step = "results"
	StepError      Step = "error"
)

// Results is the assembled data for the results screen. For the three list
// fields a nil slice means "not fetched / failed" and an empty slice means
// "fetched, none found"; JSON serialization preserves that as null vs [].
type Results struct {
	Product         *model.ProductInfo     `json:"product,omitempty"`
	Shops           []model.Shop           `json:"shops"`
	OnlineStores    []model.OnlineStore    `json:"onlineStores"`
	SimilarProducts []model.SimilarProduct `json:"similarProducts"`
}

// Session is the per-user transient state. Never persisted; discarded by the
// store's TTL sweep or an explicit reset.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu        sync.Mutex
	step      Step
	location  *model.UserLocation
	results   Results
	errorMsg  string
	updatedAt time.Time
}

func newSession(id string) *Session {
	now := time.Now()
	return &Session{
		ID:        id,
		CreatedAt: now,
		step:      StepUpload,
		updatedAt: now,
	}
}

// StartProcessing transitions into the processing state. An in-flight
// pipeline cannot be preempted by a new submission.
func (s *Session) StartProcessing() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.step == StepProcessing {
		return fmt.Errorf("session %s: analysis already in progress", s.ID)
	}
	s.step = StepProcessing
	s.results = Results{}
	s.errorMsg = ""
	s.updatedAt = time.Now()
	return nil
}

// Fail transitions into the error state with a user-readable message.
func (s *Session) Fail(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.step = StepError
	s.errorMsg = message
	s.updatedAt = time.Now()
}

// Complete transitions into the results state with the gathered data.
func (s *Session) Complete(results Results) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.step = StepResults
	s.results = results
	s.updatedAt = time.Now()
}

// CacheLocation stores the user's coordinates for the rest of the session.
func (s *Session) CacheLocation(loc model.UserLocation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.location = &loc
}

// CachedLocation returns the session's coordinates, or nil if none captured.
func (s *Session) CachedLocation() *model.UserLocation {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.location == nil {
		return nil
	}
	loc := *s.location
	return &loc
}

// SoftReset clears per-analysis result state but keeps the cached location.
// Used by the "find similar" re-analysis flow.
func (s *Session) SoftReset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.step = StepUpload
	s.results = Results{}
	s.errorMsg = ""
	s.updatedAt = time.Now()
}

// FullReset returns the session to its initial state, dropping the cached
// location as well. The explicit "start over" action.
func (s *Session) FullReset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.step = StepUpload
	s.location = nil
	s.results = Results{}
	s.errorMsg = ""
	s.updatedAt = time.Now()
}

// Snapshot is an immutable copy of the session's observable state.
type Snapshot struct {
	ID           string    `json:"id"`
	Step         Step      `json:"step"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
	HasLocation  bool      `json:"hasLocation"`
	Results      Results   `json:"results"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Snapshot returns a consistent copy for serialization.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Snapshot{
		ID:           s.ID,
		Step:         s.step,
		ErrorMessage: s.errorMsg,
		HasLocation:  s.location != nil,
		Results:      s.results,
		UpdatedAt:    s.updatedAt,
	}
}

// Step returns the current step.
func (s *Session) Step() Step {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.step
}

// SimilarProduct returns the similar-product entry at index from the current
// results, for the re-analysis flow.
func (s *Session) SimilarProduct(index int) (model.SimilarProduct, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.results.SimilarProducts) {
		return model.SimilarProduct{}, false
	}
	return s.results.SimilarProducts[index], true
}

func (s *Session) lastTouched() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updatedAt
}
