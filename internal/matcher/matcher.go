package matcher

import (
	"math"
	"sync"

	"gonum.org/v1/gonum/floats"

	"github.com/campuskit/faceroll/internal/conf"
	"github.com/campuskit/faceroll/internal/facerec"
	"github.com/campuskit/faceroll/internal/observability/metrics"
)

// Candidate is one enrolled person the engine can match against.
// Candidate sets are built in ascending person id order, which makes
// the tie-break on equal distances deterministic.
type Candidate struct {
	PersonID uint
	RegNo    string
	Name     string

	// desc is the embedding widened to float64 once at construction.
	desc []float64
}

// NewCandidate builds a candidate from a decoded embedding.
func NewCandidate(personID uint, regNo, name string, d facerec.Descriptor) Candidate {
	desc := make([]float64, len(d))
	for i, v := range d {
		desc[i] = float64(v)
	}
	return Candidate{
		PersonID: personID,
		RegNo:    regNo,
		Name:     name,
		desc:     desc,
	}
}

// Match is the outcome of comparing one detected face against a
// candidate set. Identity fields and Confidence are only populated
// when Matched is true; Distance always carries the smallest distance
// seen.
type Match struct {
	Matched    bool
	PersonID   uint
	RegNo      string
	Name       string
	Distance   float64
	Confidence float64
}

// Engine holds the match tolerance and the metrics sink.
type Engine struct {
	tolerance float64

	metricsMu sync.RWMutex
	metrics   *metrics.MatcherMetrics
}

// New creates an engine with the given distance tolerance.
func New(tolerance float64) *Engine {
	return &Engine{tolerance: tolerance}
}

// NewFromSettings creates an engine using the configured recognition
// tolerance.
func NewFromSettings(settings *conf.Settings) *Engine {
	return New(settings.Recognition.Tolerance)
}

// SetMetrics configures the metrics instance for the engine.
func (e *Engine) SetMetrics(m *metrics.MatcherMetrics) {
	e.metricsMu.Lock()
	defer e.metricsMu.Unlock()
	e.metrics = m
}

// getMetrics returns the current metrics instance in a thread-safe
// manner.
func (e *Engine) getMetrics() *metrics.MatcherMetrics {
	e.metricsMu.RLock()
	defer e.metricsMu.RUnlock()
	return e.metrics
}

// Tolerance returns the configured distance tolerance.
func (e *Engine) Tolerance() float64 {
	return e.tolerance
}

// Best compares a detected embedding against every candidate and
// returns the nearest one. The result is a match when the smallest
// distance is at or below the tolerance; a distance exactly equal to
// the tolerance still matches. An empty candidate set returns an
// unmatched result without computing anything.
func (e *Engine) Best(probe facerec.Descriptor, candidates []Candidate) Match {
	if len(candidates) == 0 {
		if m := e.getMetrics(); m != nil {
			m.IncrementEmptySet()
		}
		return Match{Distance: math.Inf(1)}
	}

	desc := make([]float64, len(probe))
	for i, v := range probe {
		desc[i] = float64(v)
	}

	best := 0
	bestDistance := math.Inf(1)
	for i := range candidates {
		// Strict less keeps the earliest candidate on equal distances.
		if d := floats.Distance(desc, candidates[i].desc, 2); d < bestDistance {
			best = i
			bestDistance = d
		}
	}

	matched := bestDistance <= e.tolerance
	result := Match{
		Matched:  matched,
		Distance: bestDistance,
	}
	if matched {
		winner := &candidates[best]
		result.PersonID = winner.PersonID
		result.RegNo = winner.RegNo
		result.Name = winner.Name
		result.Confidence = Confidence(bestDistance)
	}

	if m := e.getMetrics(); m != nil {
		m.AddComparisons(len(candidates))
		m.RecordMatchOutcome(matched, bestDistance)
		if matched {
			m.SetLastConfidence(result.Confidence)
		}
	}
	return result
}

// Confidence converts a descriptor distance to the percentage shown
// to operators. A perfect match scores 100; distances of 1.0 or more
// score 0.
func Confidence(distance float64) float64 {
	return min(100, max(0, (1.0-distance)*100.0))
}
