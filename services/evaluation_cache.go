package services

import (
	"maps"
	"sync"
	"time"

	"github.com/itish2003/rag-eval/models"
)

// Entry is everything remembered about the latest answer to a question.
type Entry struct {
	Answer         string
	DisplayContext []string
	Relevant       bool
	Reasoning      *string
	Summary        string
	// Metrics is nil while scoring is pending.
	Metrics    models.EvaluationMetrics
	Failures   map[string]string
	Status     string
	Generation uint64
	CreatedAt  time.Time
	// EvaluatedAt is zero until metrics are committed.
	EvaluatedAt time.Time
}

// EvaluationCache maps a question string to its latest Entry. Entries are
// never evicted.
type EvaluationCache struct {
	mu      sync.Mutex
	entries map[string]Entry
	nextGen uint64
	now     func() time.Time
}

func NewEvaluationCache() *EvaluationCache {
	return &EvaluationCache{
		entries: make(map[string]Entry),
		now:     time.Now,
	}
}

// Get returns a copy of the entry for question.
func (c *EvaluationCache) Get(question string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[question]
	if !ok {
		return Entry{}, false
	}
	return e.clone(), true
}

// Put replaces the entry for question and returns the generation assigned to
// it. Any evaluation still running for an older generation can no longer
// commit.
func (c *EvaluationCache) Put(question string, e Entry) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextGen++
	e = e.clone()
	e.Generation = c.nextGen
	if e.CreatedAt.IsZero() {
		e.CreatedAt = c.now()
	}
	if e.Status == "" {
		if e.Metrics == nil {
			e.Status = models.StatusPending
		} else {
			e.Status = models.StatusComplete
		}
	}
	c.entries[question] = e
	return e.Generation
}

// UpdateMetrics completes a pending entry. It reports false and changes
// nothing when the question is unknown, the generation is stale, or the entry
// is no longer pending. A nil reasoning keeps the current one.
func (c *EvaluationCache) UpdateMetrics(question string, generation uint64, metrics models.EvaluationMetrics, failures map[string]string, reasoning *string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[question]
	if !ok || e.Generation != generation || e.Status != models.StatusPending {
		return false
	}
	if metrics == nil {
		metrics = models.EvaluationMetrics{}
	}
	e.Metrics = cloneMetrics(metrics)
	e.Failures = maps.Clone(failures)
	if reasoning != nil {
		r := *reasoning
		e.Reasoning = &r
	}
	e.Status = models.StatusComplete
	e.EvaluatedAt = c.now()
	c.entries[question] = e
	return true
}

// Len returns the number of cached questions.
func (c *EvaluationCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (e Entry) clone() Entry {
	out := e
	if e.DisplayContext != nil {
		out.DisplayContext = append([]string(nil), e.DisplayContext...)
	}
	if e.Reasoning != nil {
		r := *e.Reasoning
		out.Reasoning = &r
	}
	out.Metrics = cloneMetrics(e.Metrics)
	out.Failures = maps.Clone(e.Failures)
	return out
}

func cloneMetrics(m models.EvaluationMetrics) models.EvaluationMetrics {
	if m == nil {
		return nil
	}
	out := make(models.EvaluationMetrics, len(m))
	for name, sub := range m {
		out[name] = maps.Clone(sub)
	}
	return out
}
