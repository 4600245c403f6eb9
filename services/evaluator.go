package services

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/itish2003/rag-eval/models"
	"golang.org/x/sync/errgroup"
)

const DefaultEvaluationTimeout = 60 * time.Second

// EvaluationJob is one answer to be scored. Generation is the cache
// generation the answer was written under.
type EvaluationJob struct {
	Question   string
	Generation uint64
	Input      EvaluationInput
}

type inflightRun struct {
	generation uint64
	cancel     context.CancelFunc
}

// Evaluator scores answers in the background and commits the merged metrics
// to the cache. At most one run per question is live; scheduling a newer
// answer cancels the older run.
type Evaluator struct {
	cache      *EvaluationCache
	subsystems []Subsystem
	timeout    time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	inflight map[string]inflightRun
	closed   bool
}

func NewEvaluator(cache *EvaluationCache, subsystems []Subsystem, timeout time.Duration) *Evaluator {
	if timeout <= 0 {
		timeout = DefaultEvaluationTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Evaluator{
		cache:      cache,
		subsystems: subsystems,
		timeout:    timeout,
		ctx:        ctx,
		cancel:     cancel,
		inflight:   make(map[string]inflightRun),
	}
}

// Subsystems returns the configured subsystem names in order.
func (e *Evaluator) Subsystems() []string {
	names := make([]string, len(e.subsystems))
	for i, s := range e.subsystems {
		names[i] = s.Name
	}
	return names
}

// Schedule starts scoring job and returns immediately.
func (e *Evaluator) Schedule(job EvaluationJob) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		log.Printf("EVALUATOR: closed, dropping evaluation for %q", job.Question)
		return
	}
	if prev, ok := e.inflight[job.Question]; ok {
		log.Printf("EVALUATOR: superseding generation %d for %q", prev.generation, job.Question)
		prev.cancel()
	}
	ctx, cancel := context.WithCancel(e.ctx)
	e.inflight[job.Question] = inflightRun{generation: job.Generation, cancel: cancel}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer e.finish(job, cancel)
		e.run(ctx, job)
	}()
}

// Cancel stops the in-flight run for question, if any.
func (e *Evaluator) Cancel(question string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if prev, ok := e.inflight[question]; ok {
		log.Printf("EVALUATOR: cancelling generation %d for %q", prev.generation, question)
		prev.cancel()
		delete(e.inflight, question)
	}
}

func (e *Evaluator) finish(job EvaluationJob, cancel context.CancelFunc) {
	cancel()
	e.mu.Lock()
	defer e.mu.Unlock()
	if cur, ok := e.inflight[job.Question]; ok && cur.generation == job.Generation {
		delete(e.inflight, job.Question)
	}
}

func (e *Evaluator) run(ctx context.Context, job EvaluationJob) {
	start := time.Now()
	metrics := make(models.EvaluationMetrics, len(e.subsystems))
	failures := make(map[string]string)
	var mu sync.Mutex

	var g errgroup.Group
	for _, sub := range e.subsystems {
		g.Go(func() error {
			result, err := e.score(ctx, sub, job.Input)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.Printf("EVALUATOR ERROR: subsystem %s failed for %q: %v", sub.Name, job.Question, err)
				metrics[sub.Name] = models.SubsystemMetrics{}
				failures[sub.Name] = err.Error()
				return nil
			}
			if result == nil {
				result = models.SubsystemMetrics{}
			}
			metrics[sub.Name] = result
			return nil
		})
	}
	_ = g.Wait()

	if ctx.Err() != nil {
		log.Printf("EVALUATOR: evaluation of %q (generation %d) cancelled", job.Question, job.Generation)
		return
	}
	if len(failures) == 0 {
		failures = nil
	}
	if !e.cache.UpdateMetrics(job.Question, job.Generation, metrics, failures, nil) {
		log.Printf("EVALUATOR: discarding stale metrics for %q (generation %d)", job.Question, job.Generation)
		return
	}
	log.Printf("EVALUATOR: scored %q with %d subsystems in %s", job.Question, len(e.subsystems), time.Since(start).Round(time.Millisecond))
}

type scoreResult struct {
	metrics models.SubsystemMetrics
	err     error
}

// score runs one subsystem under the evaluation timeout. A scorer that
// ignores its context is abandoned once the deadline passes.
func (e *Evaluator) score(ctx context.Context, sub Subsystem, in EvaluationInput) (models.SubsystemMetrics, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	done := make(chan scoreResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- scoreResult{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		m, err := sub.Scorer.Score(ctx, in)
		done <- scoreResult{metrics: m, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrSubsystemScoringFailed, sub.Name, res.err)
		}
		return res.metrics, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %s: %v", ErrSubsystemScoringFailed, sub.Name, ctx.Err())
	}
}

// Wait blocks until every scheduled evaluation has finished.
func (e *Evaluator) Wait() {
	e.wg.Wait()
}

// Close cancels running evaluations, refuses new ones and waits for the
// workers to exit.
func (e *Evaluator) Close() {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	e.cancel()
	e.wg.Wait()
}
