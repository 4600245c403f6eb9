package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itish2003/rag-eval/models"
)

func TestEvaluatorIsolatesSubsystemFailures(t *testing.T) {
	cache := NewEvaluationCache()
	failing := scorerFunc(func(context.Context, EvaluationInput) (models.SubsystemMetrics, error) {
		return nil, errors.New("oracle offline")
	})
	panicking := scorerFunc(func(context.Context, EvaluationInput) (models.SubsystemMetrics, error) {
		panic("boom")
	})
	ev := NewEvaluator(cache, []Subsystem{
		{Name: "DeepEval", Scorer: failing},
		{Name: "RAGAS", Scorer: constantScorer("Faithfulness", 0.9)},
		{Name: "Custom", Scorer: panicking},
	}, time.Second)
	defer ev.Close()

	gen := cache.Put("Q", Entry{Answer: "A"})
	ev.Schedule(EvaluationJob{Question: "Q", Generation: gen, Input: EvaluationInput{Question: "Q", Answer: "A"}})
	ev.Wait()

	e, ok := cache.Get("Q")
	require.True(t, ok)
	assert.Equal(t, models.StatusComplete, e.Status)
	require.Len(t, e.Metrics, 3)
	assert.Empty(t, e.Metrics["DeepEval"])
	assert.Empty(t, e.Metrics["Custom"])
	assert.Equal(t, 0.9, e.Metrics["RAGAS"]["Faithfulness"].Value)
	assert.Contains(t, e.Failures["DeepEval"], "oracle offline")
	assert.Contains(t, e.Failures["Custom"], "panic")
	assert.NotContains(t, e.Failures, "RAGAS")
}

func TestEvaluatorTimesOutHungSubsystem(t *testing.T) {
	cache := NewEvaluationCache()
	release := make(chan struct{})
	defer close(release)
	hung := scorerFunc(func(context.Context, EvaluationInput) (models.SubsystemMetrics, error) {
		<-release // ignores its context on purpose
		return models.SubsystemMetrics{"late": {}}, nil
	})
	ev := NewEvaluator(cache, []Subsystem{
		{Name: "Hung", Scorer: hung},
		{Name: "Fast", Scorer: constantScorer("m", 1)},
	}, 50*time.Millisecond)

	gen := cache.Put("Q", Entry{})
	start := time.Now()
	ev.Schedule(EvaluationJob{Question: "Q", Generation: gen})
	ev.Wait()
	assert.Less(t, time.Since(start), 5*time.Second)

	e, _ := cache.Get("Q")
	assert.Equal(t, models.StatusComplete, e.Status)
	assert.Empty(t, e.Metrics["Hung"])
	assert.Contains(t, e.Failures["Hung"], context.DeadlineExceeded.Error())
	assert.Len(t, e.Metrics["Fast"], 1)
}

func TestEvaluatorSupersedesInFlightRun(t *testing.T) {
	cache := NewEvaluationCache()
	started := make(chan struct{}, 1)
	scorer := scorerFunc(func(ctx context.Context, in EvaluationInput) (models.SubsystemMetrics, error) {
		if in.Answer == "old" {
			started <- struct{}{}
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return models.SubsystemMetrics{"m": {Value: 1, Pass: true}}, nil
	})
	ev := NewEvaluator(cache, []Subsystem{{Name: "S", Scorer: scorer}}, 10*time.Second)
	defer ev.Close()

	oldGen := cache.Put("Q", Entry{Answer: "old"})
	ev.Schedule(EvaluationJob{Question: "Q", Generation: oldGen, Input: EvaluationInput{Answer: "old"}})
	<-started

	newGen := cache.Put("Q", Entry{Answer: "new"})
	ev.Schedule(EvaluationJob{Question: "Q", Generation: newGen, Input: EvaluationInput{Answer: "new"}})
	ev.Wait()

	e, _ := cache.Get("Q")
	assert.Equal(t, newGen, e.Generation)
	assert.Equal(t, models.StatusComplete, e.Status)
	assert.Equal(t, 1.0, e.Metrics["S"]["m"].Value)
	assert.Empty(t, e.Failures)
}

func TestEvaluatorCloseRefusesNewJobs(t *testing.T) {
	cache := NewEvaluationCache()
	ev := NewEvaluator(cache, []Subsystem{{Name: "S", Scorer: constantScorer("m", 1)}}, time.Second)
	ev.Close()

	gen := cache.Put("Q", Entry{})
	ev.Schedule(EvaluationJob{Question: "Q", Generation: gen})
	ev.Wait()

	e, _ := cache.Get("Q")
	assert.Equal(t, models.StatusPending, e.Status)
	assert.Equal(t, []string{"S"}, ev.Subsystems())
}

func TestEvaluatorCancelStopsInFlightRun(t *testing.T) {
	cache := NewEvaluationCache()
	started := make(chan struct{}, 1)
	cancelled := make(chan struct{}, 1)
	scorer := scorerFunc(func(ctx context.Context, _ EvaluationInput) (models.SubsystemMetrics, error) {
		started <- struct{}{}
		<-ctx.Done()
		cancelled <- struct{}{}
		return nil, ctx.Err()
	})
	ev := NewEvaluator(cache, []Subsystem{{Name: "S", Scorer: scorer}}, 10*time.Second)
	defer ev.Close()

	gen := cache.Put("Q", Entry{Answer: "A"})
	ev.Schedule(EvaluationJob{Question: "Q", Generation: gen})
	<-started

	ev.Cancel("Q")
	ev.Cancel("never scheduled")
	ev.Wait()

	select {
	case <-cancelled:
	default:
		t.Fatal("scorer context was not cancelled")
	}
	e, _ := cache.Get("Q")
	assert.Equal(t, models.StatusPending, e.Status)
	assert.Nil(t, e.Metrics)
}
