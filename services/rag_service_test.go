package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itish2003/rag-eval/models"
)

type testService struct {
	RAGService
	evaluator *Evaluator
	generator *fakeGenerator
	embedder  *letterEmbedder
}

func newTestService(t *testing.T, opts Options, subsystems ...Subsystem) *testService {
	t.Helper()
	emb := &letterEmbedder{}
	gen := &fakeGenerator{}
	cache := NewEvaluationCache()
	var ev *Evaluator
	if len(subsystems) > 0 {
		ev = NewEvaluator(cache, subsystems, 5*time.Second)
	}
	svc := NewRAGService(newTestStore(t, emb), emb, gen, cache, ev, opts)
	t.Cleanup(svc.Close)
	return &testService{RAGService: svc, evaluator: ev, generator: gen, embedder: emb}
}

func TestAnswerQuestionEndToEnd(t *testing.T) {
	ctx := context.Background()
	block := make(chan struct{})
	slow := scorerFunc(func(ctx context.Context, in EvaluationInput) (models.SubsystemMetrics, error) {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return models.SubsystemMetrics{"Faithfulness": {Value: 1, Pass: true}}, nil
	})
	svc := newTestService(t, Options{},
		Subsystem{Name: "DeepEval", Scorer: slow},
		Subsystem{Name: "RAGAS", Scorer: constantScorer("ContextRecall", 0.7)},
	)

	ingested, err := svc.AddDocuments(ctx, []string{"The sky is blue. The sun is a star."}, []string{"a.txt"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt"}, ingested)

	res, err := svc.AnswerQuestion(ctx, "What color is the sky?")
	require.NoError(t, err)
	assert.True(t, res.Relevant)
	assert.Equal(t, []string{"[a.txt] The sky is blue. The sun is a star."}, res.DisplayContext)
	assert.NotEmpty(t, res.Answer)

	report, err := svc.GetMetrics("What color is the sky?")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, report.Status)
	assert.Nil(t, report.Metrics)

	close(block)
	svc.evaluator.Wait()

	report, err = svc.GetMetrics("What color is the sky?")
	require.NoError(t, err)
	assert.Equal(t, models.StatusComplete, report.Status)
	assert.Contains(t, report.Metrics, "DeepEval")
	assert.Contains(t, report.Metrics, "RAGAS")
	assert.Equal(t, 0.7, report.Metrics["RAGAS"]["ContextRecall"].Value)

	removed, err := svc.RemoveDocuments(ctx, []string{"a.txt"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt"}, removed)

	res, err = svc.AnswerQuestion(ctx, "What color is the sky?")
	require.NoError(t, err)
	assert.False(t, res.Relevant)
	assert.Equal(t, NoRelevantInfoMessage, res.Answer)

	report, err = svc.GetMetrics("What color is the sky?")
	require.NoError(t, err)
	assert.Equal(t, models.StatusSkipped, report.Status)
	assert.Empty(t, report.Metrics)
}

func TestGetMetricsUnknownQuestion(t *testing.T) {
	svc := newTestService(t, Options{})
	_, err := svc.GetMetrics("never asked")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAnswerQuestionOnEmptyStore(t *testing.T) {
	svc := newTestService(t, Options{})
	res, err := svc.AnswerQuestion(context.Background(), "Anything?")
	require.NoError(t, err)
	assert.False(t, res.Relevant)
	assert.Equal(t, NoRelevantInfoMessage, res.Answer)
	assert.Empty(t, svc.generator.Prompts())
	assert.Zero(t, svc.embedder.calls.Load())

	_, err = svc.AnswerQuestion(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestAnswerQuestionGenerationFailureLeavesCacheEmpty(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, Options{})
	_, err := svc.AddDocuments(ctx, []string{"The sky is blue."}, []string{"a.txt"})
	require.NoError(t, err)
	svc.generator.respond = func(string) (string, error) { return "", context.DeadlineExceeded }

	_, err = svc.AnswerQuestion(ctx, "What color is the sky?")
	assert.ErrorIs(t, err, ErrProviderUnavailable)

	_, err = svc.GetMetrics("What color is the sky?")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAnswerQuestionReasoningFallsBackToContext(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, Options{SummarizeReasoning: true})
	_, err := svc.AddDocuments(ctx, []string{"The sky is blue."}, []string{"a.txt"})
	require.NoError(t, err)

	res, err := svc.AnswerQuestion(ctx, "What color is the sky?")
	require.NoError(t, err)
	require.NotNil(t, res.Reasoning)
	assert.Equal(t, "generated answer", *res.Reasoning)

	svc.generator.respond = func(prompt string) (string, error) {
		if prompt == ReasoningPrompt("Why is the sky blue?", "[a.txt] The sky is blue.") {
			return "", context.DeadlineExceeded
		}
		return "Because.", nil
	}
	res, err = svc.AnswerQuestion(ctx, "Why is the sky blue?")
	require.NoError(t, err)
	require.NotNil(t, res.Reasoning)
	assert.Equal(t, "[a.txt] The sky is blue.", *res.Reasoning)

	report, err := svc.GetMetrics("Why is the sky blue?")
	require.NoError(t, err)
	assert.Equal(t, models.StatusSkipped, report.Status, "no evaluator configured")
	assert.Equal(t, res.Reasoning, report.Reasoning)
}

func TestAddDocumentsPartialSuccess(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, Options{})
	svc.embedder.failOn = "poison"

	ingested, err := svc.AddDocuments(ctx, []string{"alpha", "   ", "poison", "gamma"}, []string{"", "blank.txt", "bad.txt"})
	require.NoError(t, err)
	assert.Equal(t, []string{"doc_0", "doc_1"}, ingested)
	assert.Equal(t, []models.DocumentSummary{{Source: "doc_0", Chunks: 1}, {Source: "doc_1", Chunks: 1}}, svc.ListDocuments())

	_, err = svc.AddDocuments(ctx, []string{"poison"}, nil)
	assert.ErrorIs(t, err, ErrIndexUnavailable)

	_, err = svc.AddDocuments(ctx, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestAddFilesSkipsUnsupported(t *testing.T) {
	svc := newTestService(t, Options{})
	ingested, err := svc.AddFiles(context.Background(), []UploadedFile{
		{Name: "notes.md", Data: []byte("# Notes\nThe sky is blue.")},
		{Name: "image.png", Data: []byte{0x89, 'P', 'N', 'G'}},
		{Name: "empty.txt", Data: []byte("   ")},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"notes.md"}, ingested)
}

func TestRemoveDocumentsUnknownSource(t *testing.T) {
	svc := newTestService(t, Options{})
	removed, err := svc.RemoveDocuments(context.Background(), []string{"ghost.txt"})
	require.NoError(t, err)
	assert.Empty(t, removed)
	assert.NotNil(t, removed)
}

func TestAnswerQuestionIrrelevantReaskCancelsScoring(t *testing.T) {
	ctx := context.Background()
	started := make(chan struct{}, 1)
	cancelled := make(chan struct{}, 1)
	slow := scorerFunc(func(ctx context.Context, _ EvaluationInput) (models.SubsystemMetrics, error) {
		started <- struct{}{}
		<-ctx.Done()
		cancelled <- struct{}{}
		return nil, ctx.Err()
	})
	svc := newTestService(t, Options{}, Subsystem{Name: "DeepEval", Scorer: slow})

	_, err := svc.AddDocuments(ctx, []string{"The sky is blue."}, []string{"a.txt"})
	require.NoError(t, err)
	res, err := svc.AnswerQuestion(ctx, "What color is the sky?")
	require.NoError(t, err)
	require.True(t, res.Relevant)
	<-started

	_, err = svc.RemoveDocuments(ctx, []string{"a.txt"})
	require.NoError(t, err)
	res, err = svc.AnswerQuestion(ctx, "What color is the sky?")
	require.NoError(t, err)
	assert.False(t, res.Relevant)

	select {
	case <-cancelled:
	case <-time.After(2 * time.Second):
		t.Fatal("earlier evaluation kept running after the question became irrelevant")
	}
	svc.evaluator.Wait()

	report, err := svc.GetMetrics("What color is the sky?")
	require.NoError(t, err)
	assert.Equal(t, models.StatusSkipped, report.Status)
}
