package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync/atomic"

	"github.com/itish2003/rag-eval/models"
)

const (
	// NoRelevantInfoMessage replaces the answer when retrieval finds nothing.
	NoRelevantInfoMessage = "No relevant information was found in the uploaded documents."
	// PendingMetrics is reported in place of metrics while scoring runs.
	PendingMetrics = "pending"

	pendingMessage = "Answer generated. Evaluation metrics are being computed; poll the metrics endpoint."
	skippedMessage = "Answer generated. Evaluation is disabled."
)

// UploadedFile is a raw file received for ingestion.
type UploadedFile struct {
	Name string
	Data []byte
}

// QueryResult is the user-facing outcome of one question.
type QueryResult struct {
	Question       string
	Answer         string
	DisplayContext []string
	Relevant       bool
	Reasoning      *string
	Strategy       Strategy
	Message        string
}

// MetricsReport is the polling view of a cached answer. Metrics is nil while
// Status is pending.
type MetricsReport struct {
	Question  string
	Status    string
	Metrics   models.EvaluationMetrics
	Failures  map[string]string
	Reasoning *string
}

// RAGService interface defines the operations exposed to the HTTP layer.
type RAGService interface {
	AddDocuments(ctx context.Context, texts, sourceNames []string) ([]string, error)
	AddFiles(ctx context.Context, files []UploadedFile) ([]string, error)
	RemoveDocuments(ctx context.Context, sourceNames []string) ([]string, error)
	AnswerQuestion(ctx context.Context, question string) (*QueryResult, error)
	GetMetrics(question string) (*MetricsReport, error)
	ListDocuments() []models.DocumentSummary
	Close()
}

// Options tunes answering.
type Options struct {
	TopK int
	Mode AnswerMode
	// SummarizeReasoning asks the generator for a short explanation of the
	// retrieved context after every answer.
	SummarizeReasoning bool
}

// ragServiceImpl holds the dependencies it needs to do its job
type ragServiceImpl struct {
	store     *DocumentStore
	retriever *Retriever
	answers   *AnswerGenerator
	generator Generator
	cache     *EvaluationCache
	evaluator *Evaluator // nil disables scoring
	opts      Options

	docCounter atomic.Int64
}

// NewRAGService wires a service around an existing store. evaluator may be nil.
func NewRAGService(store *DocumentStore, embedder Embedder, generator Generator, cache *EvaluationCache, evaluator *Evaluator, opts Options) RAGService {
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	if opts.Mode == "" {
		opts.Mode = ModeAuto
	}
	return &ragServiceImpl{
		store:     store,
		retriever: NewRetriever(store, embedder),
		answers:   NewAnswerGenerator(generator),
		generator: generator,
		cache:     cache,
		evaluator: evaluator,
		opts:      opts,
	}
}

// AddDocuments ingests each text under the matching source name, or doc_{n}
// when none is given. Every document is added atomically; one that fails is
// logged and skipped. It returns the names that were ingested.
func (r *ragServiceImpl) AddDocuments(ctx context.Context, texts, sourceNames []string) ([]string, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: no texts provided", ErrInvalidInput)
	}

	var ingested []string
	var firstErr error
	for i, text := range texts {
		name := ""
		if i < len(sourceNames) {
			name = strings.TrimSpace(sourceNames[i])
		}
		if name == "" {
			name = fmt.Sprintf("doc_%d", r.docCounter.Add(1)-1)
		}

		if strings.TrimSpace(text) == "" {
			log.Printf("SERVICE WARN: Skipping %s: %v", name, ErrUnsupportedDocument)
			continue
		}
		n, err := r.store.Add(ctx, []Document{{SourceID: name, Text: text}})
		if err != nil {
			log.Printf("SERVICE ERROR: Failed to ingest %s: %v", name, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if n == 0 {
			log.Printf("SERVICE WARN: %s produced no chunks", name)
			continue
		}
		log.Printf("SERVICE: Ingested %s (%d chunks)", name, n)
		ingested = append(ingested, name)
	}

	if len(ingested) == 0 && firstErr != nil {
		return nil, firstErr
	}
	return ingested, nil
}

// AddFiles extracts text from each file and ingests it under the file name.
// Files that yield no text are logged and skipped.
func (r *ragServiceImpl) AddFiles(ctx context.Context, files []UploadedFile) ([]string, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no files provided", ErrInvalidInput)
	}
	var texts, names []string
	for _, f := range files {
		text, err := ExtractText(f.Name, f.Data)
		if err != nil {
			log.Printf("SERVICE WARN: Skipping file %s: %v", f.Name, err)
			continue
		}
		if strings.TrimSpace(text) == "" {
			log.Printf("SERVICE WARN: Skipping file %s: no extractable text", f.Name)
			continue
		}
		texts = append(texts, text)
		names = append(names, f.Name)
	}
	if len(texts) == 0 {
		return nil, nil
	}
	return r.AddDocuments(ctx, texts, names)
}

func (r *ragServiceImpl) RemoveDocuments(ctx context.Context, sourceNames []string) ([]string, error) {
	if len(sourceNames) == 0 {
		return nil, fmt.Errorf("%w: no filenames provided", ErrInvalidInput)
	}
	removed, err := r.store.Remove(ctx, sourceNames)
	if err != nil {
		return nil, err
	}
	log.Printf("SERVICE: Removed %d of %d requested sources", len(removed), len(sourceNames))
	if removed == nil {
		removed = []string{}
	}
	return removed, nil
}

// AnswerQuestion retrieves context, generates an answer, records it in the
// cache and schedules scoring. The cache entry is written before scoring is
// scheduled. Retrieval or generation failures leave the cache untouched.
func (r *ragServiceImpl) AnswerQuestion(ctx context.Context, question string) (*QueryResult, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("%w: question is empty", ErrInvalidInput)
	}
	log.Printf("SERVICE: Answering %q", question)

	retrieval, err := r.retriever.Retrieve(ctx, question, r.opts.TopK)
	if err != nil {
		return nil, fmt.Errorf("retrieve context: %w", err)
	}

	if !retrieval.Relevant {
		if r.evaluator != nil {
			r.evaluator.Cancel(question)
		}
		r.cache.Put(question, Entry{
			Answer:         NoRelevantInfoMessage,
			DisplayContext: []string{},
			Metrics:        models.EvaluationMetrics{},
			Status:         models.StatusSkipped,
		})
		return &QueryResult{
			Question:       question,
			Answer:         NoRelevantInfoMessage,
			DisplayContext: []string{},
			Message:        NoRelevantInfoMessage,
		}, nil
	}

	answer, err := r.answers.Generate(ctx, question, retrieval.FullContext, r.opts.Mode)
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}
	if strings.TrimSpace(answer.Text) == "" {
		answer.Text = NoRelevantInfoMessage
	}

	var reasoning *string
	if r.opts.SummarizeReasoning {
		s := r.reason(ctx, question, retrieval.DisplayContext)
		reasoning = &s
	}

	entry := Entry{
		Answer:         answer.Text,
		DisplayContext: retrieval.DisplayContext,
		Relevant:       true,
		Reasoning:      reasoning,
		Summary:        answer.Summary,
	}
	result := &QueryResult{
		Question:       question,
		Answer:         answer.Text,
		DisplayContext: retrieval.DisplayContext,
		Relevant:       true,
		Reasoning:      reasoning,
		Strategy:       answer.Strategy,
	}

	if r.evaluator == nil {
		entry.Metrics = models.EvaluationMetrics{}
		entry.Status = models.StatusSkipped
		r.cache.Put(question, entry)
		result.Message = skippedMessage
		return result, nil
	}

	generation := r.cache.Put(question, entry)
	contexts := make([]string, len(retrieval.Chunks))
	for i, c := range retrieval.Chunks {
		contexts[i] = c.Text
	}
	in := EvaluationInput{Question: question, Answer: answer.Text, Contexts: contexts}
	if reasoning != nil {
		in.Reasoning = *reasoning
	}
	r.evaluator.Schedule(EvaluationJob{Question: question, Generation: generation, Input: in})
	result.Message = pendingMessage
	return result, nil
}

// reason summarizes the display context into a short explanation, falling
// back to the joined display context when the generator fails.
func (r *ragServiceImpl) reason(ctx context.Context, question string, displayContext []string) string {
	joined := strings.Join(displayContext, "\n")
	out, err := r.generator.Generate(ctx, ReasoningPrompt(question, joined))
	if err != nil || strings.TrimSpace(out) == "" {
		log.Printf("SERVICE WARN: Reasoning summary with %s failed for %q: %v", r.generator.Name(), question, err)
		return joined
	}
	return strings.TrimSpace(out)
}

func (r *ragServiceImpl) GetMetrics(question string) (*MetricsReport, error) {
	question = strings.TrimSpace(question)
	entry, ok := r.cache.Get(question)
	if !ok {
		return nil, fmt.Errorf("%w: question %q has not been asked", ErrNotFound, question)
	}
	return &MetricsReport{
		Question:  question,
		Status:    entry.Status,
		Metrics:   entry.Metrics,
		Failures:  entry.Failures,
		Reasoning: entry.Reasoning,
	}, nil
}

func (r *ragServiceImpl) ListDocuments() []models.DocumentSummary {
	return r.store.Sources()
}

func (r *ragServiceImpl) Close() {
	if r.evaluator != nil {
		r.evaluator.Close()
	}
}
