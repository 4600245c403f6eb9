package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/itish2003/rag-eval/models"
	"golang.org/x/sync/errgroup"
)

const DefaultJudgeThreshold = 0.5

type judgeMetric struct {
	criteria string
	// inverted metrics pass when the score is at or below the threshold.
	inverted bool
}

var judgeCatalogue = map[string]judgeMetric{
	// DeepEval-style
	"FaithfulnessMetric": {
		criteria: "Every factual claim in the answer is supported by the retrieved context. 1 means fully supported, 0 means none of it is.",
	},
	"AnswerRelevancyMetric": {
		criteria: "The answer directly addresses the question without unrelated statements. 1 means entirely on topic.",
	},
	"HallucinationMetric": {
		criteria: "The fraction of the answer that contradicts or is absent from the retrieved context. 1 means the answer is entirely hallucinated, 0 means none of it is.",
		inverted: true,
	},
	"ContextualRelevancyMetric": {
		criteria: "The retrieved context is relevant to the question. 1 means every context passage helps answer it.",
	},
	"FluencyMetric": {
		criteria: "The answer is grammatical, readable and well formed English. 1 means perfectly fluent.",
	},
	// RAGAS-style
	"Faithfulness": {
		criteria: "The proportion of claims in the answer that can be inferred from the retrieved context.",
	},
	"AnswerRelevancy": {
		criteria: "How well the answer addresses the question; penalize incomplete or redundant content.",
	},
	"ContextPrecision": {
		criteria: "The proportion of retrieved context passages that are useful for answering the question, weighted towards the first passages.",
	},
	"ContextRecall": {
		criteria: "The proportion of the information needed to answer the question that is present in the retrieved context.",
	},
	"AnswerCorrectness": {
		criteria: "Factual agreement between the answer and the retrieved context, treating the context as the reference answer.",
	},
	"AnswerSimilarity": {
		criteria: "Semantic similarity between the answer and the retrieved context taken as the reference.",
	},
}

// Metric presets named after the evaluation frameworks they imitate.
var (
	DeepEvalMetrics = []string{"FaithfulnessMetric", "AnswerRelevancyMetric", "HallucinationMetric", "ContextualRelevancyMetric", "FluencyMetric"}
	RAGASMetrics    = []string{"Faithfulness", "AnswerRelevancy", "ContextPrecision", "ContextRecall", "AnswerCorrectness", "AnswerSimilarity"}
)

// PresetMetrics returns the metric list for a known subsystem name, or nil.
func PresetMetrics(subsystem string) []string {
	switch strings.ToLower(subsystem) {
	case "deepeval":
		return DeepEvalMetrics
	case "ragas":
		return RAGASMetrics
	}
	return nil
}

const judgePrompt = `You are grading the output of a retrieval-augmented question answering system.

Metric: %s
Criteria: %s

Question:
%s

Retrieved context:
%s

Answer:
%s

Respond with only a JSON object of the form {"score": <number between 0 and 1>, "reason": "<one sentence>"}.`

// JudgeScorer grades an answer by asking a language model one question per
// metric.
type JudgeScorer struct {
	judge     Generator
	metrics   []string
	threshold float64
}

func NewJudgeScorer(judge Generator, metrics []string, threshold float64) (*JudgeScorer, error) {
	if len(metrics) == 0 {
		return nil, fmt.Errorf("%w: judge scorer needs at least one metric", ErrInvalidInput)
	}
	for _, m := range metrics {
		if _, ok := judgeCatalogue[m]; !ok {
			return nil, fmt.Errorf("%w: unknown metric %q", ErrInvalidInput, m)
		}
	}
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultJudgeThreshold
	}
	return &JudgeScorer{judge: judge, metrics: metrics, threshold: threshold}, nil
}

func (s *JudgeScorer) Score(ctx context.Context, in EvaluationInput) (models.SubsystemMetrics, error) {
	out := make(models.SubsystemMetrics, len(s.metrics))
	var mu sync.Mutex

	eg, egCtx := errgroup.WithContext(ctx)
	for _, name := range s.metrics {
		eg.Go(func() error {
			res, err := s.scoreMetric(egCtx, name, in)
			if err != nil {
				return fmt.Errorf("metric %s: %w", name, err)
			}
			mu.Lock()
			out[name] = res
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *JudgeScorer) scoreMetric(ctx context.Context, name string, in EvaluationInput) (models.MetricResult, error) {
	metric := judgeCatalogue[name]
	prompt := fmt.Sprintf(judgePrompt, name, metric.criteria, in.Question, formatContexts(in.Contexts), in.Answer)
	raw, err := s.judge.Generate(ctx, prompt)
	if err != nil {
		return models.MetricResult{}, providerError(err)
	}
	verdict, err := parseJudgeVerdict(raw)
	if err != nil {
		return models.MetricResult{}, err
	}
	pass := verdict.Score >= s.threshold
	if metric.inverted {
		pass = verdict.Score <= s.threshold
	}
	return models.MetricResult{Value: verdict.Score, Reason: verdict.Reason, Pass: pass}, nil
}

type judgeVerdict struct {
	Score  float64 `json:"score"`
	Reason string  `json:"reason"`
}

// parseJudgeVerdict extracts the first JSON object from a model reply,
// tolerating code fences and surrounding prose. The score is clamped to [0,1].
func parseJudgeVerdict(raw string) (judgeVerdict, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return judgeVerdict{}, fmt.Errorf("no JSON object in judge reply %q", truncate(raw, 80))
	}
	var v judgeVerdict
	if err := json.Unmarshal([]byte(raw[start:end+1]), &v); err != nil {
		return judgeVerdict{}, fmt.Errorf("decode judge reply: %w", err)
	}
	v.Score = min(max(v.Score, 0), 1)
	return v, nil
}

func formatContexts(contexts []string) string {
	if len(contexts) == 0 {
		return "(none)"
	}
	var b strings.Builder
	for i, c := range contexts {
		fmt.Fprintf(&b, "[%d] %s\n", i+1, c)
	}
	return strings.TrimRight(b.String(), "\n")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + ellipsis
}
