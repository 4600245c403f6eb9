package services

import (
	"context"

	"github.com/itish2003/rag-eval/models"
)

// EvaluationInput is what a scorer sees of one answered question.
type EvaluationInput struct {
	Question string   `json:"question"`
	Answer   string   `json:"answer"`
	Contexts []string `json:"contexts"`
	// Reasoning is the short explanation shown with the answer, if any.
	Reasoning string `json:"reasoning,omitempty"`
}

// Scorer is one independent scoring oracle.
type Scorer interface {
	Score(ctx context.Context, in EvaluationInput) (models.SubsystemMetrics, error)
}

// Subsystem is a named scorer, e.g. "DeepEval" or "RAGAS". The name is the
// key under which its metrics are reported.
type Subsystem struct {
	Name   string
	Scorer Scorer
}
