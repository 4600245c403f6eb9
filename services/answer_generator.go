package services

import (
	"context"
	"fmt"
	"log"
	"strings"

	"golang.org/x/sync/errgroup"
)

// AnswerMode selects which prompts are run for a question.
type AnswerMode string

const (
	// ModeAuto answers directly unless the question asks for a summary.
	ModeAuto AnswerMode = "auto"
	// ModeEvaluation runs both prompts and marks unverified sentences.
	ModeEvaluation AnswerMode = "evaluation"
)

// Strategy records which prompt produced an answer.
type Strategy string

const (
	StrategyNone     Strategy = ""
	StrategyDirect   Strategy = "direct"
	StrategySummary  Strategy = "extractive_summary"
	StrategyVerified Strategy = "verified"
)

const unverifiedMarker = "[UNVERIFIED] "

var summaryTriggers = []string{"summarize", "in short", "concise", "briefly", "summary"}

// Answer is the generated text for a question. Summary is only set in
// evaluation mode.
type Answer struct {
	Text     string
	Summary  string
	Strategy Strategy
}

// AnswerGenerator turns retrieved context into an answer.
type AnswerGenerator struct {
	generator Generator
}

func NewAnswerGenerator(generator Generator) *AnswerGenerator {
	return &AnswerGenerator{generator: generator}
}

// ParseAnswerMode maps a config value to an AnswerMode; anything unknown is auto.
func ParseAnswerMode(s string) AnswerMode {
	switch AnswerMode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeEvaluation, "always":
		return ModeEvaluation
	default:
		return ModeAuto
	}
}

// IsSummaryRequest reports whether question contains a summary trigger word.
func IsSummaryRequest(question string) bool {
	q := strings.ToLower(question)
	for _, w := range summaryTriggers {
		if strings.Contains(q, w) {
			return true
		}
	}
	return false
}

// Generate answers question from fullContext. No provider call is made when
// fullContext is blank.
func (g *AnswerGenerator) Generate(ctx context.Context, question, fullContext string, mode AnswerMode) (Answer, error) {
	if strings.TrimSpace(fullContext) == "" {
		return Answer{}, nil
	}

	switch {
	case mode == ModeEvaluation:
		var direct, summary string
		eg, egCtx := errgroup.WithContext(ctx)
		eg.Go(func() (err error) {
			direct, err = g.complete(egCtx, DirectAnswerPrompt(fullContext, question))
			return err
		})
		eg.Go(func() (err error) {
			summary, err = g.complete(egCtx, ExtractiveSummaryPrompt(fullContext, question))
			return err
		})
		if err := eg.Wait(); err != nil {
			return Answer{}, err
		}
		return Answer{Text: VerifyAnswer(direct, summary), Summary: summary, Strategy: StrategyVerified}, nil

	case IsSummaryRequest(question):
		log.Printf("GENERATOR: Summary request detected for %q", question)
		text, err := g.complete(ctx, ExtractiveSummaryPrompt(fullContext, question))
		if err != nil {
			return Answer{}, err
		}
		return Answer{Text: text, Strategy: StrategySummary}, nil

	default:
		text, err := g.complete(ctx, DirectAnswerPrompt(fullContext, question))
		if err != nil {
			return Answer{}, err
		}
		return Answer{Text: text, Strategy: StrategyDirect}, nil
	}
}

func (g *AnswerGenerator) complete(ctx context.Context, prompt string) (string, error) {
	out, err := g.generator.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("generate with %s: %w", g.generator.Name(), providerError(err))
	}
	return strings.TrimSpace(out), nil
}

// VerifyAnswer prefixes every sentence of answer that does not appear in
// summary, whole or as one of its ", "-separated fragments, with
// "[UNVERIFIED] ". Sentences are split and rejoined on ". ".
func VerifyAnswer(answer, summary string) string {
	var out []string
	for _, sentence := range strings.Split(answer, sentenceBoundary) {
		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}
		if supportedBy(sentence, summary) {
			out = append(out, sentence)
		} else {
			out = append(out, unverifiedMarker+sentence)
		}
	}
	return strings.Join(out, sentenceBoundary)
}

func supportedBy(sentence, summary string) bool {
	if strings.Contains(summary, sentence) {
		return true
	}
	for _, fragment := range strings.Split(sentence, ", ") {
		if fragment = strings.TrimSpace(fragment); fragment != "" && strings.Contains(summary, fragment) {
			return true
		}
	}
	return false
}
