package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itish2003/rag-eval/config"
	"github.com/itish2003/rag-eval/services"
)

type echoGenerator struct{}

func (echoGenerator) Name() string { return "echo" }

func (echoGenerator) Generate(context.Context, string) (string, error) {
	return `{"score": 1, "reason": "ok"}`, nil
}

func TestBuildSubsystems(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		assert.NoError(t, json.NewEncoder(w).Encode(map[string]any{
			"metrics": map[string]any{"Faithfulness": map[string]any{"value": 0.8, "pass": true}},
		}))
	}))
	defer srv.Close()

	subsystems, err := buildSubsystems(config.EvaluationConfig{
		Threshold: 0.5,
		Subsystems: []config.SubsystemConfig{
			{Name: "DeepEval", Type: "judge"},
			{Name: "Custom", Type: "judge", Metrics: []string{"Faithfulness"}},
			{Name: "Remote", Type: "http", Endpoint: srv.URL},
		},
	}, echoGenerator{})
	require.NoError(t, err)
	require.Len(t, subsystems, 3)
	assert.Equal(t, "Remote", subsystems[2].Name)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	metrics, err := subsystems[2].Scorer.Score(ctx, services.EvaluationInput{Question: "q", Answer: "a"})
	require.NoError(t, err)
	assert.Equal(t, 0.8, metrics["Faithfulness"].Value)
}

func TestBuildSubsystemsRejectsUnknownType(t *testing.T) {
	_, err := buildSubsystems(config.EvaluationConfig{
		Subsystems: []config.SubsystemConfig{{Name: "X", Type: "grpc"}},
	}, echoGenerator{})
	assert.Error(t, err)
}
