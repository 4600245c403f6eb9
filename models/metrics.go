package models

// MetricResult is the verdict of one scoring oracle for one metric.
type MetricResult struct {
	Value  float64 `json:"value"`
	Reason string  `json:"reason"`
	Pass   bool    `json:"pass"`
}

// SubsystemMetrics maps a metric name to its result.
type SubsystemMetrics map[string]MetricResult

// EvaluationMetrics maps a scoring subsystem name (e.g. "DeepEval") to its metrics.
type EvaluationMetrics map[string]SubsystemMetrics

// Evaluation status values reported by the metrics endpoint.
const (
	StatusPending  = "pending"
	StatusComplete = "complete"
	StatusSkipped  = "skipped"
)
