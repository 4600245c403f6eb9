package models

type UploadResponse struct {
	Status string   `json:"status"`
	Count  int      `json:"count"`
	Files  []string `json:"files,omitempty"`
	Error  string   `json:"error,omitempty"`
}

type RemoveFilesResponse struct {
	Status  string   `json:"status"`
	Removed []string `json:"removed"`
}

type QueryResponse struct {
	Question  string   `json:"question"`
	Answer    string   `json:"answer"`
	Context   []string `json:"context"`
	Relevant  bool     `json:"relevant"`
	Reasoning *string  `json:"reasoning"`
	Metrics   any      `json:"metrics"`
	Message   string   `json:"message"`
}

// MetricsResponse is returned by the polling endpoint. Metrics is either the
// string "pending" or an EvaluationMetrics mapping.
type MetricsResponse struct {
	Question  string            `json:"question"`
	Status    string            `json:"status"`
	Metrics   any               `json:"metrics"`
	Failures  map[string]string `json:"failures,omitempty"`
	Reasoning *string           `json:"reasoning"`
}
