package models

// Chunk is a bounded slice of a source document's text. It is the unit of
// indexing and retrieval.
type Chunk struct {
	SourceID string `json:"source"`
	Text     string `json:"text"`
}

// DocumentSummary describes one ingested source and how many chunks it holds.
type DocumentSummary struct {
	Source string `json:"source"`
	Chunks int    `json:"chunks"`
}

// ListDocumentsResponse is the structure for the response of the GET /documents endpoint.
type ListDocumentsResponse struct {
	Count     int               `json:"count"`
	Documents []DocumentSummary `json:"documents"`
}
