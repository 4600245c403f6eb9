package models

type UploadTextsRequest struct {
	Texts       []string `json:"texts" binding:"required"`
	SourceNames []string `json:"source_names,omitempty"`
}

type RemoveFilesRequest struct {
	Filenames []string `json:"filenames" binding:"required"`
}

type QuestionRequest struct {
	Question string `json:"question" binding:"required"`
}
