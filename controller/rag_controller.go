package controller

import (
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/itish2003/rag-eval/models"
	"github.com/itish2003/rag-eval/services"
)

// RAGController handles the HTTP requests for the RAG API and delegates to
// the RAGService.
type RAGController struct {
	ragService services.RAGService
}

func NewRAGController(service services.RAGService) *RAGController {
	return &RAGController{
		ragService: service,
	}
}

// Register mounts every endpoint on group.
func (c *RAGController) Register(group *gin.RouterGroup) {
	group.POST("/upload", c.UploadTexts)
	group.POST("/upload_files", c.UploadFiles)
	group.POST("/remove_files", c.RemoveFiles)
	group.GET("/documents", c.ListDocuments)
	group.POST("/query", c.Query)
	group.POST("/metrics", c.Metrics)
	group.GET("/metrics", c.Metrics)
}

// UploadTexts is the Gin handler for POST /upload.
func (c *RAGController) UploadTexts(ctx *gin.Context) {
	var req models.UploadTextsRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	ingested, err := c.ragService.AddDocuments(ctx.Request.Context(), req.Texts, req.SourceNames)
	if err != nil {
		c.fail(ctx, "Failed to ingest texts", err)
		return
	}
	ctx.JSON(http.StatusOK, uploadResponse(ingested))
}

// UploadFiles is the Gin handler for POST /upload_files (multipart field "files").
func (c *RAGController) UploadFiles(ctx *gin.Context) {
	form, err := ctx.MultipartForm()
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid multipart form: " + err.Error()})
		return
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "No files uploaded"})
		return
	}

	files := make([]services.UploadedFile, 0, len(headers))
	for _, h := range headers {
		f, err := h.Open()
		if err != nil {
			log.Printf("CONTROLLER WARN: could not open upload %s: %v", h.Filename, err)
			continue
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			log.Printf("CONTROLLER WARN: could not read upload %s: %v", h.Filename, err)
			continue
		}
		files = append(files, services.UploadedFile{Name: h.Filename, Data: data})
	}

	ingested, err := c.ragService.AddFiles(ctx.Request.Context(), files)
	if err != nil {
		c.fail(ctx, "Failed to ingest files", err)
		return
	}
	ctx.JSON(http.StatusOK, uploadResponse(ingested))
}

// RemoveFiles is the Gin handler for POST /remove_files.
func (c *RAGController) RemoveFiles(ctx *gin.Context) {
	var req models.RemoveFilesRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	removed, err := c.ragService.RemoveDocuments(ctx.Request.Context(), req.Filenames)
	if err != nil {
		c.fail(ctx, "Failed to remove files", err)
		return
	}
	ctx.JSON(http.StatusOK, models.RemoveFilesResponse{Status: "success", Removed: removed})
}

// ListDocuments is the Gin handler for GET /documents.
func (c *RAGController) ListDocuments(ctx *gin.Context) {
	docs := c.ragService.ListDocuments()
	ctx.JSON(http.StatusOK, models.ListDocumentsResponse{Count: len(docs), Documents: docs})
}

// Query is the Gin handler for POST /query. Metrics are never returned here;
// clients poll /metrics.
func (c *RAGController) Query(ctx *gin.Context) {
	var req models.QuestionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	result, err := c.ragService.AnswerQuestion(ctx.Request.Context(), req.Question)
	if err != nil {
		c.fail(ctx, "Failed to answer question", err)
		return
	}
	displayContext := result.DisplayContext
	if displayContext == nil {
		displayContext = []string{}
	}
	ctx.JSON(http.StatusOK, models.QueryResponse{
		Question:  result.Question,
		Answer:    result.Answer,
		Context:   displayContext,
		Relevant:  result.Relevant,
		Reasoning: result.Reasoning,
		Metrics:   nil,
		Message:   result.Message,
	})
}

// Metrics is the Gin handler for /metrics. The question comes from the
// "question" query parameter or a JSON body.
func (c *RAGController) Metrics(ctx *gin.Context) {
	question := ctx.Query("question")
	if question == "" && ctx.Request.Method == http.MethodPost {
		var req models.QuestionRequest
		if err := ctx.ShouldBindJSON(&req); err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
			return
		}
		question = req.Question
	}
	if strings.TrimSpace(question) == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "question is required"})
		return
	}

	report, err := c.ragService.GetMetrics(question)
	if err != nil {
		c.fail(ctx, "Question not found. Ask the question first.", err)
		return
	}

	var metrics any = services.PendingMetrics
	if report.Metrics != nil {
		metrics = report.Metrics
	}
	ctx.JSON(http.StatusOK, models.MetricsResponse{
		Question:  report.Question,
		Status:    report.Status,
		Metrics:   metrics,
		Failures:  report.Failures,
		Reasoning: report.Reasoning,
	})
}

func (c *RAGController) fail(ctx *gin.Context, msg string, err error) {
	status := statusFor(err)
	log.Printf("CONTROLLER ERROR: %s [%s] (request %s): %v", msg, ctx.FullPath(), RequestID(ctx), err)
	ctx.JSON(status, gin.H{"error": msg, "detail": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrInvalidInput),
		errors.Is(err, services.ErrInvalidChunkConfig),
		errors.Is(err, services.ErrUnsupportedDocument):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrProviderUnavailable),
		errors.Is(err, services.ErrIndexUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func uploadResponse(ingested []string) models.UploadResponse {
	if ingested == nil {
		ingested = []string{}
	}
	status := "success"
	if len(ingested) == 0 {
		status = "no documents ingested"
	}
	return models.UploadResponse{Status: status, Count: len(ingested), Files: ingested}
}
