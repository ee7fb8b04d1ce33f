package documents

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"intellidoc-backend/internal/llm"
	"intellidoc-backend/internal/shared/server/middleware"
	"intellidoc-backend/internal/shared/server/respond"
)

// multipart framing on top of the file itself
const multipartOverhead = 1 << 20

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches document routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/documents", h.list)
	rg.POST("/documents", h.upload)
	rg.GET("/documents/:id", h.get)
	rg.DELETE("/documents/:id", h.delete)
	rg.GET("/documents/:id/content", h.content)
	rg.PUT("/documents/:id/content", h.submitContent)
	rg.POST("/documents/:id/summarize", h.summarize)
	rg.POST("/documents/:id/ask", h.ask)
	rg.POST("/documents/:id/key-points", h.keyPoints)
	rg.POST("/documents/:id/reextract", h.reextract)
}

func documentID(c *gin.Context) string {
	id := strings.TrimSpace(c.Param("id"))
	c.Set(middleware.DocumentIDKey, id)
	return id
}

func (h *Handler) upload(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.Svc.maxBytes()+multipartOverhead)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			respond.Error(c, http.StatusRequestEntityTooLarge, "file_too_large", "File exceeds the upload limit", gin.H{"maxBytes": h.Svc.maxBytes()})
			return
		}
		respond.Error(c, http.StatusBadRequest, "validation_error", "No file uploaded", nil)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
		return
	}
	defer file.Close()

	res, err := h.Svc.Upload(c.Request.Context(), UploadInput{
		UserID:      userID,
		FileName:    fileHeader.Filename,
		Title:       c.PostForm("title"),
		ContentType: fileHeader.Header.Get("Content-Type"),
		Body:        file,
	})
	if err != nil {
		writeError(c, err, "Error uploading document")
		return
	}
	c.Set(middleware.DocumentIDKey, res.Document.ID)

	respond.Created(c, UploadResponse{
		DocumentResponse: toResponse(res.Document),
		CanSummarize:     res.CanSummarize,
		Extraction:       toExtractionResponse(res.Extraction),
	})
}

const maxPageSize = 50

func (h *Handler) list(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	limit := DefaultListLimit
	offset := 0

	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			offset = parsed
		}
	}
	if offset < 0 {
		offset = 0
	}

	docs, err := h.Svc.List(c.Request.Context(), userID, limit, offset)
	if err != nil {
		writeError(c, err, "Error fetching documents")
		return
	}

	resp := make([]DocumentResponse, 0, len(docs))
	for _, doc := range docs {
		resp = append(resp, toResponse(doc))
	}
	respond.OK(c, resp)
}

func (h *Handler) get(c *gin.Context) {
	doc, err := h.Svc.Get(c.Request.Context(), middleware.UserIDFromContext(c), documentID(c))
	if err != nil {
		writeError(c, err, "Error fetching document")
		return
	}
	respond.OK(c, toDetailResponse(doc))
}

func (h *Handler) delete(c *gin.Context) {
	if err := h.Svc.Delete(c.Request.Context(), middleware.UserIDFromContext(c), documentID(c)); err != nil {
		writeError(c, err, "Error deleting document")
		return
	}
	respond.OK(c, gin.H{"message": "Document deleted successfully"})
}

func (h *Handler) content(c *gin.Context) {
	content, err := h.Svc.GetContent(c.Request.Context(), middleware.UserIDFromContext(c), documentID(c))
	if err != nil {
		writeError(c, err, "Error fetching document content")
		return
	}
	respond.OK(c, ContentResponse{
		DocumentID: content.DocumentID,
		Title:      content.Title,
		Content:    content.Text,
		HasContent: content.HasContent,
		State:      content.State,
		Method:     content.Method,
		Warning:    content.Warning,
	})
}

func (h *Handler) submitContent(c *gin.Context) {
	var req contentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	doc, err := h.Svc.SubmitManualContent(c.Request.Context(), middleware.UserIDFromContext(c), documentID(c), req.Content)
	if err != nil {
		writeError(c, err, "Error saving document content")
		return
	}
	respond.OK(c, gin.H{
		"message":      "Content updated successfully",
		"document":     toResponse(doc),
		"canSummarize": doc.State() == StateReady,
	})
}

func (h *Handler) summarize(c *gin.Context) {
	c.Set(middleware.LLMOperationKey, string(llm.OpSummarize))
	summary, err := h.Svc.Summarize(c.Request.Context(), middleware.UserIDFromContext(c), documentID(c))
	if err != nil {
		writeError(c, err, "Error summarizing document")
		return
	}
	respond.OK(c, gin.H{"summary": summary})
}

func (h *Handler) ask(c *gin.Context) {
	c.Set(middleware.LLMOperationKey, string(llm.OpAsk))
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	answer, err := h.Svc.Ask(c.Request.Context(), middleware.UserIDFromContext(c), documentID(c), req.Question)
	if err != nil {
		writeError(c, err, "Error answering question")
		return
	}
	respond.OK(c, gin.H{"question": strings.TrimSpace(req.Question), "answer": answer})
}

func (h *Handler) keyPoints(c *gin.Context) {
	c.Set(middleware.LLMOperationKey, string(llm.OpKeyPoints))
	points, err := h.Svc.KeyPoints(c.Request.Context(), middleware.UserIDFromContext(c), documentID(c))
	if err != nil {
		writeError(c, err, "Error extracting key points")
		return
	}
	respond.OK(c, gin.H{"keyPoints": points})
}

func (h *Handler) reextract(c *gin.Context) {
	out, err := h.Svc.RequestReextract(c.Request.Context(), middleware.UserIDFromContext(c), documentID(c), middleware.RequestIDFromContext(c))
	if err != nil {
		writeError(c, err, "Error re-extracting document")
		return
	}
	if out.Queued {
		respond.JSON(c, http.StatusAccepted, gin.H{"status": "queued", "documentId": out.Document.ID})
		return
	}
	respond.OK(c, gin.H{
		"status":       "completed",
		"document":     toResponse(out.Document),
		"extraction":   toExtractionResponse(out.Extraction),
		"canSummarize": out.Document.State() == StateReady,
	})
}

// writeError maps service and LLM errors onto the standard error payload.
func writeError(c *gin.Context, err error, fallback string) {
	var insufficient *InsufficientTextError
	switch {
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "Document not found", nil)
	case errors.As(err, &insufficient):
		respond.Error(c, http.StatusUnprocessableEntity, "insufficient_text", insufficient.Reason, gin.H{
			"length":  insufficient.Length,
			"minimum": MinSummarizableRunes,
			"scanned": insufficient.Scanned,
			"steps":   insufficient.Steps,
		})
	case errors.Is(err, ErrFileTooLarge):
		respond.Error(c, http.StatusRequestEntityTooLarge, "file_too_large", "File exceeds the upload limit", nil)
	case errors.Is(err, ErrInvalidInput):
		respond.Error(c, http.StatusBadRequest, "validation_error", strings.TrimPrefix(err.Error(), ErrInvalidInput.Error()+": "), nil)
	case errors.Is(err, ErrStorage):
		respond.Error(c, http.StatusBadGateway, "storage_error", "Storage operation failed", nil)
	case errors.Is(err, ErrQueueUnavailable):
		respond.Error(c, http.StatusServiceUnavailable, "queue_unavailable", "Re-extraction could not be queued, please retry later", nil)
	case llm.KindOf(err) != "":
		writeLLMError(c, err)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", fallback, nil)
	}
}

func writeLLMError(c *gin.Context, err error) {
	switch llm.KindOf(err) {
	case llm.KindInvalidQuestion:
		respond.Error(c, http.StatusBadRequest, "invalid_question", "Question must be at least 3 characters", nil)
	case llm.KindEmptyInput:
		respond.Error(c, http.StatusUnprocessableEntity, "insufficient_text", "No text content to analyze", nil)
	case llm.KindRateLimited:
		respond.Error(c, http.StatusTooManyRequests, "llm_rate_limited", "The AI service is busy, please retry later", nil)
	case llm.KindQuotaExceeded:
		respond.Error(c, http.StatusTooManyRequests, "llm_quota_exceeded", "The AI service quota is exhausted, please retry later", nil)
	case llm.KindMissingCredential:
		respond.Error(c, http.StatusServiceUnavailable, "llm_not_configured", "The AI service is not configured", nil)
	case llm.KindInvalidCredential:
		respond.Error(c, http.StatusBadGateway, "llm_invalid_credential", "The AI service rejected its credentials", nil)
	case llm.KindEmptyResponse:
		respond.Error(c, http.StatusBadGateway, "llm_empty_response", "The AI service returned an empty response", nil)
	default:
		respond.Error(c, http.StatusBadGateway, "llm_unavailable", "The AI service failed to respond", nil)
	}
}
