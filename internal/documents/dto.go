package documents

import (
	"time"

	"intellidoc-backend/internal/extract"
)

// DocumentResponse is the outward-facing representation of a document.
type DocumentResponse struct {
	ID                string    `json:"id"`
	Title             string    `json:"title"`
	FileName          string    `json:"fileName"`
	FileURL           string    `json:"fileUrl"`
	FileType          string    `json:"fileType"`
	Size              int64     `json:"size"`
	UploadedAt        time.Time `json:"uploadedAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
	ExtractionMethod  string    `json:"extractionMethod"`
	ExtractionWarning string    `json:"extractionWarning,omitempty"`
	State             State     `json:"state"`
	HasContent        bool      `json:"hasContent"`
	TextContent       *string   `json:"textContent,omitempty"`
}

// ExtractionResponse reports the outcome of an extraction run.
type ExtractionResponse struct {
	Method    string `json:"method"`
	Succeeded bool   `json:"succeeded"`
	Warning   string `json:"warning,omitempty"`
}

// UploadResponse is returned by POST /documents.
type UploadResponse struct {
	DocumentResponse
	CanSummarize bool               `json:"canSummarize"`
	Extraction   ExtractionResponse `json:"extraction"`
}

// ContentResponse is returned by GET /documents/:id/content.
type ContentResponse struct {
	DocumentID string `json:"documentId"`
	Title      string `json:"title"`
	Content    string `json:"content"`
	HasContent bool   `json:"hasContent"`
	State      State  `json:"state"`
	Method     string `json:"extractionMethod"`
	Warning    string `json:"extractionWarning,omitempty"`
}

type askRequest struct {
	Question string `json:"question"`
}

type contentRequest struct {
	Content string `json:"content"`
}

func toResponse(doc Document) DocumentResponse {
	return DocumentResponse{
		ID:                doc.ID,
		Title:             doc.Title,
		FileName:          doc.FileName,
		FileURL:           doc.FileURL,
		FileType:          doc.MimeType,
		Size:              doc.SizeBytes,
		UploadedAt:        doc.UploadedAt,
		UpdatedAt:         doc.UpdatedAt,
		ExtractionMethod:  doc.ExtractionMethod,
		ExtractionWarning: doc.ExtractionWarning,
		State:             doc.State(),
		HasContent:        doc.TextLength() > 0,
	}
}

func toDetailResponse(doc Document) DocumentResponse {
	resp := toResponse(doc)
	text := doc.TextContent
	resp.TextContent = &text
	return resp
}

func toExtractionResponse(r extract.Result) ExtractionResponse {
	return ExtractionResponse{Method: string(r.Method), Succeeded: r.Succeeded, Warning: r.Warning}
}
