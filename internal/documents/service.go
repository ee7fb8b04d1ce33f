package documents

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"intellidoc-backend/internal/extract"
	"intellidoc-backend/internal/queue"
	"intellidoc-backend/internal/shared/metrics"
	"intellidoc-backend/internal/shared/storage/object"
	"intellidoc-backend/internal/shared/telemetry"
	"intellidoc-backend/internal/shared/util"
)

// DefaultMaxUploadBytes caps uploads and re-extraction reads.
const DefaultMaxUploadBytes = 10 << 20

// EmptyContentPlaceholder is returned by GetContent when no text is stored.
const EmptyContentPlaceholder = "No text could be extracted from this document. If it is a scanned file, paste its text using manual content submission."

const compensationTimeout = 10 * time.Second

// Extractor turns an uploaded file into text.
type Extractor interface {
	Extract(ctx context.Context, mediaType string, data []byte) extract.Result
}

// Assistant runs LLM operations on document text.
type Assistant interface {
	Summarize(ctx context.Context, text string) (string, error)
	AskQuestion(ctx context.Context, text, question string) (string, error)
	ExtractKeyPoints(ctx context.Context, text string) ([]string, error)
}

// Service contains business logic for documents.
type Service struct {
	Store     object.ObjectStore
	Repo      DocumentsRepo
	Extractor Extractor
	LLM       Assistant
	// Queue is optional; without it re-extraction runs inline.
	Queue          queue.Publisher
	MaxUploadBytes int64
	Now            func() time.Time
}

// NewService constructs a Service with default limits.
func NewService(store object.ObjectStore, repo DocumentsRepo, extractor Extractor, assistant Assistant, q queue.Publisher) *Service {
	return &Service{
		Store:          store,
		Repo:           repo,
		Extractor:      extractor,
		LLM:            assistant,
		Queue:          q,
		MaxUploadBytes: DefaultMaxUploadBytes,
		Now:            time.Now,
	}
}

// UploadInput is a file received from a client.
type UploadInput struct {
	UserID      string
	FileName    string
	Title       string
	ContentType string
	Body        io.Reader
}

// UploadResult is the created document plus how extraction went.
type UploadResult struct {
	Document     Document
	CanSummarize bool
	Extraction   extract.Result
}

// BlobRef points at a stored upload.
type BlobRef struct {
	Provider string
	Key      string
	URL      string
	FileName string
}

// Content is the stored text of a document as shown to clients.
type Content struct {
	DocumentID string
	Title      string
	Text       string
	HasContent bool
	State      State
	Method     string
	Warning    string
}

// ReextractOutcome reports whether re-extraction was queued or run inline.
type ReextractOutcome struct {
	Queued     bool
	Document   Document
	Extraction extract.Result
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) maxBytes() int64 {
	if s.MaxUploadBytes > 0 {
		return s.MaxUploadBytes
	}
	return DefaultMaxUploadBytes
}

// Upload extracts text from the file, stores the blob and records the
// document. Extraction problems never fail the upload. If the record cannot
// be written the blob is removed again.
func (s *Service) Upload(ctx context.Context, in UploadInput) (UploadResult, error) {
	if strings.TrimSpace(in.UserID) == "" {
		return UploadResult{}, invalidInput("user id required")
	}
	if in.Body == nil {
		return UploadResult{}, invalidInput("file is required")
	}
	name, err := util.SanitizeFileName(in.FileName)
	if err != nil {
		return UploadResult{}, invalidInput("file name is required")
	}

	data, err := s.readLimited(in.Body)
	if err != nil {
		return UploadResult{}, err
	}

	mediaType := extract.ResolveMediaType(in.ContentType, name, data)
	result := s.Extractor.Extract(ctx, mediaType, data)

	blob, err := s.Store.Save(ctx, in.UserID, name, mediaType, bytes.NewReader(data))
	if err != nil {
		return UploadResult{}, fmt.Errorf("%w: save blob: %w", ErrStorage, err)
	}
	ref := BlobRef{Provider: blob.Provider, Key: blob.Key, URL: s.Store.URL(blob.Key), FileName: name}

	doc, canSummarize, err := s.RecordUpload(ctx, in.UserID, ref, in.Title, mediaType, int64(len(data)), result)
	if err != nil {
		s.discardBlob(ctx, blob.Key, err)
		return UploadResult{}, err
	}
	return UploadResult{Document: doc, CanSummarize: canSummarize, Extraction: result}, nil
}

func (s *Service) readLimited(r io.Reader) ([]byte, error) {
	limit := s.maxBytes()
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: limit is %d bytes", ErrFileTooLarge, limit)
	}
	return data, nil
}

func (s *Service) discardBlob(ctx context.Context, key string, cause error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()
	if err := s.Store.Delete(ctx, key); err != nil {
		telemetry.Error("document.orphaned_blob", map[string]any{
			"storage_key": key,
			"cause":       cause.Error(),
			"error":       err.Error(),
		})
		return
	}
	telemetry.Warn("document.upload_rolled_back", map[string]any{"storage_key": key, "cause": cause.Error()})
}

// RecordUpload persists a document for a stored blob. The extracted text is
// kept whatever the extraction outcome; canSummarize mirrors result.Succeeded.
func (s *Service) RecordUpload(ctx context.Context, userID string, ref BlobRef, title, mediaType string, size int64, result extract.Result) (Document, bool, error) {
	if strings.TrimSpace(userID) == "" {
		return Document{}, false, invalidInput("user id required")
	}
	if strings.TrimSpace(ref.Key) == "" {
		return Document{}, false, invalidInput("storage key required")
	}
	title = strings.TrimSpace(title)
	if title == "" {
		title = ref.FileName
	}
	if title == "" {
		return Document{}, false, invalidInput("title is required")
	}
	if size < 0 {
		size = 0
	}
	method := string(result.Method)
	if method == "" {
		method = string(extract.MethodNone)
	}

	now := s.now()
	doc := Document{
		ID:                uuid.NewString(),
		UserID:            userID,
		Title:             title,
		FileName:          ref.FileName,
		MimeType:          mediaType,
		SizeBytes:         size,
		StorageProvider:   ref.Provider,
		StorageKey:        ref.Key,
		FileURL:           ref.URL,
		TextContent:       result.Text,
		ExtractionMethod:  method,
		ExtractionWarning: result.Warning,
		UploadedAt:        now,
		UpdatedAt:         now,
	}
	if err := s.Repo.Create(ctx, doc); err != nil {
		return Document{}, false, fmt.Errorf("create document: %w", err)
	}

	metrics.IncDocumentsUploaded()
	if !result.Succeeded {
		metrics.IncExtractionFailed()
	}
	telemetry.Info("document.uploaded", map[string]any{
		"document_id": doc.ID,
		"user_id":     userID,
		"mime_type":   mediaType,
		"size_bytes":  size,
		"method":      method,
		"succeeded":   result.Succeeded,
		"warning":     result.Warning,
		"text_runes":  doc.TextLength(),
	})
	return doc, result.Succeeded, nil
}

// Get returns one of the user's documents.
func (s *Service) Get(ctx context.Context, userID, documentID string) (Document, error) {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(documentID) == "" {
		return Document{}, ErrNotFound
	}
	return s.Repo.GetByID(ctx, userID, documentID)
}

// List returns the user's documents, newest first.
func (s *Service) List(ctx context.Context, userID string, limit, offset int) ([]Document, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, invalidInput("user id required")
	}
	return s.Repo.ListByUser(ctx, userID, limit, offset)
}

// GetContent returns the stored text, or a placeholder when there is none.
func (s *Service) GetContent(ctx context.Context, userID, documentID string) (Content, error) {
	doc, err := s.Get(ctx, userID, documentID)
	if err != nil {
		return Content{}, err
	}
	c := Content{
		DocumentID: doc.ID,
		Title:      doc.Title,
		Text:       doc.TextContent,
		HasContent: strings.TrimSpace(doc.TextContent) != "",
		State:      doc.State(),
		Method:     doc.ExtractionMethod,
		Warning:    doc.ExtractionWarning,
	}
	if !c.HasContent {
		c.Text = EmptyContentPlaceholder
	}
	return c, nil
}

func (s *Service) loadReady(ctx context.Context, userID, documentID string) (Document, error) {
	doc, err := s.Get(ctx, userID, documentID)
	if err != nil {
		return Document{}, err
	}
	if doc.TextLength() < MinSummarizableRunes {
		return Document{}, newInsufficientTextError(doc)
	}
	return doc, nil
}

// Summarize summarizes a document with enough stored text.
func (s *Service) Summarize(ctx context.Context, userID, documentID string) (string, error) {
	doc, err := s.loadReady(ctx, userID, documentID)
	if err != nil {
		return "", err
	}
	return s.LLM.Summarize(ctx, doc.TextContent)
}

// Ask answers a question about a document with enough stored text.
func (s *Service) Ask(ctx context.Context, userID, documentID, question string) (string, error) {
	doc, err := s.loadReady(ctx, userID, documentID)
	if err != nil {
		return "", err
	}
	return s.LLM.AskQuestion(ctx, doc.TextContent, question)
}

// KeyPoints extracts key points from a document with enough stored text.
func (s *Service) KeyPoints(ctx context.Context, userID, documentID string) ([]string, error) {
	doc, err := s.loadReady(ctx, userID, documentID)
	if err != nil {
		return nil, err
	}
	return s.LLM.ExtractKeyPoints(ctx, doc.TextContent)
}

// SubmitManualContent replaces the stored text with user-supplied text.
func (s *Service) SubmitManualContent(ctx context.Context, userID, documentID, content string) (Document, error) {
	content = strings.TrimSpace(content)
	if utf8.RuneCountInString(content) < MinManualContentRunes {
		return Document{}, invalidInput(fmt.Sprintf("content must be at least %d characters", MinManualContentRunes))
	}
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(documentID) == "" {
		return Document{}, ErrNotFound
	}
	doc, err := s.Repo.UpdateText(ctx, userID, documentID, TextUpdate{
		TextContent:      content,
		ExtractionMethod: MethodManual,
		UpdatedAt:        s.now(),
	})
	if err != nil {
		return Document{}, err
	}
	telemetry.Info("document.manual_content", map[string]any{
		"document_id": doc.ID,
		"user_id":     userID,
		"text_runes":  doc.TextLength(),
	})
	return doc, nil
}

// Delete removes the blob and then the record. When the blob cannot be
// removed the record is kept and ErrStorage is returned.
func (s *Service) Delete(ctx context.Context, userID, documentID string) error {
	doc, err := s.Get(ctx, userID, documentID)
	if err != nil {
		return err
	}
	if doc.StorageKey != "" {
		if err := s.Store.Delete(ctx, doc.StorageKey); err != nil {
			telemetry.Error("document.blob_delete_failed", map[string]any{
				"document_id": doc.ID,
				"storage_key": doc.StorageKey,
				"error":       err.Error(),
			})
			return fmt.Errorf("%w: delete blob: %w", ErrStorage, err)
		}
	}
	if err := s.Repo.Delete(ctx, userID, documentID); err != nil {
		return err
	}
	telemetry.Info("document.deleted", map[string]any{"document_id": doc.ID, "user_id": userID})
	return nil
}

// Reextract re-runs extraction on the stored blob. The stored text is only
// replaced when the new text is at least as long, so a document never moves
// back to an earlier state.
func (s *Service) Reextract(ctx context.Context, userID, documentID string) (Document, extract.Result, error) {
	doc, err := s.Get(ctx, userID, documentID)
	if err != nil {
		return Document{}, extract.Result{}, err
	}
	if doc.StorageKey == "" {
		return Document{}, extract.Result{}, fmt.Errorf("%w: document has no stored file", ErrStorage)
	}
	rc, err := s.Store.Open(ctx, doc.StorageKey)
	if err != nil {
		return Document{}, extract.Result{}, fmt.Errorf("%w: open blob: %w", ErrStorage, err)
	}
	data, err := s.readLimited(rc)
	rc.Close()
	if err != nil {
		return Document{}, extract.Result{}, err
	}

	result := s.Extractor.Extract(ctx, doc.MimeType, data)
	newLen := utf8.RuneCountInString(strings.TrimSpace(result.Text))
	if newLen < doc.TextLength() {
		telemetry.Info("document.reextract_kept_existing", map[string]any{
			"document_id":   doc.ID,
			"stored_runes":  doc.TextLength(),
			"new_runes":     newLen,
			"new_method":    string(result.Method),
			"stored_method": doc.ExtractionMethod,
		})
		return doc, result, nil
	}

	updated, err := s.Repo.UpdateText(ctx, userID, documentID, TextUpdate{
		TextContent:       result.Text,
		ExtractionMethod:  string(result.Method),
		ExtractionWarning: result.Warning,
		UpdatedAt:         s.now(),
	})
	if err != nil {
		return Document{}, extract.Result{}, err
	}
	telemetry.Info("document.reextracted", map[string]any{
		"document_id": doc.ID,
		"method":      string(result.Method),
		"succeeded":   result.Succeeded,
		"text_runes":  updated.TextLength(),
	})
	return updated, result, nil
}

// RequestReextract queues re-extraction when a queue is configured and runs
// it inline otherwise.
func (s *Service) RequestReextract(ctx context.Context, userID, documentID, requestID string) (ReextractOutcome, error) {
	if s.Queue == nil {
		doc, result, err := s.Reextract(ctx, userID, documentID)
		if err != nil {
			return ReextractOutcome{}, err
		}
		return ReextractOutcome{Document: doc, Extraction: result}, nil
	}

	doc, err := s.Get(ctx, userID, documentID)
	if err != nil {
		return ReextractOutcome{}, err
	}
	msg := queue.NewReextractMessage(doc.ID, userID, requestID, s.now())
	if err := s.Queue.Publish(ctx, msg); err != nil {
		return ReextractOutcome{}, fmt.Errorf("%w: %w", ErrQueueUnavailable, err)
	}
	telemetry.Info("document.reextract_queued", map[string]any{
		"document_id": doc.ID,
		"request_id":  requestID,
	})
	return ReextractOutcome{Queued: true, Document: doc}, nil
}

// ProcessReextraction is the worker entry point for queued re-extraction.
func (s *Service) ProcessReextraction(ctx context.Context, userID, documentID string) error {
	_, _, err := s.Reextract(ctx, userID, documentID)
	return err
}

// IsPermanent reports whether retrying a re-extraction cannot succeed.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrFileTooLarge) || errors.Is(err, object.ErrNotFound)
}
