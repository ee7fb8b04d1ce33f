package documents

import (
	"errors"
	"fmt"

	"intellidoc-backend/internal/extract"
)

var (
	ErrNotFound         = errors.New("document not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrFileTooLarge     = errors.New("file too large")
	ErrStorage          = errors.New("storage failure")
	ErrInsufficientText = errors.New("insufficient text")
	ErrQueueUnavailable = errors.New("re-extraction queue unavailable")
)

// InsufficientTextError is returned when a document's stored text is below
// the LLM floor. Reason and Steps are shown to the user.
type InsufficientTextError struct {
	Length  int
	Scanned bool
	Reason  string
	Steps   []string
}

func (e *InsufficientTextError) Error() string {
	return fmt.Sprintf("insufficient text: %d characters, need at least %d", e.Length, MinSummarizableRunes)
}

func (e *InsufficientTextError) Is(target error) bool { return target == ErrInsufficientText }

func newInsufficientTextError(doc Document) *InsufficientTextError {
	e := &InsufficientTextError{Length: doc.TextLength(), Scanned: looksScanned(doc)}
	if e.Scanned {
		e.Reason = "This PDF appears to be scanned or image-based, so little or no text could be extracted."
		e.Steps = []string{
			"Run the PDF through OCR software to produce a text-based PDF, then upload it again",
			"Upload the document as DOCX or plain text instead",
			"Paste the document text using manual content submission",
		}
		return e
	}
	e.Reason = "This document does not contain enough text to analyze."
	e.Steps = []string{
		"Upload the document in a text-bearing format such as PDF, DOCX or TXT",
		"Paste the document text using manual content submission",
	}
	return e
}

func looksScanned(doc Document) bool {
	if doc.MimeType != extract.MediaTypePDF {
		return false
	}
	switch doc.ExtractionWarning {
	case extract.WarnPDFScanned, extract.WarnPDFLowQuality:
		return true
	}
	return doc.TextLength() == 0 && doc.ExtractionMethod != MethodManual
}

func invalidInput(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, msg)
}
