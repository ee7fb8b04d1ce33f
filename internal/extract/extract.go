// Package extract turns uploaded payloads into plain text.
//
// Extraction is never fatal: malformed input, unsupported media types and
// extractor panics all produce a Result with Succeeded=false.
package extract

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"intellidoc-backend/internal/shared/metrics"
	"intellidoc-backend/internal/shared/telemetry"
)

const (
	MediaTypePDF  = "application/pdf"
	MediaTypeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MediaTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	MediaTypePPTX = "application/vnd.openxmlformats-officedocument.presentationml.presentation"
	MediaTypeJSON = "application/json"
)

// Method records which extractor produced a Result.
type Method string

const (
	MethodPDF         Method = "pdf"
	MethodOCR         Method = "ocr"
	MethodDOCX        Method = "docx"
	MethodXLSX        Method = "xlsx"
	MethodText        Method = "text"
	MethodUnsupported Method = "unsupported"
	MethodNone        Method = "none"
	MethodManual      Method = "manual"
)

// Warnings attached to unsuccessful results.
const (
	WarnPDFScanned       = "PDF_IS_SCANNED"
	WarnPDFLowQuality    = "PDF_LOW_QUALITY"
	WarnExtractionFailed = "EXTRACTION_FAILED"
	WarnUnsupported      = "UNSUPPORTED_TYPE"
	WarnEmpty            = "EMPTY_FILE"
)

const (
	pdfMinChars = 50
	ocrMinChars = 100
)

// Result is the outcome of one extraction attempt.
type Result struct {
	Text      string
	Method    Method
	Succeeded bool
	Warning   string
}

// OCR recognises text in a PDF whose text layer is unusable.
type OCR interface {
	RecognizePDF(ctx context.Context, pdf []byte) (string, error)
}

// Extractor routes payloads to per-format extractors and applies the
// quality heuristics. OCR is optional; without it scanned PDFs stay failed.
type Extractor struct {
	OCR OCR

	pdfText  func([]byte) (string, error)
	docxText func([]byte) (string, error)
	xlsxText func([]byte) (string, error)
}

// New returns an Extractor that falls back to ocr for scanned PDFs.
func New(ocr OCR) *Extractor {
	return &Extractor{OCR: ocr}
}

// Extract selects an extractor for mediaType and returns the normalized result.
func (e *Extractor) Extract(ctx context.Context, mediaType string, data []byte) Result {
	if len(data) == 0 {
		return Result{Method: MethodNone, Warning: WarnEmpty}
	}
	mt := baseType(mediaType)
	switch {
	case mt == MediaTypePDF:
		return e.extractPDF(ctx, data)
	case mt == MediaTypeDOCX:
		return e.structured(MethodDOCX, e.docx(), data)
	case mt == MediaTypeXLSX:
		return e.structured(MethodXLSX, e.xlsx(), data)
	case strings.Contains(mt, "text/") || mt == MediaTypeJSON:
		text := Normalize(strings.ToValidUTF8(string(data), ""))
		return Result{Text: text, Method: MethodText, Succeeded: text != ""}
	default:
		return Result{Method: MethodUnsupported, Warning: WarnUnsupported}
	}
}

func (e *Extractor) extractPDF(ctx context.Context, data []byte) Result {
	raw, err := safely(e.pdf(), data)
	res := Result{Text: Normalize(raw), Method: MethodPDF}
	n := utf8.RuneCountInString(res.Text)
	switch {
	case err != nil:
		res.Warning = WarnExtractionFailed
		telemetry.Warn("extract.pdf.failed", map[string]any{"error": err})
	case n == 0:
		res.Warning = WarnPDFScanned
	case n <= pdfMinChars:
		res.Warning = WarnPDFLowQuality
	default:
		res.Succeeded = true
		return res
	}

	if e.OCR == nil {
		return res
	}
	metrics.IncOCRFallback()
	telemetry.Info("extract.ocr.fallback", map[string]any{"text_layer_chars": n, "warning": res.Warning})
	ocrText, err := e.OCR.RecognizePDF(ctx, data)
	if err != nil {
		telemetry.Warn("extract.ocr.failed", map[string]any{"error": err})
		return res
	}
	ocrText = Normalize(ocrText)
	if got := utf8.RuneCountInString(ocrText); got <= ocrMinChars {
		telemetry.Info("extract.ocr.insufficient", map[string]any{"chars": got})
		return res
	}
	metrics.IncOCRSucceeded()
	return Result{Text: ocrText, Method: MethodOCR, Succeeded: true}
}

func (e *Extractor) structured(method Method, fn func([]byte) (string, error), data []byte) Result {
	raw, err := safely(fn, data)
	if err != nil {
		telemetry.Warn("extract.failed", map[string]any{"method": string(method), "error": err})
		return Result{Method: method, Warning: WarnExtractionFailed}
	}
	text := Normalize(raw)
	return Result{Text: text, Method: method, Succeeded: text != ""}
}

func (e *Extractor) pdf() func([]byte) (string, error) {
	if e.pdfText != nil {
		return e.pdfText
	}
	return pdfText
}

func (e *Extractor) docx() func([]byte) (string, error) {
	if e.docxText != nil {
		return e.docxText
	}
	return docxText
}

func (e *Extractor) xlsx() func([]byte) (string, error) {
	if e.xlsxText != nil {
		return e.xlsxText
	}
	return xlsxText
}

// safely runs fn, converting a panic into an error.
func safely(fn func([]byte) (string, error), data []byte) (text string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			text, err = "", fmt.Errorf("extractor panic: %v", rec)
		}
	}()
	text, err = fn(data)
	if err != nil {
		return "", err
	}
	return text, nil
}

func baseType(mediaType string) string {
	return strings.ToLower(strings.TrimSpace(strings.Split(mediaType, ";")[0]))
}
