package documents

import (
	"strings"
	"time"
	"unicode/utf8"

	"intellidoc-backend/internal/extract"
)

const (
	// MinSummarizableRunes is the stored-text floor for every LLM operation.
	MinSummarizableRunes = 50
	// MinManualContentRunes is the shortest accepted manual submission.
	MinManualContentRunes = 10

	MethodManual = string(extract.MethodManual)
)

// Document represents an uploaded document owned by a user.
type Document struct {
	ID                string
	UserID            string
	Title             string
	FileName          string
	MimeType          string
	SizeBytes         int64
	StorageProvider   string
	StorageKey        string
	FileURL           string
	TextContent       string
	ExtractionMethod  string
	ExtractionWarning string
	UploadedAt        time.Time
	UpdatedAt         time.Time
}

// State describes how usable a document's stored text is.
type State string

const (
	StateUnextracted State = "unextracted"
	StatePartialText State = "partial_text"
	StateReady       State = "ready"
)

// TextLength counts the runes of the trimmed stored text.
func (d Document) TextLength() int {
	return utf8.RuneCountInString(strings.TrimSpace(d.TextContent))
}

// State derives the extractability state from the stored text.
func (d Document) State() State {
	switch n := d.TextLength(); {
	case n == 0:
		return StateUnextracted
	case n < MinSummarizableRunes:
		return StatePartialText
	default:
		return StateReady
	}
}
