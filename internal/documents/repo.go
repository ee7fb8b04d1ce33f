package documents

import (
	"context"
	"time"
)

const (
	DefaultListLimit = 20
	maxRepoListLimit = 100
)

// clampPage applies the paging rules every repository shares.
func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > maxRepoListLimit {
		limit = maxRepoListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// TextUpdate replaces a document's stored text and extraction outcome.
type TextUpdate struct {
	TextContent       string
	ExtractionMethod  string
	ExtractionWarning string
	UpdatedAt         time.Time
}

// DocumentsRepo defines persistence operations for documents. Every lookup
// is scoped to the owning user.
type DocumentsRepo interface {
	Create(ctx context.Context, doc Document) error
	GetByID(ctx context.Context, userID, documentID string) (Document, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]Document, error)
	UpdateText(ctx context.Context, userID, documentID string, upd TextUpdate) (Document, error)
	Delete(ctx context.Context, userID, documentID string) error
}
