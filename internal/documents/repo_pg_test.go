package documents

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

var pgColumns = []string{
	"id", "user_id", "title", "file_name", "mime_type", "size_bytes", "storage_provider", "storage_key",
	"file_url", "text_content", "extraction_method", "extraction_warning", "uploaded_at", "updated_at",
}

func newMockRepo(t *testing.T) (*PGRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return &PGRepo{DB: db}, mock
}

func TestPGRepoCreate(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()
	doc := Document{
		ID:               "doc-1",
		UserID:           "user-1",
		Title:            "Report",
		FileName:         "report.pdf",
		MimeType:         "application/pdf",
		SizeBytes:        2048,
		StorageKey:       "abc/uuid_report.pdf",
		FileURL:          "http://localhost/files/abc/uuid_report.pdf",
		TextContent:      "",
		ExtractionMethod: "pdf",
		UploadedAt:       now,
	}

	mock.ExpectExec("INSERT INTO documents").
		WithArgs(
			doc.ID,
			doc.UserID,
			doc.Title,
			doc.FileName,
			doc.MimeType,
			doc.SizeBytes,
			"local", // storage_provider default
			doc.StorageKey,
			doc.FileURL,
			"",
			"pdf",
			"",
			now,
			now, // updated_at defaults to uploaded_at
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.Create(context.Background(), doc); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoGetByIDScopesToUser(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT (.+) FROM documents WHERE user_id = \\$1 AND id = \\$2").
		WithArgs("user-1", "doc-1").
		WillReturnRows(sqlmock.NewRows(pgColumns).AddRow(
			"doc-1", "user-1", "Report", "report.pdf", "application/pdf", int64(10), "s3", "k", "u", "text", "pdf", "", now, now,
		))

	doc, err := repo.GetByID(context.Background(), "user-1", "doc-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if doc.Title != "Report" || doc.StorageProvider != "s3" || doc.TextContent != "text" {
		t.Fatalf("unexpected document %+v", doc)
	}

	mock.ExpectQuery("SELECT (.+) FROM documents").
		WithArgs("user-2", "doc-1").
		WillReturnError(sql.ErrNoRows)
	if _, err := repo.GetByID(context.Background(), "user-2", "doc-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoListByUserClampsLimit(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()

	mock.ExpectQuery("ORDER BY uploaded_at DESC").
		WithArgs("user-1", 100, 0).
		WillReturnRows(sqlmock.NewRows(pgColumns).
			AddRow("doc-2", "user-1", "B", "b.txt", "text/plain", int64(1), "local", "k2", "", "", "text", "", now, now).
			AddRow("doc-1", "user-1", "A", "a.txt", "text/plain", int64(1), "local", "k1", "", "", "text", "", now, now))

	docs, err := repo.ListByUser(context.Background(), "user-1", 500, -3)
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(docs) != 2 || docs[0].ID != "doc-2" {
		t.Fatalf("unexpected docs %+v", docs)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoUpdateText(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()

	mock.ExpectQuery("UPDATE documents").
		WithArgs("manual text", "manual", "", now, "user-1", "doc-1").
		WillReturnRows(sqlmock.NewRows(pgColumns).AddRow(
			"doc-1", "user-1", "A", "a.pdf", "application/pdf", int64(1), "local", "k", "", "manual text", "manual", "", now, now,
		))

	doc, err := repo.UpdateText(context.Background(), "user-1", "doc-1", TextUpdate{TextContent: "manual text", ExtractionMethod: "manual", UpdatedAt: now})
	if err != nil {
		t.Fatalf("UpdateText: %v", err)
	}
	if doc.TextContent != "manual text" {
		t.Fatalf("unexpected document %+v", doc)
	}

	mock.ExpectQuery("UPDATE documents").WillReturnError(sql.ErrNoRows)
	if _, err := repo.UpdateText(context.Background(), "user-1", "nope", TextUpdate{UpdatedAt: now}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoDelete(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("DELETE FROM documents").
		WithArgs("user-1", "doc-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM documents").
		WithArgs("user-1", "doc-2").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.Delete(context.Background(), "user-1", "doc-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := repo.Delete(context.Background(), "user-1", "doc-2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}
