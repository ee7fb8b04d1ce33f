package documents

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"intellidoc-backend/internal/llm"
	"intellidoc-backend/internal/shared/auth"
	"intellidoc-backend/internal/shared/server/middleware"
)

type handlerEnv struct {
	router *gin.Engine
	issuer *auth.Issuer
	fix    fixture
}

func newHandlerEnv(t *testing.T) handlerEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	issuer, err := auth.NewIssuer("s3cret", time.Hour, "dev")
	if err != nil {
		t.Fatalf("issuer: %v", err)
	}
	fix := newFixture(t, nil)

	r := gin.New()
	r.Use(middleware.RequestID())
	api := r.Group("/api/v1")
	api.Use(middleware.Auth(issuer))
	NewHandler(fix.svc).RegisterRoutes(api)
	return handlerEnv{router: r, issuer: issuer, fix: fix}
}

func (e handlerEnv) do(t *testing.T, userID string, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	token, err := e.issuer.Sign(auth.Claims{UserID: userID})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func uploadRequest(t *testing.T, name string, data []byte) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	fw, err := writer.CreateFormFile("file", name)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write(data); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload struct {
		Error map[string]any `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode error body: %v (%s)", err, rec.Body.String())
	}
	return payload.Error
}

func TestHandlerRequiresToken(t *testing.T) {
	env := newHandlerEnv(t)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/documents", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestHandlerUpload(t *testing.T) {
	env := newHandlerEnv(t)

	rec := env.do(t, "user-1", uploadRequest(t, "hello.txt", []byte(helloText)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp UploadResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ID == "" || resp.FileName != "hello.txt" {
		t.Fatalf("unexpected document: %+v", resp.DocumentResponse)
	}
	if !resp.CanSummarize || resp.State != StateReady {
		t.Fatalf("expected a ready document, got %+v", resp)
	}
	if !resp.Extraction.Succeeded || resp.Extraction.Method != "text" {
		t.Fatalf("unexpected extraction: %+v", resp.Extraction)
	}
	if resp.TextContent != nil {
		t.Fatalf("list/upload view must not carry text content")
	}
}

func TestHandlerUploadWithoutFile(t *testing.T) {
	env := newHandlerEnv(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", strings.NewReader(""))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=x")
	rec := env.do(t, "user-1", req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if msg := decodeError(t, rec)["message"]; msg != "No file uploaded" {
		t.Fatalf("unexpected message %v", msg)
	}
}

func TestHandlerSummarizeInsufficientText(t *testing.T) {
	env := newHandlerEnv(t)
	doc := env.fix.seed(t, "user-1", "too short", "text/plain", "")

	rec := env.do(t, "user-1", httptest.NewRequest(http.MethodPost, "/api/v1/documents/"+doc.ID+"/summarize", nil))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeError(t, rec)
	if body["code"] != "insufficient_text" {
		t.Fatalf("unexpected code %v", body["code"])
	}
	details, ok := body["details"].(map[string]any)
	if !ok {
		t.Fatalf("expected details, got %v", body["details"])
	}
	if details["length"] != float64(len("too short")) || details["minimum"] != float64(MinSummarizableRunes) {
		t.Fatalf("unexpected details %v", details)
	}
	if env.fix.llm.calls != 0 {
		t.Fatalf("llm must not be called")
	}
}

func TestHandlerSummarize(t *testing.T) {
	env := newHandlerEnv(t)
	env.fix.llm.reply = "A short summary."
	doc := env.fix.seed(t, "user-1", helloText, "text/plain", "")

	rec := env.do(t, "user-1", httptest.NewRequest(http.MethodPost, "/api/v1/documents/"+doc.ID+"/summarize", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["summary"] != "A short summary." {
		t.Fatalf("unexpected summary %q", resp["summary"])
	}
}

func TestHandlerAskShortQuestion(t *testing.T) {
	env := newHandlerEnv(t)
	doc := env.fix.seed(t, "user-1", helloText, "text/plain", "")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents/"+doc.ID+"/ask", strings.NewReader(`{"question":"Hi"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := env.do(t, "user-1", req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if code := decodeError(t, rec)["code"]; code != "invalid_question" {
		t.Fatalf("unexpected code %v", code)
	}
	if env.fix.llm.calls != 0 {
		t.Fatalf("llm must not be called")
	}
}

func TestHandlerLLMRateLimited(t *testing.T) {
	env := newHandlerEnv(t)
	env.fix.llm.err = llm.NewError(llm.KindRateLimited, "fake", errBoom)
	doc := env.fix.seed(t, "user-1", helloText, "text/plain", "")

	rec := env.do(t, "user-1", httptest.NewRequest(http.MethodPost, "/api/v1/documents/"+doc.ID+"/key-points", nil))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
}

func TestHandlerOtherUsersDocument(t *testing.T) {
	env := newHandlerEnv(t)
	doc := env.fix.seed(t, "user-1", helloText, "text/plain", "")

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/api/v1/documents/"+doc.ID, nil),
		httptest.NewRequest(http.MethodGet, "/api/v1/documents/"+doc.ID+"/content", nil),
		httptest.NewRequest(http.MethodDelete, "/api/v1/documents/"+doc.ID, nil),
	} {
		rec := env.do(t, "user-2", req)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("%s %s: expected 404, got %d", req.Method, req.URL.Path, rec.Code)
		}
	}
	if !env.fix.store.has(doc.StorageKey) {
		t.Fatalf("foreign delete must not touch the blob")
	}
}

func TestHandlerGetIncludesText(t *testing.T) {
	env := newHandlerEnv(t)
	doc := env.fix.seed(t, "user-1", helloText, "text/plain", "")

	rec := env.do(t, "user-1", httptest.NewRequest(http.MethodGet, "/api/v1/documents/"+doc.ID, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp DocumentResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.TextContent == nil || *resp.TextContent != helloText {
		t.Fatalf("expected text content in detail view")
	}
}

func TestHandlerDelete(t *testing.T) {
	env := newHandlerEnv(t)
	doc := env.fix.seed(t, "user-1", helloText, "text/plain", "")

	rec := env.do(t, "user-1", httptest.NewRequest(http.MethodDelete, "/api/v1/documents/"+doc.ID, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Document deleted successfully") {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
	if env.fix.store.has(doc.StorageKey) {
		t.Fatalf("blob should be gone")
	}

	rec = env.do(t, "user-1", httptest.NewRequest(http.MethodGet, "/api/v1/documents/"+doc.ID, nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", rec.Code)
	}
}

func TestHandlerReextractInline(t *testing.T) {
	env := newHandlerEnv(t)
	doc := env.fix.seed(t, "user-1", helloText, "text/plain", "")

	rec := env.do(t, "user-1", httptest.NewRequest(http.MethodPost, "/api/v1/documents/"+doc.ID+"/reextract", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"status":"completed"`) {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
}

func TestHandlerReextractQueued(t *testing.T) {
	env := newHandlerEnv(t)
	q := &fakeQueue{}
	env.fix.svc.Queue = q
	doc := env.fix.seed(t, "user-1", helloText, "text/plain", "")

	rec := env.do(t, "user-1", httptest.NewRequest(http.MethodPost, "/api/v1/documents/"+doc.ID+"/reextract", nil))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(q.sent) != 1 || q.sent[0].DocumentID != doc.ID || q.sent[0].UserID != "user-1" {
		t.Fatalf("unexpected messages %+v", q.sent)
	}
}

func TestHandlerListZeroLimitUsesDefault(t *testing.T) {
	env := newHandlerEnv(t)
	for i := 0; i < DefaultListLimit+3; i++ {
		env.fix.seed(t, "user-1", helloText, "text/plain", "")
	}

	for _, query := range []string{"", "?limit=0", "?limit=-4"} {
		rec := env.do(t, "user-1", httptest.NewRequest(http.MethodGet, "/api/v1/documents"+query, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("%q: expected 200, got %d", query, rec.Code)
		}
		var docs []DocumentResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &docs); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(docs) != DefaultListLimit {
			t.Fatalf("%q: expected %d documents, got %d", query, DefaultListLimit, len(docs))
		}
	}
}
