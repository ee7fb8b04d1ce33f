package documents

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"intellidoc-backend/internal/extract"
	"intellidoc-backend/internal/llm"
	"intellidoc-backend/internal/queue"
	"intellidoc-backend/internal/shared/storage/object"
)

type memStore struct {
	mu        sync.Mutex
	blobs     map[string][]byte
	saveErr   error
	deleteErr error
	deletes   []string
	seq       int
}

func newMemStore() *memStore { return &memStore{blobs: map[string][]byte{}} }

func (m *memStore) Provider() string { return "memory" }

func (m *memStore) Save(_ context.Context, userID, fileName, contentType string, r io.Reader) (object.Blob, error) {
	if m.saveErr != nil {
		return object.Blob{}, m.saveErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return object.Blob{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	key := fmt.Sprintf("%s/%d_%s", userID, m.seq, fileName)
	m.blobs[key] = data
	return object.Blob{Provider: "memory", Key: key, Size: int64(len(data)), ContentType: contentType}, nil
}

func (m *memStore) Open(_ context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.blobs[key]
	if !ok {
		return nil, object.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes = append(m.deletes, key)
	if m.deleteErr != nil {
		return m.deleteErr
	}
	delete(m.blobs, key)
	return nil
}

func (m *memStore) URL(key string) string { return "https://files.test/" + key }

func (m *memStore) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.blobs[key]
	return ok
}

type fakeExtractor struct {
	result extract.Result
	calls  int
}

func (f *fakeExtractor) Extract(context.Context, string, []byte) extract.Result {
	f.calls++
	return f.result
}

type fakeCompleter struct {
	reply string
	err   error
	calls int
}

func (f *fakeCompleter) Complete(context.Context, llm.Request) (string, error) {
	f.calls++
	return f.reply, f.err
}

type fakeQueue struct {
	sent []queue.Message
	err  error
}

func (f *fakeQueue) Publish(_ context.Context, msg queue.Message) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

type failingRepo struct {
	*MemoryRepo
	createErr error
}

func (r failingRepo) Create(ctx context.Context, doc Document) error {
	if r.createErr != nil {
		return r.createErr
	}
	return r.MemoryRepo.Create(ctx, doc)
}

var errBoom = errors.New("boom")
