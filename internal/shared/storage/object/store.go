package object

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/google/uuid"

	"intellidoc-backend/internal/shared/util"
)

var (
	ErrNotFound   = errors.New("object not found")
	ErrInvalidKey = errors.New("invalid storage key")
)

// Blob is the structured reference to a stored object. Key is persisted with
// the document and is the only input to Open, Delete and URL.
type Blob struct {
	Provider    string
	Key         string
	Size        int64
	ContentType string
}

// ObjectStore defines the contract for saving, reading and removing binary objects.
type ObjectStore interface {
	Provider() string
	Save(ctx context.Context, userID, fileName, contentType string, r io.Reader) (Blob, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	URL(key string) string
}

// NewKey builds a per-user storage key of the form <sha256(user)>/<uuid>_<name>.
func NewKey(userID, fileName string) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", fmt.Errorf("%w: user id required", ErrInvalidKey)
	}
	name, err := util.SanitizeFileName(fileName)
	if err != nil {
		return "", fmt.Errorf("sanitize file name: %w", err)
	}
	return path.Join(util.HashUserKey(userID), uuid.NewString()+"_"+name), nil
}

// CleanKey rejects absolute or traversing keys.
func CleanKey(key string) (string, error) {
	clean := path.Clean(strings.TrimSpace(key))
	if clean == "." || clean == "" || strings.HasPrefix(clean, "/") || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", ErrInvalidKey
	}
	return clean, nil
}

// Sniff detects the content type from the first 512 bytes when none was
// declared and returns a reader that replays them.
func Sniff(r io.Reader, declared string) (io.Reader, string, error) {
	var head [512]byte
	n, err := io.ReadFull(r, head[:])
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, "", fmt.Errorf("read sniff: %w", err)
	}
	contentType := strings.TrimSpace(declared)
	if contentType == "" {
		contentType = http.DetectContentType(head[:n])
	}
	return io.MultiReader(bytes.NewReader(head[:n]), r), contentType, nil
}

// CountingReader counts bytes read through it.
type CountingReader struct {
	R io.Reader
	N int64
}

func (c *CountingReader) Read(p []byte) (int, error) {
	n, err := c.R.Read(p)
	c.N += int64(n)
	return n, err
}

// JoinPrefix joins a bucket prefix and key without duplicate slashes.
func JoinPrefix(prefix, key string) string {
	cleanPrefix := strings.Trim(prefix, "/")
	cleanKey := strings.TrimLeft(key, "/")
	if cleanPrefix == "" {
		return cleanKey
	}
	if cleanKey == "" {
		return cleanPrefix
	}
	return cleanPrefix + "/" + cleanKey
}
