package s3

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"intellidoc-backend/internal/shared/storage/object"
)

type fakeS3 struct {
	objects   map[string][]byte
	lastPut   *s3.PutObjectInput
	deleteErr error
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Key)] = data
	f.lastPut = in
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &s3types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(string(data)))}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	if f.deleteErr != nil {
		return nil, f.deleteErr
	}
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func TestSaveAppliesPrefixAndEncryption(t *testing.T) {
	fake := &fakeS3{objects: map[string][]byte{}}
	store := NewWithClient(fake, "eu-west-1", "docs", "/documents/", "")

	blob, err := store.Save(context.Background(), "user-1", "a.pdf", "application/pdf", strings.NewReader("%PDF-1.4"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if blob.Size != 8 || blob.ContentType != "application/pdf" {
		t.Fatalf("unexpected blob: %+v", blob)
	}
	if got := aws.ToString(fake.lastPut.Key); got != "documents/"+blob.Key {
		t.Fatalf("unexpected object key %q", got)
	}
	if fake.lastPut.ServerSideEncryption != s3types.ServerSideEncryptionAes256 {
		t.Fatalf("expected AES256 encryption, got %q", fake.lastPut.ServerSideEncryption)
	}
	if got := store.URL(blob.Key); got != "https://docs.s3.eu-west-1.amazonaws.com/documents/"+blob.Key {
		t.Fatalf("unexpected url %q", got)
	}
}

func TestSaveUsesKMSWhenConfigured(t *testing.T) {
	fake := &fakeS3{objects: map[string][]byte{}}
	store := NewWithClient(fake, "", "docs", "", "kms-key")
	if _, err := store.Save(context.Background(), "user-1", "a.txt", "", strings.NewReader("hi")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if fake.lastPut.ServerSideEncryption != s3types.ServerSideEncryptionAwsKms {
		t.Fatalf("expected kms encryption")
	}
	if aws.ToString(fake.lastPut.SSEKMSKeyId) != "kms-key" {
		t.Fatalf("expected kms key id")
	}
}

func TestOpenMissingAndDeleteFailure(t *testing.T) {
	fake := &fakeS3{objects: map[string][]byte{}, deleteErr: errors.New("access denied")}
	store := NewWithClient(fake, "", "docs", "", "")

	if _, err := store.Open(context.Background(), "u/missing.pdf"); !errors.Is(err, object.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := store.Delete(context.Background(), "u/file.pdf"); err == nil {
		t.Fatalf("expected delete error to surface")
	}
}
