package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"intellidoc-backend/internal/documents"
	"intellidoc-backend/internal/queue"
)

type fakeSQS struct {
	mu       sync.Mutex
	deleted  []string
	batches  [][]sqstypes.Message
	received int
	cancel   context.CancelFunc
}

func (f *fakeSQS) ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.received < len(f.batches) {
		batch := f.batches[f.received]
		f.received++
		return &sqs.ReceiveMessageOutput{Messages: batch}, nil
	}
	if f.cancel != nil {
		f.cancel()
	}
	return nil, context.Canceled
}

func (f *fakeSQS) DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, aws.ToString(params.ReceiptHandle))
	return &sqs.DeleteMessageOutput{}, nil
}

type fakeProcessor struct {
	mu    sync.Mutex
	err   error
	calls []string
}

func (f *fakeProcessor) ProcessReextraction(_ context.Context, userID, documentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, userID+"/"+documentID)
	return f.err
}

func sqsMessage(t *testing.T, id string, body string) sqstypes.Message {
	t.Helper()
	return sqstypes.Message{
		MessageId:     aws.String("m-" + id),
		ReceiptHandle: aws.String("r-" + id),
		Body:          aws.String(body),
		Attributes:    map[string]string{"ApproximateReceiveCount": "1"},
	}
}

func reextractBody(t *testing.T, docID string) string {
	t.Helper()
	b, err := queue.EncodeMessage(queue.NewReextractMessage(docID, "user-1", "req-"+docID, time.Now()))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return string(b)
}

func TestWorkerDeletesMessageOnSuccess(t *testing.T) {
	client := &fakeSQS{}
	proc := &fakeProcessor{}

	handleMessage(context.Background(), client, "queue", proc, sqsMessage(t, "1", reextractBody(t, "doc-1")))

	if len(client.deleted) != 1 || client.deleted[0] != "r-1" {
		t.Fatalf("expected delete, got %v", client.deleted)
	}
	if len(proc.calls) != 1 || proc.calls[0] != "user-1/doc-1" {
		t.Fatalf("unexpected calls %v", proc.calls)
	}
}

func TestWorkerKeepsMessageOnTransientFailure(t *testing.T) {
	client := &fakeSQS{}
	proc := &fakeProcessor{err: errors.New("ocr timeout")}

	handleMessage(context.Background(), client, "queue", proc, sqsMessage(t, "2", reextractBody(t, "doc-2")))

	if len(client.deleted) != 0 {
		t.Fatalf("expected no delete, got %v", client.deleted)
	}
}

func TestWorkerDeletesOnPermanentFailure(t *testing.T) {
	client := &fakeSQS{}
	proc := &fakeProcessor{err: fmt.Errorf("load: %w", documents.ErrNotFound)}

	handleMessage(context.Background(), client, "queue", proc, sqsMessage(t, "3", reextractBody(t, "doc-3")))

	if len(client.deleted) != 1 {
		t.Fatalf("expected delete for missing document, got %v", client.deleted)
	}
}

func TestWorkerDeletesMalformedPayloads(t *testing.T) {
	for i, body := range []string{"", "{bad-json", `{"userId":"u1"}`} {
		client := &fakeSQS{}
		proc := &fakeProcessor{}
		handleMessage(context.Background(), client, "queue", proc, sqsMessage(t, fmt.Sprint(i), body))
		if len(client.deleted) != 1 {
			t.Fatalf("body %q: expected delete, got %v", body, client.deleted)
		}
		if len(proc.calls) != 0 {
			t.Fatalf("body %q: processor must not run", body)
		}
	}
}

func TestRunDrainsBatchesAndStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	client := &fakeSQS{
		cancel: cancel,
		batches: [][]sqstypes.Message{{
			sqsMessage(t, "a", reextractBody(t, "doc-a")),
			sqsMessage(t, "b", reextractBody(t, "doc-b")),
		}},
	}
	proc := &fakeProcessor{}

	run(ctx, client, "queue", proc, 60, 2, time.Second)

	if len(proc.calls) != 2 || len(client.deleted) != 2 {
		t.Fatalf("expected both messages processed, calls=%v deleted=%v", proc.calls, client.deleted)
	}
}

func TestReceiveCount(t *testing.T) {
	if got := receiveCount(sqstypes.Message{Attributes: map[string]string{"ApproximateReceiveCount": "3"}}); got != 3 {
		t.Fatalf("expected 3, got %d", got)
	}
	if got := receiveCount(sqstypes.Message{}); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
}
