package main

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"

	"intellidoc-backend/internal/documents"
	"intellidoc-backend/internal/queue"
)

type scriptedProcessor struct {
	errs map[string]error
}

func (p scriptedProcessor) ProcessReextraction(_ context.Context, _ string, documentID string) error {
	return p.errs[documentID]
}

func record(t *testing.T, id, docID string) events.SQSMessage {
	t.Helper()
	body, err := queue.EncodeMessage(queue.NewReextractMessage(docID, "user-1", "", time.Now()))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return events.SQSMessage{MessageId: id, Body: string(body)}
}

func TestProcessBatchReportsOnlyRetryableFailures(t *testing.T) {
	proc := scriptedProcessor{errs: map[string]error{
		"doc-transient": errors.New("vision timeout"),
		"doc-gone":      fmt.Errorf("load: %w", documents.ErrNotFound),
	}}
	event := events.SQSEvent{Records: []events.SQSMessage{
		record(t, "m1", "doc-ok"),
		record(t, "m2", "doc-transient"),
		record(t, "m3", "doc-gone"),
		{MessageId: "m4", Body: "{broken"},
	}}

	resp := processBatch(context.Background(), proc, event)

	if len(resp.BatchItemFailures) != 1 || resp.BatchItemFailures[0].ItemIdentifier != "m2" {
		t.Fatalf("unexpected failures %+v", resp.BatchItemFailures)
	}
}
